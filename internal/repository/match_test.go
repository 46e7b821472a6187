package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahim-murtaza/ColorGrid/internal/apperror"
	"github.com/ibrahim-murtaza/ColorGrid/internal/repository/storage"
)

func newTestMatchRepo(t *testing.T) (context.Context, MatchRecordRepository) {
	t.Helper()

	st, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "colorgrid.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, st.Close())
	})

	return context.Background(), NewMatchRecordRepository(st.DB)
}

func sampleRecord() *MatchRecord {
	grid := make([][]int, 5)
	for row := range grid {
		grid[row] = make([]int, 5)
		for col := range grid[row] {
			grid[row][col] = (row + col) % 3
		}
	}

	return &MatchRecord{
		ID:           "m1",
		Player1ID:    "u1",
		Player2ID:    "u2",
		Player1Name:  "alice",
		Player2Name:  "bob",
		Player1Color: "red",
		Player2Color: "blue",
		FinalGrid:    grid,
		Result:       "player1_won",
		WinnerID:     "u1",
	}
}

func TestMatchRecordRepository_Save(t *testing.T) {
	t.Run("Saved record round-trips through GetByID", func(t *testing.T) {
		ctx, matchRepo := newTestMatchRepo(t)

		// Given: a finished match record
		record := sampleRecord()

		// When: saving and reading it back
		require.NoError(t, matchRepo.Save(ctx, record))

		got, err := matchRepo.GetByID(ctx, "m1")
		require.NoError(t, err)

		// Then: every field survives, including the grid
		assert.Equal(t, record.ID, got.ID)
		assert.Equal(t, record.Player1Name, got.Player1Name)
		assert.Equal(t, record.Player2Color, got.Player2Color)
		assert.Equal(t, record.FinalGrid, got.FinalGrid)
		assert.Equal(t, record.Result, got.Result)
		assert.Equal(t, record.WinnerID, got.WinnerID)
		assert.False(t, got.Forfeit)
		assert.Empty(t, got.ForfeiterID)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("Forfeit fields round-trip", func(t *testing.T) {
		ctx, matchRepo := newTestMatchRepo(t)

		record := sampleRecord()
		record.ID = "m2"
		record.Result = "forfeit"
		record.WinnerID = "u2"
		record.Forfeit = true
		record.ForfeiterID = "u1"

		require.NoError(t, matchRepo.Save(ctx, record))

		got, err := matchRepo.GetByID(ctx, "m2")
		require.NoError(t, err)
		assert.True(t, got.Forfeit)
		assert.Equal(t, "u1", got.ForfeiterID)
		assert.Equal(t, "u2", got.WinnerID)
	})

	t.Run("Drawn record stores no winner", func(t *testing.T) {
		ctx, matchRepo := newTestMatchRepo(t)

		record := sampleRecord()
		record.ID = "m3"
		record.Result = "draw"
		record.WinnerID = ""

		require.NoError(t, matchRepo.Save(ctx, record))

		got, err := matchRepo.GetByID(ctx, "m3")
		require.NoError(t, err)
		assert.Empty(t, got.WinnerID)
	})

	t.Run("Saving the same id twice fails", func(t *testing.T) {
		// records are immutable once written
		ctx, matchRepo := newTestMatchRepo(t)

		record := sampleRecord()
		require.NoError(t, matchRepo.Save(ctx, record))

		err := matchRepo.Save(ctx, record)
		require.Error(t, err)
	})
}

func TestMatchRecordRepository_GetByID(t *testing.T) {
	t.Run("Unknown id returns ErrRecordNotFound", func(t *testing.T) {
		ctx, matchRepo := newTestMatchRepo(t)

		_, err := matchRepo.GetByID(ctx, "missing")
		require.ErrorIs(t, err, apperror.ErrRecordNotFound)
	})
}
