package registry

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahim-murtaza/ColorGrid/internal/apperror"
	"github.com/ibrahim-murtaza/ColorGrid/internal/entity"
	"github.com/ibrahim-murtaza/ColorGrid/internal/repository"
)

type fakeMatchRepo struct {
	mu    sync.Mutex
	saved []*repository.MatchRecord
}

func (that *fakeMatchRepo) Save(_ context.Context, record *repository.MatchRecord) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.saved = append(that.saved, record)

	return nil
}

func (that *fakeMatchRepo) count() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.saved)
}

func (that *fakeMatchRepo) last() *repository.MatchRecord {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.saved[len(that.saved)-1]
}

type outcome struct {
	winnerID string
	loserID  string
	draw     bool
}

type fakeUserRepo struct {
	mu      sync.Mutex
	applied []outcome
}

func (that *fakeUserRepo) ApplyOutcome(_ context.Context, winnerID, loserID string, draw bool) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.applied = append(that.applied, outcome{winnerID: winnerID, loserID: loserID, draw: draw})

	return nil
}

func (that *fakeUserRepo) count() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.applied)
}

func (that *fakeUserRepo) last() outcome {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.applied[len(that.applied)-1]
}

func newTestRegistry(grace time.Duration) (*Registry, *fakeMatchRepo, *fakeUserRepo) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	matchRepo := &fakeMatchRepo{}
	userRepo := &fakeUserRepo{}

	return New(logger, matchRepo, userRepo, grace), matchRepo, userRepo
}

func slots() (*entity.PlayerSlot, *entity.PlayerSlot) {
	return &entity.PlayerSlot{UserID: "u1", Username: "alice", ConnID: "c1"},
		&entity.PlayerSlot{UserID: "u2", Username: "bob", ConnID: "c2"}
}

func TestRegistry_CreateAndGet(t *testing.T) {
	t.Run("Created match is retrievable by its id", func(t *testing.T) {
		// Given: a registry and a completed pairing
		reg, _, _ := newTestRegistry(time.Second)
		first, second := slots()

		// When: a match is created
		match := reg.Create(first, second)

		// Then: it is live and retrievable
		require.NotEmpty(t, match.ID)
		got, err := reg.Get(match.ID)
		require.NoError(t, err)
		assert.Same(t, match, got)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("Unknown id returns ErrMatchNotFound", func(t *testing.T) {
		reg, _, _ := newTestRegistry(time.Second)

		_, err := reg.Get("nope")
		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})

	t.Run("Match ids are unique", func(t *testing.T) {
		reg, _, _ := newTestRegistry(time.Second)

		first1, second1 := slots()
		first2, second2 := slots()

		a := reg.Create(first1, second1)
		b := reg.Create(first2, second2)

		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestRegistry_Finalize(t *testing.T) {
	t.Run("Persists the outcome exactly once even when finalized twice", func(t *testing.T) {
		// Given: a forfeited match
		reg, matchRepo, userRepo := newTestRegistry(time.Second)
		first, second := slots()
		match := reg.Create(first, second)
		require.NoError(t, match.Forfeit(entity.SlotPlayer1))

		// When: finalize races with itself
		reg.Finalize(match)
		reg.Finalize(match)

		// Then: one record and one counter adjustment, match retired
		require.Eventually(t, func() bool {
			return matchRepo.count() == 1 && userRepo.count() == 1
		}, 2*time.Second, 10*time.Millisecond)

		assert.Equal(t, 0, reg.Len())

		record := matchRepo.last()
		assert.Equal(t, entity.ResultForfeit, record.Result)
		assert.True(t, record.Forfeit)
		assert.Equal(t, "u1", record.ForfeiterID)
		assert.Equal(t, "u2", record.WinnerID)

		applied := userRepo.last()
		assert.Equal(t, "u2", applied.winnerID)
		assert.Equal(t, "u1", applied.loserID)
		assert.False(t, applied.draw)
	})

	t.Run("Draw applies the outcome to both players as a draw", func(t *testing.T) {
		// Given: a drawn match (checkerboard fill)
		reg, _, userRepo := newTestRegistry(time.Second)
		first, second := slots()
		match := reg.Create(first, second)

		slotNames := [2]string{entity.SlotPlayer1, entity.SlotPlayer2}
		for i := 0; i < entity.TotalCells; i++ {
			_, err := match.MakeMove(slotNames[i%2], i/entity.GridSize, i%entity.GridSize)
			require.NoError(t, err)
		}
		require.Equal(t, entity.ResultDraw, match.Snapshot().Result)

		// When: the match is finalized
		reg.Finalize(match)

		// Then: both players receive a draw
		require.Eventually(t, func() bool {
			return userRepo.count() == 1
		}, 2*time.Second, 10*time.Millisecond)

		assert.True(t, userRepo.last().draw)
	})
}

func TestRegistry_OnDisconnect(t *testing.T) {
	t.Run("Grace timer with no rejoin fires exactly once in the opponent's favor", func(t *testing.T) {
		// Given: a live match whose player1 connection drops
		reg, matchRepo, userRepo := newTestRegistry(50 * time.Millisecond)
		first, second := slots()
		match := reg.Create(first, second)

		var mu sync.Mutex
		var notified []string

		// When: the disconnect is reported and nobody rejoins
		reg.OnDisconnect("c1", func(opponentConnID string, snap entity.MatchSnapshot) {
			mu.Lock()
			defer mu.Unlock()
			notified = append(notified, opponentConnID)
		})

		// Then: the opponent is notified exactly once and the forfeit-equivalent
		// outcome is persisted for the opponent
		require.Eventually(t, func() bool {
			return matchRepo.count() == 1 && userRepo.count() == 1
		}, 2*time.Second, 10*time.Millisecond)

		mu.Lock()
		assert.Equal(t, []string{"c2"}, notified)
		mu.Unlock()

		assert.Equal(t, 0, reg.Len())
		assert.Equal(t, "u2", userRepo.last().winnerID)

		record := matchRepo.last()
		assert.Equal(t, entity.ResultForfeit, record.Result)
		assert.Equal(t, "u1", record.ForfeiterID)

		// and it stays fired-once
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 1, matchRepo.count())

		_, err := reg.Get(match.ID)
		assert.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})

	t.Run("Rejoin with the same identity within the grace window cancels the timer", func(t *testing.T) {
		// Given: a live match whose player1 connection drops
		reg, matchRepo, _ := newTestRegistry(50 * time.Millisecond)
		first, second := slots()
		match := reg.Create(first, second)

		notified := make(chan string, 1)
		reg.OnDisconnect("c1", func(opponentConnID string, _ entity.MatchSnapshot) {
			notified <- opponentConnID
		})

		// When: the same user rebinds a fresh connection before expiry
		_, err := match.BindConnection("u1", "c1-new")
		require.NoError(t, err)

		// Then: the timer is a no-op and the match stays live
		time.Sleep(150 * time.Millisecond)
		select {
		case id := <-notified:
			t.Fatalf("opponent %s notified despite rejoin", id)
		default:
		}

		assert.Equal(t, 1, reg.Len())
		assert.Equal(t, 0, matchRepo.count())
		assert.False(t, match.IsFinished())
	})

	t.Run("Disconnect of an unknown connection starts no timers", func(t *testing.T) {
		reg, matchRepo, _ := newTestRegistry(20 * time.Millisecond)
		first, second := slots()
		reg.Create(first, second)

		reg.OnDisconnect("c-ghost", func(string, entity.MatchSnapshot) {
			t.Error("notify must not fire")
		})

		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, 1, reg.Len())
		assert.Equal(t, 0, matchRepo.count())
	})

	t.Run("Timer on an already finalized match is a no-op", func(t *testing.T) {
		// Given: a match that finishes normally right after the disconnect
		reg, matchRepo, _ := newTestRegistry(50 * time.Millisecond)
		first, second := slots()
		match := reg.Create(first, second)

		reg.OnDisconnect("c1", func(string, entity.MatchSnapshot) {
			t.Error("notify must not fire for a finished match")
		})

		require.NoError(t, match.Forfeit(entity.SlotPlayer2))
		reg.Finalize(match)

		// Then: only the explicit forfeit is persisted
		require.Eventually(t, func() bool {
			return matchRepo.count() == 1
		}, 2*time.Second, 10*time.Millisecond)

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 1, matchRepo.count())
		assert.Equal(t, "u2", matchRepo.last().ForfeiterID)
	})
}
