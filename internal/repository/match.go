package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ibrahim-murtaza/ColorGrid/internal/apperror"
)

// MatchRecord is the immutable row written exactly once per finished match.
type MatchRecord struct {
	ID           string    `json:"id"`
	Player1ID    string    `json:"player1Id"`
	Player2ID    string    `json:"player2Id"`
	Player1Name  string    `json:"player1Name"`
	Player2Name  string    `json:"player2Name"`
	Player1Color string    `json:"player1Colour"`
	Player2Color string    `json:"player2Colour"`
	FinalGrid    [][]int   `json:"finalGrid"`
	Result       string    `json:"result"`
	WinnerID     string    `json:"winnerId,omitempty"`
	Forfeit      bool      `json:"forfeit"`
	ForfeiterID  string    `json:"forfeiterId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type MatchRecordRepository interface {
	Save(ctx context.Context, record *MatchRecord) error
	GetByID(ctx context.Context, id string) (*MatchRecord, error)
}

type dbMatchRecord struct {
	db *sql.DB
}

func NewMatchRecordRepository(db *sql.DB) MatchRecordRepository {
	return &dbMatchRecord{
		db: db,
	}
}

func (that *dbMatchRecord) Save(ctx context.Context, record *MatchRecord) error {
	gridJSON, err := json.Marshal(record.FinalGrid)
	if err != nil {
		return fmt.Errorf("failed to marshal final grid: %w", err)
	}

	_, err = that.db.ExecContext(ctx, `
		INSERT INTO match_records
			(id, player1_id, player2_id, player1_name, player2_name,
			 player1_colour, player2_colour, final_grid, result,
			 winner_id, forfeit, forfeiter_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Player1ID, record.Player2ID,
		record.Player1Name, record.Player2Name,
		record.Player1Color, record.Player2Color,
		string(gridJSON), record.Result,
		nullable(record.WinnerID), record.Forfeit, nullable(record.ForfeiterID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert match record: %w", err)
	}

	return nil
}

func (that *dbMatchRecord) GetByID(ctx context.Context, id string) (*MatchRecord, error) {
	row := that.db.QueryRowContext(ctx, `
		SELECT id, player1_id, player2_id, player1_name, player2_name,
		       player1_colour, player2_colour, final_grid, result,
		       winner_id, forfeit, forfeiter_id, created_at
		FROM match_records WHERE id = ?`, id)

	var record MatchRecord
	var gridJSON string
	var winnerID, forfeiterID sql.NullString
	var createdAt any

	err := row.Scan(
		&record.ID, &record.Player1ID, &record.Player2ID,
		&record.Player1Name, &record.Player2Name,
		&record.Player1Color, &record.Player2Color,
		&gridJSON, &record.Result,
		&winnerID, &record.Forfeit, &forfeiterID, &createdAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrRecordNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get match record by ID: %w", err)
	}

	if err = json.Unmarshal([]byte(gridJSON), &record.FinalGrid); err != nil {
		return nil, fmt.Errorf("failed to unmarshal final grid: %w", err)
	}

	record.WinnerID = winnerID.String
	record.ForfeiterID = forfeiterID.String

	// the driver may hand the timestamp back as either type
	switch v := createdAt.(type) {
	case time.Time:
		record.CreatedAt = v
	case string:
		if parsed, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
			record.CreatedAt = parsed
		}
	}

	return &record, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
