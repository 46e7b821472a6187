package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ibrahim-murtaza/ColorGrid/internal/apperror"
	"github.com/ibrahim-murtaza/ColorGrid/internal/entity"
	"github.com/ibrahim-murtaza/ColorGrid/internal/pool"
	"github.com/ibrahim-murtaza/ColorGrid/internal/repository"
)

func (that *Server) handleSeekMatch(_ context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleSeekMatch", "connID", conn.id)

	var payload SeekMatchPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		that.sendError(conn, "malformed seek-match payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.UserID == "" || payload.Username == "" {
		that.sendError(conn, "userId and username are required")
		return nil
	}

	pair, waiting := that.pool.Enqueue(pool.Entry{
		ConnID:    conn.id,
		UserID:    payload.UserID,
		Username:  payload.Username,
		AvatarRef: payload.AvatarRef,
	})

	if pair == nil {
		message := "Waiting for an opponent..."
		if waiting > 1 {
			message = "Waiting for a different opponent..."
		}

		return conn.send(ActionMatchmakingStatus, StatusPayload{Message: message})
	}

	log.Info("pairing complete", "first", pair.First.Username, "second", pair.Second.Username)

	match := that.registry.Create(slotFromEntry(pair.First), slotFromEntry(pair.Second))
	snap := match.Snapshot()

	that.broadcast(snap, ActionMatchStarted, MatchStartedPayload{
		MatchID: snap.ID,
		SlotA:   snap.Player1,
		SlotB:   snap.Player2,
		Grid:    snap.Grid,
		Turn:    snap.Turn,
	})

	return nil
}

func slotFromEntry(entry pool.Entry) *entity.PlayerSlot {
	return &entity.PlayerSlot{
		UserID:    entry.UserID,
		Username:  entry.Username,
		AvatarRef: entry.AvatarRef,
		ConnID:    entry.ConnID,
	}
}

// handleCancelMatch removes the caller from the waiting pool. Cancelling
// an entry that no longer exists is a no-op, never an error.
func (that *Server) handleCancelMatch(_ context.Context, conn *connection, _ *Message) error {
	that.pool.Remove(conn.id)

	return conn.send(ActionMatchmakingStatus, StatusPayload{Message: "Matchmaking cancelled"})
}

// handleJoinMatch binds the connection to a live match for a rejoin, or
// replays the persisted record when the match has already been retired.
func (that *Server) handleJoinMatch(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleJoinMatch", "connID", conn.id)

	var payload JoinMatchPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		that.sendError(conn, "malformed join-match payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	match, err := that.registry.Get(payload.MatchID)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		return that.replayFinishedMatch(ctx, conn, payload.MatchID)
	}

	snap, err := match.BindConnection(payload.UserID, conn.id)
	if err != nil {
		that.sendError(conn, err.Error())
		return nil
	}

	log.Info("connection bound to match", "matchID", snap.ID, "userID", payload.UserID)

	return conn.send(ActionStateSnapshot, snap)
}

// replayFinishedMatch answers a join for a match that is no longer live:
// the stored record is replayed as a terminal snapshot, and an unknown id
// degrades to "already ended" instead of leaving the client hanging.
func (that *Server) replayFinishedMatch(ctx context.Context, conn *connection, matchID string) error {
	log := that.logger.With("method", "replayFinishedMatch", "matchID", matchID)

	record, err := that.records.GetByID(ctx, matchID)
	if err != nil {
		if !errors.Is(err, apperror.ErrRecordNotFound) {
			log.Error("failed to look up match record", "error", err)
		}

		return conn.send(ActionMatchOver, MatchOverPayload{
			Outcome: OutcomeAlreadyEnded,
			Message: "Match has ended",
		})
	}

	log.Info("replaying completed match")

	return conn.send(ActionMatchOver, matchOverFromRecord(record))
}

func (that *Server) handleMakeMove(_ context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleMakeMove", "connID", conn.id)

	var payload MakeMovePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		that.sendError(conn, "malformed make-move payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	match, err := that.registry.Get(payload.MatchID)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		return conn.send(ActionMatchOver, MatchOverPayload{
			Outcome: OutcomeAlreadyEnded,
			Message: "Match has ended",
		})
	}

	move, err := match.MakeMove(payload.Slot, payload.Row, payload.Col)
	if err != nil {
		that.sendError(conn, err.Error())
		return nil
	}

	snap := match.Snapshot()

	that.broadcast(snap, ActionMoveApplied, MoveAppliedPayload{State: snap, Move: move})

	if snap.Status != entity.StatusFinished {
		return nil
	}

	log.Info("board full, match scored", "matchID", snap.ID, "result", snap.Result)

	that.broadcast(snap, ActionMatchOver, matchOverFromSnapshot(snap))
	that.registry.Finalize(match)

	return nil
}

func (that *Server) handleForfeit(_ context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleForfeit", "connID", conn.id)

	var payload ForfeitPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		that.sendError(conn, "malformed forfeit-match payload")
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	match, err := that.registry.Get(payload.MatchID)
	if errors.Is(err, apperror.ErrMatchNotFound) {
		return conn.send(ActionMatchOver, MatchOverPayload{
			Outcome: OutcomeAlreadyEnded,
			Message: "Match has ended",
		})
	}

	if err = match.Forfeit(payload.Slot); err != nil {
		that.sendError(conn, err.Error())
		return nil
	}

	snap := match.Snapshot()

	log.Info("match forfeited", "matchID", snap.ID, "slot", payload.Slot)

	that.broadcast(snap, ActionMatchOver, matchOverFromSnapshot(snap))
	that.registry.Finalize(match)

	return nil
}

func matchOverFromSnapshot(snap entity.MatchSnapshot) MatchOverPayload {
	return MatchOverPayload{
		Outcome:   snap.Result,
		Winner:    snap.Winner,
		Forfeiter: snap.Forfeiter,
		FinalGrid: snap.FinalGrid,
		Scores:    snap.Scores,
	}
}

func matchOverFromRecord(record *repository.MatchRecord) MatchOverPayload {
	payload := MatchOverPayload{
		Outcome:   record.Result,
		FinalGrid: record.FinalGrid,
	}

	players := map[string]*entity.PlayerSlot{
		record.Player1ID: {UserID: record.Player1ID, Username: record.Player1Name, Color: record.Player1Color},
		record.Player2ID: {UserID: record.Player2ID, Username: record.Player2Name, Color: record.Player2Color},
	}

	if record.WinnerID != "" {
		payload.Winner = players[record.WinnerID]
	}

	if record.ForfeiterID != "" {
		payload.Forfeiter = players[record.ForfeiterID]
	}

	return payload
}
