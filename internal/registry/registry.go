package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibrahim-murtaza/ColorGrid/internal/apperror"
	"github.com/ibrahim-murtaza/ColorGrid/internal/entity"
	"github.com/ibrahim-murtaza/ColorGrid/internal/repository"
)

const (
	persistAttempts = 3
	persistBackoff  = time.Second
)

type matchRecordRepo interface {
	Save(ctx context.Context, record *repository.MatchRecord) error
}

type userStatsRepo interface {
	ApplyOutcome(ctx context.Context, winnerID, loserID string, draw bool) error
}

// Registry is the process-wide table of live matches. It is the only
// component that creates or deletes a match; everything else observes a
// match's existence through Get. All live state is in this process's
// memory, which is a stated scale and crash-recovery constraint.
type Registry struct {
	logger      *slog.Logger
	matchRepo   matchRecordRepo
	userRepo    userStatsRepo
	gracePeriod time.Duration

	mu      sync.RWMutex
	matches map[string]*entity.Match
}

func New(logger *slog.Logger, matchRepo matchRecordRepo, userRepo userStatsRepo, gracePeriod time.Duration) *Registry {
	return &Registry{
		logger:      logger,
		matchRepo:   matchRepo,
		userRepo:    userRepo,
		gracePeriod: gracePeriod,

		matches: make(map[string]*entity.Match),
	}
}

// Create builds a match for a completed pairing under a fresh unique id
// and stores it in the live table.
func (that *Registry) Create(first, second *entity.PlayerSlot) *entity.Match {
	match := entity.NewMatch(uuid.NewString(), first, second)

	that.mu.Lock()
	that.matches[match.ID] = match
	that.mu.Unlock()

	that.logger.With("method", "Create").Info("match created", "matchID", match.ID)

	return match
}

func (that *Registry) Get(id string) (*entity.Match, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	match, ok := that.matches[id]
	if !ok {
		return nil, apperror.ErrMatchNotFound
	}

	return match, nil
}

// Retire removes the match from the live table. It reports whether the
// match was still live, so exactly one caller wins a finalization race.
func (that *Registry) Retire(id string) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.matches[id]; !ok {
		return false
	}

	delete(that.matches, id)

	return true
}

// Finalize retires a finished match and persists its outcome. The winner
// of the retire race is the only goroutine that writes the match record
// and applies the rating/coin adjustment, so both happen exactly once.
// Persistence runs detached: a storage failure is logged and retried, and
// never rolls back the in-memory outcome already broadcast to clients.
func (that *Registry) Finalize(match *entity.Match) {
	if !that.Retire(match.ID) {
		return
	}

	snap := match.Snapshot()

	go that.persistOutcome(snap)
}

func (that *Registry) persistOutcome(snap entity.MatchSnapshot) {
	log := that.logger.With("method", "persistOutcome", "matchID", snap.ID)

	ctx := context.Background()

	record := recordFromSnapshot(snap)

	if err := that.withRetries(log, "save match record", func() error {
		return that.matchRepo.Save(ctx, record)
	}); err != nil {
		return
	}

	winnerID, loserID, draw := outcomeParties(snap)

	if err := that.withRetries(log, "apply outcome", func() error {
		return that.userRepo.ApplyOutcome(ctx, winnerID, loserID, draw)
	}); err != nil {
		return
	}

	log.Info("match outcome persisted", "result", snap.Result)
}

// withRetries runs op up to persistAttempts times. The final error is
// logged, not returned to any client: the outcome was already broadcast.
func (that *Registry) withRetries(log *slog.Logger, what string, op func() error) error {
	var err error

	for attempt := 1; attempt <= persistAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}

		log.Error("failed to "+what, "attempt", attempt, "error", err)

		if attempt < persistAttempts {
			time.Sleep(persistBackoff)
		}
	}

	return err
}

// OnDisconnect starts the grace timer for every live match the connection
// is bound to. If the same slot is still bound to the same dead connection
// when the timer fires, the opponent is notified through notify, the
// outcome is persisted as a forfeit by the disconnected slot, and the
// match is retired. A reconnect in the interim makes the timer a no-op.
func (that *Registry) OnDisconnect(connID string, notify func(opponentConnID string, snap entity.MatchSnapshot)) {
	that.mu.RLock()

	type binding struct {
		matchID string
		slot    string
	}

	var bindings []binding
	for id, match := range that.matches {
		if slot, ok := match.BoundSlot(connID); ok {
			bindings = append(bindings, binding{matchID: id, slot: slot})
		}
	}

	that.mu.RUnlock()

	for _, b := range bindings {
		matchID, slot := b.matchID, b.slot

		time.AfterFunc(that.gracePeriod, func() {
			that.expireDisconnect(matchID, slot, connID, notify)
		})
	}
}

// expireDisconnect re-checks the binding at timer-fire time with a single
// consistent read, so a fast reconnect is never mistaken for an abandon.
func (that *Registry) expireDisconnect(matchID, slot, connID string, notify func(string, entity.MatchSnapshot)) {
	log := that.logger.With("method", "expireDisconnect", "matchID", matchID)

	match, err := that.Get(matchID)
	if err != nil {
		return
	}

	boundSlot, stillBound := match.BoundSlot(connID)
	if !stillBound || boundSlot != slot {
		log.Info("player reconnected within grace period", "slot", slot)
		return
	}

	if err = match.Forfeit(slot); err != nil {
		// already terminal, the normal finalization path owns it
		return
	}

	log.Info("grace period elapsed, opponent wins", "slot", slot)

	notify(match.OpponentConnID(slot), match.Snapshot())

	that.Finalize(match)
}

// Len reports the number of live matches.
func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.matches)
}

func recordFromSnapshot(snap entity.MatchSnapshot) *repository.MatchRecord {
	record := &repository.MatchRecord{
		ID:           snap.ID,
		Player1ID:    snap.Player1.UserID,
		Player2ID:    snap.Player2.UserID,
		Player1Name:  snap.Player1.Username,
		Player2Name:  snap.Player2.Username,
		Player1Color: snap.Player1.Color,
		Player2Color: snap.Player2.Color,
		FinalGrid:    snap.FinalGrid,
		Result:       snap.Result,
	}

	if snap.Winner != nil {
		record.WinnerID = snap.Winner.UserID
	}

	if snap.Forfeiter != nil {
		record.Forfeit = true
		record.ForfeiterID = snap.Forfeiter.UserID
	}

	return record
}

// outcomeParties resolves the user identities the counters apply to.
func outcomeParties(snap entity.MatchSnapshot) (winnerID, loserID string, draw bool) {
	if snap.Winner == nil {
		return snap.Player1.UserID, snap.Player2.UserID, true
	}

	if snap.Winner.UserID == snap.Player1.UserID {
		return snap.Player1.UserID, snap.Player2.UserID, false
	}

	return snap.Player2.UserID, snap.Player1.UserID, false
}
