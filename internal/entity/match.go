package entity

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/ibrahim-murtaza/ColorGrid/internal/apperror"
	"github.com/ibrahim-murtaza/ColorGrid/internal/scoring"
)

const (
	GridSize   = 5
	TotalCells = GridSize * GridSize

	SlotPlayer1 = "player1"
	SlotPlayer2 = "player2"

	ColorRed  = "red"
	ColorBlue = "blue"

	StatusOngoing  = "ongoing"
	StatusFinished = "finished"

	ResultPlayer1Won = "player1_won"
	ResultPlayer2Won = "player2_won"
	ResultDraw       = "draw"
	ResultForfeit    = "forfeit"

	EmptyCell = ""
)

var ErrInvalidCell = errors.New("invalid cell position")

// Grid holds the marker of the slot that claimed each cell, EmptyCell otherwise.
type Grid [GridSize][GridSize]string

// OwnerCodes re-expresses the grid as per-cell owner codes: 0 empty,
// 1 player1, 2 player2. This is the shape clients and match records use.
func (that *Grid) OwnerCodes() [][]int {
	codes := make([][]int, GridSize)
	for row := range that {
		codes[row] = make([]int, GridSize)
		for col, cell := range that[row] {
			switch cell {
			case SlotPlayer1:
				codes[row][col] = 1
			case SlotPlayer2:
				codes[row][col] = 2
			}
		}
	}
	return codes
}

// Move is the per-move delta broadcast after each accepted move.
type Move struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Color string `json:"color"`
}

// Match owns one game's authoritative state. All mutating operations are
// serialized by the match's own mutex; none of them perform I/O.
type Match struct {
	mu sync.Mutex

	ID        string
	Player1   *PlayerSlot
	Player2   *PlayerSlot
	Grid      Grid
	Turn      string
	MoveCount int

	Status    string
	Result    string
	Winner    string
	Forfeiter string

	Player1Area int
	Player2Area int
}

// MatchSnapshot is a consistent copy of a match's state, safe to marshal
// and send after the match mutex has been released.
type MatchSnapshot struct {
	ID        string         `json:"id"`
	Player1   PlayerSlot     `json:"player1"`
	Player2   PlayerSlot     `json:"player2"`
	Grid      Grid           `json:"grid"`
	Turn      string         `json:"turn,omitempty"`
	MoveCount int            `json:"moveCount"`
	Status    string         `json:"status"`
	Result    string         `json:"result,omitempty"`
	Winner    *PlayerSlot    `json:"winner,omitempty"`
	Forfeiter *PlayerSlot    `json:"forfeiter,omitempty"`
	FinalGrid [][]int        `json:"finalGrid,omitempty"`
	Scores    map[string]int `json:"scores,omitempty"`
}

// NewMatch pairs two slots into a fresh match. The two distinguishable
// colors are assigned uniformly at random; player1 always moves first.
func NewMatch(id string, player1, player2 *PlayerSlot) *Match {
	if rand.Intn(2) == 0 { //nolint: gosec // color assignment needs no crypto rand
		player1.Color = ColorRed
		player2.Color = ColorBlue
	} else {
		player1.Color = ColorBlue
		player2.Color = ColorRed
	}

	return &Match{
		ID:      id,
		Player1: player1,
		Player2: player2,
		Turn:    SlotPlayer1,
		Status:  StatusOngoing,
	}
}

// MakeMove applies one move for the given slot. It fails without mutating
// state when the match is finished, the turn is not the slot's, or the
// target cell is occupied. Filling the 25th cell scores both players'
// largest regions and finishes the match.
func (that *Match) MakeMove(slot string, row, col int) (Move, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if row < 0 || row >= GridSize || col < 0 || col >= GridSize {
		return Move{}, fmt.Errorf("%w: %d,%d", ErrInvalidCell, row, col)
	}

	if that.Status == StatusFinished {
		return Move{}, apperror.ErrMatchFinished
	}

	if that.Turn != slot {
		return Move{}, apperror.ErrNotYourTurn
	}

	if that.Grid[row][col] != EmptyCell {
		return Move{}, apperror.ErrCellOccupied
	}

	that.Grid[row][col] = slot
	that.MoveCount++

	if that.Turn == SlotPlayer1 {
		that.Turn = SlotPlayer2
	} else {
		that.Turn = SlotPlayer1
	}

	if that.MoveCount == TotalCells {
		that.finish()
	}

	player := that.slotByName(slot)

	return Move{Row: row, Col: col, Color: player.Color}, nil
}

// finish scores the full board and records the terminal result.
// Caller must hold the match mutex.
func (that *Match) finish() {
	that.Player1Area = scoring.LargestRegion(that.Grid, SlotPlayer1)
	that.Player2Area = scoring.LargestRegion(that.Grid, SlotPlayer2)

	switch {
	case that.Player1Area > that.Player2Area:
		that.Result = ResultPlayer1Won
		that.Winner = SlotPlayer1
	case that.Player2Area > that.Player1Area:
		that.Result = ResultPlayer2Won
		that.Winner = SlotPlayer2
	default:
		that.Result = ResultDraw
	}

	that.Status = StatusFinished
	that.Turn = ""
}

// Forfeit finishes the match immediately in favor of the non-forfeiting
// slot. The grid is not scored.
func (that *Match) Forfeit(slot string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if slot != SlotPlayer1 && slot != SlotPlayer2 {
		return apperror.ErrNotAParticipant
	}

	if that.Status == StatusFinished {
		return apperror.ErrMatchFinished
	}

	that.Status = StatusFinished
	that.Result = ResultForfeit
	that.Forfeiter = slot

	if slot == SlotPlayer1 {
		that.Winner = SlotPlayer2
	} else {
		that.Winner = SlotPlayer1
	}

	that.Turn = ""

	return nil
}

// BindConnection rebinds the slot owned by userID to a new connection and
// returns a state snapshot for the caller to send back to that client.
func (that *Match) BindConnection(userID, connID string) (MatchSnapshot, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	switch userID {
	case that.Player1.UserID:
		that.Player1.ConnID = connID
	case that.Player2.UserID:
		that.Player2.ConnID = connID
	default:
		return MatchSnapshot{}, apperror.ErrNotAParticipant
	}

	return that.snapshot(), nil
}

// BoundSlot reports which slot, if any, the connection is currently bound to.
func (that *Match) BoundSlot(connID string) (string, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	switch connID {
	case that.Player1.ConnID:
		return SlotPlayer1, true
	case that.Player2.ConnID:
		return SlotPlayer2, true
	default:
		return "", false
	}
}

// ConnIDs returns the connections currently bound to both slots.
func (that *Match) ConnIDs() (string, string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.Player1.ConnID, that.Player2.ConnID
}

// OpponentConnID returns the connection bound to the other slot.
func (that *Match) OpponentConnID(slot string) string {
	that.mu.Lock()
	defer that.mu.Unlock()

	if slot == SlotPlayer1 {
		return that.Player2.ConnID
	}
	return that.Player1.ConnID
}

func (that *Match) IsFinished() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.Status == StatusFinished
}

// Snapshot returns a consistent copy of the current state.
func (that *Match) Snapshot() MatchSnapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshot()
}

// snapshot builds the copy. Caller must hold the match mutex.
func (that *Match) snapshot() MatchSnapshot {
	snap := MatchSnapshot{
		ID:        that.ID,
		Player1:   *that.Player1,
		Player2:   *that.Player2,
		Grid:      that.Grid,
		Turn:      that.Turn,
		MoveCount: that.MoveCount,
		Status:    that.Status,
		Result:    that.Result,
	}

	if that.Status != StatusFinished {
		return snap
	}

	snap.FinalGrid = that.Grid.OwnerCodes()

	if that.Winner != "" {
		winner := *that.slotByName(that.Winner)
		snap.Winner = &winner
	}

	if that.Forfeiter != "" {
		forfeiter := *that.slotByName(that.Forfeiter)
		snap.Forfeiter = &forfeiter
	}

	if that.Result != ResultForfeit {
		snap.Scores = map[string]int{
			that.Player1.Username: that.Player1Area,
			that.Player2.Username: that.Player2Area,
		}
	}

	return snap
}

func (that *Match) slotByName(name string) *PlayerSlot {
	if name == SlotPlayer1 {
		return that.Player1
	}
	return that.Player2
}
