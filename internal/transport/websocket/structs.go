package websocket

import (
	"encoding/json"

	"github.com/ibrahim-murtaza/ColorGrid/internal/entity"
)

// Message is the envelope for every event in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound events.
const (
	ActionSeekMatch    = "seek-match"
	ActionCancelMatch  = "cancel-match"
	ActionJoinMatch    = "join-match"
	ActionMakeMove     = "make-move"
	ActionForfeitMatch = "forfeit-match"
)

// Outbound events.
const (
	ActionMatchmakingStatus = "matchmaking-status"
	ActionMatchStarted      = "match-started"
	ActionStateSnapshot     = "state-snapshot"
	ActionMoveApplied       = "move-applied"
	ActionMatchOver         = "match-over"
	ActionOpponentLost      = "opponent-lost-connection"
	ActionMatchError        = "match-error"
)

// OutcomeAlreadyEnded answers join attempts for matches that no longer
// exist anywhere, so stale clients degrade gracefully instead of hanging.
const OutcomeAlreadyEnded = "already_ended"

type SeekMatchPayload struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	AvatarRef string `json:"avatarRef,omitempty"`
}

type JoinMatchPayload struct {
	MatchID string `json:"matchId"`
	UserID  string `json:"userId"`
}

type MakeMovePayload struct {
	MatchID string `json:"matchId"`
	Slot    string `json:"slot"`
	Row     int    `json:"row"`
	Col     int    `json:"col"`
}

type ForfeitPayload struct {
	MatchID string `json:"matchId"`
	Slot    string `json:"slot"`
}

type StatusPayload struct {
	Message string `json:"message"`
}

type MatchStartedPayload struct {
	MatchID string            `json:"matchId"`
	SlotA   entity.PlayerSlot `json:"slotA"`
	SlotB   entity.PlayerSlot `json:"slotB"`
	Grid    entity.Grid       `json:"grid"`
	Turn    string            `json:"turn"`
}

type MoveAppliedPayload struct {
	State entity.MatchSnapshot `json:"state"`
	Move  entity.Move          `json:"move"`
}

type MatchOverPayload struct {
	Outcome   string             `json:"outcome"`
	Winner    *entity.PlayerSlot `json:"winner,omitempty"`
	Forfeiter *entity.PlayerSlot `json:"forfeiter,omitempty"`
	FinalGrid [][]int            `json:"finalGrid,omitempty"`
	Scores    map[string]int     `json:"scores,omitempty"`
	Message   string             `json:"message,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
