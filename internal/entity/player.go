package entity

// PlayerSlot is one of the two fixed seats in a match. The identity fields
// are set once at pairing time; ConnID is rebound whenever the client
// reconnects and claims its seat.
type PlayerSlot struct {
	UserID    string `json:"id"`
	Username  string `json:"username"`
	AvatarRef string `json:"avatarRef,omitempty"`
	Color     string `json:"color,omitempty"`
	ConnID    string `json:"-"`
}

// UserStats holds the per-user counters adjusted after every finished match.
type UserStats struct {
	ID     string `json:"id"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Draws  int    `json:"draws"`
	Coins  int    `json:"coins"`
}
