package apperror

import "errors"

var (
	ErrMatchFinished   = errors.New("match is already finished")
	ErrMatchNotFound   = errors.New("match not found")
	ErrNotYourTurn     = errors.New("it's not your turn")
	ErrCellOccupied    = errors.New("cell is already occupied")
	ErrNotAParticipant = errors.New("you are not a player in this match")
	ErrRecordNotFound  = errors.New("match record not found")
)
