// Package rules defines the contract with the move-legality collaborator.
// The session layer only sees this interface, so any compliant engine can be
// swapped in without touching session logic.
package rules

import "errors"

var ErrIllegalMove = errors.New("illegal move")

type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposing color.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

type Termination int

const (
	Ongoing Termination = iota
	Checkmate
	Stalemate
	Draw
)

func (t Termination) String() string {
	switch t {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case Draw:
		return "draw"
	default:
		return "ongoing"
	}
}

// Status classifies a position. Winner is meaningful only for Checkmate.
type Status struct {
	Termination Termination
	Winner      Color
}

// Position is one game position. Apply validates the move in long algebraic
// (UCI) notation and advances the position; a rejected move wraps
// ErrIllegalMove and leaves the receiver unchanged.
type Position interface {
	Apply(move string) (Position, error)
	Status() Status
	FEN() string
	Turn() Color
}

// Engine produces starting positions.
type Engine interface {
	NewGame() Position
}
