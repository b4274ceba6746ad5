package rules

import (
	"fmt"

	"github.com/notnil/chess"
)

// ChessEngine implements Engine on top of notnil/chess.
type ChessEngine struct{}

func NewChessEngine() *ChessEngine { return &ChessEngine{} }

func (*ChessEngine) NewGame() Position {
	return &chessPosition{game: chess.NewGame()}
}

// chessPosition wraps a notnil game. Positions are owned by exactly one
// session and mutated under its lock, so Apply updates the wrapped game in
// place; a rejected move never touches it.
type chessPosition struct {
	game *chess.Game
}

func (p *chessPosition) Apply(move string) (Position, error) {
	m, err := chess.UCINotation{}.Decode(p.game.Position(), move)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, move)
	}
	if err := p.game.Move(m); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, move)
	}
	return p, nil
}

func (p *chessPosition) FEN() string {
	return p.game.Position().String()
}

func (p *chessPosition) Turn() Color {
	if p.game.Position().Turn() == chess.White {
		return White
	}
	return Black
}

func (p *chessPosition) Status() Status {
	switch p.game.Method() {
	case chess.Checkmate:
		// The side to move in the final position is the one mated.
		winner := White
		if p.game.Position().Turn() == chess.White {
			winner = Black
		}
		return Status{Termination: Checkmate, Winner: winner}
	case chess.Stalemate:
		return Status{Termination: Stalemate}
	}
	if p.game.Outcome() == chess.Draw {
		return Status{Termination: Draw}
	}
	return Status{Termination: Ongoing}
}
