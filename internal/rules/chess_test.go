package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestNewGameStartsAtInitialPosition(t *testing.T) {
	pos := NewChessEngine().NewGame()

	require.Equal(t, startFEN, pos.FEN())
	require.Equal(t, White, pos.Turn())
	require.Equal(t, Ongoing, pos.Status().Termination)
}

func TestApplyLegalMoveAdvancesTurn(t *testing.T) {
	pos := NewChessEngine().NewGame()

	next, err := pos.Apply("e2e4")
	require.NoError(t, err)
	require.Equal(t, Black, next.Turn())
	require.NotEqual(t, startFEN, next.FEN())
}

func TestApplyRejectsIllegalMoves(t *testing.T) {
	cases := []struct {
		name string
		move string
	}{
		{"pawn cannot jump three", "e2e5"},
		{"empty square", "e5e6"},
		{"garbage notation", "castle-left"},
		{"moving opponent piece", "e7e5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pos := NewChessEngine().NewGame()
			_, err := pos.Apply(tc.move)
			require.True(t, errors.Is(err, ErrIllegalMove))
			// Rejection leaves the position untouched.
			require.Equal(t, startFEN, pos.FEN())
			require.Equal(t, White, pos.Turn())
		})
	}
}

func TestFoolsMateIsCheckmateForBlack(t *testing.T) {
	pos := NewChessEngine().NewGame()
	for _, move := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		var err error
		pos, err = pos.Apply(move)
		require.NoError(t, err, "move %s", move)
	}

	st := pos.Status()
	require.Equal(t, Checkmate, st.Termination)
	require.Equal(t, Black, st.Winner)
}

func TestColorOther(t *testing.T) {
	require.Equal(t, Black, White.Other())
	require.Equal(t, White, Black.Other())
}
