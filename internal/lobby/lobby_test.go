package lobby

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAndListGames(t *testing.T) {
	l := New()

	id1 := l.CreateGame("alice")
	id2 := l.CreateGame("bob")
	require.NotEqual(t, id1, id2)

	games := l.Games()
	require.Len(t, games, 2)
	require.Equal(t, id1, games[0].ID, "snapshot ordered by creation time")
	require.Equal(t, StatusOpen, games[0].Status)
	require.Equal(t, []string{"alice"}, games[0].Players)
}

func TestJoinGameTransitions(t *testing.T) {
	l := New()
	id := l.CreateGame("alice")

	require.ErrorIs(t, l.JoinGame("nope", "bob"), ErrGameNotFound)
	require.ErrorIs(t, l.JoinGame(id, "alice"), ErrAlreadyInGame)

	require.NoError(t, l.JoinGame(id, "bob"))
	require.Equal(t, StatusPlaying, l.Games()[0].Status)

	require.ErrorIs(t, l.JoinGame(id, "carol"), ErrGameFull)
}

func TestJoinGameRejectedOnceFinished(t *testing.T) {
	l := New()
	id := l.CreateGame("alice")
	l.MarkFinished(id)

	require.ErrorIs(t, l.JoinGame(id, "bob"), ErrGameFull)
	require.Equal(t, StatusFinished, l.Games()[0].Status)
}

func TestConcurrentJoinExactlyOneWinner(t *testing.T) {
	l := New()
	id := l.CreateGame("host")

	const joiners = 8
	var wg sync.WaitGroup
	results := make(chan error, joiners)
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results <- l.JoinGame(id, fmt.Sprintf("joiner-%d", n))
		}(i)
	}
	wg.Wait()
	close(results)

	won := 0
	for err := range results {
		if err == nil {
			won++
		} else {
			require.ErrorIs(t, err, ErrGameFull)
		}
	}
	require.Equal(t, 1, won)
	require.Len(t, l.Games()[0].Players, 2)
}

func TestSpectateIsIdempotent(t *testing.T) {
	l := New()
	id := l.CreateGame("alice")

	require.ErrorIs(t, l.SpectateGame("nope", "carol"), ErrGameNotFound)
	require.NoError(t, l.SpectateGame(id, "carol"))
	require.NoError(t, l.SpectateGame(id, "carol"))
	require.Equal(t, 1, l.Games()[0].Spectators)

	gid, ok := l.GameID("carol")
	require.True(t, ok)
	require.Equal(t, id, gid)
}

func TestSpectateGameRefusesSeatedPlayer(t *testing.T) {
	l := New()
	id := l.CreateGame("alice")
	require.NoError(t, l.JoinGame(id, "bob"))

	require.ErrorIs(t, l.SpectateGame(id, "alice"), ErrAlreadyInGame)
	require.ErrorIs(t, l.SpectateGame(id, "bob"), ErrAlreadyInGame)
	require.Equal(t, 0, l.Games()[0].Spectators)

	// Alice keeps her seat: leaving resolves the player role, and once both
	// players are gone the entry disappears.
	_, deleted := l.LeaveGame("alice")
	require.False(t, deleted)
	_, deleted = l.LeaveGame("bob")
	require.True(t, deleted)
	require.Empty(t, l.Games())
}

func TestJoinGameRefusesSpectator(t *testing.T) {
	l := New()
	id := l.CreateGame("alice")
	require.NoError(t, l.SpectateGame(id, "carol"))

	require.ErrorIs(t, l.JoinGame(id, "carol"), ErrAlreadyInGame)
	require.Equal(t, []string{"alice"}, l.Games()[0].Players)
}

func TestLeaveGameLastPlayerDeletesEntry(t *testing.T) {
	l := New()
	id := l.CreateGame("alice")

	gid, deleted := l.LeaveGame("alice")
	require.Equal(t, id, gid)
	require.True(t, deleted)
	require.Empty(t, l.Games())

	// Leaving again is a no-op.
	gid, deleted = l.LeaveGame("alice")
	require.Empty(t, gid)
	require.False(t, deleted)
}

func TestLeaveGameKeepsEntryWhilePlayerRemains(t *testing.T) {
	l := New()
	id := l.CreateGame("alice")
	require.NoError(t, l.JoinGame(id, "bob"))
	l.MarkFinished(id)

	gid, deleted := l.LeaveGame("alice")
	require.Equal(t, id, gid)
	require.False(t, deleted)

	games := l.Games()
	require.Len(t, games, 1)
	require.Equal(t, []string{"bob"}, games[0].Players)
	require.Equal(t, StatusFinished, games[0].Status, "finished game is not resurrected")
}

func TestLeaveGameAsSpectatorKeepsEntry(t *testing.T) {
	l := New()
	id := l.CreateGame("alice")
	require.NoError(t, l.SpectateGame(id, "carol"))

	gid, deleted := l.LeaveGame("carol")
	require.Equal(t, id, gid)
	require.False(t, deleted)
	require.Equal(t, 0, l.Games()[0].Spectators)
}

func TestRemoveGameDetachesEveryone(t *testing.T) {
	l := New()
	id := l.CreateGame("alice")
	require.NoError(t, l.JoinGame(id, "bob"))
	require.NoError(t, l.SpectateGame(id, "carol"))

	l.RemoveGame(id)

	require.Empty(t, l.Games())
	for _, who := range []string{"alice", "bob", "carol"} {
		_, ok := l.GameID(who)
		require.False(t, ok, "%s should no longer resolve to a game", who)
	}
}
