// Package lobby is the matchmaking registry: session metadata visible to every
// client, and the state machine for session visibility and membership. Full
// game state lives in the session package; the two are created and deleted
// together by the dispatcher.
package lobby

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrGameNotFound  = errors.New("game not found")
	ErrGameFull      = errors.New("game is not open for joining")
	ErrAlreadyInGame = errors.New("already a participant of this game")
)

type Status string

const (
	StatusOpen     Status = "open"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

type entry struct {
	id         string
	status     Status
	players    []string // ordered, first = initiator
	spectators map[string]struct{}
	createdAt  time.Time
}

// GameInfo is a read-only snapshot of one lobby entry.
type GameInfo struct {
	ID         string
	Status     Status
	Players    []string
	Spectators int
	CreatedAt  time.Time
}

// Lobby maps game ids to their matchmaking entries. One mutex serializes all
// transitions, which is what makes join-the-second-seat race-free.
type Lobby struct {
	mu    sync.Mutex
	games map[string]*entry
}

func New() *Lobby {
	return &Lobby{games: make(map[string]*entry)}
}

// CreateGame allocates a fresh game id with the initiator as sole player.
func (l *Lobby) CreateGame(initiatorID string) string {
	id := uuid.NewString()

	l.mu.Lock()
	defer l.mu.Unlock()
	l.games[id] = &entry{
		id:         id,
		status:     StatusOpen,
		players:    []string{initiatorID},
		spectators: make(map[string]struct{}),
		createdAt:  time.Now().UTC(),
	}
	return id
}

// JoinGame seats joinerID as the second player and flips the game to playing.
// The check and the mutation happen under one lock acquisition, so at most one
// concurrent joiner wins the seat.
func (l *Lobby) JoinGame(gameID, joinerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.games[gameID]
	if !ok {
		return ErrGameNotFound
	}
	for _, p := range e.players {
		if p == joinerID {
			return ErrAlreadyInGame
		}
	}
	if _, ok := e.spectators[joinerID]; ok {
		return ErrAlreadyInGame
	}
	if e.status != StatusOpen || len(e.players) >= 2 {
		return ErrGameFull
	}
	e.players = append(e.players, joinerID)
	e.status = StatusPlaying
	return nil
}

// SpectateGame adds viewerID to the spectator set. Re-spectating is a no-op
// success. A seated player is refused: a participant holds exactly one role.
func (l *Lobby) SpectateGame(gameID, viewerID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.games[gameID]
	if !ok {
		return ErrGameNotFound
	}
	for _, p := range e.players {
		if p == viewerID {
			return ErrAlreadyInGame
		}
	}
	e.spectators[viewerID] = struct{}{}
	return nil
}

// LeaveGame removes the participant from whichever game holds it, as player or
// spectator. When the last player leaves, the entry is deleted; a game with a
// player still seated keeps its entry and its status (a finished game is never
// resurrected). It returns the game id and whether the entry was deleted.
func (l *Lobby) LeaveGame(participantID string) (gameID string, deleted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.find(participantID)
	if e == nil {
		return "", false
	}
	// The player seat is the authoritative role: resolve it before the
	// spectator set so the last-player deletion rule can never be skipped.
	for i, p := range e.players {
		if p == participantID {
			e.players = append(e.players[:i], e.players[i+1:]...)
			if len(e.players) == 0 {
				delete(l.games, e.id)
				return e.id, true
			}
			return e.id, false
		}
	}
	delete(e.spectators, participantID)
	return e.id, false
}

// RemoveGame deletes the entry outright, detaching every remaining participant.
// Used when an in-progress game is abandoned and torn down as a whole.
func (l *Lobby) RemoveGame(gameID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.games, gameID)
}

// MarkFinished flips the entry to finished, keeping it visible so spectators
// can still find the final position.
func (l *Lobby) MarkFinished(gameID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.games[gameID]; ok {
		e.status = StatusFinished
	}
}

// GameID is the reverse lookup from participant to game.
func (l *Lobby) GameID(participantID string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if e := l.find(participantID); e != nil {
		return e.id, true
	}
	return "", false
}

// Games returns a snapshot ordered by creation time. It may be stale by the
// time the caller uses it.
func (l *Lobby) Games() []GameInfo {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]GameInfo, 0, len(l.games))
	for _, e := range l.games {
		out = append(out, GameInfo{
			ID:         e.id,
			Status:     e.status,
			Players:    append([]string(nil), e.players...),
			Spectators: len(e.spectators),
			CreatedAt:  e.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// find must be called with l.mu held.
func (l *Lobby) find(participantID string) *entry {
	for _, e := range l.games {
		for _, p := range e.players {
			if p == participantID {
				return e
			}
		}
		if _, ok := e.spectators[participantID]; ok {
			return e
		}
	}
	return nil
}
