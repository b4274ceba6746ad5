// Package session owns the full state of one game: participant roles,
// spectators, the position (delegated to the rules engine), per-side clocks,
// and every broadcast to the participants' transports.
package session

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/calebmartin/netchess-backend/internal/protocol"
	"github.com/calebmartin/netchess-backend/internal/rules"
)

var (
	ErrSessionFull = errors.New("session already has two players")
	ErrNotStarted  = errors.New("game has not started")
	ErrGameOver    = errors.New("game is already over")
	ErrNotAPlayer  = errors.New("not a player in this game")
	ErrWrongTurn   = errors.New("not your turn")
	ErrNotReady    = errors.New("session is not ready to start")
)

type Status int

const (
	StatusWaiting Status = iota
	StatusActive
	StatusFinished
)

// Conn is the transport surface the session pushes state through. Writes may
// block, so the session never calls Send while holding its lock.
type Conn interface {
	Send(msgType string, data any) error
}

// Session is the per-game state machine. Every read or write of its fields
// goes through mu; fan-out happens after the lock is released on payloads and
// transport handles snapshotted under it.
type Session struct {
	id  string
	log *zap.Logger
	now func() time.Time

	mu         sync.Mutex
	status     Status
	roles      map[string]rules.Color
	names      map[rules.Color]string
	spectators map[string]struct{}
	conns      map[string]Conn
	pos        rules.Position
	history    []string
	remaining  map[rules.Color]time.Duration
	turnStart  time.Time
	result     string
	reason     string
}

// New builds a session in the waiting state with both clocks at the initial
// allotment.
func New(id string, eng rules.Engine, clock time.Duration, log *zap.Logger) *Session {
	return &Session{
		id:         id,
		log:        log,
		now:        time.Now,
		status:     StatusWaiting,
		roles:      make(map[string]rules.Color),
		names:      make(map[rules.Color]string),
		spectators: make(map[string]struct{}),
		conns:      make(map[string]Conn),
		pos:        eng.NewGame(),
		remaining: map[rules.Color]time.Duration{
			rules.White: clock,
			rules.Black: clock,
		},
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// AddPlayer seats a player: the first gets white, the second black.
func (s *Session) AddPlayer(clientID string, conn Conn) (rules.Color, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[clientID]; ok {
		return s.roles[clientID], nil
	}
	if len(s.roles) >= 2 {
		return "", ErrSessionFull
	}
	color := rules.White
	if len(s.roles) == 1 {
		color = rules.Black
	}
	s.roles[clientID] = color
	s.conns[clientID] = conn
	return color, nil
}

// AddSpectator registers a viewer transport. A client already holding a
// playing role is left alone; a participant has at most one role.
func (s *Session) AddSpectator(clientID string, conn Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[clientID]; ok {
		return
	}
	s.spectators[clientID] = struct{}{}
	s.conns[clientID] = conn
}

// RemoveClient drops the participant from whichever role it holds. Removing a
// player from a game that is not yet finished abandons it: the session flips
// to finished with the remaining side as winner. The caller is expected to
// follow up with BroadcastGameOver and lobby cleanup.
func (s *Session) RemoveClient(clientID string) (wasPlayer, abandoned bool, playersLeft int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if color, ok := s.roles[clientID]; ok {
		delete(s.roles, clientID)
		delete(s.conns, clientID)
		wasPlayer = true
		if s.status != StatusFinished {
			s.finishLocked(resultFor(color.Other(), len(s.roles) > 0), "abandoned")
			abandoned = true
		}
		return wasPlayer, abandoned, len(s.roles)
	}
	delete(s.spectators, clientID)
	delete(s.conns, clientID)
	return false, false, len(s.roles)
}

// Start transitions waiting -> active once both seats are filled, records the
// display names, arms white's clock, and pushes GAME_STARTED to both players.
func (s *Session) Start(whiteName, blackName string) error {
	s.mu.Lock()
	if s.status != StatusWaiting || len(s.roles) != 2 {
		s.mu.Unlock()
		return ErrNotReady
	}
	s.status = StatusActive
	s.names[rules.White] = whiteName
	s.names[rules.Black] = blackName
	s.turnStart = s.now()

	started := protocol.GameStartedData{
		GameID:        s.id,
		BoardFEN:      s.pos.FEN(),
		WhitePlayer:   whiteName,
		BlackPlayer:   blackName,
		TimeRemaining: s.clocksLocked(),
		Turn:          string(rules.White),
		MoveHistory:   []string{},
	}
	players := make([]Conn, 0, 2)
	for id := range s.roles {
		players = append(players, s.conns[id])
	}
	s.mu.Unlock()

	s.log.Info("game started",
		zap.String("game_id", s.id),
		zap.String("white", whiteName),
		zap.String("black", blackName))
	for _, c := range players {
		_ = c.Send(protocol.MsgGameStarted, started)
	}
	return nil
}

// ProcessMove validates and applies one move for clientID. It returns whether
// the game ended as a result. A returned error means nothing changed and only
// the mover should hear about it. Running out of clock is a terminal outcome,
// not an error: the move is discarded and the mover loses on time.
func (s *Session) ProcessMove(clientID, move string) (over bool, err error) {
	s.mu.Lock()

	switch s.status {
	case StatusWaiting:
		s.mu.Unlock()
		return false, ErrNotStarted
	case StatusFinished:
		s.mu.Unlock()
		return false, ErrGameOver
	}
	color, ok := s.roles[clientID]
	if !ok {
		s.mu.Unlock()
		return false, ErrNotAPlayer
	}
	if s.pos.Turn() != color {
		s.mu.Unlock()
		return false, ErrWrongTurn
	}

	elapsed := s.now().Sub(s.turnStart)
	if elapsed >= s.remaining[color] {
		s.remaining[color] = 0
		s.finishLocked(resultFor(color.Other(), true), "timeout")
		update, conns := s.stateLocked(), s.connsLocked()
		gameOver := s.gameOverLocked()
		s.mu.Unlock()

		s.fanOut(conns, protocol.MsgUpdate, update)
		s.fanOut(conns, protocol.MsgGameOver, gameOver)
		return true, nil
	}

	next, err := s.pos.Apply(move)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.pos = next
	s.history = append(s.history, move)
	s.remaining[color] -= elapsed
	s.turnStart = s.now()

	var gameOver protocol.GameOverData
	if st := s.pos.Status(); st.Termination != rules.Ongoing {
		s.finishLocked(resultForStatus(st), st.Termination.String())
		gameOver = s.gameOverLocked()
		over = true
	}
	update, conns := s.stateLocked(), s.connsLocked()
	s.mu.Unlock()

	s.fanOut(conns, protocol.MsgUpdate, update)
	if over {
		s.log.Info("game over",
			zap.String("game_id", s.id),
			zap.String("result", gameOver.Result),
			zap.String("reason", gameOver.Reason))
		s.fanOut(conns, protocol.MsgGameOver, gameOver)
	}
	return over, nil
}

// BroadcastState pushes a full snapshot to every current transport. New
// spectators get this so latecomers see the live position, not the initial
// one.
func (s *Session) BroadcastState() {
	s.mu.Lock()
	update, conns := s.stateLocked(), s.connsLocked()
	s.mu.Unlock()
	s.fanOut(conns, protocol.MsgUpdate, update)
}

// BroadcastChat fans one chat line out to all players and spectators. It
// fails only when there is nobody to deliver to.
func (s *Session) BroadcastChat(username, text, role string) bool {
	s.mu.Lock()
	conns := s.connsLocked()
	s.mu.Unlock()

	if len(conns) == 0 {
		return false
	}
	s.fanOut(conns, protocol.MsgChat, protocol.ChatBroadcastData{
		Username: username,
		Message:  text,
		Role:     role,
	})
	return true
}

// BroadcastGameOver announces the stored result to every participant. It is a
// no-op while the game is still running.
func (s *Session) BroadcastGameOver() {
	s.mu.Lock()
	if s.status != StatusFinished {
		s.mu.Unlock()
		return
	}
	gameOver, conns := s.gameOverLocked(), s.connsLocked()
	s.mu.Unlock()
	s.fanOut(conns, protocol.MsgGameOver, gameOver)
}

// Role reports how clientID participates: "white", "black", "spectator", or
// "" for strangers.
func (s *Session) Role(clientID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if color, ok := s.roles[clientID]; ok {
		return string(color)
	}
	if _, ok := s.spectators[clientID]; ok {
		return "spectator"
	}
	return ""
}

// PlayerID returns the client holding the given color.
func (s *Session) PlayerID(color rules.Color) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.roles {
		if c == color {
			return id, true
		}
	}
	return "", false
}

// Result returns the final result and reason once the session is finished.
func (s *Session) Result() (result, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.reason
}

// finishLocked, stateLocked, connsLocked and gameOverLocked require s.mu held.

func (s *Session) finishLocked(result, reason string) {
	s.status = StatusFinished
	s.result = result
	s.reason = reason
}

func (s *Session) stateLocked() protocol.UpdateData {
	history := append([]string(nil), s.history...)
	if history == nil {
		history = []string{}
	}
	return protocol.UpdateData{
		GameID:        s.id,
		BoardFEN:      s.pos.FEN(),
		Turn:          string(s.pos.Turn()),
		TimeRemaining: s.clocksLocked(),
		MoveHistory:   history,
	}
}

func (s *Session) clocksLocked() map[string]float64 {
	return map[string]float64{
		string(rules.White): s.remaining[rules.White].Seconds(),
		string(rules.Black): s.remaining[rules.Black].Seconds(),
	}
}

func (s *Session) connsLocked() []Conn {
	out := make([]Conn, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Session) gameOverLocked() protocol.GameOverData {
	return protocol.GameOverData{GameID: s.id, Result: s.result, Reason: s.reason}
}

// fanOut delivers one message per transport; a failed recipient never aborts
// delivery to the rest.
func (s *Session) fanOut(conns []Conn, msgType string, data any) {
	for _, c := range conns {
		_ = c.Send(msgType, data)
	}
}

func resultFor(winner rules.Color, hasOpponent bool) string {
	if !hasOpponent {
		return "*"
	}
	if winner == rules.White {
		return "1-0"
	}
	return "0-1"
}

func resultForStatus(st rules.Status) string {
	if st.Termination == rules.Checkmate {
		return resultFor(st.Winner, true)
	}
	return "1/2-1/2"
}
