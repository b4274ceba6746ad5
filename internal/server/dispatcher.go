package server

import (
	"errors"

	"go.uber.org/zap"

	"github.com/calebmartin/netchess-backend/internal/lobby"
	"github.com/calebmartin/netchess-backend/internal/protocol"
	"github.com/calebmartin/netchess-backend/internal/rules"
	"github.com/calebmartin/netchess-backend/internal/session"
)

// dispatch routes one decoded message. Every branch either mutates shared
// state through the lobby/session/registry APIs or answers the sender with a
// single ERROR; an unroutable message never kills the connection.
func (s *Server) dispatch(clientID string, conn Conn, env protocol.Envelope) {
	switch env.MsgType {
	case protocol.MsgSetUsername:
		s.handleSetUsername(clientID, conn, env)
	case protocol.MsgCreateGame:
		s.handleCreateGame(clientID, conn)
	case protocol.MsgJoinGame:
		s.handleJoinGame(clientID, conn, env)
	case protocol.MsgSpectate:
		s.handleSpectate(clientID, conn, env)
	case protocol.MsgLeave:
		if s.leave(clientID) {
			s.broadcastLobbyUpdate()
		}
	case protocol.MsgMove:
		s.handleMove(clientID, conn, env)
	case protocol.MsgChat:
		s.handleChat(clientID, conn, env)
	case protocol.MsgGetGames:
		_ = conn.Send(protocol.MsgLobbyUpdate, s.LobbySnapshot())
	default:
		s.sendError(conn, "Unknown message type")
	}
}

func (s *Server) handleSetUsername(clientID string, conn Conn, env protocol.Envelope) {
	var d protocol.SetUsernameData
	if err := env.DecodeData(&d); err != nil {
		s.sendError(conn, "Invalid message format")
		return
	}
	name := d.Username
	if name == "" {
		name = "Guest_" + clientID[:6]
	}
	s.registry.SetUsername(clientID, name)
	s.log.Info("username set",
		zap.String("client_id", clientID), zap.String("username", name))
	_ = conn.Send(protocol.MsgSetUsernameAck, protocol.SetUsernameAckData{Success: true, Username: name})
}

func (s *Server) handleCreateGame(clientID string, conn Conn) {
	if _, ok := s.lobby.GameID(clientID); ok {
		s.sendError(conn, "Already in a game")
		return
	}
	gameID := s.lobby.CreateGame(clientID)
	sess := session.New(gameID, s.engine, s.cfg.InitialClock, s.log)
	if _, err := sess.AddPlayer(clientID, conn); err != nil {
		s.log.Error("seating creator failed", zap.String("game_id", gameID), zap.Error(err))
		s.lobby.RemoveGame(gameID)
		s.sendError(conn, "Cannot create game")
		return
	}
	s.storeSession(sess)

	s.log.Info("game created",
		zap.String("game_id", gameID), zap.String("client_id", clientID))
	_ = conn.Send(protocol.MsgCreateGame, protocol.GameCreatedData{GameID: gameID, Role: string(rules.White)})
	s.broadcastLobbyUpdate()
}

func (s *Server) handleJoinGame(clientID string, conn Conn, env protocol.Envelope) {
	var d protocol.JoinGameData
	if err := env.DecodeData(&d); err != nil || d.GameID == "" {
		s.sendError(conn, "Game not found")
		return
	}
	if _, ok := s.lobby.GameID(clientID); ok {
		s.sendError(conn, "Already in a game")
		return
	}
	sess := s.sessionFor(d.GameID)
	if sess == nil {
		s.sendError(conn, "Game not found")
		return
	}
	if err := s.lobby.JoinGame(d.GameID, clientID); err != nil {
		if errors.Is(err, lobby.ErrGameNotFound) {
			s.sendError(conn, "Game not found")
		} else {
			s.sendError(conn, "Cannot join game")
		}
		return
	}
	color, err := sess.AddPlayer(clientID, conn)
	if err != nil {
		// Lobby accepted the joiner but the session is full: the two stores
		// disagree, which is a defect. Undo the lobby side and fail just this
		// operation.
		s.log.Error("lobby and session out of sync on join",
			zap.String("game_id", d.GameID), zap.Error(err))
		s.lobby.LeaveGame(clientID)
		s.sendError(conn, "Cannot join game")
		return
	}
	_ = conn.Send(protocol.MsgJoinGame, protocol.GameJoinedData{GameID: d.GameID, Role: string(color)})

	whiteID, _ := sess.PlayerID(rules.White)
	if err := sess.Start(s.registry.Username(whiteID), s.registry.Username(clientID)); err != nil {
		s.log.Error("starting game failed", zap.String("game_id", d.GameID), zap.Error(err))
		return
	}
	sess.BroadcastState()
	s.broadcastLobbyUpdate()
}

func (s *Server) handleSpectate(clientID string, conn Conn, env protocol.Envelope) {
	var d protocol.SpectateData
	if err := env.DecodeData(&d); err != nil || d.GameID == "" {
		s.sendError(conn, "Game not found")
		return
	}
	if gid, ok := s.lobby.GameID(clientID); ok && gid != d.GameID {
		s.sendError(conn, "Already in a game")
		return
	}
	sess := s.sessionFor(d.GameID)
	if sess == nil {
		s.sendError(conn, "Game not found")
		return
	}
	switch sess.Role(clientID) {
	case string(rules.White), string(rules.Black):
		// A seated player watching their own board would hold two roles at
		// once and corrupt the leave bookkeeping.
		s.sendError(conn, "Players cannot spectate their own game")
		return
	}
	if err := s.lobby.SpectateGame(d.GameID, clientID); err != nil {
		if errors.Is(err, lobby.ErrAlreadyInGame) {
			s.sendError(conn, "Players cannot spectate their own game")
		} else {
			s.sendError(conn, "Cannot spectate game")
		}
		return
	}
	sess.AddSpectator(clientID, conn)

	s.log.Info("spectator joined",
		zap.String("game_id", d.GameID), zap.String("client_id", clientID))
	_ = conn.Send(protocol.MsgSpectate, protocol.SpectateAckData{GameID: d.GameID})
	sess.BroadcastState()
}

func (s *Server) handleMove(clientID string, conn Conn, env protocol.Envelope) {
	var d protocol.MoveData
	if err := env.DecodeData(&d); err != nil {
		s.sendError(conn, "Invalid message format")
		return
	}
	gameID, ok := s.lobby.GameID(clientID)
	if !ok {
		s.sendError(conn, "You are not in a game")
		return
	}
	sess := s.sessionFor(gameID)
	if sess == nil {
		s.log.Error("invariant violation: lobby entry without session",
			zap.String("game_id", gameID))
		s.sendError(conn, "Game not found")
		return
	}

	over, err := sess.ProcessMove(clientID, d.Move)
	if err != nil {
		s.sendError(conn, moveErrorMessage(err))
		return
	}
	if over {
		// Session finished; keep it around so spectators can view the final
		// position, but flip the lobby entry. Session lock was released in
		// ProcessMove, so the session-before-lobby order holds.
		s.lobby.MarkFinished(gameID)
		s.broadcastLobbyUpdate()
	}
}

func moveErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrWrongTurn):
		return "Not your turn"
	case errors.Is(err, session.ErrNotAPlayer):
		return "Spectators cannot move"
	case errors.Is(err, session.ErrNotStarted):
		return "Game has not started"
	case errors.Is(err, session.ErrGameOver):
		return "Game is already over"
	default:
		return "Invalid move"
	}
}

func (s *Server) handleChat(clientID string, conn Conn, env protocol.Envelope) {
	var d protocol.ChatData
	if err := env.DecodeData(&d); err != nil {
		s.sendError(conn, "Invalid message format")
		return
	}
	gameID, ok := s.lobby.GameID(clientID)
	if !ok {
		s.sendError(conn, "You must be in a game to send chat messages")
		return
	}
	sess := s.sessionFor(gameID)
	if sess == nil {
		s.log.Error("invariant violation: lobby entry without session",
			zap.String("game_id", gameID))
		s.sendError(conn, "Game not found")
		return
	}
	if !sess.BroadcastChat(s.registry.Username(clientID), d.Message, sess.Role(clientID)) {
		s.sendError(conn, "Failed to send chat message")
	}
}

// leave runs the shared leave/disconnect cleanup. It reports whether the
// client was in a game. Abandoning a waiting or active game tears the whole
// session down: remaining participants are notified and both the lobby entry
// and the session are deleted together.
func (s *Server) leave(clientID string) bool {
	gameID, ok := s.lobby.GameID(clientID)
	if !ok {
		return false
	}
	sess := s.sessionFor(gameID)
	if sess == nil {
		s.log.Error("invariant violation: lobby entry without session",
			zap.String("game_id", gameID))
		s.lobby.LeaveGame(clientID)
		return true
	}

	_, abandoned, _ := sess.RemoveClient(clientID)
	if abandoned {
		sess.BroadcastGameOver()
		s.lobby.RemoveGame(gameID)
		s.removeSession(gameID)
		s.log.Info("game abandoned",
			zap.String("game_id", gameID), zap.String("client_id", clientID))
		return true
	}

	if _, deleted := s.lobby.LeaveGame(clientID); deleted {
		s.removeSession(gameID)
	} else {
		sess.BroadcastState()
	}
	return true
}

func (s *Server) sendError(conn Conn, message string) {
	_ = conn.Send(protocol.MsgError, protocol.ErrorData{Message: message})
}
