// Package server runs the TCP accept loop, owns one handler per connection,
// and routes decoded messages to the registry, lobby and sessions.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/calebmartin/netchess-backend/internal/config"
	"github.com/calebmartin/netchess-backend/internal/lobby"
	"github.com/calebmartin/netchess-backend/internal/protocol"
	"github.com/calebmartin/netchess-backend/internal/registry"
	"github.com/calebmartin/netchess-backend/internal/rules"
	"github.com/calebmartin/netchess-backend/internal/session"
)

// Conn is one client transport, regardless of whether it arrived over raw TCP
// or a WebSocket. Send must be safe to call from any goroutine.
type Conn interface {
	Send(msgType string, data any) error
	Close() error
}

// Server holds the shared state every connection handler works against. The
// lobby owns matchmaking metadata, sessions own game state, and the two are
// kept in sync by the dispatcher; lock order on cross-cutting paths is always
// session first, lobby second.
type Server struct {
	cfg    config.Config
	log    *zap.Logger
	engine rules.Engine

	registry *registry.Registry
	lobby    *lobby.Lobby

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func New(cfg config.Config, engine rules.Engine, log *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		registry: registry.New(),
		lobby:    lobby.New(),
		sessions: make(map[string]*session.Session),
	}
}

// Run listens on the configured TCP address and accepts connections until ctx
// is cancelled.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.TCPAddr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	return s.Serve(ln)
}

// Serve accepts connections from ln, spawning one handler goroutine per
// connection. Accept blocks only this goroutine. Serve returns nil once ln is
// closed.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	for {
		nc, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}
		go s.serveTCP(nc)
	}
}

func (s *Server) serveTCP(nc net.Conn) {
	c := newTCPConn(nc)
	s.HandleConn(c, c.recv, nc.RemoteAddr().String())
}

// HandleConn runs one connection's full lifecycle: register, welcome, read
// loop, and the exactly-once disconnect cleanup. recv blocks until one message
// is available; transports that frame differently (WebSocket) supply their
// own recv. HandleConn returns when the connection is done.
func (s *Server) HandleConn(conn Conn, recv func() (protocol.Envelope, error), remote string) {
	clientID := uuid.NewString()
	s.log.Info("client connected",
		zap.String("client_id", clientID),
		zap.String("remote", remote))

	s.registry.Register(clientID, conn)
	defer s.disconnect(clientID, conn)

	if err := conn.Send(protocol.MsgWelcome, protocol.WelcomeData{ClientID: clientID}); err != nil {
		return
	}

	for {
		env, err := recv()
		if err != nil {
			var ferr *protocol.FormatError
			if errors.As(err, &ferr) {
				_ = conn.Send(protocol.MsgError, protocol.ErrorData{Message: "Invalid message format"})
				if ferr.Recoverable() {
					continue
				}
				s.log.Warn("dropping desynced connection",
					zap.String("client_id", clientID), zap.Error(err))
			} else if !errors.Is(err, io.EOF) {
				s.log.Debug("read failed",
					zap.String("client_id", clientID), zap.Error(err))
			}
			return
		}
		s.dispatch(clientID, conn, env)
	}
}

// disconnect is the single cleanup path for a connection. The handler
// goroutine is its only caller, so it runs exactly once no matter how many
// concurrent writes failed beforehand.
func (s *Server) disconnect(clientID string, conn Conn) {
	s.log.Info("client disconnected", zap.String("client_id", clientID))
	s.registry.Unregister(clientID)
	_ = conn.Close()
	s.leave(clientID)
	s.broadcastLobbyUpdate()
}

// LobbySnapshot returns the current lobby with participant display names
// resolved. Used for LOBBY_UPDATE messages and the HTTP /games endpoint.
func (s *Server) LobbySnapshot() protocol.LobbyUpdateData {
	games := s.lobby.Games()
	data := make(map[string]protocol.LobbyGameData, len(games))
	for _, g := range games {
		names := make([]string, len(g.Players))
		for i, pid := range g.Players {
			names[i] = s.registry.Username(pid)
		}
		data[g.ID] = protocol.LobbyGameData{Status: string(g.Status), Players: names}
	}
	return protocol.LobbyUpdateData{Games: data}
}

func (s *Server) broadcastLobbyUpdate() {
	s.registry.BroadcastAll(protocol.MsgLobbyUpdate, s.LobbySnapshot())
}

func (s *Server) sessionFor(gameID string) *session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[gameID]
}

func (s *Server) storeSession(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID()] = sess
}

func (s *Server) removeSession(gameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, gameID)
}
