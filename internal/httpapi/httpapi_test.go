package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calebmartin/netchess-backend/internal/config"
	"github.com/calebmartin/netchess-backend/internal/protocol"
	"github.com/calebmartin/netchess-backend/internal/rules"
	"github.com/calebmartin/netchess-backend/internal/server"
)

func newTestAPI(t *testing.T) (*server.Server, http.Handler) {
	t.Helper()
	srv := server.New(config.Config{InitialClock: 5 * time.Minute}, rules.NewChessEngine(), zap.NewNop())
	return srv, SetupRoutes(srv, zap.NewNop())
}

func TestHealthz(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListGamesEmpty(t *testing.T) {
	_, handler := newTestAPI(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/games", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot protocol.LobbyUpdateData
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.Empty(t, snapshot.Games)
}

// wsClient wraps a raw websocket connection in the envelope codec.
type wsClient struct {
	t    *testing.T
	ctx  context.Context
	conn *websocket.Conn
}

func dialWS(t *testing.T, httpURL string) *wsClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return &wsClient{t: t, ctx: ctx, conn: conn}
}

func (c *wsClient) send(msgType string, data any) {
	c.t.Helper()
	payload, err := protocol.EncodePayload(msgType, data)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.Write(c.ctx, websocket.MessageText, payload))
}

func (c *wsClient) waitFor(msgType string, out any) {
	c.t.Helper()
	for {
		_, data, err := c.conn.Read(c.ctx)
		require.NoError(c.t, err, "waiting for %s", msgType)
		env, err := protocol.Decode(data)
		require.NoError(c.t, err)
		if env.MsgType != msgType {
			continue
		}
		if out != nil {
			require.NoError(c.t, env.DecodeData(out))
		}
		return
	}
}

func TestWebSocketSpeaksTheSameProtocol(t *testing.T) {
	_, handler := newTestAPI(t)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	c := dialWS(t, ts.URL)

	var welcome protocol.WelcomeData
	c.waitFor(protocol.MsgWelcome, &welcome)
	require.NotEmpty(t, welcome.ClientID)

	c.send(protocol.MsgSetUsername, protocol.SetUsernameData{Username: "Wanda"})
	var ack protocol.SetUsernameAckData
	c.waitFor(protocol.MsgSetUsernameAck, &ack)
	require.Equal(t, "Wanda", ack.Username)

	c.send(protocol.MsgCreateGame, nil)
	var created protocol.GameCreatedData
	c.waitFor(protocol.MsgCreateGame, &created)
	require.Equal(t, "white", created.Role)
	require.NotEmpty(t, created.GameID)
}

func TestListGamesReflectsWebSocketLobby(t *testing.T) {
	_, handler := newTestAPI(t)
	ts := httptest.NewServer(handler)
	defer ts.Close()

	c := dialWS(t, ts.URL)
	c.waitFor(protocol.MsgWelcome, nil)
	c.send(protocol.MsgSetUsername, protocol.SetUsernameData{Username: "Wanda"})
	c.waitFor(protocol.MsgSetUsernameAck, nil)
	c.send(protocol.MsgCreateGame, nil)
	var created protocol.GameCreatedData
	c.waitFor(protocol.MsgCreateGame, &created)

	resp, err := http.Get(ts.URL + "/games")
	require.NoError(t, err)
	defer resp.Body.Close()

	var snapshot protocol.LobbyUpdateData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snapshot))
	require.Contains(t, snapshot.Games, created.GameID)
	require.Equal(t, []string{"Wanda"}, snapshot.Games[created.GameID].Players)
	require.Equal(t, "open", snapshot.Games[created.GameID].Status)
}
