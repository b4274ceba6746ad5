package protocol

// Message kinds. Client -> server unless noted otherwise; CREATE_GAME,
// JOIN_GAME and SPECTATE double as the server's acknowledgement kind.
const (
	MsgSetUsername = "SET_USERNAME"
	MsgCreateGame  = "CREATE_GAME"
	MsgJoinGame    = "JOIN_GAME"
	MsgSpectate    = "SPECTATE"
	MsgLeave       = "LEAVE"
	MsgMove        = "MOVE"
	MsgChat        = "CHAT"
	MsgGetGames    = "GET_GAMES"

	// Server -> client only.
	MsgWelcome        = "WELCOME"
	MsgSetUsernameAck = "SET_USERNAME_ACK"
	MsgGameStarted    = "GAME_STARTED"
	MsgUpdate         = "UPDATE"
	MsgGameOver       = "GAME_OVER"
	MsgLobbyUpdate    = "LOBBY_UPDATE"
	MsgError          = "ERROR"
)

// Client -> server payloads.

type SetUsernameData struct {
	Username string `json:"username"`
}

type JoinGameData struct {
	GameID string `json:"game_id"`
}

type SpectateData struct {
	GameID string `json:"game_id"`
}

type MoveData struct {
	Move string `json:"move"`
}

type ChatData struct {
	Message string `json:"message"`
}

// Server -> client payloads.

type WelcomeData struct {
	ClientID string `json:"client_id"`
}

type SetUsernameAckData struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}

type GameCreatedData struct {
	GameID string `json:"game_id"`
	Role   string `json:"role"`
}

type GameJoinedData struct {
	GameID string `json:"game_id"`
	Role   string `json:"role"`
}

type SpectateAckData struct {
	GameID string `json:"game_id"`
}

// GameStartedData is pushed to both players when the second seat fills.
type GameStartedData struct {
	GameID        string             `json:"game_id"`
	BoardFEN      string             `json:"board_fen"`
	WhitePlayer   string             `json:"white_player"`
	BlackPlayer   string             `json:"black_player"`
	TimeRemaining map[string]float64 `json:"time_remaining"`
	Turn          string             `json:"turn"`
	MoveHistory   []string           `json:"move_history"`
}

// UpdateData is the full state snapshot broadcast after every accepted move
// and whenever a spectator joins.
type UpdateData struct {
	GameID        string             `json:"game_id"`
	BoardFEN      string             `json:"board_fen"`
	Turn          string             `json:"turn"`
	TimeRemaining map[string]float64 `json:"time_remaining"`
	MoveHistory   []string           `json:"move_history"`
}

type GameOverData struct {
	GameID string `json:"game_id"`
	Result string `json:"result"`
	Reason string `json:"reason"`
}

type ChatBroadcastData struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Role     string `json:"role"`
}

type LobbyGameData struct {
	Status  string   `json:"status"`
	Players []string `json:"players"`
}

type LobbyUpdateData struct {
	Games map[string]LobbyGameData `json:"games"`
}

type ErrorData struct {
	Message string `json:"message"`
}
