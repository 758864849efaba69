// Package types is the JSON protocol spoken over the websocket and returned
// by the REST endpoints.
package types

// Client -> Server message types.
const (
	MsgSetReady      = "set_ready"
	MsgToggleReady   = "toggle_ready"
	MsgSetDifficulty = "set_difficulty"
	MsgSetTarget     = "set_target"
	MsgStart         = "start_game"
	MsgGuess         = "guess"
	MsgPass          = "pass"
	MsgTimeout       = "timeout"
	MsgChat          = "chat"
	MsgLeave         = "leave"
	MsgPlayAgain     = "play_again"
	MsgPing          = "ping"
)

// Server -> Client message types.
const (
	MsgSnapshot = "snapshot"
	MsgUpdate   = "update"
	MsgError    = "error"
	MsgPong     = "pong"
)

// ClientMessage carries any command; only the fields its type uses are read.
type ClientMessage struct {
	Type       string `json:"type"`
	Ready      *bool  `json:"ready,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Target     int    `json:"target,omitempty"`
	Text       string `json:"text,omitempty"`
	WordSeq    int    `json:"word_seq,omitempty"` // required on guess, pass and timeout
}

type ServerMessage struct {
	Type    string         `json:"type"`
	Version int            `json:"version,omitempty"`
	Lobby   *LobbySnapshot `json:"lobby,omitempty"`
	Events  []Event        `json:"events,omitempty"`
	Error   *ErrorBody     `json:"error,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Event struct {
	Type       string  `json:"type"`
	PlayerID   string  `json:"player_id,omitempty"`
	PlayerName string  `json:"player_name,omitempty"`
	Ready      bool    `json:"ready,omitempty"`
	Difficulty string  `json:"difficulty,omitempty"`
	Target     int     `json:"target,omitempty"`
	WordSeq    int     `json:"word_seq,omitempty"`
	Word       string  `json:"word,omitempty"`
	Points     int     `json:"points,omitempty"`
	PointsLost int     `json:"points_lost,omitempty"`
	TimeBonus  int     `json:"time_bonus,omitempty"`
	Multiplier int     `json:"multiplier,omitempty"`
	Streak     int     `json:"streak,omitempty"`
	Score      int     `json:"score,omitempty"`
	Elapsed    float64 `json:"elapsed,omitempty"`
	Close      bool    `json:"close,omitempty"`
	Passed     int     `json:"passed,omitempty"`
	WinnerID   string  `json:"winner_id,omitempty"`
	WinnerName string  `json:"winner_name,omitempty"`
	Text       string  `json:"text,omitempty"`
	LobbyCode  string  `json:"lobby_code,omitempty"`
}

// REST bodies.

type CreateLobbyRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

type JoinRequest struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

type JoinResponse struct {
	Code     string        `json:"code"`
	PlayerID string        `json:"player_id"`
	Version  int           `json:"version"`
	Lobby    LobbySnapshot `json:"lobby"`
}
