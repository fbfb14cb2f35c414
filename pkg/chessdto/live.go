package chessdto

import "github.com/park285/Cheese-Chess-Server/internal/chess"

type CommandType string

const (
	CommandConnect  CommandType = "CONNECT"
	CommandMakeMove CommandType = "MAKE_MOVE"
	CommandLeave    CommandType = "LEAVE"
	CommandResign   CommandType = "RESIGN"
)

// UserGameCommand is a client frame on the live channel.
type UserGameCommand struct {
	CommandType CommandType `json:"commandType"`
	AuthToken   string      `json:"authToken"`
	GameID      int         `json:"gameID"`
	Move        *chess.Move `json:"move,omitempty"`
}

type ServerMessageType string

const (
	MessageLoadGame     ServerMessageType = "LOAD_GAME"
	MessageNotification ServerMessageType = "NOTIFICATION"
	MessageError        ServerMessageType = "ERROR"
)

// ServerMessage is a server frame; exactly one payload field is set per type.
type ServerMessage struct {
	ServerMessageType ServerMessageType `json:"serverMessageType"`
	Game              *chess.Game       `json:"game,omitempty"`
	Message           string            `json:"message,omitempty"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
}

func LoadGame(g *chess.Game) *ServerMessage {
	return &ServerMessage{ServerMessageType: MessageLoadGame, Game: g}
}

func Notification(text string) *ServerMessage {
	return &ServerMessage{ServerMessageType: MessageNotification, Message: text}
}

func ErrorMessage(text string) *ServerMessage {
	return &ServerMessage{ServerMessageType: MessageError, ErrorMessage: text}
}
