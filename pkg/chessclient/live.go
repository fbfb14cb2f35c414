package chessclient

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
	"github.com/park285/Cheese-Chess-Server/pkg/chessdto"
)

const dialTimeout = 10 * time.Second

// LiveClient is one websocket session bound to a token.
type LiveClient struct {
	conn  *websocket.Conn
	token string
}

// WebsocketURL turns an http(s) base URL into the ws(s) URL of path.
func WebsocketURL(baseURL, path string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	if path == "" {
		path = "/ws"
	}
	return u + path
}

func Dial(ctx context.Context, wsURL, token string, header http.Header) (*LiveClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}
	conn.SetReadLimit(1 << 20)
	return &LiveClient{conn: conn, token: token}, nil
}

func (l *LiveClient) send(ctx context.Context, cmd chessdto.UserGameCommand) error {
	cmd.AuthToken = l.token
	if err := wsjson.Write(ctx, l.conn, cmd); err != nil {
		return fmt.Errorf("send %s: %w", cmd.CommandType, err)
	}
	return nil
}

func (l *LiveClient) Connect(ctx context.Context, gameID int) error {
	return l.send(ctx, chessdto.UserGameCommand{CommandType: chessdto.CommandConnect, GameID: gameID})
}

func (l *LiveClient) MakeMove(ctx context.Context, gameID int, move chess.Move) error {
	return l.send(ctx, chessdto.UserGameCommand{CommandType: chessdto.CommandMakeMove, GameID: gameID, Move: &move})
}

func (l *LiveClient) Leave(ctx context.Context, gameID int) error {
	return l.send(ctx, chessdto.UserGameCommand{CommandType: chessdto.CommandLeave, GameID: gameID})
}

func (l *LiveClient) Resign(ctx context.Context, gameID int) error {
	return l.send(ctx, chessdto.UserGameCommand{CommandType: chessdto.CommandResign, GameID: gameID})
}

// Next blocks for the next server frame.
func (l *LiveClient) Next(ctx context.Context) (*chessdto.ServerMessage, error) {
	var msg chessdto.ServerMessage
	if err := wsjson.Read(ctx, l.conn, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (l *LiveClient) Close() error {
	return l.conn.Close(websocket.StatusNormalClosure, "bye")
}
