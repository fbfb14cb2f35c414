package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
	"github.com/park285/Cheese-Chess-Server/pkg/chessclient"
	"github.com/park285/Cheese-Chess-Server/pkg/chessdto"
)

func main() {
	baseURL := strings.TrimSpace(os.Getenv("CHESS_SERVER_URL"))
	if baseURL == "" {
		log.Fatal("CHESS_SERVER_URL is required")
	}
	user := strings.TrimSpace(os.Getenv("CHESS_CHECK_USER"))
	if user == "" {
		user = "chess-check"
	}
	wsPath := strings.TrimSpace(os.Getenv("WS_PATH"))

	client := chessclient.NewClient(baseURL, chessclient.WithTimeout(8*time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	auth, err := client.Register(ctx, user, user, user+"@check.local")
	var re *chessdto.ResponseError
	if errors.As(err, &re) && re.Status == 403 {
		auth, err = client.Login(ctx, user, user)
	}
	if err != nil {
		log.Fatalf("auth error: %v", err)
	}
	log.Printf("auth ok: user=%s", auth.Username)

	id, err := client.CreateGame(ctx, auth.AuthToken, "check-"+time.Now().Format("150405"))
	if err != nil {
		log.Fatalf("create game error: %v", err)
	}
	games, err := client.ListGames(ctx, auth.AuthToken)
	if err != nil {
		log.Fatalf("list games error: %v", err)
	}
	log.Printf("game ok: id=%d listed=%d", id, len(games))

	if err := client.JoinGame(ctx, auth.AuthToken, chess.White, id); err != nil {
		log.Fatalf("join error: %v", err)
	}

	live, err := chessclient.Dial(ctx, chessclient.WebsocketURL(baseURL, wsPath), auth.AuthToken, nil)
	if err != nil {
		log.Printf("WS connect error: %v", err)
	} else {
		if err := live.Connect(ctx, id); err != nil {
			log.Printf("WS send error: %v", err)
		} else if msg, err := live.Next(ctx); err != nil {
			log.Printf("WS read error: %v", err)
		} else if msg.Game != nil {
			fmt.Printf("WS %s turn=%s\n", msg.ServerMessageType, msg.Game.Turn())
		} else {
			fmt.Printf("WS %s %s%s\n", msg.ServerMessageType, msg.Message, msg.ErrorMessage)
		}
		_ = live.Leave(ctx, id)
		_ = live.Close()
	}

	if err := client.Logout(ctx, auth.AuthToken); err != nil {
		log.Fatalf("logout error: %v", err)
	}
	log.Println("check complete")
}
