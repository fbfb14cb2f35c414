package game

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
	"github.com/park285/Cheese-Chess-Server/internal/service/auth"
	"github.com/park285/Cheese-Chess-Server/internal/store"
	"github.com/park285/Cheese-Chess-Server/pkg/chessdto"
)

type fixture struct {
	games *Service
	store *store.Memory
	alice string
	bob   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	authSvc := auth.NewService(st, auth.Config{BcryptCost: bcrypt.MinCost}, nil)
	a, err := authSvc.Register(ctx, "alice", "pw", "a@x")
	if err != nil {
		t.Fatalf("Register alice: %v", err)
	}
	b, err := authSvc.Register(ctx, "bob", "pw", "b@x")
	if err != nil {
		t.Fatalf("Register bob: %v", err)
	}
	return &fixture{games: NewService(st, authSvc, nil), store: st, alice: a.AuthToken, bob: b.AuthToken}
}

func TestNewGameAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.games.NewGame(ctx, f.alice, "g1")
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if id < 1 || id > maxGameID {
		t.Fatalf("id %d out of range", id)
	}
	games, err := f.games.ListGames(ctx, f.bob)
	if err != nil {
		t.Fatalf("ListGames: %v", err)
	}
	if len(games) != 1 || games[0].GameID != id || games[0].GameName != "g1" {
		t.Fatalf("unexpected games: %+v", games)
	}
	if games[0].WhiteUsername != nil || games[0].BlackUsername != nil {
		t.Fatalf("new game should have empty seats")
	}
	if !games[0].Game.Equal(chess.NewGame()) {
		t.Fatalf("new game should start from the initial position")
	}
}

func TestNewGameRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.games.NewGame(ctx, "bogus", "g1"); !errors.Is(err, chessdto.ErrUnauthorized) {
		t.Fatalf("bad token: want unauthorized, got %v", err)
	}
	if _, err := f.games.NewGame(ctx, f.alice, "  "); !errors.Is(err, chessdto.ErrBadRequest) {
		t.Fatalf("empty name: want bad request, got %v", err)
	}
	if _, err := f.games.ListGames(ctx, ""); !errors.Is(err, chessdto.ErrUnauthorized) {
		t.Fatalf("list without token: want unauthorized, got %v", err)
	}
}

func TestNewGameRetriesTakenIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := []int{5, 5, 5, 6}
	f.games.nextID = func() int {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	first, err := f.games.NewGame(ctx, f.alice, "a")
	if err != nil || first != 5 {
		t.Fatalf("first: %d, %v", first, err)
	}
	second, err := f.games.NewGame(ctx, f.alice, "b")
	if err != nil || second != 6 {
		t.Fatalf("second: %d, %v", second, err)
	}

	f.games.nextID = func() int { return 5 }
	if _, err := f.games.NewGame(ctx, f.alice, "c"); !errors.Is(err, chessdto.ErrInternal) {
		t.Fatalf("exhausted ids: want internal, got %v", err)
	}
}

func TestJoinGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.games.NewGame(ctx, f.alice, "g1")
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if err := f.games.JoinGame(ctx, f.alice, "WHITE", id); err != nil {
		t.Fatalf("JoinGame: %v", err)
	}
	if err := f.games.JoinGame(ctx, f.alice, "white", id); err != nil {
		t.Fatalf("rejoining own seat should be idempotent: %v", err)
	}
	if err := f.games.JoinGame(ctx, f.bob, "WHITE", id); !errors.Is(err, chessdto.ErrAlreadyTaken) {
		t.Fatalf("taken seat: want already taken, got %v", err)
	}
	if err := f.games.JoinGame(ctx, f.bob, "BLACK", id); err != nil {
		t.Fatalf("JoinGame black: %v", err)
	}
	rec, err := f.store.GetGame(ctx, id)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if rec.Seat(chess.White) != "alice" || rec.Seat(chess.Black) != "bob" {
		t.Fatalf("seats: %+v", rec)
	}

	cases := []struct {
		name  string
		token string
		color string
		id    int
		want  error
	}{
		{"bad token", "nope", "WHITE", id, chessdto.ErrUnauthorized},
		{"bad color", f.bob, "GREEN", id, chessdto.ErrBadRequest},
		{"missing id", f.bob, "WHITE", 0, chessdto.ErrBadRequest},
		{"unknown game", f.bob, "WHITE", id + 1, chessdto.ErrBadRequest},
	}
	for _, tc := range cases {
		if err := f.games.JoinGame(ctx, tc.token, tc.color, tc.id); !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.games.NewGame(ctx, f.alice, "g1")
	rec, err := f.games.Get(ctx, f.bob, id)
	if err != nil || rec.GameName != "g1" {
		t.Fatalf("Get: %+v, %v", rec, err)
	}
	if _, err := f.games.Get(ctx, f.bob, id+1); !errors.Is(err, chessdto.ErrBadRequest) {
		t.Fatalf("unknown game: want bad request, got %v", err)
	}
}
