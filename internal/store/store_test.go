package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
	"github.com/park285/Cheese-Chess-Server/internal/domain"
)

func newRedisStore(t *testing.T) *Redis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	s := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newPostgresStore(t *testing.T) *Postgres {
	t.Helper()
	dsn := os.Getenv("CHESS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CHESS_TEST_DATABASE_URL not set")
	}
	s, err := OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	return s
}

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory":   func(t *testing.T) Store { return NewMemory() },
		"redis":    func(t *testing.T) Store { return newRedisStore(t) },
		"postgres": func(t *testing.T) Store { return newPostgresStore(t) },
	}
}

func strp(s string) *string { return &s }

func TestStoreUsers(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			alice := &domain.User{Username: "alice", Password: "hash", Email: "a@x"}
			if err := s.CreateUser(ctx, alice); err != nil {
				t.Fatalf("CreateUser: %v", err)
			}
			if err := s.CreateUser(ctx, alice); !errors.Is(err, ErrDuplicate) {
				t.Fatalf("duplicate create: want ErrDuplicate, got %v", err)
			}
			got, err := s.GetUser(ctx, "alice")
			if err != nil || *got != *alice {
				t.Fatalf("GetUser: %+v, %v", got, err)
			}
			if _, err := s.GetUser(ctx, "bob"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("missing user: want ErrNotFound, got %v", err)
			}

			alice.Email = "alice@x"
			if err := s.UpdateUser(ctx, alice); err != nil {
				t.Fatalf("UpdateUser: %v", err)
			}
			if got, _ := s.GetUser(ctx, "alice"); got.Email != "alice@x" {
				t.Fatalf("update not visible: %+v", got)
			}
			if err := s.UpdateUser(ctx, &domain.User{Username: "bob"}); !errors.Is(err, ErrNotFound) {
				t.Fatalf("update missing: want ErrNotFound, got %v", err)
			}

			if err := s.CreateUser(ctx, &domain.User{Username: "bob", Password: "h", Email: "b@x"}); err != nil {
				t.Fatalf("CreateUser bob: %v", err)
			}
			users, err := s.ListUsers(ctx)
			if err != nil || len(users) != 2 || users[0].Username != "alice" || users[1].Username != "bob" {
				t.Fatalf("ListUsers: %+v, %v", users, err)
			}
			if err := s.DeleteUser(ctx, "bob"); err != nil {
				t.Fatalf("DeleteUser: %v", err)
			}
			if err := s.DeleteUser(ctx, "bob"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("second delete: want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreAuths(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			tok := &domain.AuthToken{Token: "t1", Username: "alice"}
			if err := s.CreateAuth(ctx, tok); err != nil {
				t.Fatalf("CreateAuth: %v", err)
			}
			if err := s.CreateAuth(ctx, tok); !errors.Is(err, ErrDuplicate) {
				t.Fatalf("duplicate: want ErrDuplicate, got %v", err)
			}
			got, err := s.GetAuth(ctx, "t1")
			if err != nil || got.Username != "alice" {
				t.Fatalf("GetAuth: %+v, %v", got, err)
			}
			if err := s.CreateAuth(ctx, &domain.AuthToken{Token: "t2", Username: "alice"}); err != nil {
				t.Fatalf("second token: %v", err)
			}
			all, err := s.ListAuths(ctx)
			if err != nil || len(all) != 2 {
				t.Fatalf("ListAuths: %+v, %v", all, err)
			}
			if err := s.DeleteAuth(ctx, "t1"); err != nil {
				t.Fatalf("DeleteAuth: %v", err)
			}
			if _, err := s.GetAuth(ctx, "t1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("deleted token: want ErrNotFound, got %v", err)
			}
			if err := s.DeleteAuth(ctx, "t1"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("second delete: want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreGames(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			rec := &domain.GameRecord{GameID: 42, GameName: "g1", Game: chess.NewGame()}
			if err := s.CreateGame(ctx, rec); err != nil {
				t.Fatalf("CreateGame: %v", err)
			}
			if err := s.CreateGame(ctx, rec); !errors.Is(err, ErrDuplicate) {
				t.Fatalf("duplicate: want ErrDuplicate, got %v", err)
			}
			got, err := s.GetGame(ctx, 42)
			if err != nil {
				t.Fatalf("GetGame: %v", err)
			}
			if got.GameName != "g1" || got.WhiteUsername != nil || got.BlackUsername != nil || !got.Game.Equal(chess.NewGame()) {
				t.Fatalf("GetGame round trip: %+v", got)
			}

			updated, err := s.UpdateGame(ctx, 42, func(r *domain.GameRecord) error {
				r.WhiteUsername = strp("alice")
				_, err := r.Game.MakeMove(chess.NewMove(chess.NewPosition(2, 5), chess.NewPosition(4, 5), nil))
				return err
			})
			if err != nil {
				t.Fatalf("UpdateGame: %v", err)
			}
			if updated.Seat(chess.White) != "alice" {
				t.Fatalf("UpdateGame result: %+v", updated)
			}
			got, _ = s.GetGame(ctx, 42)
			if got.Seat(chess.White) != "alice" || got.Game.Turn() != chess.Black || got.Game.Board().Piece(chess.NewPosition(4, 5)) == nil {
				t.Fatalf("update not persisted: %+v", got)
			}

			abort := errors.New("abort")
			if _, err := s.UpdateGame(ctx, 42, func(r *domain.GameRecord) error {
				r.GameName = "changed"
				return abort
			}); !errors.Is(err, abort) {
				t.Fatalf("mutator error: want abort, got %v", err)
			}
			if got, _ := s.GetGame(ctx, 42); got.GameName != "g1" {
				t.Fatalf("aborted update leaked: %+v", got)
			}
			if _, err := s.UpdateGame(ctx, 7, func(*domain.GameRecord) error { return nil }); !errors.Is(err, ErrNotFound) {
				t.Fatalf("update missing: want ErrNotFound, got %v", err)
			}

			if err := s.CreateGame(ctx, &domain.GameRecord{GameID: 3, GameName: "g0", Game: chess.NewGame()}); err != nil {
				t.Fatalf("CreateGame 3: %v", err)
			}
			list, err := s.ListGames(ctx)
			if err != nil || len(list) != 2 || list[0].GameID != 3 || list[1].GameID != 42 {
				t.Fatalf("ListGames: %+v, %v", list, err)
			}
			if err := s.DeleteGame(ctx, 3); err != nil {
				t.Fatalf("DeleteGame: %v", err)
			}
			if err := s.DeleteGame(ctx, 3); !errors.Is(err, ErrNotFound) {
				t.Fatalf("second delete: want ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	if err := s.CreateGame(ctx, &domain.GameRecord{GameID: 1, GameName: "g", Game: chess.NewGame()}); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	got, _ := s.GetGame(ctx, 1)
	got.GameName = "mutated"
	got.Game.Board().Remove(chess.NewPosition(1, 5))
	again, _ := s.GetGame(ctx, 1)
	if again.GameName != "g" || again.Game.Board().Piece(chess.NewPosition(1, 5)) == nil {
		t.Fatalf("caller mutation leaked into store: %+v", again)
	}
}

func TestStoreClear(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			_ = s.CreateUser(ctx, &domain.User{Username: "alice", Password: "h", Email: "a@x"})
			_ = s.CreateAuth(ctx, &domain.AuthToken{Token: "t", Username: "alice"})
			_ = s.CreateGame(ctx, &domain.GameRecord{GameID: 1, GameName: "g", Game: chess.NewGame()})

			if err := s.Clear(ctx, Auths); err != nil {
				t.Fatalf("Clear auths: %v", err)
			}
			if _, err := s.GetAuth(ctx, "t"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("auth survived clear: %v", err)
			}
			if _, err := s.GetUser(ctx, "alice"); err != nil {
				t.Fatalf("user should survive partial clear: %v", err)
			}

			if err := s.Clear(ctx); err != nil {
				t.Fatalf("Clear: %v", err)
			}
			users, _ := s.ListUsers(ctx)
			games, _ := s.ListGames(ctx)
			if len(users) != 0 || len(games) != 0 {
				t.Fatalf("clear left %d users, %d games", len(users), len(games))
			}
			if err := s.CreateGame(ctx, &domain.GameRecord{GameID: 1, GameName: "g", Game: chess.NewGame()}); err != nil {
				t.Fatalf("recreate after clear: %v", err)
			}
			if err := s.Clear(ctx, Collection("bogus")); err == nil {
				t.Fatalf("unknown collection should fail")
			}
		})
	}
}

func TestStoreConcurrentUpdatesSerialize(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			if err := s.CreateGame(ctx, &domain.GameRecord{GameID: 9, GameName: "n0", Game: chess.NewGame()}); err != nil {
				t.Fatalf("CreateGame: %v", err)
			}
			const workers = 4
			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := s.UpdateGame(ctx, 9, func(r *domain.GameRecord) error {
						var n int
						fmt.Sscanf(r.GameName, "n%d", &n)
						r.GameName = fmt.Sprintf("n%d", n+1)
						return nil
					})
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				if err != nil {
					t.Fatalf("UpdateGame: %v", err)
				}
			}
			got, _ := s.GetGame(ctx, 9)
			if got.GameName != fmt.Sprintf("n%d", workers) {
				t.Fatalf("lost update: %q", got.GameName)
			}
		})
	}
}

func TestParseRedisURL(t *testing.T) {
	opts, err := ParseRedisURL("redis://:secret@cache.local/2")
	if err != nil {
		t.Fatalf("ParseRedisURL: %v", err)
	}
	if opts.Addr != "cache.local:6379" || opts.Password != "secret" || opts.DB != 2 || opts.TLSConfig != nil {
		t.Fatalf("unexpected options: %+v", opts)
	}
	opts, err = ParseRedisURL("rediss://cache.local:6380")
	if err != nil || opts.Addr != "cache.local:6380" || opts.TLSConfig == nil {
		t.Fatalf("rediss: %+v, %v", opts, err)
	}
	if _, err := ParseRedisURL("http://cache.local"); err == nil {
		t.Fatalf("expected scheme error")
	}
	if _, err := ParseRedisURL("redis://cache.local/x"); err == nil {
		t.Fatalf("expected db error")
	}
}
