// Package game creates, lists, and seats players in game records.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
	"github.com/park285/Cheese-Chess-Server/internal/domain"
	"github.com/park285/Cheese-Chess-Server/internal/store"
	"github.com/park285/Cheese-Chess-Server/pkg/chessdto"
)

const (
	maxGameID     = 9998
	maxIDAttempts = 64
)

// Authenticator resolves a token to a username.
type Authenticator interface {
	CheckAuth(ctx context.Context, token string) (string, error)
}

type Service struct {
	store  store.Store
	auth   Authenticator
	logger *zap.Logger
	nextID func() int
}

func NewService(st store.Store, auth Authenticator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		auth:   auth,
		logger: logger,
		nextID: func() int { return rand.Intn(maxGameID) + 1 },
	}
}

// NewGame persists a fresh record with empty seats and returns its id.
func (s *Service) NewGame(ctx context.Context, token, name string) (int, error) {
	user, err := s.auth.CheckAuth(ctx, token)
	if err != nil {
		return 0, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, chessdto.New(chessdto.KindBadRequest, "gameName is required")
	}
	for i := 0; i < maxIDAttempts; i++ {
		rec := &domain.GameRecord{GameID: s.nextID(), GameName: name, Game: chess.NewGame()}
		err := s.store.CreateGame(ctx, rec)
		if errors.Is(err, store.ErrDuplicate) {
			continue
		}
		if err != nil {
			return 0, chessdto.Internal(fmt.Errorf("create game: %w", err))
		}
		s.logger.Info("game_create", zap.Int("game_id", rec.GameID), zap.String("name", name), zap.String("user", user))
		return rec.GameID, nil
	}
	return 0, chessdto.Internal(fmt.Errorf("no free game id after %d attempts", maxIDAttempts))
}

func (s *Service) ListGames(ctx context.Context, token string) ([]*domain.GameRecord, error) {
	if _, err := s.auth.CheckAuth(ctx, token); err != nil {
		return nil, err
	}
	games, err := s.store.ListGames(ctx)
	if err != nil {
		return nil, chessdto.Internal(fmt.Errorf("list games: %w", err))
	}
	return games, nil
}

// Get returns one record; an unknown id is a bad request.
func (s *Service) Get(ctx context.Context, token string, gameID int) (*domain.GameRecord, error) {
	if _, err := s.auth.CheckAuth(ctx, token); err != nil {
		return nil, err
	}
	rec, err := s.store.GetGame(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, chessdto.New(chessdto.KindBadRequest, fmt.Sprintf("game %d does not exist", gameID))
	}
	if err != nil {
		return nil, chessdto.Internal(fmt.Errorf("get game: %w", err))
	}
	return rec, nil
}

// JoinGame seats the caller at color. Taking a seat you already hold is a
// no-op; a seat held by someone else is already taken.
func (s *Service) JoinGame(ctx context.Context, token, color string, gameID int) error {
	user, err := s.auth.CheckAuth(ctx, token)
	if err != nil {
		return err
	}
	team, err := chess.ParseTeamColor(color)
	if err != nil {
		return chessdto.New(chessdto.KindBadRequest, fmt.Sprintf("invalid playerColor %q", color))
	}
	if gameID <= 0 {
		return chessdto.New(chessdto.KindBadRequest, "gameID is required")
	}
	_, err = s.store.UpdateGame(ctx, gameID, func(rec *domain.GameRecord) error {
		switch seat := rec.Seat(team); seat {
		case "":
			rec.SetSeat(team, user)
		case user:
		default:
			return chessdto.New(chessdto.KindAlreadyTaken, team.String()+" seat")
		}
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return chessdto.New(chessdto.KindBadRequest, fmt.Sprintf("game %d does not exist", gameID))
	case err != nil:
		return chessdto.AsDomain(err)
	}
	s.logger.Info("game_join", zap.Int("game_id", gameID), zap.String("user", user), zap.String("color", team.String()))
	return nil
}
