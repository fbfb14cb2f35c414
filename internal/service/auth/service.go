// Package auth registers users and issues the opaque tokens every other
// operation authenticates with.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/park285/Cheese-Chess-Server/internal/domain"
	"github.com/park285/Cheese-Chess-Server/internal/store"
	"github.com/park285/Cheese-Chess-Server/pkg/chessdto"
)

type Config struct {
	BcryptCost int
}

// tokenBytes is the entropy of an issued token; its hex form is twice as long.
const tokenBytes = 16

type Service struct {
	store  store.Store
	cost   int
	logger *zap.Logger

	// dummyHash is compared against on unknown usernames so Login pays the
	// same bcrypt cost either way.
	dummyOnce sync.Once
	dummyHash []byte
}

func NewService(st store.Store, cfg Config, logger *zap.Logger) *Service {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: st, cost: cost, logger: logger}
}

// Register creates the user and returns a fresh token for it.
func (s *Service) Register(ctx context.Context, username, password, email string) (*chessdto.AuthResult, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" || email == "" {
		return nil, chessdto.New(chessdto.KindBadRequest, "username, password, and email are required")
	}
	if _, err := s.store.GetUser(ctx, username); err == nil {
		return nil, chessdto.New(chessdto.KindAlreadyTaken, "username "+username)
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, chessdto.Internal(fmt.Errorf("lookup user: %w", err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, chessdto.Internal(fmt.Errorf("hash password: %w", err))
	}
	u := &domain.User{Username: username, Password: string(hash), Email: email}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, chessdto.New(chessdto.KindAlreadyTaken, "username "+username)
		}
		return nil, chessdto.Internal(fmt.Errorf("create user: %w", err))
	}
	s.logger.Info("user_register", zap.String("user", username))
	return s.issue(ctx, username)
}

// Login verifies the password and issues an additional token; earlier tokens
// stay valid.
func (s *Service) Login(ctx context.Context, username, password string) (*chessdto.AuthResult, error) {
	u, err := s.store.GetUser(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return nil, chessdto.New(chessdto.KindUnauthorized, "unknown user")
	}
	if err != nil {
		return nil, chessdto.Internal(fmt.Errorf("lookup user: %w", err))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, chessdto.New(chessdto.KindUnauthorized, "wrong password")
	}
	s.logger.Info("user_login", zap.String("user", u.Username))
	return s.issue(ctx, u.Username)
}

// Logout deletes only the presented token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return chessdto.New(chessdto.KindUnauthorized, "missing token")
	}
	err := s.store.DeleteAuth(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return chessdto.New(chessdto.KindUnauthorized, "unknown token")
	}
	if err != nil {
		return chessdto.Internal(fmt.Errorf("delete auth: %w", err))
	}
	return nil
}

// CheckAuth resolves token to its username.
func (s *Service) CheckAuth(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", chessdto.New(chessdto.KindUnauthorized, "missing token")
	}
	a, err := s.store.GetAuth(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return "", chessdto.New(chessdto.KindUnauthorized, "unknown token")
	}
	if err != nil {
		return "", chessdto.Internal(fmt.Errorf("lookup auth: %w", err))
	}
	return a.Username, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("unknown-user"), s.cost)
		if err != nil {
			s.logger.Error("dummy_hash_failed", zap.Error(err))
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// newToken returns tokenBytes of crypto/rand, hex encoded.
func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) issue(ctx context.Context, username string) (*chessdto.AuthResult, error) {
	raw, err := newToken()
	if err != nil {
		return nil, chessdto.Internal(fmt.Errorf("generate token: %w", err))
	}
	tok := &domain.AuthToken{Token: raw, Username: username}
	if err := s.store.CreateAuth(ctx, tok); err != nil {
		return nil, chessdto.Internal(fmt.Errorf("create auth: %w", err))
	}
	return &chessdto.AuthResult{Username: username, AuthToken: tok.Token}, nil
}
