// Package store persists users, auth tokens, and game records behind one
// interface with in-memory, PostgreSQL, and Redis backends.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/park285/Cheese-Chess-Server/internal/domain"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// Collection names one of the three keyed collections.
type Collection string

const (
	Users Collection = "user"
	Auths Collection = "auth"
	Games Collection = "game"
)

// AllCollections is what Clear truncates when called without arguments.
var AllCollections = []Collection{Users, Auths, Games}

// GameMutator edits a record inside UpdateGame. Returning an error aborts
// the update and is passed through unchanged.
type GameMutator func(rec *domain.GameRecord) error

// Store is the persistence boundary. Every method is atomic with respect to
// the others; returned values are copies the caller may modify freely.
type Store interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, username string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	UpdateUser(ctx context.Context, u *domain.User) error
	DeleteUser(ctx context.Context, username string) error

	CreateAuth(ctx context.Context, a *domain.AuthToken) error
	GetAuth(ctx context.Context, token string) (*domain.AuthToken, error)
	ListAuths(ctx context.Context) ([]*domain.AuthToken, error)
	DeleteAuth(ctx context.Context, token string) error

	CreateGame(ctx context.Context, rec *domain.GameRecord) error
	GetGame(ctx context.Context, gameID int) (*domain.GameRecord, error)
	ListGames(ctx context.Context) ([]*domain.GameRecord, error)
	// UpdateGame loads the record, applies fn, and writes it back as one
	// atomic step. It returns the stored result.
	UpdateGame(ctx context.Context, gameID int, fn GameMutator) (*domain.GameRecord, error)
	DeleteGame(ctx context.Context, gameID int) error

	// Clear empties the named collections, or all of them, in one step.
	Clear(ctx context.Context, cols ...Collection) error
	Close() error
}

func checkCollections(cols []Collection) ([]Collection, error) {
	if len(cols) == 0 {
		return AllCollections, nil
	}
	for _, c := range cols {
		switch c {
		case Users, Auths, Games:
		default:
			return nil, fmt.Errorf("clear: unknown collection %q", c)
		}
	}
	return cols, nil
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneAuth(a *domain.AuthToken) *domain.AuthToken {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}
