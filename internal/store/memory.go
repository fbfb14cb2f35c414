package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/park285/Cheese-Chess-Server/internal/domain"
)

// Memory keeps everything in process; used by tests and when no backend is
// configured.
type Memory struct {
	mu sync.RWMutex

	users map[string]*domain.User
	auths map[string]*domain.AuthToken
	games map[int]*domain.GameRecord
}

func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]*domain.User),
		auths: make(map[string]*domain.AuthToken),
		games: make(map[int]*domain.GameRecord),
	}
}

func (m *Memory) CreateUser(ctx context.Context, u *domain.User) error {
	if u == nil || u.Username == "" {
		return fmt.Errorf("create user: empty username")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.Username]; exists {
		return ErrDuplicate
	}
	m.users[u.Username] = cloneUser(u)
	return nil
}

func (m *Memory) GetUser(ctx context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *Memory) ListUsers(ctx context.Context) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (m *Memory) UpdateUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return ErrNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; !ok {
		return ErrNotFound
	}
	m.users[u.Username] = cloneUser(u)
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[username]; !ok {
		return ErrNotFound
	}
	delete(m.users, username)
	return nil
}

func (m *Memory) CreateAuth(ctx context.Context, a *domain.AuthToken) error {
	if a == nil || a.Token == "" {
		return fmt.Errorf("create auth: empty token")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.auths[a.Token]; exists {
		return ErrDuplicate
	}
	m.auths[a.Token] = cloneAuth(a)
	return nil
}

func (m *Memory) GetAuth(ctx context.Context, token string) (*domain.AuthToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.auths[token]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAuth(a), nil
}

func (m *Memory) ListAuths(ctx context.Context) ([]*domain.AuthToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.AuthToken, 0, len(m.auths))
	for _, a := range m.auths {
		out = append(out, cloneAuth(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out, nil
}

func (m *Memory) DeleteAuth(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auths[token]; !ok {
		return ErrNotFound
	}
	delete(m.auths, token)
	return nil
}

func (m *Memory) CreateGame(ctx context.Context, rec *domain.GameRecord) error {
	if rec == nil || rec.GameID <= 0 {
		return fmt.Errorf("create game: invalid id")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.games[rec.GameID]; exists {
		return ErrDuplicate
	}
	m.games[rec.GameID] = rec.Clone()
	return nil
}

func (m *Memory) GetGame(ctx context.Context, gameID int) (*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *Memory) ListGames(ctx context.Context) ([]*domain.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.GameRecord, 0, len(m.games))
	for _, rec := range m.games {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out, nil
}

func (m *Memory) UpdateGame(ctx context.Context, gameID int, fn GameMutator) (*domain.GameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.GameID = gameID
	m.games[gameID] = next
	return next.Clone(), nil
}

func (m *Memory) DeleteGame(ctx context.Context, gameID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[gameID]; !ok {
		return ErrNotFound
	}
	delete(m.games, gameID)
	return nil
}

func (m *Memory) Clear(ctx context.Context, cols ...Collection) error {
	cols, err := checkCollections(cols)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cols {
		switch c {
		case Users:
			m.users = make(map[string]*domain.User)
		case Auths:
			m.auths = make(map[string]*domain.AuthToken)
		case Games:
			m.games = make(map[int]*domain.GameRecord)
		}
	}
	return nil
}

func (m *Memory) Close() error { return nil }
