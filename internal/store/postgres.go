package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
	"github.com/park285/Cheese-Chess-Server/internal/domain"
)

const pgUniqueViolation = "23505"

// Table names are plural because user is reserved in PostgreSQL.
const pgSchema = `
CREATE TABLE IF NOT EXISTS users (
	username      TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	email         TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS auth_tokens (
	token    TEXT PRIMARY KEY,
	username TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS games (
	game_id        INTEGER PRIMARY KEY,
	game_name      TEXT NOT NULL,
	white_username TEXT NULL,
	black_username TEXT NULL,
	game           JSONB NOT NULL
);`

var pgTables = map[Collection]string{
	Users: "users",
	Auths: "auth_tokens",
	Games: "games",
}

type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects, pings, and makes sure the schema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	p := &Postgres{db: db}
	if err := p.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, pgSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func mapPgErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return ErrDuplicate
	}
	return err
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *domain.User) error {
	const q = `INSERT INTO users (username, password_hash, email) VALUES ($1, $2, $3)`
	if _, err := p.db.ExecContext(ctx, q, u.Username, u.Password, u.Email); err != nil {
		return mapPgErr(err)
	}
	return nil
}

func (p *Postgres) GetUser(ctx context.Context, username string) (*domain.User, error) {
	const q = `SELECT username, password_hash, email FROM users WHERE username = $1`
	var u domain.User
	err := p.db.QueryRowContext(ctx, q, username).Scan(&u.Username, &u.Password, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]*domain.User, error) {
	const q = `SELECT username, password_hash, email FROM users ORDER BY username`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out := []*domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.Username, &u.Password, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, &u)
	}
	return out, rows.Err()
}

func (p *Postgres) UpdateUser(ctx context.Context, u *domain.User) error {
	const q = `UPDATE users SET password_hash = $2, email = $3 WHERE username = $1`
	res, err := p.db.ExecContext(ctx, q, u.Username, u.Password, u.Email)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectOneRow(res)
}

func (p *Postgres) DeleteUser(ctx context.Context, username string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return expectOneRow(res)
}

func (p *Postgres) CreateAuth(ctx context.Context, a *domain.AuthToken) error {
	const q = `INSERT INTO auth_tokens (token, username) VALUES ($1, $2)`
	if _, err := p.db.ExecContext(ctx, q, a.Token, a.Username); err != nil {
		return mapPgErr(err)
	}
	return nil
}

func (p *Postgres) GetAuth(ctx context.Context, token string) (*domain.AuthToken, error) {
	const q = `SELECT token, username FROM auth_tokens WHERE token = $1`
	var a domain.AuthToken
	err := p.db.QueryRowContext(ctx, q, token).Scan(&a.Token, &a.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get auth: %w", err)
	}
	return &a, nil
}

func (p *Postgres) ListAuths(ctx context.Context) ([]*domain.AuthToken, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT token, username FROM auth_tokens ORDER BY token`)
	if err != nil {
		return nil, fmt.Errorf("list auths: %w", err)
	}
	defer rows.Close()
	out := []*domain.AuthToken{}
	for rows.Next() {
		var a domain.AuthToken
		if err := rows.Scan(&a.Token, &a.Username); err != nil {
			return nil, fmt.Errorf("scan auth: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (p *Postgres) DeleteAuth(ctx context.Context, token string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete auth: %w", err)
	}
	return expectOneRow(res)
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(s rowScanner) (*domain.GameRecord, error) {
	var (
		rec          domain.GameRecord
		white, black sql.NullString
		raw          []byte
	)
	if err := s.Scan(&rec.GameID, &rec.GameName, &white, &black, &raw); err != nil {
		return nil, err
	}
	if white.Valid {
		rec.SetSeat(chess.White, white.String)
	}
	if black.Valid {
		rec.SetSeat(chess.Black, black.String)
	}
	rec.Game = chess.NewGame()
	if err := json.Unmarshal(raw, rec.Game); err != nil {
		return nil, fmt.Errorf("decode game %d: %w", rec.GameID, err)
	}
	return &rec, nil
}

func encodeGame(rec *domain.GameRecord) (string, error) {
	g := rec.Game
	if g == nil {
		g = chess.NewGame()
	}
	raw, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("encode game %d: %w", rec.GameID, err)
	}
	return string(raw), nil
}

const gameColumns = `game_id, game_name, white_username, black_username, game`

func (p *Postgres) CreateGame(ctx context.Context, rec *domain.GameRecord) error {
	raw, err := encodeGame(rec)
	if err != nil {
		return err
	}
	const q = `INSERT INTO games (` + gameColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err = p.db.ExecContext(ctx, q, rec.GameID, rec.GameName, rec.WhiteUsername, rec.BlackUsername, raw)
	if err != nil {
		return mapPgErr(err)
	}
	return nil
}

func (p *Postgres) GetGame(ctx context.Context, gameID int) (*domain.GameRecord, error) {
	const q = `SELECT ` + gameColumns + ` FROM games WHERE game_id = $1`
	rec, err := scanGame(p.db.QueryRowContext(ctx, q, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	return rec, nil
}

func (p *Postgres) ListGames(ctx context.Context) ([]*domain.GameRecord, error) {
	const q = `SELECT ` + gameColumns + ` FROM games ORDER BY game_id`
	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()
	out := []*domain.GameRecord{}
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateGame locks the row for the duration of fn.
func (p *Postgres) UpdateGame(ctx context.Context, gameID int, fn GameMutator) (*domain.GameRecord, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const sel = `SELECT ` + gameColumns + ` FROM games WHERE game_id = $1 FOR UPDATE`
	rec, err := scanGame(tx.QueryRowContext(ctx, sel, gameID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	rec.GameID = gameID
	raw, err := encodeGame(rec)
	if err != nil {
		return nil, err
	}
	const upd = `UPDATE games SET game_name = $2, white_username = $3, black_username = $4, game = $5 WHERE game_id = $1`
	if _, err := tx.ExecContext(ctx, upd, gameID, rec.GameName, rec.WhiteUsername, rec.BlackUsername, raw); err != nil {
		return nil, fmt.Errorf("update game: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

func (p *Postgres) DeleteGame(ctx context.Context, gameID int) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM games WHERE game_id = $1`, gameID)
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return expectOneRow(res)
}

// Clear truncates the tables in a single statement.
func (p *Postgres) Clear(ctx context.Context, cols ...Collection) error {
	cols, err := checkCollections(cols)
	if err != nil {
		return err
	}
	tables := make([]string, 0, len(cols))
	for _, c := range cols {
		tables = append(tables, pgTables[c])
	}
	if _, err := p.db.ExecContext(ctx, `TRUNCATE `+strings.Join(tables, ", ")); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}
