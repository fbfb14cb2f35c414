package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-Chess-Server/internal/domain"
)

// maxTxRetries bounds optimistic WATCH retries before giving up.
const maxTxRetries = 8

// Redis stores each record as a JSON blob and keeps one set per collection
// listing the live keys.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// OpenRedis dials rawURL (redis:// or rediss://) and pings it.
func OpenRedis(ctx context.Context, rawURL, prefix string) (*Redis, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	opts, err := ParseRedisURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedis(rdb, prefix), nil
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "chess"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Host
	if u.Port() == "" {
		host += ":6379"
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: host, Username: u.User.Username(), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{ServerName: u.Hostname(), MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

func (s *Redis) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Redis) keyIndex(c Collection) string        { return s.prefix + ":" + string(c) + "s" }
func (s *Redis) key(c Collection, id string) string { return s.prefix + ":" + string(c) + ":" + id }

// withWatch runs fn under WATCH on keys, retrying on optimistic conflicts.
func (s *Redis) withWatch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis: too many transaction conflicts on %v", keys)
}

func (s *Redis) create(ctx context.Context, c Collection, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	key := s.key(c, id)
	return s.withWatch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicate
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, raw, 0)
			p.SAdd(ctx, s.keyIndex(c), id)
			return nil
		})
		return err
	}, key)
}

func (s *Redis) get(ctx context.Context, c Collection, id string, out any) error {
	raw, err := s.rdb.Get(ctx, s.key(c, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", c, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", c, id, err)
	}
	return nil
}

// list returns the raw blobs of every indexed record, sorted by id.
func (s *Redis) list(ctx context.Context, c Collection) ([][]byte, error) {
	ids, err := s.rdb.SMembers(ctx, s.keyIndex(c)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sortIDs(ids)
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(c, id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c, err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		str, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, []byte(str))
	}
	return out, nil
}

// sortIDs orders numeric ids numerically and everything else lexically.
func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
}

func (s *Redis) replace(ctx context.Context, c Collection, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c, err)
	}
	key := s.key(c, id)
	return s.withWatch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, raw, 0)
			return nil
		})
		return err
	}, key)
}

func (s *Redis) remove(ctx context.Context, c Collection, id string) error {
	key := s.key(c, id)
	return s.withWatch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			p.SRem(ctx, s.keyIndex(c), id)
			return nil
		})
		return err
	}, key)
}

func (s *Redis) CreateUser(ctx context.Context, u *domain.User) error {
	if u == nil || u.Username == "" {
		return fmt.Errorf("create user: empty username")
	}
	return s.create(ctx, Users, u.Username, u)
}

func (s *Redis) GetUser(ctx context.Context, username string) (*domain.User, error) {
	var u domain.User
	if err := s.get(ctx, Users, username, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Redis) ListUsers(ctx context.Context) ([]*domain.User, error) {
	blobs, err := s.list(ctx, Users)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.User, 0, len(blobs))
	for _, raw := range blobs {
		var u domain.User
		if err := json.Unmarshal(raw, &u); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		out = append(out, &u)
	}
	return out, nil
}

func (s *Redis) UpdateUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return ErrNotFound
	}
	return s.replace(ctx, Users, u.Username, u)
}

func (s *Redis) DeleteUser(ctx context.Context, username string) error {
	return s.remove(ctx, Users, username)
}

func (s *Redis) CreateAuth(ctx context.Context, a *domain.AuthToken) error {
	if a == nil || a.Token == "" {
		return fmt.Errorf("create auth: empty token")
	}
	return s.create(ctx, Auths, a.Token, a)
}

func (s *Redis) GetAuth(ctx context.Context, token string) (*domain.AuthToken, error) {
	var a domain.AuthToken
	if err := s.get(ctx, Auths, token, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Redis) ListAuths(ctx context.Context) ([]*domain.AuthToken, error) {
	blobs, err := s.list(ctx, Auths)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.AuthToken, 0, len(blobs))
	for _, raw := range blobs {
		var a domain.AuthToken
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("decode auth: %w", err)
		}
		out = append(out, &a)
	}
	return out, nil
}

func (s *Redis) DeleteAuth(ctx context.Context, token string) error {
	return s.remove(ctx, Auths, token)
}

func (s *Redis) CreateGame(ctx context.Context, rec *domain.GameRecord) error {
	if rec == nil || rec.GameID <= 0 {
		return fmt.Errorf("create game: invalid id")
	}
	return s.create(ctx, Games, strconv.Itoa(rec.GameID), rec)
}

func (s *Redis) GetGame(ctx context.Context, gameID int) (*domain.GameRecord, error) {
	var rec domain.GameRecord
	if err := s.get(ctx, Games, strconv.Itoa(gameID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Redis) ListGames(ctx context.Context) ([]*domain.GameRecord, error) {
	blobs, err := s.list(ctx, Games)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.GameRecord, 0, len(blobs))
	for _, raw := range blobs {
		var rec domain.GameRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode game: %w", err)
		}
		out = append(out, &rec)
	}
	return out, nil
}

func (s *Redis) UpdateGame(ctx context.Context, gameID int, fn GameMutator) (*domain.GameRecord, error) {
	key := s.key(Games, strconv.Itoa(gameID))
	var result *domain.GameRecord
	err := s.withWatch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var rec domain.GameRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode game %d: %w", gameID, err)
		}
		if err := fn(&rec); err != nil {
			return err
		}
		rec.GameID = gameID
		next, err := json.Marshal(&rec)
		if err != nil {
			return fmt.Errorf("encode game %d: %w", gameID, err)
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, next, 0)
			return nil
		})
		if err == nil {
			result = &rec
		}
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Redis) DeleteGame(ctx context.Context, gameID int) error {
	return s.remove(ctx, Games, strconv.Itoa(gameID))
}

// Clear deletes every indexed record and the indexes in one MULTI block.
func (s *Redis) Clear(ctx context.Context, cols ...Collection) error {
	cols, err := checkCollections(cols)
	if err != nil {
		return err
	}
	indexes := make([]string, len(cols))
	for i, c := range cols {
		indexes[i] = s.keyIndex(c)
	}
	return s.withWatch(ctx, func(tx *redis.Tx) error {
		var keys []string
		for _, c := range cols {
			ids, err := tx.SMembers(ctx, s.keyIndex(c)).Result()
			if err != nil {
				return err
			}
			for _, id := range ids {
				keys = append(keys, s.key(c, id))
			}
		}
		keys = append(keys, indexes...)
		_, err := tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, keys...)
			return nil
		})
		return err
	}, indexes...)
}
