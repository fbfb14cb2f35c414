package chessbuilder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Chess-Server/internal/config"
	"github.com/park285/Cheese-Chess-Server/internal/httpapi"
	"github.com/park285/Cheese-Chess-Server/internal/live"
	"github.com/park285/Cheese-Chess-Server/internal/msgcat"
	"github.com/park285/Cheese-Chess-Server/internal/service/auth"
	"github.com/park285/Cheese-Chess-Server/internal/service/game"
	"github.com/park285/Cheese-Chess-Server/internal/service/render"
	"github.com/park285/Cheese-Chess-Server/internal/store"
)

// Deps is the assembled server.
type Deps struct {
	Store   store.Store
	Auth    *auth.Service
	Games   *game.Service
	Broker  *live.Broker
	Handler http.Handler
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}

	authSvc := auth.NewService(st, auth.Config{BcryptCost: cfg.BcryptCost}, logger.Named("auth"))
	gameSvc := game.NewService(st, authSvc, logger.Named("game"))
	broker := live.NewBroker(st, authSvc, cat, logger.Named("live"))
	liveHandler := live.NewHandler(broker, live.HandlerConfig{
		PingInterval:   time.Duration(cfg.WSPingIntervalSec) * time.Second,
		WriteTimeout:   time.Duration(cfg.WSWriteTimeoutSec) * time.Second,
		OriginPatterns: cfg.CORSAllowedOrigins,
	}, logger.Named("live"))

	api := httpapi.NewServer(authSvc, gameSvc, render.NewRenderer(cfg.BoardSquareSize), st, httpapi.Options{
		Live:           liveHandler,
		LivePath:       cfg.WSPath,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, logger.Named("http"))

	logger.Info("server_assembled", zap.String("store", cfg.StoreBackend), zap.String("ws_path", cfg.WSPath))
	return &Deps{Store: st, Auth: authSvc, Games: gameSvc, Broker: broker, Handler: api}, nil
}

func openStore(ctx context.Context, cfg *config.AppConfig) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory, "":
		return store.NewMemory(), nil
	case config.BackendPostgres:
		st, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return st, nil
	case config.BackendRedis:
		st, err := store.OpenRedis(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("init redis store: %w", err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func (d *Deps) Close() error {
	if d == nil || d.Store == nil {
		return nil
	}
	if err := d.Store.Close(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
