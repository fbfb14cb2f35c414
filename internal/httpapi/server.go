// Package httpapi exposes the account and game operations over JSON/HTTP and
// mounts the live channel.
package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
	"github.com/park285/Cheese-Chess-Server/internal/domain"
	"github.com/park285/Cheese-Chess-Server/internal/store"
	"github.com/park285/Cheese-Chess-Server/pkg/chessdto"
)

const maxBodyBytes = 1 << 20

type Accounts interface {
	Register(ctx context.Context, username, password, email string) (*chessdto.AuthResult, error)
	Login(ctx context.Context, username, password string) (*chessdto.AuthResult, error)
	Logout(ctx context.Context, token string) error
}

type Games interface {
	NewGame(ctx context.Context, token, name string) (int, error)
	ListGames(ctx context.Context, token string) ([]*domain.GameRecord, error)
	Get(ctx context.Context, token string, gameID int) (*domain.GameRecord, error)
	JoinGame(ctx context.Context, token, color string, gameID int) error
}

type BoardRenderer interface {
	PNG(ctx context.Context, g *chess.Game, perspective chess.TeamColor) ([]byte, error)
}

// Clearer wipes persisted state; store.Store satisfies it.
type Clearer interface {
	Clear(ctx context.Context, cols ...store.Collection) error
}

type Options struct {
	// Live is mounted at LivePath when non-nil.
	Live           http.Handler
	LivePath       string
	AllowedOrigins []string
}

type Server struct {
	accounts Accounts
	games    Games
	boards   BoardRenderer
	db       Clearer
	logger   *zap.Logger
	router   *mux.Router
	handler  http.Handler
}

func NewServer(accounts Accounts, games Games, boards BoardRenderer, db Clearer, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		accounts: accounts,
		games:    games,
		boards:   boards,
		db:       db,
		logger:   logger,
		router:   mux.NewRouter(),
	}
	s.setupRoutes(opts)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	s.handler = s.accessLog(c.Handler(s.router))
	return s
}

func (s *Server) setupRoutes(opts Options) {
	s.router.HandleFunc("/db", s.handleClear).Methods(http.MethodDelete)
	s.router.HandleFunc("/user", s.handleRegister).Methods(http.MethodPost)
	s.router.HandleFunc("/session", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/session", s.handleLogout).Methods(http.MethodDelete)
	s.router.HandleFunc("/game", s.handleListGames).Methods(http.MethodGet)
	s.router.HandleFunc("/game", s.handleCreateGame).Methods(http.MethodPost)
	s.router.HandleFunc("/game", s.handleJoinGame).Methods(http.MethodPut)
	s.router.HandleFunc("/game/board", s.handleBoard).Methods(http.MethodGet)

	if opts.Live != nil {
		path := opts.LivePath
		if path == "" {
			path = "/ws"
		}
		s.router.Handle(path, opts.Live)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Clear(r.Context()); err != nil {
		s.respondError(w, r, chessdto.Internal(fmt.Errorf("clear: %w", err)))
		return
	}
	s.logger.Info("db_clear")
	respondJSON(w, http.StatusOK, chessdto.Empty{})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req chessdto.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.accounts.Register(r.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req chessdto.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	res, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Logout(r.Context(), authToken(r)); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, chessdto.Empty{})
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.games.ListGames(r.Context(), authToken(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if games == nil {
		games = []*domain.GameRecord{}
	}
	respondJSON(w, http.StatusOK, chessdto.ListGamesResult{Games: games})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req chessdto.CreateGameRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	id, err := s.games.NewGame(r.Context(), authToken(r), req.GameName)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, chessdto.CreateGameResult{GameID: id})
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	var req chessdto.JoinGameRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if err := s.games.JoinGame(r.Context(), authToken(r), req.PlayerColor, req.GameID); err != nil {
		s.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, chessdto.Empty{})
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	id, err := strconv.Atoi(strings.TrimSpace(q.Get("gameID")))
	if err != nil || id <= 0 {
		s.respondError(w, r, chessdto.New(chessdto.KindBadRequest, "gameID must be a positive integer"))
		return
	}
	perspective := chess.White
	if raw := strings.TrimSpace(q.Get("perspective")); raw != "" {
		if perspective, err = chess.ParseTeamColor(raw); err != nil {
			s.respondError(w, r, chessdto.Wrap(chessdto.KindBadRequest, err))
			return
		}
	}
	rec, err := s.games.Get(r.Context(), authToken(r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	img, err := s.boards.PNG(r.Context(), rec.Game, perspective)
	if err != nil {
		s.respondError(w, r, chessdto.Internal(fmt.Errorf("render board %d: %w", id, err)))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img)
}

func authToken(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Authorization"))
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return chessdto.New(chessdto.KindBadRequest, "request body is required")
		}
		return chessdto.Wrap(chessdto.KindBadRequest, fmt.Errorf("decode body: %w", err))
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes the public form of err; internal causes only reach the log.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	de := chessdto.AsDomain(err)
	if de.Kind == chessdto.KindInternal {
		s.logger.Error("http_internal_error", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		s.logger.Debug("http_request_rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	respondJSON(w, de.Status(), chessdto.ErrorResponse{Message: de.PublicMessage()})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

// Hijack keeps websocket upgrades working behind the access log.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}
