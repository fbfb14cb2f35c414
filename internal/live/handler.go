package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/Cheese-Chess-Server/pkg/chessdto"
)

const maxCommandBytes = 64 << 10

type HandlerConfig struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	// OriginPatterns restricts cross-origin upgrades; "*" accepts any origin.
	OriginPatterns []string
}

// Handler upgrades requests to websocket sessions and feeds their commands
// to the broker.
type Handler struct {
	broker *Broker
	cfg    HandlerConfig
	logger *zap.Logger
}

func NewHandler(b *Broker, cfg HandlerConfig, logger *zap.Logger) *Handler {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{broker: b, cfg: cfg, logger: logger}
}

func (h *Handler) acceptOptions() *websocket.AcceptOptions {
	opts := &websocket.AcceptOptions{}
	for _, p := range h.cfg.OriginPatterns {
		if p == "*" {
			opts.InsecureSkipVerify = true
			return opts
		}
	}
	opts.OriginPatterns = h.cfg.OriginPatterns
	return opts
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.acceptOptions())
	if err != nil {
		h.logger.Warn("live_accept_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	conn.SetReadLimit(maxCommandBytes)

	sess := newSession(conn, h.cfg.PingInterval, h.cfg.WriteTimeout, h.logger)
	h.logger.Info("live_session_open", zap.String("session", sess.ID()), zap.String("remote", r.RemoteAddr))
	defer func() {
		h.broker.Disconnect(context.Background(), sess)
		sess.close(websocket.StatusNormalClosure, "")
		sess.wg.Wait()
		h.logger.Info("live_session_closed", zap.String("session", sess.ID()))
	}()

	for {
		typ, data, err := conn.Read(sess.ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageText {
			h.broker.sendError(sess, "error.malformed", nil)
			continue
		}
		var cmd chessdto.UserGameCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			h.broker.sendError(sess, "error.malformed", nil)
			continue
		}
		h.broker.Handle(sess.ctx, sess, &cmd)
	}
}
