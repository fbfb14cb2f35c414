package live

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const outboundQueueSize = 64

var (
	ErrSessionClosed = errors.New("live: session closed")
	ErrQueueFull     = errors.New("live: outbound queue full")
)

// Session owns one websocket connection. Only its writer goroutine writes
// to the connection; Send enqueues.
type Session struct {
	id     string
	conn   *websocket.Conn
	out    chan []byte
	logger *zap.Logger

	pingInterval time.Duration
	writeTimeout time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSession(conn *websocket.Conn, pingInterval, writeTimeout time.Duration, logger *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:           uuid.NewString(),
		conn:         conn,
		out:          make(chan []byte, outboundQueueSize),
		logger:       logger,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s
}

func (s *Session) ID() string { return s.id }

// Send queues payload without blocking. A full queue closes the session.
func (s *Session) Send(payload []byte) error {
	select {
	case <-s.ctx.Done():
		return ErrSessionClosed
	default:
	}
	select {
	case s.out <- payload:
		return nil
	default:
		s.close(websocket.StatusPolicyViolation, "outbound queue full")
		return ErrQueueFull
	}
}

func (s *Session) writeLoop() {
	defer s.wg.Done()
	var tick <-chan time.Time
	if s.pingInterval > 0 {
		t := time.NewTicker(s.pingInterval)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case payload := <-s.out:
			ctx, cancel := context.WithTimeout(s.ctx, s.writeTimeout)
			err := s.conn.Write(ctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				s.logger.Debug("live_write_failed", zap.String("session", s.id), zap.Error(err))
				s.close(websocket.StatusGoingAway, "write failed")
				return
			}
		case <-tick:
			ctx, cancel := context.WithTimeout(s.ctx, s.writeTimeout)
			err := s.conn.Ping(ctx)
			cancel()
			if err != nil {
				s.logger.Debug("live_ping_failed", zap.String("session", s.id), zap.Error(err))
				s.close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}

// close stops the writer and closes the transport once; safe to call from
// any goroutine.
func (s *Session) close(code websocket.StatusCode, reason string) {
	s.closeOnce.Do(func() {
		s.cancel()
		go func() { _ = s.conn.Close(code, reason) }()
	})
}
