// Package chessclient talks to a chess server over HTTP and the live channel.
package chessclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
	"github.com/park285/Cheese-Chess-Server/internal/domain"
	"github.com/park285/Cheese-Chess-Server/pkg/chessdto"
)

// HeaderProvider injects extra per-request headers.
type HeaderProvider func() map[string]string

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry sets the attempt budget for idempotent calls.
func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL is the server root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Clear(ctx context.Context) error {
	return c.doJSON(ctx, fasthttp.MethodDelete, "/db", "", nil, nil, true)
}

func (c *Client) Register(ctx context.Context, username, password, email string) (*chessdto.AuthResult, error) {
	in := chessdto.RegisterRequest{Username: username, Password: password, Email: email}
	var out chessdto.AuthResult
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/user", "", in, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*chessdto.AuthResult, error) {
	in := chessdto.LoginRequest{Username: username, Password: password}
	var out chessdto.AuthResult
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/session", "", in, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.doJSON(ctx, fasthttp.MethodDelete, "/session", token, nil, nil, false)
}

func (c *Client) ListGames(ctx context.Context, token string) ([]*domain.GameRecord, error) {
	var out chessdto.ListGamesResult
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/game", token, nil, &out, true); err != nil {
		return nil, err
	}
	return out.Games, nil
}

func (c *Client) CreateGame(ctx context.Context, token, name string) (int, error) {
	var out chessdto.CreateGameResult
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/game", token, chessdto.CreateGameRequest{GameName: name}, &out, false); err != nil {
		return 0, err
	}
	return out.GameID, nil
}

func (c *Client) JoinGame(ctx context.Context, token string, color chess.TeamColor, gameID int) error {
	in := chessdto.JoinGameRequest{PlayerColor: color.String(), GameID: gameID}
	return c.doJSON(ctx, fasthttp.MethodPut, "/game", token, in, nil, true)
}

// BoardPNG fetches the rendered position of gameID as seen by perspective.
func (c *Client) BoardPNG(ctx context.Context, token string, gameID int, perspective chess.TeamColor) ([]byte, error) {
	q := url.Values{}
	q.Set("gameID", strconv.Itoa(gameID))
	q.Set("perspective", perspective.String())
	return c.do(ctx, fasthttp.MethodGet, "/game/board?"+q.Encode(), token, nil, true)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any, retry bool) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}
	body, err := c.do(ctx, method, path, token, payload, retry)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, payload []byte, retry bool) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	if payload != nil {
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == attempts {
				return nil, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = responseError(status, resp.Body())
			if attempt == attempts || !shouldRetryStatus(status) {
				return nil, lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return nil, lastErr
			}
			continue
		}
		return append([]byte(nil), resp.Body()...), nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, lastErr
}

func responseError(status int, body []byte) *chessdto.ResponseError {
	var e chessdto.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Message == "" {
		e.Message = truncate(string(body), 512)
	}
	return &chessdto.ResponseError{Status: status, Message: e.Message}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
