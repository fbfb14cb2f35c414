// Package live fans game state and notifications out to every session
// subscribed to a game and applies the commands those sessions send.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
	"github.com/park285/Cheese-Chess-Server/internal/domain"
	"github.com/park285/Cheese-Chess-Server/internal/msgcat"
	"github.com/park285/Cheese-Chess-Server/internal/store"
	"github.com/park285/Cheese-Chess-Server/pkg/chessdto"
)

// Subscriber is the outbound half of a live session. Send must not block;
// the broker treats any error as a dead subscriber.
type Subscriber interface {
	ID() string
	Send(payload []byte) error
}

// Authenticator resolves a token to a username.
type Authenticator interface {
	CheckAuth(ctx context.Context, token string) (string, error)
}

type Broker struct {
	store  store.Store
	auth   Authenticator
	cat    *msgcat.Catalog
	logger *zap.Logger

	locksMu sync.Mutex
	locks   map[int]*gameLock

	// mu guards subs and joined.
	mu   sync.Mutex
	subs map[int]map[string]Subscriber
	// joined maps a session id to the username it connected as, per game.
	joined map[string]map[int]string
}

// gameLock is dropped from Broker.locks once refs reaches zero.
type gameLock struct {
	mu   sync.Mutex
	refs int
}

func NewBroker(st store.Store, auth Authenticator, cat *msgcat.Catalog, logger *zap.Logger) *Broker {
	if cat == nil {
		cat = msgcat.MustDefault()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		store:  st,
		auth:   auth,
		cat:    cat,
		logger: logger,
		locks:  make(map[int]*gameLock),
		subs:   make(map[int]map[string]Subscriber),
		joined: make(map[string]map[int]string),
	}
}

// lockGame serializes every command touching gameID. The entry lives only
// while some caller holds or waits on it.
func (b *Broker) lockGame(gameID int) func() {
	b.locksMu.Lock()
	l, ok := b.locks[gameID]
	if !ok {
		l = &gameLock{}
		b.locks[gameID] = l
	}
	l.refs++
	b.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		b.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(b.locks, gameID)
		}
		b.locksMu.Unlock()
	}
}

// Subscribers lists the session ids subscribed to gameID, sorted.
func (b *Broker) Subscribers(gameID int) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.subs[gameID]))
	for id := range b.subs[gameID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (b *Broker) subscribe(gameID int, sub Subscriber, user string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[gameID]
	if !ok {
		set = make(map[string]Subscriber)
		b.subs[gameID] = set
	}
	set[sub.ID()] = sub
	games, ok := b.joined[sub.ID()]
	if !ok {
		games = make(map[int]string)
		b.joined[sub.ID()] = games
	}
	games[gameID] = user
}

func (b *Broker) unsubscribe(gameID int, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[gameID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(b.subs, gameID)
		}
	}
	if games, ok := b.joined[sessionID]; ok {
		delete(games, gameID)
		if len(games) == 0 {
			delete(b.joined, sessionID)
		}
	}
}

// Handle validates cmd and dispatches it. Every failure is reported to sub
// alone as an ERROR message.
func (b *Broker) Handle(ctx context.Context, sub Subscriber, cmd *chessdto.UserGameCommand) {
	if cmd == nil {
		b.sendError(sub, "error.malformed", nil)
		return
	}
	switch cmd.CommandType {
	case chessdto.CommandConnect, chessdto.CommandMakeMove, chessdto.CommandLeave, chessdto.CommandResign:
	default:
		b.sendError(sub, "error.unknown_command", nil)
		return
	}
	if cmd.GameID <= 0 {
		b.sendError(sub, "error.game_id_required", nil)
		return
	}
	if cmd.AuthToken == "" {
		b.sendError(sub, "error.token_required", nil)
		return
	}

	user, err := b.auth.CheckAuth(ctx, cmd.AuthToken)
	if err != nil {
		if errors.Is(err, chessdto.ErrUnauthorized) {
			b.sendError(sub, "error.token_missing", nil)
		} else {
			b.internal(sub, "check_auth", err)
		}
		return
	}
	if _, ok := b.loadGame(ctx, sub, cmd.GameID); !ok {
		return
	}

	unlock := b.lockGame(cmd.GameID)
	defer unlock()

	// Re-read under the lock; an earlier command may have changed the game.
	rec, ok := b.loadGame(ctx, sub, cmd.GameID)
	if !ok {
		return
	}

	switch cmd.CommandType {
	case chessdto.CommandConnect:
		b.connect(sub, user, rec)
	case chessdto.CommandMakeMove:
		b.makeMove(ctx, sub, user, rec, cmd.Move)
	case chessdto.CommandLeave:
		b.leave(ctx, sub, user, rec, true)
	case chessdto.CommandResign:
		b.resign(ctx, sub, user, rec)
	}
}

// loadGame reports a missing game or a store failure to sub.
func (b *Broker) loadGame(ctx context.Context, sub Subscriber, gameID int) (*domain.GameRecord, bool) {
	rec, err := b.store.GetGame(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		b.sendError(sub, "error.game_missing", nil)
		return nil, false
	}
	if err != nil {
		b.internal(sub, "get_game", err)
		return nil, false
	}
	return rec, true
}

func (b *Broker) connect(sub Subscriber, user string, rec *domain.GameRecord) {
	b.subscribe(rec.GameID, sub, user)
	b.logger.Info("live_connect", zap.Int("game_id", rec.GameID), zap.String("user", user), zap.String("session", sub.ID()))

	role := b.cat.Text("live.observer", nil)
	if team, seated := rec.TeamOf(user); seated {
		role = team.String()
	}
	b.sendTo(sub, chessdto.LoadGame(rec.Game))
	b.broadcast(rec.GameID, b.notification("live.connect", map[string]string{"User": user, "Role": role}), sub.ID())
}

func (b *Broker) makeMove(ctx context.Context, sub Subscriber, user string, rec *domain.GameRecord, move *chess.Move) {
	if move == nil {
		b.sendError(sub, "error.move_required", nil)
		return
	}
	team, seated := rec.TeamOf(user)
	if !seated {
		b.sendError(sub, "error.observer", nil)
		return
	}
	if b.rejectFinished(sub, rec.Game, "error.won_no_moves", "error.draw_no_moves") {
		return
	}
	piece := rec.Game.Board().Piece(move.From)
	if piece == nil {
		b.sendError(sub, "error.no_piece", nil)
		return
	}
	if rec.Seat(piece.Team) == user {
		team = piece.Team
	}
	if piece.Team != team {
		b.sendError(sub, "error.not_own_piece", nil)
		return
	}
	if rec.Game.Turn() != team {
		b.sendError(sub, "error.not_your_turn", nil)
		return
	}

	m := chess.NewMove(move.From, move.To, move.Promotion)
	updated, err := b.store.UpdateGame(ctx, rec.GameID, func(r *domain.GameRecord) error {
		_, err := r.Game.MakeMove(m)
		return err
	})
	switch {
	case errors.Is(err, chess.ErrWrongTurn):
		b.sendError(sub, "error.not_your_turn", nil)
		return
	case errors.Is(err, chess.ErrInvalidMove):
		b.sendError(sub, "error.invalid_move", nil)
		return
	case err != nil:
		b.internal(sub, "update_game", err)
		return
	}
	b.logger.Info("live_move", zap.Int("game_id", rec.GameID), zap.String("user", user), zap.String("move", m.UCI()))

	b.broadcast(rec.GameID, chessdto.LoadGame(updated.Game), "")
	moved := updated.Game.Board().Piece(m.To)
	pieceName := piece.Type.Title()
	if moved != nil {
		pieceName = moved.Type.Title()
	}
	b.broadcast(rec.GameID, b.notification("live.move", map[string]string{
		"User": user, "Piece": pieceName, "Square": m.To.String(),
	}), sub.ID())

	switch opponent := team.Enemy(); {
	case updated.Game.Status() == chess.Won:
		b.broadcast(rec.GameID, b.notification("live.checkmate", map[string]string{"User": user, "Team": team.Title()}), "")
	case updated.Game.Status() == chess.Drawn:
		b.broadcast(rec.GameID, b.notification("live.stalemate", nil), "")
	case updated.Game.IsInCheck(opponent):
		b.broadcast(rec.GameID, b.notification("live.check", nil), "")
	}
}

// leave vacates any seat user holds and unsubscribes sub. Observers leaving
// on disconnect are only unsubscribed; announce controls the notification.
func (b *Broker) leave(ctx context.Context, sub Subscriber, user string, rec *domain.GameRecord, announce bool) {
	if _, seated := rec.TeamOf(user); seated {
		_, err := b.store.UpdateGame(ctx, rec.GameID, func(r *domain.GameRecord) error {
			for _, team := range []chess.TeamColor{chess.White, chess.Black} {
				if r.Seat(team) == user {
					r.SetSeat(team, "")
				}
			}
			return nil
		})
		if err != nil {
			b.internal(sub, "update_game", err)
			return
		}
		announce = true
	}
	b.unsubscribe(rec.GameID, sub.ID())
	b.logger.Info("live_leave", zap.Int("game_id", rec.GameID), zap.String("user", user), zap.String("session", sub.ID()))
	if announce {
		b.broadcast(rec.GameID, b.notification("live.leave", map[string]string{"User": user}), sub.ID())
	}
}

func (b *Broker) resign(ctx context.Context, sub Subscriber, user string, rec *domain.GameRecord) {
	team, seated := rec.TeamOf(user)
	if !seated {
		b.sendError(sub, "error.observer", nil)
		return
	}
	if b.rejectFinished(sub, rec.Game, "error.won_no_resign", "error.draw_no_resign") {
		return
	}
	if turn := rec.Game.Turn(); rec.Seat(turn) == user {
		team = turn
	}
	_, err := b.store.UpdateGame(ctx, rec.GameID, func(r *domain.GameRecord) error {
		return r.Game.Resign(team)
	})
	if err != nil {
		b.internal(sub, "update_game", err)
		return
	}
	b.logger.Info("live_resign", zap.Int("game_id", rec.GameID), zap.String("user", user))
	b.broadcast(rec.GameID, b.notification("live.resign", map[string]string{
		"User": user, "Winner": team.Enemy().Title(),
	}), "")
}

// rejectFinished reports a finished game to sub using the won or draw text.
func (b *Broker) rejectFinished(sub Subscriber, g *chess.Game, wonKey, drawKey string) bool {
	if !g.IsOver() {
		return false
	}
	if winner, ok := g.Winner(); ok {
		b.sendError(sub, wonKey, map[string]string{"Winner": winner.Title()})
	} else {
		b.sendError(sub, drawKey, nil)
	}
	return true
}

// Disconnect runs the leave path for every game the session subscribed to,
// as the user it connected as. The token may have been logged out since.
func (b *Broker) Disconnect(ctx context.Context, sub Subscriber) {
	b.mu.Lock()
	games := make(map[int]string, len(b.joined[sub.ID()]))
	for id, user := range b.joined[sub.ID()] {
		games[id] = user
	}
	b.mu.Unlock()

	for gameID, user := range games {
		b.disconnectGame(ctx, sub, gameID, user)
	}
	b.logger.Debug("live_disconnect", zap.String("session", sub.ID()), zap.Int("games", len(games)))
}

func (b *Broker) disconnectGame(ctx context.Context, sub Subscriber, gameID int, user string) {
	unlock := b.lockGame(gameID)
	defer unlock()

	rec, err := b.store.GetGame(ctx, gameID)
	if err != nil {
		b.unsubscribe(gameID, sub.ID())
		return
	}
	b.leave(ctx, sub, user, rec, false)
}

func (b *Broker) notification(key string, data any) *chessdto.ServerMessage {
	return chessdto.Notification(b.cat.Text(key, data))
}

func (b *Broker) sendError(sub Subscriber, key string, data any) {
	b.sendTo(sub, chessdto.ErrorMessage(b.cat.Text(key, data)))
}

func (b *Broker) internal(sub Subscriber, op string, err error) {
	b.logger.Error("live_internal_error", zap.String("op", op), zap.String("session", sub.ID()), zap.Error(err))
	b.sendError(sub, "error.internal", nil)
}

func (b *Broker) sendTo(sub Subscriber, msg *chessdto.ServerMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("live_encode_error", zap.Error(err))
		return
	}
	if err := sub.Send(payload); err != nil {
		b.logger.Debug("live_send_failed", zap.String("session", sub.ID()), zap.Error(err))
	}
}

// broadcast encodes msg once and hands it to every subscriber of gameID
// except the session named by exclude. Failing subscribers are evicted.
func (b *Broker) broadcast(gameID int, msg *chessdto.ServerMessage, exclude string) {
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("live_encode_error", zap.Int("game_id", gameID), zap.Error(err))
		return
	}
	b.mu.Lock()
	targets := make([]Subscriber, 0, len(b.subs[gameID]))
	for id, s := range b.subs[gameID] {
		if id != exclude {
			targets = append(targets, s)
		}
	}
	b.mu.Unlock()

	for _, s := range targets {
		if err := s.Send(payload); err != nil {
			b.logger.Warn("live_broadcast_evict", zap.Int("game_id", gameID), zap.String("session", s.ID()), zap.Error(err))
			b.unsubscribe(gameID, s.ID())
		}
	}
}
