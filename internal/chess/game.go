package chess

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrInvalidMove = errors.New("invalid move")
	ErrNoPiece     = fmt.Errorf("%w: no piece at source position", ErrInvalidMove)
	ErrWrongTurn   = fmt.Errorf("%w: not this side's turn", ErrInvalidMove)
	ErrGameOver    = fmt.Errorf("%w: game is over", ErrInvalidMove)
	ErrIllegalMove = fmt.Errorf("%w: move not allowed", ErrInvalidMove)
)

type Status int

const (
	InProgress Status = iota
	Won
	Drawn
)

func (s Status) String() string {
	switch s {
	case Won:
		return "WON"
	case Drawn:
		return "DRAW"
	default:
		return "IN_PROGRESS"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "IN_PROGRESS":
		*s = InProgress
	case "WON":
		*s = Won
	case "DRAW":
		*s = Drawn
	default:
		return fmt.Errorf("unknown game status %q", string(b))
	}
	return nil
}

// Game is a board plus whose turn it is and whether play has ended.
type Game struct {
	board  *Board
	turn   TeamColor
	status Status
	winner TeamColor
}

// NewGame starts from the standard position with White to move.
func NewGame() *Game {
	return &Game{board: NewStartingBoard(), turn: White}
}

func (g *Game) Board() *Board { return g.board }

func (g *Game) SetBoard(b *Board) { g.board = b }

func (g *Game) Turn() TeamColor { return g.turn }

func (g *Game) SetTurn(team TeamColor) { g.turn = team }

func (g *Game) Status() Status { return g.status }

func (g *Game) IsOver() bool { return g.status != InProgress }

// Winner returns the winning team when the game was won.
func (g *Game) Winner() (TeamColor, bool) {
	if g.status != Won {
		return White, false
	}
	return g.winner, true
}

func (g *Game) Clone() *Game {
	cp := *g
	cp.board = g.board.Clone()
	return &cp
}

func (g *Game) Equal(o *Game) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.turn != o.turn || g.status != o.status {
		return false
	}
	if g.status == Won && g.winner != o.winner {
		return false
	}
	return g.board.Equal(o.board)
}

// ValidMoves returns the legal moves of the piece on from, including castling
// and en passant. An empty square yields no moves.
func (g *Game) ValidMoves(from Position) []Move {
	p := g.board.Piece(from)
	if p == nil {
		return nil
	}
	var out []Move
	for _, m := range PseudoLegalMoves(g.board, from) {
		if g.leavesKingSafe(m, p.Team) {
			out = append(out, m)
		}
	}
	out = append(out, g.castleMoves(from, p)...)
	for _, m := range g.enPassantMoves(from, p) {
		if g.leavesKingSafe(m, p.Team) {
			out = append(out, m)
		}
	}
	return out
}

func (g *Game) leavesKingSafe(m Move, team TeamColor) bool {
	sim := g.board.Clone()
	applyMove(sim, m)
	king, ok := sim.KingPosition(team)
	if !ok {
		return true
	}
	return !attacked(sim, king, team.Enemy())
}

func (g *Game) castleMoves(from Position, king *Piece) []Move {
	if king.Type != King || king.HasMoved {
		return nil
	}
	enemy := king.Team.Enemy()
	var out []Move
	for _, side := range []Side{Left, Right} {
		rookCol, d := 1, -1
		if side == Right {
			rookCol, d = 8, 1
		}
		rook := g.board.Piece(Position{Row: from.Row, Col: rookCol})
		if rook == nil || rook.Type != Rook || rook.Team != king.Team || rook.HasMoved {
			continue
		}
		empty := true
		for col := from.Col + d; col != rookCol; col += d {
			if g.board.Piece(Position{Row: from.Row, Col: col}) != nil {
				empty = false
				break
			}
		}
		if !empty {
			continue
		}
		to := from.Offset(0, 2*d)
		if !to.OnBoard() {
			continue
		}
		safe := true
		for i := 0; i <= 2; i++ {
			if attacked(g.board, from.Offset(0, i*d), enemy) {
				safe = false
				break
			}
		}
		if safe {
			out = append(out, Move{From: from, To: to, Special: Castle, Side: side})
		}
	}
	return out
}

func (g *Game) enPassantMoves(from Position, pawn *Piece) []Move {
	if pawn.Type != Pawn {
		return nil
	}
	var out []Move
	for _, side := range []Side{Left, Right} {
		dc := -1
		if side == Right {
			dc = 1
		}
		q := g.board.Piece(from.Offset(0, dc))
		if q == nil || q.Type != Pawn || q.Team == pawn.Team || !q.JustDoubleStepped {
			continue
		}
		to := from.Offset(pawn.Team.forward(), dc)
		if !to.OnBoard() || g.board.Piece(to) != nil {
			continue
		}
		out = append(out, Move{From: from, To: to, Special: EnPassant, Side: side})
	}
	return out
}

// MakeMove applies m for the side to move and returns the matched engine move,
// which carries the special tag. Failures wrap ErrInvalidMove.
func (g *Game) MakeMove(m Move) (Move, error) {
	if g.IsOver() {
		return Move{}, ErrGameOver
	}
	p := g.board.Piece(m.From)
	if p == nil {
		return Move{}, ErrNoPiece
	}
	if p.Team != g.turn {
		return Move{}, ErrWrongTurn
	}
	matched, ok := findMove(g.ValidMoves(m.From), m)
	if !ok {
		return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, m.UCI())
	}

	for _, pos := range g.board.Occupied(g.turn) {
		g.board.Piece(pos).JustDoubleStepped = false
	}
	p.HasMoved = true
	applyMove(g.board, matched)
	if matched.Special == DoubleStep {
		g.board.Piece(matched.To).JustDoubleStepped = true
	}

	mover := g.turn
	g.turn = mover.Enemy()
	switch {
	case g.IsInCheckmate(g.turn):
		g.status, g.winner = Won, mover
	case g.IsInStalemate(g.turn):
		g.status = Drawn
	}
	return matched, nil
}

func (g *Game) IsInCheck(team TeamColor) bool {
	king, ok := g.board.KingPosition(team)
	if !ok {
		return false
	}
	return attacked(g.board, king, team.Enemy())
}

func (g *Game) IsInCheckmate(team TeamColor) bool {
	return g.IsInCheck(team) && !g.hasLegalMove(team)
}

func (g *Game) IsInStalemate(team TeamColor) bool {
	return !g.IsInCheck(team) && !g.hasLegalMove(team)
}

func (g *Game) hasLegalMove(team TeamColor) bool {
	for _, pos := range g.board.Occupied(team) {
		if len(g.ValidMoves(pos)) > 0 {
			return true
		}
	}
	return false
}

// Resign ends the game in the enemy's favour.
func (g *Game) Resign(team TeamColor) error {
	if g.IsOver() {
		return ErrGameOver
	}
	g.status, g.winner = Won, team.Enemy()
	return nil
}

type gameJSON struct {
	Board  *Board     `json:"board"`
	Turn   TeamColor  `json:"turn"`
	Status Status     `json:"status"`
	Winner *TeamColor `json:"winner"`
}

func (g *Game) MarshalJSON() ([]byte, error) {
	out := gameJSON{Board: g.board, Turn: g.turn, Status: g.status}
	if w, ok := g.Winner(); ok {
		out.Winner = &w
	}
	return json.Marshal(out)
}

func (g *Game) UnmarshalJSON(data []byte) error {
	var in gameJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Board == nil {
		return errors.New("game json: missing board")
	}
	if in.Status == Won && in.Winner == nil {
		return errors.New("game json: won without winner")
	}
	g.board, g.turn, g.status, g.winner = in.Board, in.Turn, in.Status, White
	if in.Status == Won {
		g.winner = *in.Winner
	}
	return nil
}
