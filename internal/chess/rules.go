package chess

// generator produces pseudo-legal moves for one piece kind.
type generator func(b *Board, from Position, p *Piece) []Move

var generators = map[PieceType]generator{
	King:   kingMoves,
	Queen:  queenMoves,
	Bishop: bishopMoves,
	Knight: knightMoves,
	Rook:   rookMoves,
	Pawn:   pawnMoves,
}

var (
	orthogonal  = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonal    = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	allAround   = append(append([][2]int{}, orthogonal...), diagonal...)
	knightJumps = [][2]int{{2, 1}, {2, -1}, {-2, 1}, {-2, -1}, {1, 2}, {1, -2}, {-1, 2}, {-1, -2}}

	promotionChoices = []PieceType{Queen, Rook, Bishop, Knight}
)

// PseudoLegalMoves returns the moves of the piece on from that respect geometry
// and blocking. Self-check is not considered.
func PseudoLegalMoves(b *Board, from Position) []Move {
	p := b.Piece(from)
	if p == nil {
		return nil
	}
	gen, ok := generators[p.Type]
	if !ok {
		return nil
	}
	return gen(b, from, p)
}

func kingMoves(b *Board, from Position, p *Piece) []Move   { return step(b, from, p, allAround) }
func knightMoves(b *Board, from Position, p *Piece) []Move { return step(b, from, p, knightJumps) }
func rookMoves(b *Board, from Position, p *Piece) []Move   { return slide(b, from, p, orthogonal) }
func bishopMoves(b *Board, from Position, p *Piece) []Move { return slide(b, from, p, diagonal) }
func queenMoves(b *Board, from Position, p *Piece) []Move  { return slide(b, from, p, allAround) }

func step(b *Board, from Position, p *Piece, offsets [][2]int) []Move {
	var out []Move
	for _, d := range offsets {
		to := from.Offset(d[0], d[1])
		if !to.OnBoard() {
			continue
		}
		if q := b.Piece(to); q != nil && q.Team == p.Team {
			continue
		}
		out = append(out, Move{From: from, To: to})
	}
	return out
}

func slide(b *Board, from Position, p *Piece, dirs [][2]int) []Move {
	var out []Move
	for _, d := range dirs {
		for to := from.Offset(d[0], d[1]); to.OnBoard(); to = to.Offset(d[0], d[1]) {
			q := b.Piece(to)
			if q == nil {
				out = append(out, Move{From: from, To: to})
				continue
			}
			if q.Team != p.Team {
				out = append(out, Move{From: from, To: to})
			}
			break
		}
	}
	return out
}

func pawnMoves(b *Board, from Position, p *Piece) []Move {
	dir := p.Team.forward()
	var out []Move

	one := from.Offset(dir, 0)
	if one.OnBoard() && b.Piece(one) == nil {
		out = appendPawnMove(out, p, Move{From: from, To: one})
		two := from.Offset(2*dir, 0)
		if from.Row == p.Team.pawnRow() && two.OnBoard() && b.Piece(two) == nil {
			out = append(out, Move{From: from, To: two, Special: DoubleStep})
		}
	}

	for _, dc := range []int{-1, 1} {
		to := from.Offset(dir, dc)
		if q := b.Piece(to); q != nil && q.Team != p.Team {
			out = appendPawnMove(out, p, Move{From: from, To: to})
		}
	}
	return out
}

// appendPawnMove expands a move onto the far rank into one move per promotion choice.
func appendPawnMove(out []Move, p *Piece, m Move) []Move {
	if m.To.Row != p.Team.lastRow() {
		return append(out, m)
	}
	for _, t := range promotionChoices {
		pm := m
		pm.Promotion = Promote(t)
		out = append(out, pm)
	}
	return out
}

// attacked reports whether any piece of team by could capture on pos.
// Pawns attack diagonally whether or not the square is occupied.
func attacked(b *Board, pos Position, by TeamColor) bool {
	for _, from := range b.Occupied(by) {
		p := b.Piece(from)
		if p.Type == Pawn {
			if pos.Row-from.Row == by.forward() && (pos.Col-from.Col == 1 || pos.Col-from.Col == -1) {
				return true
			}
			continue
		}
		for _, m := range PseudoLegalMoves(b, from) {
			if m.To == pos {
				return true
			}
		}
	}
	return false
}

// applyMove moves pieces on b, including promotion substitution and the side
// effect of a tagged move. Flags other than HasMoved on castled rooks are the
// caller's concern.
func applyMove(b *Board, m Move) {
	p := b.Remove(m.From)
	if p == nil {
		return
	}
	if m.Promotion != nil {
		p = &Piece{Team: p.Team, Type: *m.Promotion, HasMoved: true}
	}
	b.Place(m.To, p)

	switch m.Special {
	case Castle:
		rookFrom, rookTo := Position{Row: m.From.Row, Col: 8}, m.To.Offset(0, -1)
		if m.Side == Left {
			rookFrom, rookTo = Position{Row: m.From.Row, Col: 1}, m.To.Offset(0, 1)
		}
		if rook := b.Remove(rookFrom); rook != nil {
			rook.HasMoved = true
			b.Place(rookTo, rook)
		}
	case EnPassant:
		b.Remove(Position{Row: m.From.Row, Col: m.To.Col})
	}
}
