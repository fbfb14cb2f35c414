package chess

import "strings"

// SpecialKind tags engine-generated moves that carry a side effect.
type SpecialKind int

const (
	NoSpecial SpecialKind = iota
	Castle
	EnPassant
	DoubleStep
)

// Side is the board half a castle or en passant capture heads to; Left is toward column 1.
type Side int

const (
	Left Side = iota
	Right
)

type Move struct {
	From      Position   `json:"startPosition"`
	To        Position   `json:"endPosition"`
	Promotion *PieceType `json:"promotionPiece"`

	Special SpecialKind `json:"-"`
	Side    Side        `json:"-"`
}

func NewMove(from, to Position, promotion *PieceType) Move {
	return Move{From: from, To: to, Promotion: promotion}
}

// Promote returns an optional promotion value for NewMove.
func Promote(t PieceType) *PieceType { return &t }

// Equal compares squares and promotion only; the special tag is ignored so a
// plain client move matches the engine's tagged candidate.
func (m Move) Equal(o Move) bool {
	if m.From != o.From || m.To != o.To {
		return false
	}
	if m.Promotion == nil || o.Promotion == nil {
		return m.Promotion == nil && o.Promotion == nil
	}
	return *m.Promotion == *o.Promotion
}

// UCI renders the move in long algebraic form, e.g. "e7e8q".
func (m Move) UCI() string {
	s := strings.ToLower(m.From.String() + m.To.String())
	if m.Promotion != nil {
		switch *m.Promotion {
		case Queen:
			s += "q"
		case Rook:
			s += "r"
		case Bishop:
			s += "b"
		case Knight:
			s += "n"
		}
	}
	return s
}

func (m Move) String() string { return m.UCI() }

func findMove(moves []Move, m Move) (Move, bool) {
	for _, c := range moves {
		if c.Equal(m) {
			return c, true
		}
	}
	return Move{}, false
}

// ContainsMove reports whether moves holds a move equal to m.
func ContainsMove(moves []Move, m Move) bool {
	_, ok := findMove(moves, m)
	return ok
}
