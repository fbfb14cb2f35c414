package chess

import (
	"fmt"
	"strings"
)

type TeamColor int

const (
	White TeamColor = iota
	Black
)

func (c TeamColor) Enemy() TeamColor {
	if c == White {
		return Black
	}
	return White
}

// String returns the wire name, "WHITE" or "BLACK".
func (c TeamColor) String() string {
	if c == Black {
		return "BLACK"
	}
	return "WHITE"
}

// Title returns the display name used in notifications.
func (c TeamColor) Title() string {
	if c == Black {
		return "Black"
	}
	return "White"
}

func (c TeamColor) forward() int {
	if c == Black {
		return -1
	}
	return 1
}

func (c TeamColor) pawnRow() int {
	if c == Black {
		return 7
	}
	return 2
}

func (c TeamColor) lastRow() int {
	if c == Black {
		return 1
	}
	return 8
}

func ParseTeamColor(s string) (TeamColor, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WHITE":
		return White, nil
	case "BLACK":
		return Black, nil
	default:
		return White, fmt.Errorf("unknown team color %q", s)
	}
}

func (c TeamColor) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *TeamColor) UnmarshalText(b []byte) error {
	v, err := ParseTeamColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

type PieceType int

const (
	King PieceType = iota
	Queen
	Bishop
	Knight
	Rook
	Pawn
)

var pieceTypeNames = [...]string{"KING", "QUEEN", "BISHOP", "KNIGHT", "ROOK", "PAWN"}

func (t PieceType) String() string {
	if t < King || t > Pawn {
		return fmt.Sprintf("PieceType(%d)", int(t))
	}
	return pieceTypeNames[t]
}

// Title returns the display name used in notifications, e.g. "Knight".
func (t PieceType) Title() string {
	s := t.String()
	return s[:1] + strings.ToLower(s[1:])
}

func ParsePieceType(s string) (PieceType, error) {
	up := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range pieceTypeNames {
		if name == up {
			return PieceType(i), nil
		}
	}
	return King, fmt.Errorf("unknown piece type %q", s)
}

func (t PieceType) MarshalText() ([]byte, error) {
	if t < King || t > Pawn {
		return nil, fmt.Errorf("invalid piece type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *PieceType) UnmarshalText(b []byte) error {
	v, err := ParsePieceType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Piece carries the mutable flags castling and en passant depend on.
type Piece struct {
	Team              TeamColor `json:"teamColor"`
	Type              PieceType `json:"pieceType"`
	HasMoved          bool      `json:"hasMoved"`
	JustDoubleStepped bool      `json:"justDoubleStepped"`
}

func NewPiece(team TeamColor, typ PieceType) *Piece {
	return &Piece{Team: team, Type: typ}
}

func (p *Piece) clone() *Piece {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
