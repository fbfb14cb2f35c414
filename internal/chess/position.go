package chess

import (
	"fmt"
	"strconv"
	"strings"
)

// Position is a board square. Row 1 is White's back rank, Col 1 is the A file.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func NewPosition(row, col int) Position { return Position{Row: row, Col: col} }

func (p Position) OnBoard() bool {
	return p.Row >= 1 && p.Row <= 8 && p.Col >= 1 && p.Col <= 8
}

func (p Position) Offset(dRow, dCol int) Position {
	return Position{Row: p.Row + dRow, Col: p.Col + dCol}
}

// String renders the square as column letter plus row digit, e.g. "E4".
func (p Position) String() string {
	if !p.OnBoard() {
		return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return string(rune('A'+p.Col-1)) + strconv.Itoa(p.Row)
}

// ParseSquare accepts algebraic squares such as "e4" or "E4".
func ParseSquare(s string) (Position, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return Position{}, fmt.Errorf("invalid square %q", s)
	}
	p := Position{Row: int(s[1]-'1') + 1, Col: int(s[0]-'a') + 1}
	if !p.OnBoard() {
		return Position{}, fmt.Errorf("invalid square %q", s)
	}
	return p, nil
}
