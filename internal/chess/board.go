package chess

import (
	"encoding/json"
	"fmt"
)

// Board maps squares to pieces; a nil entry is an empty square.
type Board struct {
	squares [8][8]*Piece
}

func NewBoard() *Board { return &Board{} }

// NewStartingBoard returns a board in the standard initial arrangement.
func NewStartingBoard() *Board {
	b := NewBoard()
	b.Reset()
	return b
}

var backRank = [8]PieceType{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

func (b *Board) Reset() {
	b.squares = [8][8]*Piece{}
	for col := 1; col <= 8; col++ {
		b.Place(Position{Row: 1, Col: col}, NewPiece(White, backRank[col-1]))
		b.Place(Position{Row: 2, Col: col}, NewPiece(White, Pawn))
		b.Place(Position{Row: 7, Col: col}, NewPiece(Black, Pawn))
		b.Place(Position{Row: 8, Col: col}, NewPiece(Black, backRank[col-1]))
	}
}

// Piece returns the piece on pos, or nil for an empty or off-board square.
func (b *Board) Piece(pos Position) *Piece {
	if !pos.OnBoard() {
		return nil
	}
	return b.squares[pos.Row-1][pos.Col-1]
}

func (b *Board) Place(pos Position, p *Piece) {
	if !pos.OnBoard() {
		return
	}
	b.squares[pos.Row-1][pos.Col-1] = p
}

func (b *Board) Remove(pos Position) *Piece {
	p := b.Piece(pos)
	if p != nil {
		b.squares[pos.Row-1][pos.Col-1] = nil
	}
	return p
}

// Clone copies the piece records too, so flag changes on the copy never leak back.
func (b *Board) Clone() *Board {
	cp := &Board{}
	for r := range b.squares {
		for c := range b.squares[r] {
			cp.squares[r][c] = b.squares[r][c].clone()
		}
	}
	return cp
}

// Occupied lists the squares holding team's pieces in row-major order.
func (b *Board) Occupied(team TeamColor) []Position {
	var out []Position
	for r := 1; r <= 8; r++ {
		for c := 1; c <= 8; c++ {
			if p := b.squares[r-1][c-1]; p != nil && p.Team == team {
				out = append(out, Position{Row: r, Col: c})
			}
		}
	}
	return out
}

func (b *Board) KingPosition(team TeamColor) (Position, bool) {
	for _, pos := range b.Occupied(team) {
		if b.Piece(pos).Type == King {
			return pos, true
		}
	}
	return Position{}, false
}

func (b *Board) Equal(o *Board) bool {
	if b == nil || o == nil {
		return b == o
	}
	for r := range b.squares {
		for c := range b.squares[r] {
			x, y := b.squares[r][c], o.squares[r][c]
			if (x == nil) != (y == nil) {
				return false
			}
			if x != nil && *x != *y {
				return false
			}
		}
	}
	return true
}

// MarshalJSON encodes the board as 8 rows of 8 nullable pieces, row 1 first.
func (b *Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.squares)
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var rows [][]*Piece
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	if len(rows) != 8 {
		return fmt.Errorf("board has %d rows, want 8", len(rows))
	}
	var squares [8][8]*Piece
	for r, row := range rows {
		if len(row) != 8 {
			return fmt.Errorf("board row %d has %d squares, want 8", r+1, len(row))
		}
		copy(squares[r][:], row)
	}
	b.squares = squares
	return nil
}
