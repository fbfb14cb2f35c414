// Package render draws a game position as a PNG board image.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
)

const (
	DefaultSquareSize = 64
	sideMargin        = 24
	topMargin         = 32
)

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	backgroundColor = color.RGBA{28, 31, 46, 255}
	labelColor      = color.RGBA{236, 239, 255, 255}
)

type Renderer struct {
	squareSize int
}

func NewRenderer(squareSize int) *Renderer {
	if squareSize < 16 {
		squareSize = DefaultSquareSize
	}
	return &Renderer{squareSize: squareSize}
}

// Size reports the pixel dimensions of every rendered image.
func (r *Renderer) Size() (width, height int) {
	board := 8 * r.squareSize
	return board + 2*sideMargin, topMargin + board + sideMargin
}

// PNG renders g with perspective's back rank at the bottom.
func (r *Renderer) PNG(ctx context.Context, g *chess.Game, perspective chess.TeamColor) ([]byte, error) {
	if g == nil || g.Board() == nil {
		return nil, fmt.Errorf("game is nil")
	}
	w, h := r.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	origin := image.Point{X: sideMargin, Y: topMargin}
	for screenRow := 0; screenRow < 8; screenRow++ {
		for screenCol := 0; screenCol < 8; screenCol++ {
			pos := squareAt(screenRow, screenCol, perspective)
			x := origin.X + screenCol*r.squareSize
			y := origin.Y + screenRow*r.squareSize
			rect := image.Rect(x, y, x+r.squareSize, y+r.squareSize)
			imagedraw.Draw(img, rect, image.NewUniform(squareColor(pos)), image.Point{}, imagedraw.Src)

			p := g.Board().Piece(pos)
			if p == nil {
				continue
			}
			icon, err := pieceImage(p.Team, p.Type, r.squareSize)
			if err != nil {
				return nil, err
			}
			imagedraw.Draw(img, rect, icon, image.Point{}, imagedraw.Over)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	r.drawLabels(img, origin, perspective)
	drawCenteredText(newDrawer(img), statusLine(g), w/2, topMargin/2+5)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// squareAt maps a screen cell (row 0 on top) to a board square.
func squareAt(screenRow, screenCol int, perspective chess.TeamColor) chess.Position {
	if perspective == chess.Black {
		return chess.NewPosition(screenRow+1, 8-screenCol)
	}
	return chess.NewPosition(8-screenRow, screenCol+1)
}

func squareColor(pos chess.Position) color.Color {
	if (pos.Row+pos.Col)%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func newDrawer(dst imagedraw.Image) *font.Drawer {
	return &font.Drawer{Dst: dst, Src: image.NewUniform(labelColor), Face: basicfont.Face7x13}
}

func (r *Renderer) drawLabels(dst imagedraw.Image, origin image.Point, perspective chess.TeamColor) {
	d := newDrawer(dst)
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()
	boardEnd := origin.Y + 8*r.squareSize
	for i := 0; i < 8; i++ {
		pos := squareAt(i, i, perspective)
		rank := fmt.Sprintf("%d", pos.Row)
		file := string(rune('a' + pos.Col - 1))
		center := i*r.squareSize + r.squareSize/2
		drawCenteredText(d, rank, origin.X/2, origin.Y+center+ascent/2)
		drawCenteredText(d, file, origin.X+center, boardEnd+ascent+4)
	}
}

func drawCenteredText(d *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-width/2, baseline)
	d.DrawString(text)
}

func statusLine(g *chess.Game) string {
	switch g.Status() {
	case chess.Won:
		w, _ := g.Winner()
		return w.Title() + " wins"
	case chess.Drawn:
		return "Draw"
	}
	return g.Turn().Title() + " to move"
}
