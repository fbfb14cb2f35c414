package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/Cheese-Chess-Server/internal/chess"
)

// Piece silhouettes on a 45x45 canvas. Every element is self-closing so the
// team paint can be appended to each one.
var pieceShapes = map[chess.PieceType]string{
	chess.Pawn: `<circle cx="22.5" cy="14" r="6"/>
<path d="M 15 36 L 18 21 L 27 21 L 30 36 Z"/>
<rect x="11" y="34" width="23" height="5"/>`,
	chess.Rook: `<path d="M 11 9 L 15 9 L 15 12 L 20 12 L 20 9 L 25 9 L 25 12 L 30 12 L 30 9 L 34 9 L 34 15 L 11 15 Z"/>
<rect x="14" y="14" width="17" height="21"/>
<rect x="10" y="34" width="25" height="5"/>`,
	chess.Knight: `<path d="M 12 39 L 14 27 C 12 23 13 17 18 12 L 20 7 L 23 11 C 30 12 33 18 33 26 L 33 39 Z"/>
<path d="M 18 18 L 10 24 L 12 27 L 20 23 Z"/>`,
	chess.Bishop: `<circle cx="22.5" cy="9" r="3"/>
<ellipse cx="22.5" cy="22" rx="7" ry="10"/>
<rect x="17" y="30" width="11" height="5"/>
<rect x="11" y="34" width="23" height="5"/>`,
	chess.Queen: `<path d="M 9 13 L 14 31 L 31 31 L 36 13 L 29 25 L 27 10 L 22.5 24 L 18 10 L 16 25 Z"/>
<circle cx="9" cy="12" r="2.5"/><circle cx="18" cy="9" r="2.5"/><circle cx="27" cy="9" r="2.5"/><circle cx="36" cy="12" r="2.5"/>
<rect x="12" y="30" width="21" height="9"/>`,
	chess.King: `<path d="M 21 4 L 24 4 L 24 8 L 28 8 L 28 11 L 24 11 L 24 15 L 21 15 L 21 11 L 17 11 L 17 8 L 21 8 Z"/>
<path d="M 11 30 C 6 22 12 15 22.5 20 C 33 15 39 22 34 30 Z"/>
<rect x="12" y="29" width="21" height="10"/>`,
}

var teamPaint = map[chess.TeamColor][2]string{
	chess.White: {"#ffffff", "#000000"},
	chess.Black: {"#222222", "#e8e8e8"},
}

func pieceSVG(team chess.TeamColor, typ chess.PieceType) ([]byte, error) {
	shape, ok := pieceShapes[typ]
	if !ok {
		return nil, fmt.Errorf("no shape for %s", typ)
	}
	paint := teamPaint[team]
	attrs := fmt.Sprintf(` fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round"/>`, paint[0], paint[1])
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	b.WriteString(strings.ReplaceAll(shape, "/>", attrs))
	b.WriteString(`</svg>`)
	return []byte(b.String()), nil
}

type pieceKey struct {
	team chess.TeamColor
	typ  chess.PieceType
	size int
}

var (
	pieceCache   = map[pieceKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

// pieceImage rasterizes a piece at size x size pixels, cached per size.
func pieceImage(team chess.TeamColor, typ chess.PieceType, size int) (image.Image, error) {
	key := pieceKey{team: team, typ: typ, size: size}
	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	data, err := pieceSVG(team, typ)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s %s svg: %w", team, typ, err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}
