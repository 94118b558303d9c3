// Package capture renders a level into a raw RGBA frame and a status text.
// It stands in for a real renderer when the simulator runs headless.
package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"strings"

	"github.com/benbeisheim/gridpuzzle-backend/internal/model"
)

const defaultCellPx = 32

var namedColors = map[string]color.RGBA{
	"red":     {R: 0xff, A: 0xff},
	"green":   {G: 0x80, A: 0xff},
	"blue":    {B: 0xff, A: 0xff},
	"yellow":  {R: 0xff, G: 0xeb, B: 0x04, A: 0xff},
	"cyan":    {G: 0xff, B: 0xff, A: 0xff},
	"magenta": {R: 0xff, B: 0xff, A: 0xff},
	"black":   {A: 0xff},
	"white":   {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
	"grey":    {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
	"gray":    {R: 0x80, G: 0x80, B: 0x80, A: 0xff},
	"orange":  {R: 0xff, G: 0xa5, A: 0xff},
	"purple":  {R: 0x80, B: 0x80, A: 0xff},
}

var (
	fallbackColor = namedColors["magenta"]
	gridColor     = color.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xff}
	tileMarker    = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
)

// ParseColor accepts a colour name or #rrggbb; ok is false when the value
// is unknown and the magenta fallback is returned.
func ParseColor(s string) (color.RGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, true
	}
	if len(s) == 7 && s[0] == '#' {
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err == nil {
			return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
		}
	}
	return fallbackColor, false
}

// BoardCapture draws the board top-down, one square per cell, z growing
// upwards like the scene camera sees it.
type BoardCapture struct {
	level  *model.Level
	cellPx int
}

func NewBoardCapture(level *model.Level, cellPx int) *BoardCapture {
	if cellPx <= 0 {
		cellPx = defaultCellPx
	}
	return &BoardCapture{level: level, cellPx: cellPx}
}

func (c *BoardCapture) RequestStatusText() string {
	return c.level.StatusText()
}

func (c *BoardCapture) RequestFrame(ctx context.Context) (model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, err
	}
	img := c.render()
	return model.Frame{
		Width:  img.Rect.Dx(),
		Height: img.Rect.Dy(),
		Pixels: img.Pix,
	}, nil
}

func (c *BoardCapture) render() *image.RGBA {
	b := c.level.Board()
	w, h := b.Width()*c.cellPx, b.Height()*c.cellPx
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	alpha := uint8(clamp01(c.level.Data.ScreenshotAlpha) * 0xff)
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{A: alpha}}, image.Point{}, draw.Src)

	for x := 0; x <= b.Width(); x++ {
		draw.Draw(img, image.Rect(x*c.cellPx, 0, x*c.cellPx+1, h), &image.Uniform{C: gridColor}, image.Point{}, draw.Src)
	}
	for z := 0; z <= b.Height(); z++ {
		draw.Draw(img, image.Rect(0, z*c.cellPx, w, z*c.cellPx+1), &image.Uniform{C: gridColor}, image.Point{}, draw.Src)
	}

	inset := c.cellPx / 8
	for _, p := range c.level.Pieces() {
		pos := p.Position()
		col, _ := ParseColor(p.Color)
		top := (b.Height() - 1 - pos.Z) * c.cellPx
		rect := image.Rect(pos.X*c.cellPx+inset+1, top+inset+1, (pos.X+1)*c.cellPx-inset, top+c.cellPx-inset)
		draw.Draw(img, rect, &image.Uniform{C: col}, image.Point{}, draw.Src)
		if p.Body == model.Tile {
			mid := rect.Inset(rect.Dx() / 3)
			draw.Draw(img, mid, &image.Uniform{C: tileMarker}, image.Point{}, draw.Src)
		}
	}
	return img
}

// EncodePNG turns a frame back into a PNG, for the HTTP inspection API.
func EncodePNG(f model.Frame) ([]byte, error) {
	img := &image.RGBA{
		Pix:    f.Pixels,
		Stride: 4 * f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
