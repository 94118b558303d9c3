package model

import (
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

type Position struct {
	X int `json:"x"`
	Z int `json:"z"`
}

func (p Position) Add(dx, dz int) Position {
	return Position{X: p.X + dx, Z: p.Z + dz}
}

// WorldPoint is a scene coordinate; only render collaborators care about it.
type WorldPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Board is the occupancy grid. It is the only owner of occupancy; pieces
// hold plain coordinates and go through Occupied/SetOccupancy.
type Board struct {
	width    int
	height   int
	cellSize float64
	origin   WorldPoint
	occupied [][]bool
	log      *logrus.Entry
}

func NewBoard(width, height int, cellSize float64, origin WorldPoint, log *logrus.Entry) *Board {
	if cellSize <= 0 {
		cellSize = 1
	}
	b := &Board{
		width:    width,
		height:   height,
		cellSize: cellSize,
		origin:   origin,
		log:      log,
	}
	for x := 0; x < width; x++ {
		b.occupied = append(b.occupied, make([]bool, height))
	}
	log.WithFields(logrus.Fields{"width": width, "height": height}).Debug("created board")
	return b
}

func (b *Board) Width() int         { return b.width }
func (b *Board) Height() int        { return b.height }
func (b *Board) CellSize() float64  { return b.cellSize }
func (b *Board) Origin() WorldPoint { return b.origin }

func (b *Board) InBounds(x, z int) bool {
	return x >= 0 && x < b.width && z >= 0 && z < b.height
}

func (b *Board) GridPosition(p WorldPoint) (int, int) {
	x := int(math.Floor((p.X - b.origin.X) / b.cellSize))
	z := int(math.Floor((p.Z - b.origin.Z) / b.cellSize))
	return x, z
}

func (b *Board) WorldPosition(x, z int) WorldPoint {
	return WorldPoint{
		X: float64(x)*b.cellSize + b.origin.X,
		Y: b.origin.Y,
		Z: float64(z)*b.cellSize + b.origin.Z,
	}
}

// Occupied reports whether a piece sits on (x,z). Out-of-bounds cells are
// reported as an error in the log and read as free.
func (b *Board) Occupied(x, z int) bool {
	if !b.InBounds(x, z) {
		b.log.Errorf("cell index (%d,%d) out of bound", x, z)
		return false
	}
	return b.occupied[x][z]
}

func (b *Board) SetOccupancy(x, z int, state bool) {
	if !b.InBounds(x, z) {
		b.log.Errorf("cell index (%d,%d) out of bound", x, z)
		return
	}
	b.log.Debugf("changing occupancy at (%d,%d) to %t", x, z, state)
	b.occupied[x][z] = state
}

// OccupiedCount is the number of occupied cells.
func (b *Board) OccupiedCount() int {
	n := 0
	for x := range b.occupied {
		for z := range b.occupied[x] {
			if b.occupied[x][z] {
				n++
			}
		}
	}
	return n
}

// ToAlgebraic renders (x,z) as a column letter and 1-based row, e.g. (0,0) -> "A1".
func (b *Board) ToAlgebraic(x, z int) string {
	return fmt.Sprintf("%s%d", columnLetter(x+1), z+1)
}

func columnLetter(n int) string {
	if n < 1 {
		n = 1
	}
	if n > 26 {
		n = 26
	}
	return string(rune('A' + n - 1))
}

// OccupancyStatus dumps every cell, one board column per line.
func (b *Board) OccupancyStatus() string {
	var sb strings.Builder
	for x := 0; x < b.width; x++ {
		for z := 0; z < b.height; z++ {
			fmt.Fprintf(&sb, "cell (%d,%d) = %t\t", x, z, b.occupied[x][z])
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
