package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

type BodyType string

const (
	Cube     BodyType = "cube"
	Sphere   BodyType = "sphere"
	Cylinder BodyType = "cylinder"
	Pyramid  BodyType = "pyramid"
	Cone     BodyType = "cone"
	Prism    BodyType = "prism"
	Tile     BodyType = "tile"
)

var ErrUnknownBody = errors.New("unknown body type")

func ParseBodyType(s string) (BodyType, error) {
	b := BodyType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range knownBodies {
		if b == known {
			return b, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBody, s)
}

// Validity messages appended to action records.
const (
	MsgLegalMove        = "was legal move"
	MsgOccupied         = "Destination occupied"
	MsgOutOfBounds      = "Destination out of bounds"
	MsgMoveBeforeStart  = "you can not move before start action"
	MsgNoDirection      = "no valid direction given"
	MsgInitialPositions = "set objects position to initial positions"
)

// PieceName is the canonical identity string: "tile <geom>" for tiles and
// "<color> <body>" for everything else.
func PieceName(body BodyType, attribute string) string {
	attribute = strings.ToLower(strings.TrimSpace(attribute))
	if body == Tile {
		return string(body) + " " + attribute
	}
	return attribute + " " + string(body)
}

// PieceID hashes the canonical name. Creation and command lookup both go
// through here so the two can never disagree.
func PieceID(body BodyType, attribute string) uint64 {
	return xxhash.Sum64String(PieceName(body, attribute))
}

// ObjectData is the per-piece snapshot written into the action log.
type ObjectData struct {
	Body              string     `json:"body"`
	Color             string     `json:"color"`
	CurrentCoordinate [2]float64 `json:"current_coordinate"`
	GoalCoordinate    [2]float64 `json:"goal_coordinate"`
}

type Piece struct {
	ID          uint64
	Name        string
	Body        BodyType
	Color       string
	GeomNumber  string
	pos         Position
	goal        Position
	start       Position
	initialized bool
}

func NewPiece(body BodyType, color, geom string, start, goal Position) *Piece {
	attr := color
	if body == Tile {
		attr = geom
	}
	return &Piece{
		ID:         PieceID(body, attr),
		Name:       PieceName(body, attr),
		Body:       body,
		Color:      color,
		GeomNumber: geom,
		pos:        goal,
		goal:       goal,
		start:      start,
	}
}

func (p *Piece) Position() Position { return p.pos }
func (p *Piece) Goal() Position     { return p.goal }
func (p *Piece) Start() Position    { return p.start }
func (p *Piece) Initialized() bool  { return p.initialized }

// Init re-homes the piece to its start coordinate and enables movement.
func (p *Piece) Init(b *Board) string {
	p.pos = p.start
	b.SetOccupancy(p.pos.X, p.pos.Z, true)
	p.initialized = true
	return MsgInitialPositions
}

// Move applies one step in the given direction. moved is true only when
// the coordinate changed.
func (p *Piece) Move(b *Board, d Direction) (msg string, moved bool) {
	if !p.initialized {
		return MsgMoveBeforeStart, false
	}
	forward, units, ok := d.step()
	if !ok {
		return MsgNoDirection, false
	}
	if forward {
		return p.MoveForward(b, units)
	}
	return p.MoveRight(b, units)
}

func (p *Piece) MoveForward(b *Board, units int) (string, bool) {
	return p.moveTo(b, p.pos.Add(0, units))
}

func (p *Piece) MoveRight(b *Board, units int) (string, bool) {
	return p.moveTo(b, p.pos.Add(units, 0))
}

// moveTo checks occupancy before bounds: an out-of-range cell reads as
// free, so the bounds message still fires for it.
func (p *Piece) moveTo(b *Board, dst Position) (string, bool) {
	if !p.initialized {
		return MsgMoveBeforeStart, false
	}
	if b.InBounds(dst.X, dst.Z) && !b.Occupied(dst.X, dst.Z) {
		b.SetOccupancy(p.pos.X, p.pos.Z, false)
		p.pos = dst
		b.SetOccupancy(p.pos.X, p.pos.Z, true)
		return MsgLegalMove, true
	}
	if b.Occupied(dst.X, dst.Z) {
		return MsgOccupied, false
	}
	return MsgOutOfBounds, false
}

func (p *Piece) EvaluateGoal() bool {
	return p.pos == p.goal
}

// Status is the human readable line used in board status text, e.g. "A2 red cube".
func (p *Piece) Status(b *Board) string {
	return fmt.Sprintf("%s %s %s", b.ToAlgebraic(p.pos.X, p.pos.Z), p.Color, p.Body)
}

func (p *Piece) Data() ObjectData {
	return ObjectData{
		Body:              string(p.Body),
		Color:             p.Color,
		CurrentCoordinate: [2]float64{float64(p.pos.X), float64(p.pos.Z)},
		GoalCoordinate:    [2]float64{float64(p.goal.X), float64(p.goal.Z)},
	}
}
