package model

import (
	"errors"
	"testing"

	"github.com/benbeisheim/gridpuzzle-backend/internal/logger"
)

func TestNewLevel(t *testing.T) {
	data, err := ParseLandmarkData([]byte(sampleLandmarks))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	lvl, err := NewLevel(data, 1, logger.Discard())
	if err != nil {
		t.Fatalf("new level: %v", err)
	}
	if lvl.Board().Width() != 3 || lvl.Board().Height() != 3 {
		t.Fatalf("unexpected board size %dx%d", lvl.Board().Width(), lvl.Board().Height())
	}

	pieces := lvl.Pieces()
	if len(pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %d", len(pieces))
	}
	for _, p := range pieces {
		if p.Position() != p.Goal() {
			t.Fatalf("%s should begin on its goal", p.Name)
		}
		if p.Initialized() {
			t.Fatalf("%s should not be initialized", p.Name)
		}
	}
	if _, ok := lvl.Piece(PieceID(Cube, "red")); !ok {
		t.Fatal("red cube not registered")
	}
	if _, ok := lvl.Piece(PieceID(Tile, "2")); !ok {
		t.Fatal("tile 2 not registered")
	}
	if lvl.Board().OccupiedCount() != 0 {
		t.Fatal("occupancy is only set on start")
	}
}

func TestNewLevelRejectsBadData(t *testing.T) {
	data := LandmarkData{GridSize: 2, Landmarks: []Landmark{
		{Body: "cube", Color: "red", StartCoordinate: [2]float64{5, 5}},
	}}
	lvl, err := NewLevel(data, 1, logger.Discard())
	if !errors.Is(err, ErrInvalidConfig) || lvl != nil {
		t.Fatalf("expected config error and no level, got %v %v", lvl, err)
	}
}

func TestLevelStartAllTwice(t *testing.T) {
	data, _ := ParseLandmarkData([]byte(sampleLandmarks))
	lvl, err := NewLevel(data, 1, logger.Discard())
	if err != nil {
		t.Fatalf("new level: %v", err)
	}
	msgs := lvl.StartAll()
	if len(msgs) != 2 {
		t.Fatalf("expected one message per piece, got %v", msgs)
	}

	cube, _ := lvl.Piece(PieceID(Cube, "red"))
	if msg, moved := cube.Move(lvl.Board(), DirectionRight); !moved {
		t.Fatalf("move failed: %s", msg)
	}
	lvl.StartAll()
	if cube.Position() != cube.Start() {
		t.Fatalf("restart should re-home the cube, got %v", cube.Position())
	}
	if n := lvl.Board().OccupiedCount(); n != 2 {
		t.Fatalf("expected 2 occupied cells after restart, got %d", n)
	}
}

func TestLevelAllAtGoal(t *testing.T) {
	empty, err := NewLevel(LandmarkData{GridSize: 3}, 1, logger.Discard())
	if err != nil {
		t.Fatalf("new level: %v", err)
	}
	if !empty.AllAtGoal() {
		t.Fatal("a level without pieces is vacuously solved")
	}

	data, _ := ParseLandmarkData([]byte(sampleLandmarks))
	lvl, _ := NewLevel(data, 1, logger.Discard())
	lvl.StartAll()
	if lvl.AllAtGoal() {
		t.Fatal("pieces start away from their goals")
	}
	if got := lvl.StatusText(); got != "A1 red cube\nC3 white tile" {
		t.Fatalf("unexpected status text %q", got)
	}
	if len(lvl.ObjectData()) != 2 {
		t.Fatal("expected object data for every piece")
	}
}
