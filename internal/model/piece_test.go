package model

import "testing"

func TestPieceMoveBeforeStart(t *testing.T) {
	b := newTestBoard(3)
	p := NewPiece(Cube, "red", "", Position{X: 0, Z: 0}, Position{X: 0, Z: 1})

	msg, moved := p.Move(b, DirectionUp)
	if moved || msg != MsgMoveBeforeStart {
		t.Fatalf("expected rejection before start, got %q moved=%t", msg, moved)
	}
	if p.Position() != p.Goal() {
		t.Fatalf("piece should still sit at its goal before start, got %v", p.Position())
	}
}

func TestPieceMoves(t *testing.T) {
	b := newTestBoard(3)
	p := NewPiece(Cube, "red", "", Position{X: 1, Z: 1}, Position{X: 2, Z: 2})
	if msg := p.Init(b); msg != MsgInitialPositions {
		t.Fatalf("unexpected init message %q", msg)
	}
	if !b.Occupied(1, 1) {
		t.Fatal("start cell should be occupied after init")
	}

	steps := []struct {
		dir  Direction
		want Position
	}{
		{DirectionUp, Position{X: 1, Z: 2}},
		{DirectionRight, Position{X: 2, Z: 2}},
		{DirectionDown, Position{X: 2, Z: 1}},
		{DirectionLeft, Position{X: 1, Z: 1}},
	}
	for _, s := range steps {
		old := p.Position()
		msg, moved := p.Move(b, s.dir)
		if !moved || msg != MsgLegalMove {
			t.Fatalf("%s: expected legal move, got %q", s.dir, msg)
		}
		if p.Position() != s.want {
			t.Fatalf("%s: expected %v, got %v", s.dir, s.want, p.Position())
		}
		if b.Occupied(old.X, old.Z) || !b.Occupied(s.want.X, s.want.Z) {
			t.Fatalf("%s: occupancy not moved with the piece", s.dir)
		}
		if b.OccupiedCount() != 1 {
			t.Fatalf("%s: expected exactly one occupied cell, got %d", s.dir, b.OccupiedCount())
		}
	}
}

func TestPieceIllegalMovesKeepCoordinate(t *testing.T) {
	b := newTestBoard(3)
	a := NewPiece(Cube, "red", "", Position{X: 0, Z: 0}, Position{X: 0, Z: 0})
	other := NewPiece(Sphere, "blue", "", Position{X: 1, Z: 0}, Position{X: 1, Z: 0})
	a.Init(b)
	other.Init(b)

	cases := []struct {
		dir  Direction
		want string
	}{
		{DirectionLeft, MsgOutOfBounds},
		{DirectionDown, MsgOutOfBounds},
		{DirectionRight, MsgOccupied},
		{DirectionNone, MsgNoDirection},
	}
	for _, c := range cases {
		msg, moved := a.Move(b, c.dir)
		if moved || msg != c.want {
			t.Fatalf("%q: expected %q, got %q moved=%t", c.dir, c.want, msg, moved)
		}
		if a.Position() != (Position{}) {
			t.Fatalf("%q: coordinate changed to %v", c.dir, a.Position())
		}
	}
	if !b.Occupied(0, 0) || !b.Occupied(1, 0) || b.OccupiedCount() != 2 {
		t.Fatal("illegal moves must not touch occupancy")
	}
}

func TestPieceStatusAndData(t *testing.T) {
	b := newTestBoard(3)
	p := NewPiece(Cone, "green", "", Position{X: 2, Z: 0}, Position{X: 0, Z: 2})
	p.Init(b)

	if got := p.Status(b); got != "C1 green cone" {
		t.Fatalf("unexpected status %q", got)
	}
	d := p.Data()
	if d.Body != "cone" || d.Color != "green" {
		t.Fatalf("unexpected data %+v", d)
	}
	if d.CurrentCoordinate != [2]float64{2, 0} || d.GoalCoordinate != [2]float64{0, 2} {
		t.Fatalf("unexpected coordinates %+v", d)
	}
	if p.EvaluateGoal() {
		t.Fatal("piece is not at its goal")
	}
}

func TestParseBodyType(t *testing.T) {
	if b, err := ParseBodyType(" Prism "); err != nil || b != Prism {
		t.Fatalf("expected prism, got %q %v", b, err)
	}
	if _, err := ParseBodyType("ball"); err == nil {
		t.Fatal("expected error for unknown body")
	}
}
