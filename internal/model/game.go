package model

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Level is one constructed puzzle: the board plus the pieces placed on it.
// It is not safe for concurrent use; the owning session serializes access.
type Level struct {
	Data   LandmarkData
	board  *Board
	pieces []*Piece
	byID   map[uint64]*Piece
	log    *logrus.Entry
}

// NewLevel builds a level from landmark data. On error nothing is returned,
// so a broken configuration never leaves a half-built board behind.
func NewLevel(data LandmarkData, cellSize float64, log *logrus.Entry) (*Level, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	board := NewBoard(data.GridSize, data.GridSize, cellSize, WorldPoint{}, log.WithField("component", "board"))
	lvl := &Level{
		Data:  data,
		board: board,
		byID:  make(map[uint64]*Piece, len(data.Landmarks)),
		log:   log,
	}

	for i, l := range data.Landmarks {
		body, err := ParseBodyType(l.Body)
		if err != nil {
			return nil, fmt.Errorf("landmark %d: %w", i, err)
		}
		p := NewPiece(body, l.Color, l.GeomNumber, l.Start(), l.Goal())
		if _, exists := lvl.byID[p.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate piece %q", ErrInvalidConfig, p.Name)
		}
		lvl.pieces = append(lvl.pieces, p)
		lvl.byID[p.ID] = p
		log.WithFields(logrus.Fields{
			"piece": p.Name,
			"start": p.Start(),
			"goal":  p.Goal(),
		}).Debug("placed piece")
	}

	log.WithFields(logrus.Fields{
		"experiment": data.ExperimentID,
		"grid":       data.GridSize,
		"pieces":     len(lvl.pieces),
	}).Info("level constructed")
	return lvl, nil
}

func (l *Level) Board() *Board { return l.board }

// Pieces returns the pieces in configuration order.
func (l *Level) Pieces() []*Piece {
	out := make([]*Piece, len(l.pieces))
	copy(out, l.pieces)
	return out
}

func (l *Level) Piece(id uint64) (*Piece, bool) {
	p, ok := l.byID[id]
	return p, ok
}

func (l *Level) AutoDoneCheck() bool { return l.Data.AutoDoneCheck }

// StartAll re-homes every piece to its start cell. Cells held from an
// earlier start are released first so a repeated start cannot leave stale
// occupancy behind. One message is returned per piece.
func (l *Level) StartAll() []string {
	for _, p := range l.pieces {
		if p.Initialized() {
			l.board.SetOccupancy(p.pos.X, p.pos.Z, false)
		}
	}
	msgs := make([]string, 0, len(l.pieces))
	for _, p := range l.pieces {
		msgs = append(msgs, p.Init(l.board))
	}
	return msgs
}

// AllAtGoal is the AND of every piece's goal check; an empty level is solved.
func (l *Level) AllAtGoal() bool {
	solved := true
	for _, p := range l.pieces {
		if !p.EvaluateGoal() {
			l.log.WithFields(logrus.Fields{
				"piece":   p.Name,
				"current": p.Position(),
				"goal":    p.Goal(),
			}).Debug("piece not at goal")
			solved = false
		}
	}
	return solved
}

// StatusText lists every piece in chess notation, one per line.
func (l *Level) StatusText() string {
	lines := make([]string, 0, len(l.pieces))
	for _, p := range l.pieces {
		lines = append(lines, p.Status(l.board))
	}
	return strings.Join(lines, "\n")
}

func (l *Level) ObjectData() []ObjectData {
	out := make([]ObjectData, 0, len(l.pieces))
	for _, p := range l.pieces {
		out = append(out, p.Data())
	}
	return out
}
