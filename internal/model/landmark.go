package model

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/landmark.schema.json
var landmarkSchemaSource string

var ErrInvalidConfig = errors.New("invalid landmark data")

var (
	landmarkSchemaOnce sync.Once
	landmarkSchema     *jsonschema.Schema
	landmarkSchemaErr  error
)

func compiledLandmarkSchema() (*jsonschema.Schema, error) {
	landmarkSchemaOnce.Do(func() {
		landmarkSchema, landmarkSchemaErr = jsonschema.CompileString("landmark.schema.json", landmarkSchemaSource)
	})
	return landmarkSchema, landmarkSchemaErr
}

// Landmark describes one piece of the puzzle.
type Landmark struct {
	GeomNumber      string     `json:"geom_nr"`
	Body            string     `json:"body"`
	Color           string     `json:"color"`
	StartCoordinate [2]float64 `json:"start_coordinate"`
	GoalCoordinate  [2]float64 `json:"goal_coordinate"`
}

func (l Landmark) Start() Position {
	return Position{X: int(l.StartCoordinate[0]), Z: int(l.StartCoordinate[1])}
}

func (l Landmark) Goal() Position {
	return Position{X: int(l.GoalCoordinate[0]), Z: int(l.GoalCoordinate[1])}
}

// LandmarkData is the experiment configuration consumed once per level.
type LandmarkData struct {
	ExperimentID       string     `json:"experiment_id"`
	ExperimentType     string     `json:"experiment_type"`
	GridSize           int        `json:"grid_size"`
	UseRendering       bool       `json:"use_rendering"`
	AutoDoneCheck      bool       `json:"auto_done_check"`
	GridLabel          string     `json:"grid_label"`
	CameraOffset       []float64  `json:"camera_offset"`
	CameraAutoOverride []float64  `json:"camera_auto_override"`
	ScreenshotAlpha    float64    `json:"screenshot_alpha"`
	Landmarks          []Landmark `json:"landmarks"`
}

// ParseLandmarkData validates raw against the embedded schema before decoding it.
func ParseLandmarkData(raw []byte) (LandmarkData, error) {
	schema, err := compiledLandmarkSchema()
	if err != nil {
		return LandmarkData{}, fmt.Errorf("compile landmark schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return LandmarkData{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := schema.Validate(doc); err != nil {
		return LandmarkData{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var data LandmarkData
	if err := json.Unmarshal(raw, &data); err != nil {
		return LandmarkData{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := data.Validate(); err != nil {
		return LandmarkData{}, err
	}
	return data, nil
}

// Validate checks the rules the schema cannot express: whole coordinates on
// the board, unique identities and unique start cells.
func (d LandmarkData) Validate() error {
	if d.GridSize < 1 {
		return fmt.Errorf("%w: grid_size must be positive, got %d", ErrInvalidConfig, d.GridSize)
	}
	inside := func(p Position) bool {
		return p.X >= 0 && p.X < d.GridSize && p.Z >= 0 && p.Z < d.GridSize
	}

	names := make(map[string]int, len(d.Landmarks))
	starts := make(map[Position]int, len(d.Landmarks))
	for i, l := range d.Landmarks {
		body, err := ParseBodyType(l.Body)
		if err != nil {
			return fmt.Errorf("%w: landmark %d: %v", ErrInvalidConfig, i, err)
		}
		attr := l.Color
		if body == Tile {
			attr = l.GeomNumber
		}
		if strings.TrimSpace(attr) == "" {
			return fmt.Errorf("%w: landmark %d: %s needs a color or geom_nr", ErrInvalidConfig, i, body)
		}
		name := PieceName(body, attr)
		if j, ok := names[name]; ok {
			return fmt.Errorf("%w: landmarks %d and %d are both %q", ErrInvalidConfig, j, i, name)
		}
		names[name] = i

		if !whole(l.StartCoordinate) || !whole(l.GoalCoordinate) {
			return fmt.Errorf("%w: landmark %d (%s) has fractional coordinates %v -> %v", ErrInvalidConfig, i, name, l.StartCoordinate, l.GoalCoordinate)
		}
		if !inside(l.Start()) || !inside(l.Goal()) {
			return fmt.Errorf("%w: landmark %d (%s) has coordinates outside a %dx%d grid", ErrInvalidConfig, i, name, d.GridSize, d.GridSize)
		}
		if j, ok := starts[l.Start()]; ok {
			return fmt.Errorf("%w: landmarks %d and %d share start cell %v", ErrInvalidConfig, j, i, l.Start())
		}
		starts[l.Start()] = i
	}
	return nil
}

func whole(c [2]float64) bool {
	for _, v := range c {
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
