package model

import (
	"errors"
	"testing"
)

const sampleLandmarks = `{
  "experiment_id": "exp-1",
  "experiment_type": "interactive",
  "grid_size": 3,
  "use_rendering": true,
  "auto_done_check": false,
  "grid_label": "both",
  "camera_offset": [0, 5.57, -3.68],
  "camera_auto_override": [6.8, -1.3],
  "screenshot_alpha": 0.0,
  "landmarks": [
    {"geom_nr": "1", "body": "Cube", "color": "red", "start_coordinate": [0, 0], "goal_coordinate": [0, 1]},
    {"geom_nr": "2", "body": "tile", "color": "white", "start_coordinate": [2, 2], "goal_coordinate": [1, 2]}
  ]
}`

func TestParseLandmarkData(t *testing.T) {
	data, err := ParseLandmarkData([]byte(sampleLandmarks))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if data.ExperimentID != "exp-1" || data.GridSize != 3 || len(data.Landmarks) != 2 {
		t.Fatalf("unexpected data %+v", data)
	}
	if got := data.Landmarks[0].Start(); got != (Position{X: 0, Z: 0}) {
		t.Fatalf("unexpected start %v", got)
	}
	if got := data.Landmarks[1].Goal(); got != (Position{X: 1, Z: 2}) {
		t.Fatalf("unexpected goal %v", got)
	}
	if len(data.CameraOffset) != 3 {
		t.Fatalf("camera offset lost: %v", data.CameraOffset)
	}
}

func TestParseLandmarkDataRejects(t *testing.T) {
	cases := map[string]string{
		"not json":         `{`,
		"missing grid":     `{"landmarks": []}`,
		"zero grid":        `{"grid_size": 0, "landmarks": []}`,
		"unknown body":     `{"grid_size": 3, "landmarks": [{"body": "ball", "color": "red", "start_coordinate": [0,0], "goal_coordinate": [0,0]}]}`,
		"short coord":      `{"grid_size": 3, "landmarks": [{"body": "cube", "color": "red", "start_coordinate": [0], "goal_coordinate": [0,0]}]}`,
		"off board":        `{"grid_size": 3, "landmarks": [{"body": "cube", "color": "red", "start_coordinate": [3,0], "goal_coordinate": [0,0]}]}`,
		"duplicate piece":  `{"grid_size": 3, "landmarks": [{"body": "cube", "color": "red", "start_coordinate": [0,0], "goal_coordinate": [0,0]}, {"body": "cube", "color": "Red", "start_coordinate": [1,0], "goal_coordinate": [1,0]}]}`,
		"shared start":     `{"grid_size": 3, "landmarks": [{"body": "cube", "color": "red", "start_coordinate": [0,0], "goal_coordinate": [0,0]}, {"body": "cone", "color": "red", "start_coordinate": [0,0], "goal_coordinate": [1,0]}]}`,
		"colorless":        `{"grid_size": 3, "landmarks": [{"body": "cube", "start_coordinate": [0,0], "goal_coordinate": [0,0]}]}`,
		"fractional start": `{"grid_size": 3, "landmarks": [{"body": "cube", "color": "red", "start_coordinate": [1.5,0], "goal_coordinate": [0,0]}]}`,
		"fractional goal":  `{"grid_size": 3, "landmarks": [{"body": "cube", "color": "red", "start_coordinate": [0,0], "goal_coordinate": [0,2.25]}]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLandmarkData([]byte(raw))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidateRejectsFractionalCoordinates(t *testing.T) {
	data := LandmarkData{
		GridSize: 3,
		Landmarks: []Landmark{
			{Body: "cube", Color: "red", StartCoordinate: [2]float64{1.5, 0}, GoalCoordinate: [2]float64{0, 1}},
		},
	}
	if err := data.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig for 1.5, got %v", err)
	}

	data.Landmarks[0].StartCoordinate = [2]float64{1, 0}
	if err := data.Validate(); err != nil {
		t.Fatalf("whole coordinates should pass: %v", err)
	}

	if _, err := ParseLandmarkData([]byte(`{"grid_size": 3, "landmarks": [{"body": "cube", "color": "red", "start_coordinate": [1.0, 0], "goal_coordinate": [0, 1]}]}`)); err != nil {
		t.Fatalf("1.0 is a whole number and should parse: %v", err)
	}
}
