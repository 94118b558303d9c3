package model

type Verb string

const (
	VerbNone  Verb = ""
	VerbMove  Verb = "move"
	VerbStart Verb = "start"
	VerbReset Verb = "reset"
	VerbDone  Verb = "done"
)

type Direction string

const (
	DirectionNone  Direction = ""
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
)

// Keyword tables are scanned in order; the first substring hit wins.
var (
	knownVerbs      = []Verb{VerbMove, VerbStart, VerbReset, VerbDone}
	knownBodies     = []BodyType{Cube, Tile, Sphere, Cylinder, Pyramid, Cone, Prism}
	knownDirections = []Direction{DirectionLeft, DirectionRight, DirectionUp, DirectionDown}
)

var wordToNumber = []struct {
	word  string
	value int
}{
	{"one", 1}, {"two", 2}, {"three", 3}, {"four", 4}, {"five", 5},
	{"six", 6}, {"seven", 7}, {"eight", 8}, {"nine", 9}, {"ten", 10},
}

// step returns the axis and signed unit for a direction: up/down move along
// z (forward), right/left along x.
func (d Direction) step() (forward bool, units int, ok bool) {
	switch d {
	case DirectionUp:
		return true, 1, true
	case DirectionDown:
		return true, -1, true
	case DirectionRight:
		return false, 1, true
	case DirectionLeft:
		return false, -1, true
	}
	return false, 0, false
}

// Command is one decoded line of controller input.
type Command struct {
	Verb       Verb      `json:"verb"`
	Object     BodyType  `json:"object"`
	Attribute  string    `json:"attribute"`
	Direction  Direction `json:"direction"`
	Repetition int       `json:"repetition"`
}

// Target is the canonical name of the piece the command addresses.
func (c Command) Target() string {
	return PieceName(c.Object, c.Attribute)
}
