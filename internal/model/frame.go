package model

// Frame is a captured image of the board: raw RGBA pixels, row major.
type Frame struct {
	Width  int
	Height int
	Pixels []byte
}

func (f Frame) Empty() bool { return len(f.Pixels) == 0 }
