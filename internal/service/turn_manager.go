package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/benbeisheim/gridpuzzle-backend/internal/model"
	"github.com/sirupsen/logrus"
)

var (
	ErrTurnInProgress = errors.New("previous turn has not been acknowledged")
	ErrNoPendingTurn  = errors.New("no turn is waiting for capture")
)

// Validity messages produced by the turn engine itself.
const (
	MsgStartOfExperiment = "valid command. start of experiment"
	MsgEvaluatingBoard   = "valid command. evaluating the board"
	MsgNotLegalCommand   = "not a legal command"
	MsgNotValidObject    = "is not a valid object"
	MsgNoMovement        = "no movement requested"
	MsgPuzzleSolved      = "Puzzle is soveled correctly"
	MsgPuzzleNotSolved   = "Puzzle is not solved correctly, try again"
)

// maxRepetition bounds how many times one command may repeat a move.
const maxRepetition = 100

type TurnState int

const (
	StateIdle TurnState = iota
	StateProcessingBatch
	StateAwaitingCapture
)

func (s TurnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateProcessingBatch:
		return "processing_batch"
	case StateAwaitingCapture:
		return "awaiting_capture"
	}
	return "unknown"
}

// Capturer is the external collaborator that renders the board at
// acknowledgement time.
type Capturer interface {
	RequestFrame(ctx context.Context) (model.Frame, error)
	RequestStatusText() string
}

type TurnOptions struct {
	AutoDoneCheck bool
	Human         bool
	// Record receives the log before it is flushed by a reset or a solved
	// board. Only the human variant keeps these.
	Record func(model.EventLog)
}

// Ack is the outcome of one acknowledgement cycle.
type Ack struct {
	Log    string      `json:"log"`
	Frame  model.Frame `json:"-"`
	Solved bool        `json:"solved"`
	// Reset asks the owner to tear the level down once the ack is out.
	Reset bool `json:"reset"`
}

// Messages is the text list carried by the ActionAck packet.
func (a Ack) Messages() []string {
	return []string{a.Log, strconv.Itoa(a.Frame.Width), strconv.Itoa(a.Frame.Height)}
}

type verbHandler func(cmd model.Command)

// TurnManager runs command batches against one level. It is not safe for
// concurrent use; the session serializes calls.
type TurnManager struct {
	level  *model.Level
	events *model.EventLog
	opts   TurnOptions
	state  TurnState

	commandCount int
	actionCount  int

	doneRequested  bool
	solved         bool
	resetRequested bool

	handlers map[model.Verb]verbHandler
	log      *logrus.Entry
}

func NewTurnManager(level *model.Level, opts TurnOptions, log *logrus.Entry) *TurnManager {
	t := &TurnManager{
		level:  level,
		events: model.NewEventLog(log),
		opts:   opts,
		state:  StateIdle,
		log:    log,
	}
	t.handlers = map[model.Verb]verbHandler{
		model.VerbMove:  t.handleMove,
		model.VerbStart: t.handleStart,
		model.VerbDone:  t.handleDone,
		model.VerbReset: t.handleReset,
	}
	return t
}

func (t *TurnManager) State() TurnState        { return t.state }
func (t *TurnManager) Events() *model.EventLog { return t.events }
func (t *TurnManager) Solved() bool            { return t.solved }
func (t *TurnManager) CommandCount() int       { return t.commandCount }
func (t *TurnManager) ActionCount() int        { return t.actionCount }

// ProcessBatch applies every command in order and leaves the manager waiting
// for capture. Per-command problems end up as validity messages, never as
// errors.
func (t *TurnManager) ProcessBatch(commands []string) error {
	if t.state != StateIdle {
		return fmt.Errorf("%w: state %s", ErrTurnInProgress, t.state)
	}
	t.state = StateProcessingBatch
	t.commandCount++

	for _, text := range commands {
		t.actionCount++
		t.events.NewAction(t.commandCount, t.actionCount, text)

		cmd := model.DecodeCommand(text)
		t.log.WithFields(logrus.Fields{
			"prompt":    text,
			"verb":      cmd.Verb,
			"object":    cmd.Object,
			"attribute": cmd.Attribute,
			"direction": cmd.Direction,
			"repeat":    cmd.Repetition,
		}).Debug("decoded command")

		handler, ok := t.handlers[cmd.Verb]
		if !ok {
			t.events.SetValidity(MsgNotLegalCommand)
			continue
		}
		handler(cmd)
	}

	t.state = StateAwaitingCapture
	return nil
}

func (t *TurnManager) handleMove(cmd model.Command) {
	piece, known := t.level.Piece(model.PieceID(cmd.Object, cmd.Attribute))
	if !known {
		t.events.SetValidity(strings.TrimSpace(cmd.Target()) + " " + MsgNotValidObject)
	}

	reps := cmd.Repetition
	if reps > maxRepetition {
		t.log.WithFields(logrus.Fields{
			"target":    cmd.Target(),
			"requested": cmd.Repetition,
			"applied":   maxRepetition,
		}).Warn("repetition clamped")
		reps = maxRepetition
	}
	if known && reps < 1 {
		t.events.SetValidity(MsgNoMovement)
		return
	}
	for i := 0; i < reps; i++ {
		if !known {
			// An unknown target moves nothing, but before start every
			// invocation is still refused.
			if !t.started() {
				t.events.SetValidity(model.MsgMoveBeforeStart)
			}
			continue
		}
		msg, moved := piece.Move(t.level.Board(), cmd.Direction)
		t.events.SetValidity(msg)
		if moved && (t.opts.AutoDoneCheck || t.opts.Human) {
			t.solved = t.level.AllAtGoal()
		}
	}
}

func (t *TurnManager) handleStart(model.Command) {
	for _, msg := range t.level.StartAll() {
		t.events.SetValidity(msg)
	}
	t.events.SetValidity(MsgStartOfExperiment)
}

func (t *TurnManager) handleDone(model.Command) {
	t.doneRequested = true
	t.events.SetValidity(MsgEvaluatingBoard)
	t.solved = t.level.AllAtGoal()
}

func (t *TurnManager) handleReset(model.Command) {
	if t.opts.Human && t.opts.Record != nil {
		t.opts.Record(t.events.Snapshot())
	}
	t.events.Clear()
	t.resetRequested = true
}

func (t *TurnManager) started() bool {
	for _, p := range t.level.Pieces() {
		if p.Initialized() {
			return true
		}
	}
	return false
}

// Acknowledge completes the batch: it waits on the capturer, serializes the
// log and applies the done/auto-check outcome. The log is empty afterwards.
// When ctx ends during capture the error comes back with an Ack whose only
// meaningful field is Reset.
func (t *TurnManager) Acknowledge(ctx context.Context, capturer Capturer) (Ack, error) {
	if t.state != StateAwaitingCapture {
		return Ack{}, fmt.Errorf("%w: state %s", ErrNoPendingTurn, t.state)
	}
	return t.finish(ctx, capturer)
}

// Observe builds an ack outside of a batch, used right after a level loads.
func (t *TurnManager) Observe(ctx context.Context, capturer Capturer) (Ack, error) {
	if t.state != StateIdle {
		return Ack{}, fmt.Errorf("%w: state %s", ErrTurnInProgress, t.state)
	}
	t.state = StateAwaitingCapture
	return t.finish(ctx, capturer)
}

func (t *TurnManager) finish(ctx context.Context, capturer Capturer) (Ack, error) {
	defer func() {
		t.events.Clear()
		t.state = StateIdle
	}()

	frame, err := capturer.RequestFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// The ack is dropped, but a requested reset still has to happen.
			dropped := Ack{Reset: t.resetRequested}
			t.resetRequested = false
			t.doneRequested = false
			return dropped, fmt.Errorf("capture frame: %w", err)
		}
		t.log.WithError(err).Warn("capture failed, acknowledging without a frame")
		frame = model.Frame{}
	}

	t.events.SetBoardStatus(capturer.RequestStatusText())
	for _, d := range t.level.ObjectData() {
		t.events.SetObjectData(d)
	}
	t.events.SetGameStatus(t.solved)

	body, err := t.events.JSON()
	if err != nil {
		return Ack{}, fmt.Errorf("serialize log: %w", err)
	}
	ack := Ack{Log: body, Frame: frame, Solved: t.solved, Reset: t.resetRequested}
	t.resetRequested = false

	if t.doneRequested || t.opts.AutoDoneCheck {
		t.doneRequested = false
		if t.solved {
			t.events.SetValidity(MsgPuzzleSolved)
			if t.opts.Human && t.opts.Record != nil {
				t.opts.Record(t.events.Snapshot())
			}
			ack.Reset = true
		} else if !t.opts.AutoDoneCheck {
			t.events.SetValidity(MsgPuzzleNotSolved)
		}
	}

	t.log.WithFields(logrus.Fields{
		"command_count": t.commandCount,
		"action_count":  t.actionCount,
		"solved":        ack.Solved,
		"reset":         ack.Reset,
		"frame_bytes":   len(frame.Pixels),
	}).Info("turn acknowledged")
	return ack, nil
}
