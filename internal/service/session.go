package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbeisheim/gridpuzzle-backend/internal/model"
	"github.com/benbeisheim/gridpuzzle-backend/internal/ws"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoLevel         = errors.New("no level loaded")
	ErrNotConnected    = errors.New("transport not connected")
	ErrExperimentEnded = errors.New("experiment has ended")
	ErrNotHumanSession = errors.New("session is not a human experiment")
	ErrHumanSession    = errors.New("packets are not accepted by a human experiment")
)

// textCapturer reports status text only, for sessions without a renderer.
type textCapturer struct{ level *model.Level }

func (c textCapturer) RequestFrame(context.Context) (model.Frame, error) { return model.Frame{}, nil }
func (c textCapturer) RequestStatusText() string                         { return c.level.StatusText() }

// Transport is the collaborator that carries encoded packets to the relay.
type Transport interface {
	Send(data []byte) error
	IsOpen() bool
}

// Link is a Transport that also owns its read loop.
type Link interface {
	Transport
	Run(ctx context.Context, onReceive func([]byte)) error
	Close() error
}

// CaptureFactory builds the capturer for a freshly loaded level.
type CaptureFactory func(level *model.Level) Capturer

type SessionConfig struct {
	Human    bool
	CellSize float64
	// Levels feeds the human variant; the next one loads on every reset.
	Levels *model.Queue
}

type packetHandler func(ctx context.Context, p *ws.Packet) error

// Session binds one board to one remote peer. All state changes happen
// under mu, so a batch and its acknowledgement never interleave with
// another packet.
type Session struct {
	mu sync.Mutex

	networkID string
	partnerID string
	transport Transport
	connected bool

	cfg      SessionConfig
	capture  CaptureFactory
	level    *model.Level
	capturer Capturer
	turns    *TurnManager
	history  *model.History
	clock    *model.Clock
	attempt  int
	lastAck  *Ack
	ended    bool

	handlers map[ws.Command]packetHandler
	log      *logrus.Entry
}

func NewSession(cfg SessionConfig, capture CaptureFactory, log *logrus.Entry) *Session {
	if cfg.CellSize <= 0 {
		cfg.CellSize = 1
	}
	if cfg.Levels == nil {
		cfg.Levels = model.NewQueue()
	}
	s := &Session{
		cfg:     cfg,
		capture: capture,
		history: model.NewHistory(),
		clock:   model.NewClock(),
		log:     log,
	}
	s.handlers = map[ws.Command]packetHandler{
		ws.CommandHandshake:       s.handleHandshake,
		ws.CommandSetup:           s.handleSetup,
		ws.CommandGameInteraction: s.handleGameInteraction,
		ws.CommandReset:           s.handleReset,
		ws.CommandEcho:            s.handleEcho,
		ws.CommandACK:             s.handleInfo,
		ws.CommandError:           s.handleError,
		ws.CommandClientClose:     s.handleInfo,
		ws.CommandEndExperiment:   s.handleInfo,
	}
	return s
}

// AttachTransport wires the relay connection used for every reply.
func (s *Session) AttachTransport(t Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transport = t
	s.connected = t != nil && t.IsOpen()
}

// Serve attaches link and feeds every received frame to the session until
// the link drops or ctx ends. When ctx ends the relay is told this client
// is leaving before the link closes. The read loop runs on its own context
// so the goodbye still has an open socket to go out on.
func (s *Session) Serve(ctx context.Context, link Link) error {
	s.AttachTransport(link)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- link.Run(runCtx, func(raw []byte) { _ = s.HandleFrame(ctx, raw) })
	}()

	select {
	case err := <-done:
		s.TransportClosed(err)
		return err
	case <-ctx.Done():
	}

	if err := s.Close(); err != nil {
		s.log.WithError(err).Warn("failed to send client close")
	}
	_ = link.Close()
	s.TransportClosed(<-done)
	return ctx.Err()
}

// TransportClosed records a lost connection. Nothing is retried.
func (s *Session) TransportClosed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	s.log.WithError(err).Warn("transport closed")
}

// HandleFrame decodes one received frame and dispatches it.
func (s *Session) HandleFrame(ctx context.Context, raw []byte) error {
	p, err := ws.Decode(raw)
	if err != nil {
		s.log.WithError(err).Warn("dropping malformed packet")
		return err
	}
	return s.HandlePacket(ctx, p)
}

func (s *Session) HandlePacket(ctx context.Context, p *ws.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg.Human {
		return ErrHumanSession
	}

	s.log.WithFields(logrus.Fields{
		"command":  p.Command,
		"from":     p.From,
		"to":       p.To,
		"messages": len(p.Messages),
	}).Debug("received packet")

	handler, ok := s.handlers[p.Command]
	if !ok {
		s.log.WithField("command", p.Command).Warn("unknown packet command")
		return s.sendLocked(ws.NewPacket(ws.CommandError, s.networkID, p.From,
			[]string{fmt.Sprintf("unknown command %q", p.Command)}, nil))
	}
	return handler(ctx, p)
}

func (s *Session) handleHandshake(_ context.Context, p *ws.Packet) error {
	reply := ws.NewPacket(ws.CommandACK, "", "", []string{ws.MessageHandshakeAck}, nil)
	if p.From == ws.ServerID {
		s.networkID = p.To
		reply.To = ws.ServerID
		s.log.WithField("network_id", s.networkID).Info("registered network id")
	} else {
		s.partnerID = p.From
		reply.To = s.partnerID
		s.log.WithField("partner_id", s.partnerID).Info("registered partner")
	}
	reply.From = s.networkID
	return s.sendLocked(reply)
}

func (s *Session) handleSetup(ctx context.Context, p *ws.Packet) error {
	data, err := model.ParseLandmarkData([]byte(p.FirstMessage()))
	if err != nil {
		s.log.WithError(err).Error("rejecting setup")
		_ = s.sendLocked(ws.NewPacket(ws.CommandError, s.networkID, p.From, []string{err.Error()}, nil))
		return err
	}
	if err := s.loadLevelLocked(data); err != nil {
		_ = s.sendLocked(ws.NewPacket(ws.CommandError, s.networkID, p.From, []string{err.Error()}, nil))
		return err
	}
	return s.observeLocked(ctx)
}

func (s *Session) handleGameInteraction(ctx context.Context, p *ws.Packet) error {
	ack, err := s.runBatchLocked(ctx, p.Messages)
	if err != nil {
		if ack.Reset {
			s.resetLocked()
		}
		s.log.WithError(err).Warn("batch rejected")
		_ = s.sendLocked(ws.NewPacket(ws.CommandError, s.networkID, p.From, []string{err.Error()}, nil))
		return err
	}
	sendErr := s.sendAckLocked(ack)
	if ack.Reset {
		s.resetLocked()
	}
	return sendErr
}

func (s *Session) handleReset(_ context.Context, p *ws.Packet) error {
	s.log.WithField("reason", p.FirstMessage()).Info("reset requested")
	s.resetLocked()
	return nil
}

func (s *Session) handleEcho(_ context.Context, p *ws.Packet) error {
	s.log.WithField("command", p.Command).Info("echo")
	return nil
}

func (s *Session) handleInfo(_ context.Context, p *ws.Packet) error {
	s.log.WithFields(logrus.Fields{"command": p.Command, "messages": p.Messages}).Debug("peer notice")
	return nil
}

func (s *Session) handleError(_ context.Context, p *ws.Packet) error {
	s.log.WithFields(logrus.Fields{"from": p.From, "messages": p.Messages}).Warn("peer reported error")
	return nil
}

// Submit runs a batch for the human variant and returns its ack directly.
func (s *Session) Submit(ctx context.Context, commands []string) (Ack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Human {
		return Ack{}, ErrNotHumanSession
	}
	if s.ended {
		return Ack{}, ErrExperimentEnded
	}
	ack, err := s.runBatchLocked(ctx, commands)
	if err != nil {
		if ack.Reset {
			s.resetLocked()
		}
		return Ack{}, err
	}
	s.lastAck = &ack
	if ack.Reset {
		s.resetLocked()
		if s.level != nil {
			if err := s.observeLocked(ctx); err != nil {
				s.log.WithError(err).Warn("observing next level failed")
			}
		}
	}
	return ack, nil
}

// Begin loads the first queued level of a human experiment.
func (s *Session) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Human {
		return ErrNotHumanSession
	}
	s.nextHumanLevelLocked()
	if s.ended {
		return ErrExperimentEnded
	}
	return s.observeLocked(ctx)
}

func (s *Session) runBatchLocked(ctx context.Context, commands []string) (Ack, error) {
	if s.level == nil || s.turns == nil {
		return Ack{}, ErrNoLevel
	}
	if err := s.turns.ProcessBatch(commands); err != nil {
		return Ack{}, err
	}
	return s.turns.Acknowledge(ctx, s.capturer)
}

func (s *Session) loadLevelLocked(data model.LandmarkData) error {
	lvl, err := model.NewLevel(data, s.cfg.CellSize, s.log.WithField("component", "level"))
	if err != nil {
		s.log.WithError(err).Error("level construction failed")
		return err
	}
	s.level = lvl
	s.turns = NewTurnManager(lvl, TurnOptions{
		AutoDoneCheck: data.AutoDoneCheck,
		Human:         s.cfg.Human,
		Record:        s.recordLocked,
	}, s.log.WithField("component", "turns"))
	if s.capture != nil {
		s.capturer = s.capture(lvl)
	} else {
		s.capturer = textCapturer{level: lvl}
	}
	s.attempt++
	s.clock.Reset()
	s.clock.Start()
	return nil
}

// observeLocked sends the first observation of a new level.
func (s *Session) observeLocked(ctx context.Context) error {
	ack, err := s.turns.Observe(ctx, s.capturer)
	if err != nil {
		return err
	}
	if s.cfg.Human {
		s.lastAck = &ack
		return nil
	}
	return s.sendAckLocked(ack)
}

func (s *Session) recordLocked(l model.EventLog) {
	experiment := ""
	if s.level != nil {
		experiment = s.level.Data.ExperimentID
	}
	s.history.Record(model.HistoryEntry{
		ExperimentID: experiment,
		Attempt:      s.attempt,
		ElapsedMs:    s.clock.Elapsed().Milliseconds(),
		Log:          l,
	})
}

// resetLocked drops the level. A human experiment moves on to the next
// queued level, or ends when none are left.
func (s *Session) resetLocked() {
	s.clock.Stop()
	s.level = nil
	s.turns = nil
	s.capturer = nil
	if s.cfg.Human {
		s.nextHumanLevelLocked()
		return
	}
	s.log.Info("level reset, waiting for setup")
}

func (s *Session) nextHumanLevelLocked() {
	for {
		next, ok := s.cfg.Levels.Next()
		if !ok {
			s.ended = true
			s.log.WithField("recorded", s.history.Len()).Info("experiment finished")
			return
		}
		if err := s.loadLevelLocked(next.Data); err != nil {
			s.log.WithError(err).WithField("source", next.Source).Error("skipping queued level")
			continue
		}
		s.log.WithField("source", next.Source).Info("loaded queued level")
		return
	}
}

func (s *Session) sendAckLocked(ack Ack) error {
	p := ws.NewPacket(ws.CommandActionAck, s.networkID, s.partnerID, ack.Messages(), ack.Frame.Pixels)
	if err := s.sendLocked(p); err != nil {
		s.log.WithError(err).Warn("dropping acknowledgement")
		return err
	}
	return nil
}

func (s *Session) sendLocked(p *ws.Packet) error {
	if s.transport == nil || !s.transport.IsOpen() {
		s.connected = false
		return ErrNotConnected
	}
	raw, err := ws.Encode(p)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p.Command, err)
	}
	if err := s.transport.Send(raw); err != nil {
		s.connected = false
		return fmt.Errorf("send %s: %w", p.Command, err)
	}
	s.connected = true
	return nil
}

// Close tells the relay this client is leaving.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Human || s.transport == nil || !s.transport.IsOpen() {
		return nil
	}
	return s.sendLocked(ws.NewPacket(ws.CommandClientClose, s.networkID, ws.ServerID, nil, nil))
}

// SessionInfo is a read-only snapshot for the HTTP API.
type SessionInfo struct {
	NetworkID    string `json:"networkId"`
	PartnerID    string `json:"partnerId"`
	Connected    bool   `json:"connected"`
	Human        bool   `json:"human"`
	Ended        bool   `json:"ended"`
	LevelLoaded  bool   `json:"levelLoaded"`
	ExperimentID string `json:"experimentId"`
	TurnState    string `json:"turnState"`
	CommandCount int    `json:"commandCount"`
	ActionCount  int    `json:"actionCount"`
	Solved       bool   `json:"solved"`
	Recorded     int    `json:"recorded"`
	ElapsedMs    int64  `json:"elapsedMs"`
}

func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := SessionInfo{
		NetworkID: s.networkID,
		PartnerID: s.partnerID,
		Connected: s.connected,
		Human:     s.cfg.Human,
		Ended:     s.ended,
		TurnState: StateIdle.String(),
		Recorded:  s.history.Len(),
		ElapsedMs: s.clock.Elapsed().Milliseconds(),
	}
	if s.level != nil {
		info.LevelLoaded = true
		info.ExperimentID = s.level.Data.ExperimentID
	}
	if s.turns != nil {
		info.TurnState = s.turns.State().String()
		info.CommandCount = s.turns.CommandCount()
		info.ActionCount = s.turns.ActionCount()
		info.Solved = s.turns.Solved()
	}
	return info
}

// CurrentLog returns the log of the turn in progress.
func (s *Session) CurrentLog() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.turns == nil {
		return "", ErrNoLevel
	}
	return s.turns.Events().JSON()
}

// LastAck returns the most recent ack kept by the human variant.
func (s *Session) LastAck() (Ack, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAck == nil {
		return Ack{}, false
	}
	return *s.lastAck, true
}

type BoardView struct {
	GridSize int                `json:"gridSize"`
	Status   string             `json:"status"`
	Occupied []string           `json:"occupied"`
	Pieces   []model.ObjectData `json:"pieces"`
}

func (s *Session) Board() (BoardView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.level == nil {
		return BoardView{}, ErrNoLevel
	}
	b := s.level.Board()
	view := BoardView{
		GridSize: b.Width(),
		Status:   s.level.StatusText(),
		Occupied: []string{},
		Pieces:   s.level.ObjectData(),
	}
	for x := 0; x < b.Width(); x++ {
		for z := 0; z < b.Height(); z++ {
			if b.Occupied(x, z) {
				view.Occupied = append(view.Occupied, b.ToAlgebraic(x, z))
			}
		}
	}
	return view, nil
}

func (s *Session) History() *model.History { return s.history }

// Frame captures the current board outside of a turn.
func (s *Session) Frame(ctx context.Context) (model.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.level == nil || s.capturer == nil {
		return model.Frame{}, ErrNoLevel
	}
	return s.capturer.RequestFrame(ctx)
}
