// Package agent is the client side of the protocol: it pairs with a
// simulator through the relay and plays command batches against it.
package agent

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/benbeisheim/gridpuzzle-backend/internal/model"
	"github.com/benbeisheim/gridpuzzle-backend/internal/ws"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnexpectedPacket = errors.New("unexpected packet")
	ErrPeerError        = errors.New("peer reported an error")
	ErrNotPaired        = errors.New("agent has no partner")
	ErrInboxClosed      = errors.New("connection closed")
)

// Sender carries encoded packets to the relay.
type Sender interface {
	Send(data []byte) error
}

// Observation is one decoded ActionAck.
type Observation struct {
	Log    model.EventLog
	Frame  model.Frame
	Packet *ws.Packet
}

func (o Observation) Done() bool { return o.Log.GameDone }

type Agent struct {
	out       Sender
	in        <-chan []byte
	networkID string
	partnerID string
	log       *logrus.Entry
}

// New builds an agent reading relay frames from in. The caller feeds in
// from the transport read loop and closes it when the connection ends.
func New(out Sender, in <-chan []byte, log *logrus.Entry) *Agent {
	return &Agent{out: out, in: in, log: log}
}

// Feed returns a read-loop callback that hands frames to inbox. It gives up
// on a frame once ctx ends, so a stalled reader never pins the read loop.
func Feed(ctx context.Context, inbox chan<- []byte) func([]byte) {
	return func(raw []byte) {
		select {
		case inbox <- raw:
		case <-ctx.Done():
		}
	}
}

func (a *Agent) NetworkID() string { return a.networkID }
func (a *Agent) PartnerID() string { return a.partnerID }

// AwaitRelay consumes the relay greeting and learns this client's id.
func (a *Agent) AwaitRelay(ctx context.Context) error {
	p, err := a.next(ctx)
	if err != nil {
		return err
	}
	if p.Command != ws.CommandHandshake {
		return fmt.Errorf("%w: expected %s from relay, got %s", ErrUnexpectedPacket, ws.CommandHandshake, p.Command)
	}
	a.networkID = p.To
	a.log.WithFields(logrus.Fields{"network_id": a.networkID, "messages": p.Messages}).Info("registered with relay")
	return nil
}

// Pair registers partnerID as the simulator to talk to and waits for its ACK.
func (a *Agent) Pair(ctx context.Context, partnerID string) error {
	if err := a.send(ws.NewPacket(ws.CommandHandshake, a.networkID, partnerID,
		[]string{ws.MessageRegisteringPartner}, nil)); err != nil {
		return err
	}
	p, err := a.await(ctx, ws.CommandACK)
	if err != nil {
		return err
	}
	a.partnerID = partnerID
	a.log.WithFields(logrus.Fields{"partner_id": partnerID, "reply": p.FirstMessage()}).Info("partner registered")
	return nil
}

// Setup sends a landmark document and returns the initial observation.
func (a *Agent) Setup(ctx context.Context, document []byte) (Observation, error) {
	if a.partnerID == "" {
		return Observation{}, ErrNotPaired
	}
	if err := a.send(ws.NewPacket(ws.CommandSetup, a.networkID, a.partnerID, []string{string(document)}, nil)); err != nil {
		return Observation{}, err
	}
	return a.observe(ctx)
}

// Play sends one command batch and waits for its acknowledgement.
func (a *Agent) Play(ctx context.Context, commands []string) (Observation, error) {
	if a.partnerID == "" {
		return Observation{}, ErrNotPaired
	}
	if err := a.send(ws.NewPacket(ws.CommandGameInteraction, a.networkID, a.partnerID, commands, nil)); err != nil {
		return Observation{}, err
	}
	return a.observe(ctx)
}

// Reset asks the simulator to drop its level.
func (a *Agent) Reset() error {
	if a.partnerID == "" {
		return ErrNotPaired
	}
	return a.send(ws.NewPacket(ws.CommandReset, a.networkID, a.partnerID,
		[]string{ws.MessageResetToMainMenu}, nil))
}

func (a *Agent) observe(ctx context.Context) (Observation, error) {
	p, err := a.await(ctx, ws.CommandActionAck)
	if err != nil {
		return Observation{}, err
	}
	return DecodeObservation(p)
}

// DecodeObservation reads the log JSON and frame size from an ActionAck.
func DecodeObservation(p *ws.Packet) (Observation, error) {
	obs := Observation{Packet: p}
	if len(p.Messages) == 0 {
		return obs, fmt.Errorf("%w: acknowledgement without log", ErrUnexpectedPacket)
	}
	if err := json.Unmarshal([]byte(p.Messages[0]), &obs.Log); err != nil {
		return obs, fmt.Errorf("decode log: %w", err)
	}
	if len(p.Messages) >= 3 {
		w, errW := strconv.Atoi(p.Messages[1])
		h, errH := strconv.Atoi(p.Messages[2])
		if errW == nil && errH == nil {
			obs.Frame = model.Frame{Width: w, Height: h, Pixels: p.Data}
		}
	}
	return obs, nil
}

// await returns the next packet with the wanted command. Error packets end
// the wait; anything else is logged and skipped.
func (a *Agent) await(ctx context.Context, want ws.Command) (*ws.Packet, error) {
	for {
		p, err := a.next(ctx)
		if err != nil {
			return nil, err
		}
		switch p.Command {
		case want:
			return p, nil
		case ws.CommandError:
			return nil, fmt.Errorf("%w: %s", ErrPeerError, p.FirstMessage())
		default:
			a.log.WithFields(logrus.Fields{"command": p.Command, "waiting_for": want}).Debug("skipping packet")
		}
	}
}

func (a *Agent) next(ctx context.Context) (*ws.Packet, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case raw, ok := <-a.in:
		if !ok {
			return nil, ErrInboxClosed
		}
		return ws.Decode(raw)
	}
}

func (a *Agent) send(p *ws.Packet) error {
	raw, err := ws.Encode(p)
	if err != nil {
		return err
	}
	if err := a.out.Send(raw); err != nil {
		return fmt.Errorf("send %s: %w", p.Command, err)
	}
	return nil
}

// SplitCommands turns "start, move red cube up" into a batch.
func SplitCommands(line string) []string {
	parts := strings.Split(line, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Interact reads command lines from r until the puzzle is done, the input
// ends, or the user types exit or reset. Every outcome is written to w.
// onObserve, when set, sees every acknowledgement.
func (a *Agent) Interact(ctx context.Context, r io.Reader, w io.Writer, onObserve func(Observation)) error {
	scanner := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return a.Reset()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "reset":
			return a.Reset()
		}

		obs, err := a.Play(ctx, SplitCommands(line))
		if err != nil {
			if errors.Is(err, ErrPeerError) {
				fmt.Fprintln(w, err)
				continue
			}
			return err
		}
		if onObserve != nil {
			onObserve(obs)
		}
		PrintObservation(w, obs)
		if obs.Done() {
			fmt.Fprintln(w, "puzzle finished")
			return a.Reset()
		}
	}
}

func PrintObservation(w io.Writer, obs Observation) {
	for _, act := range obs.Log.Actions {
		fmt.Fprintf(w, "%d.%d %s: %s\n", act.CommandCount, act.ActionCount, act.Prompt, strings.Join(act.Validity, "; "))
	}
	for _, state := range obs.Log.BoardState {
		fmt.Fprintln(w, state)
	}
}
