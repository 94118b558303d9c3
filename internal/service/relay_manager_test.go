package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/benbeisheim/gridpuzzle-backend/internal/logger"
	"github.com/benbeisheim/gridpuzzle-backend/internal/ws"
	"github.com/google/uuid"
)

type recordingConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *recordingConn) WriteMessage(_ int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, append([]byte(nil), data...))
	return nil
}

func (r *recordingConn) packets(t *testing.T) []*ws.Packet {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ws.Packet, 0, len(r.frames))
	for _, f := range r.frames {
		p, err := ws.Decode(f)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func TestRelayConnectGreetsWithID(t *testing.T) {
	svc := NewRelayService(NewRelayManager(logger.Discard()))
	conn := &recordingConn{}

	peer, err := svc.Connect("", conn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := uuid.Parse(peer.ID); err != nil {
		t.Fatalf("assigned id is not a uuid: %q", peer.ID)
	}
	got := conn.packets(t)
	if len(got) != 1 {
		t.Fatalf("expected one handshake, got %d", len(got))
	}
	hs := got[0]
	if hs.Command != ws.CommandHandshake || hs.From != ws.ServerID || hs.To != peer.ID {
		t.Fatalf("unexpected handshake %+v", hs)
	}
	if len(hs.Messages) != 2 || hs.Messages[0] != ws.MessageServerBanner || hs.Messages[1] != ws.MessageIDRegistered {
		t.Fatalf("unexpected handshake messages %v", hs.Messages)
	}
}

func TestRelayRegisterRejects(t *testing.T) {
	rm := NewRelayManager(logger.Discard())
	if _, err := rm.Register("fixed", &recordingConn{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := rm.Register("fixed", &recordingConn{}); !errors.Is(err, ErrDuplicatePeer) {
		t.Fatalf("expected ErrDuplicatePeer, got %v", err)
	}
	if _, err := rm.Register(ws.ServerID, &recordingConn{}); !errors.Is(err, ErrReservedID) {
		t.Fatalf("expected ErrReservedID, got %v", err)
	}
	rm.Unregister("fixed")
	if len(rm.Peers()) != 0 {
		t.Fatal("peer should be gone")
	}
}

func TestRelayRoute(t *testing.T) {
	rm := NewRelayManager(logger.Discard())
	simConn, agentConn := &recordingConn{}, &recordingConn{}
	if _, err := rm.Register("sim", simConn); err != nil {
		t.Fatal(err)
	}
	if _, err := rm.Register("agent", agentConn); err != nil {
		t.Fatal(err)
	}

	raw, _ := ws.Encode(ws.NewPacket(ws.CommandGameInteraction, "agent", "sim", []string{"start"}, []byte("opt")))
	if err := rm.Route("agent", raw); err != nil {
		t.Fatalf("route: %v", err)
	}
	got := simConn.packets(t)
	if len(got) != 1 || got[0].FirstMessage() != "start" || string(got[0].Data) != "opt" {
		t.Fatalf("packet not forwarded intact: %+v", got)
	}

	toRelay, _ := ws.Encode(ws.NewPacket(ws.CommandACK, "sim", ws.ServerID, []string{ws.MessageHandshakeAck}, nil))
	if err := rm.Route("sim", toRelay); err != nil {
		t.Fatalf("packets for the relay are consumed, got %v", err)
	}

	lost, _ := ws.Encode(ws.NewPacket(ws.CommandGameInteraction, "agent", "nobody", []string{"start"}, nil))
	if err := rm.Route("agent", lost); !errors.Is(err, ErrPeerNotConnected) {
		t.Fatalf("expected ErrPeerNotConnected, got %v", err)
	}
	back := agentConn.packets(t)
	if len(back) != 1 || back[0].Command != ws.CommandError || back[0].To != "agent" {
		t.Fatalf("sender should get an error packet, got %+v", back)
	}
	if back[0].FirstMessage() != "Target client nobody is not connected." {
		t.Fatalf("unexpected error text %q", back[0].FirstMessage())
	}
	if len(simConn.packets(t)) != 1 {
		t.Fatal("relay packets must not reach other peers")
	}

	if err := rm.Route("agent", []byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}
