package controller

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbeisheim/gridpuzzle-backend/internal/agent"
	"github.com/benbeisheim/gridpuzzle-backend/internal/capture"
	"github.com/benbeisheim/gridpuzzle-backend/internal/logger"
	"github.com/benbeisheim/gridpuzzle-backend/internal/model"
	"github.com/benbeisheim/gridpuzzle-backend/internal/service"
	"github.com/benbeisheim/gridpuzzle-backend/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const simID = "6f1d2a4e-1b8c-4f3e-9a57-2d7c0e3b9f10"

func relayApp() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	rs := service.NewRelayService(service.NewRelayManager(logger.Discard()))
	NewRelayController(rs, logger.Discard()).Register(app, websocket.Config{})
	return app
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRelayEndToEnd(t *testing.T) {
	app := relayApp()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	defer func() { _ = app.Shutdown() }()
	url := "ws://" + ln.Addr().String() + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	simConn, err := transport.Dial(ctx, url, transport.Options{Header: http.Header{"X-Network-ID": {simID}}}, logger.Discard())
	if err != nil {
		t.Fatalf("dial simulator: %v", err)
	}
	defer simConn.Close()
	sim := service.NewSession(service.SessionConfig{}, func(l *model.Level) service.Capturer {
		return capture.NewBoardCapture(l, 4)
	}, logger.Discard())
	sim.AttachTransport(simConn)
	go func() { _ = simConn.Run(ctx, func(b []byte) { _ = sim.HandleFrame(ctx, b) }) }()
	waitFor(t, "simulator registration", func() bool { return sim.Info().NetworkID == simID })

	agentConn, err := transport.Dial(ctx, url, transport.Options{}, logger.Discard())
	if err != nil {
		t.Fatalf("dial agent: %v", err)
	}
	defer agentConn.Close()
	inbox := make(chan []byte, 16)
	go func() { _ = agentConn.Run(ctx, agent.Feed(ctx, inbox)) }()

	a := agent.New(agentConn, inbox, logger.Discard())
	if err := a.AwaitRelay(ctx); err != nil {
		t.Fatalf("await relay: %v", err)
	}
	if err := a.Pair(ctx, simID); err != nil {
		t.Fatalf("pair: %v", err)
	}
	if _, err := a.Setup(ctx, []byte(`{"grid_size":3,"landmarks":[{"body":"cube","color":"red","start_coordinate":[0,0],"goal_coordinate":[0,1]}]}`)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	obs, err := a.Play(ctx, []string{"start", "move red cube up 1", "done"})
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if !obs.Done() || len(obs.Frame.Pixels) != 12*12*4 {
		t.Fatalf("unexpected observation: done=%v frame=%d bytes", obs.Done(), len(obs.Frame.Pixels))
	}

	resp, err := app.Test(httptest.NewRequest("GET", "/api/peers", nil), -1)
	if err != nil {
		t.Fatalf("peers: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	var listing struct {
		Peers []model.ClientPeer `json:"peers"`
	}
	if err := json.Unmarshal(raw, &listing); err != nil || len(listing.Peers) != 2 {
		t.Fatalf("expected two peers, got %s (%v)", raw, err)
	}
}

func TestRelayRejectsBadRequests(t *testing.T) {
	app := relayApp()

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("X-Network-ID", "not-a-uuid")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed id, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/ws", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Fatalf("expected 426 without an upgrade, got %d", resp.StatusCode)
	}
}
