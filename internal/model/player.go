package model

import (
	"sync"

	"github.com/gofiber/websocket/v2"
)

// MessageWriter is the write half of a websocket connection.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// Peer is one client connected to the relay.
type Peer struct {
	ID   string
	conn MessageWriter
	mu   sync.Mutex
}

func NewPeer(id string, conn MessageWriter) *Peer {
	return &Peer{ID: id, conn: conn}
}

// Write sends one text frame. A websocket conn allows one writer at a
// time, so every write goes through the peer lock.
func (p *Peer) Write(msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, msg)
}

// ClientPeer is the JSON view of a peer.
type ClientPeer struct {
	ID string `json:"id"`
}
