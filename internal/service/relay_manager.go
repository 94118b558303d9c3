// service/relay_manager.go
package service

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/benbeisheim/gridpuzzle-backend/internal/model"
	"github.com/benbeisheim/gridpuzzle-backend/internal/ws"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrDuplicatePeer    = errors.New("network id already connected")
	ErrReservedID       = errors.New("network id is reserved for the relay")
	ErrPeerNotConnected = errors.New("target client is not connected")
)

// RelayManager keeps the connected peers and forwards packets between them.
type RelayManager struct {
	peers map[string]*model.Peer
	mu    sync.RWMutex
	log   *logrus.Entry
}

func NewRelayManager(log *logrus.Entry) *RelayManager {
	return &RelayManager{
		peers: make(map[string]*model.Peer),
		log:   log,
	}
}

// Register adds a connection. An empty requestedID gets a fresh UUID.
func (rm *RelayManager) Register(requestedID string, conn model.MessageWriter) (*model.Peer, error) {
	id := requestedID
	if id == "" {
		id = uuid.New().String()
	}
	if id == ws.ServerID {
		return nil, ErrReservedID
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.peers[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicatePeer, id)
	}
	peer := model.NewPeer(id, conn)
	rm.peers[id] = peer
	rm.log.WithFields(logrus.Fields{"peer": id, "connected": len(rm.peers)}).Info("client connected and registered")
	return peer, nil
}

func (rm *RelayManager) Unregister(id string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if _, exists := rm.peers[id]; exists {
		delete(rm.peers, id)
		rm.log.WithFields(logrus.Fields{"peer": id, "connected": len(rm.peers)}).Info("removed connection")
	}
}

func (rm *RelayManager) Peer(id string) (*model.Peer, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	peer, exists := rm.peers[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPeerNotConnected, id)
	}
	return peer, nil
}

func (rm *RelayManager) Peers() []model.ClientPeer {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	out := make([]model.ClientPeer, 0, len(rm.peers))
	for id := range rm.peers {
		out = append(out, model.ClientPeer{ID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Greet sends the relay handshake that tells a peer its network id.
func (rm *RelayManager) Greet(peer *model.Peer) error {
	raw, err := ws.Encode(ws.NewPacket(ws.CommandHandshake, ws.ServerID, peer.ID,
		[]string{ws.MessageServerBanner, ws.MessageIDRegistered}, nil))
	if err != nil {
		return err
	}
	return peer.Write(raw)
}

// Route forwards raw to the peer named in its "to" field without touching
// the payload. Packets for the relay itself stop here. When the target is
// missing the sender gets an Error packet back.
func (rm *RelayManager) Route(senderID string, raw []byte) error {
	from, to, cmd, err := ws.Peek(raw)
	if err != nil {
		return err
	}
	entry := rm.log.WithFields(logrus.Fields{"from": from, "to": to, "command": cmd})

	if to == ws.ServerID {
		entry.Debug("packet for relay consumed")
		return nil
	}

	target, err := rm.Peer(to)
	if err != nil {
		entry.Warn("target not connected")
		replyTo := from
		if replyTo == "" {
			replyTo = senderID
		}
		notice, encErr := ws.Encode(ws.NewPacket(ws.CommandError, ws.ServerID, replyTo,
			[]string{fmt.Sprintf("Target client %s is not connected.", to)}, nil))
		if encErr != nil {
			return encErr
		}
		if sender, lookupErr := rm.Peer(senderID); lookupErr == nil {
			if writeErr := sender.Write(notice); writeErr != nil {
				entry.WithError(writeErr).Warn("failed to notify sender")
			}
		}
		return err
	}

	entry.Debug("routing packet")
	if err := target.Write(raw); err != nil {
		return fmt.Errorf("forward to %s: %w", to, err)
	}
	return nil
}
