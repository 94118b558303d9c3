package service

import (
	"fmt"

	"github.com/benbeisheim/gridpuzzle-backend/internal/model"
)

type RelayService struct {
	relayManager *RelayManager
}

func NewRelayService(relayManager *RelayManager) *RelayService {
	return &RelayService{
		relayManager: relayManager,
	}
}

// Connect registers a connection and sends it the relay handshake.
func (rs *RelayService) Connect(requestedID string, conn model.MessageWriter) (*model.Peer, error) {
	peer, err := rs.relayManager.Register(requestedID, conn)
	if err != nil {
		return nil, err
	}
	if err := rs.relayManager.Greet(peer); err != nil {
		rs.relayManager.Unregister(peer.ID)
		return nil, fmt.Errorf("failed to send handshake: %w", err)
	}
	return peer, nil
}

func (rs *RelayService) Disconnect(peerID string) {
	rs.relayManager.Unregister(peerID)
}

func (rs *RelayService) Forward(senderID string, raw []byte) error {
	return rs.relayManager.Route(senderID, raw)
}

func (rs *RelayService) Peers() []model.ClientPeer {
	return rs.relayManager.Peers()
}
