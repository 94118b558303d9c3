package controller

import (
	"errors"

	"github.com/benbeisheim/gridpuzzle-backend/internal/middleware"
	"github.com/benbeisheim/gridpuzzle-backend/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type RelayController struct {
	relayService *service.RelayService
	log          *logrus.Entry
}

func NewRelayController(relayService *service.RelayService, log *logrus.Entry) *RelayController {
	return &RelayController{
		relayService: relayService,
		log:          log,
	}
}

// Register mounts the relay socket and the peer listing on r.
func (rc *RelayController) Register(r fiber.Router, cfg websocket.Config) {
	r.Use("/ws", middleware.RequestedNetworkID(), middleware.WebSocketUpgrade())
	r.Get("/ws", websocket.New(rc.HandleConnection, cfg))
	r.Get("/api/peers", rc.Peers)
}

// HandleConnection serves one relay client for the life of its socket.
func (rc *RelayController) HandleConnection(c *websocket.Conn) {
	requested, _ := c.Locals(middleware.NetworkIDKey).(string)

	peer, err := rc.relayService.Connect(requested, c)
	if err != nil {
		rc.log.WithError(err).WithField("requested_id", requested).Warn("failed to register connection")
		_ = c.Close()
		return
	}
	log := rc.log.WithField("peer", peer.ID)
	defer rc.relayService.Disconnect(peer.ID)

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("read error")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if err := rc.relayService.Forward(peer.ID, message); err != nil {
			if errors.Is(err, service.ErrPeerNotConnected) {
				log.WithError(err).Info("target not connected")
				continue
			}
			log.WithError(err).Warn("dropping packet")
		}
	}
}

// Peers lists the connected relay clients.
func (rc *RelayController) Peers(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"peers": rc.relayService.Peers(),
	})
}
