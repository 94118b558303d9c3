package controller

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/benbeisheim/gridpuzzle-backend/internal/agent"
	"github.com/benbeisheim/gridpuzzle-backend/internal/capture"
	"github.com/benbeisheim/gridpuzzle-backend/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type SessionController struct {
	session *service.Session
	log     *logrus.Entry
}

func NewSessionController(session *service.Session, log *logrus.Entry) *SessionController {
	return &SessionController{session: session, log: log}
}

// Register mounts the session routes on r.
func (sc *SessionController) Register(r fiber.Router) {
	r.Get("/", sc.GetInfo)
	r.Get("/log", sc.GetLog)
	r.Get("/board", sc.GetBoard)
	r.Get("/frame.png", sc.GetFrame)
	r.Get("/history", sc.GetHistory)
	r.Get("/ack", sc.GetLastAck)
	r.Post("/commands", sc.SubmitCommands)
}

func (sc *SessionController) GetInfo(c *fiber.Ctx) error {
	return c.JSON(sc.session.Info())
}

func (sc *SessionController) GetLog(c *fiber.Ctx) error {
	body, err := sc.session.CurrentLog()
	if err != nil {
		return sc.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.SendString(body)
}

func (sc *SessionController) GetBoard(c *fiber.Ctx) error {
	view, err := sc.session.Board()
	if err != nil {
		return sc.fail(c, err)
	}
	return c.JSON(view)
}

func (sc *SessionController) GetFrame(c *fiber.Ctx) error {
	frame, err := sc.session.Frame(c.UserContext())
	if err != nil {
		return sc.fail(c, err)
	}
	if frame.Empty() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no frame available",
		})
	}
	img, err := capture.EncodePNG(frame)
	if err != nil {
		return sc.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(img)
}

// GetHistory exports the recorded logs, zstd JSONL by default or a JSON
// array with ?format=json.
func (sc *SessionController) GetHistory(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if c.Query("format") == "json" {
		if err := sc.session.History().WriteJSON(&buf); err != nil {
			return sc.fail(c, err)
		}
		c.Attachment("experiment_log.json")
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(buf.Bytes())
	}
	if err := sc.session.History().WriteJSONLZstd(&buf); err != nil {
		return sc.fail(c, err)
	}
	c.Attachment("experiment_log.jsonl.zst")
	c.Set(fiber.HeaderContentType, "application/zstd")
	return c.Send(buf.Bytes())
}

type ackResponse struct {
	Log    json.RawMessage `json:"log"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Solved bool            `json:"solved"`
	Reset  bool            `json:"reset"`
	Ended  bool            `json:"ended"`
}

func (sc *SessionController) GetLastAck(c *fiber.Ctx) error {
	ack, ok := sc.session.LastAck()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no acknowledgement yet",
		})
	}
	return c.JSON(ackResponse{
		Log:    json.RawMessage(ack.Log),
		Width:  ack.Frame.Width,
		Height: ack.Frame.Height,
		Solved: ack.Solved,
		Reset:  ack.Reset,
		Ended:  sc.session.Info().Ended,
	})
}

type commandRequest struct {
	Commands []string `json:"commands"`
	Line     string   `json:"line"`
}

// SubmitCommands runs one batch of a human experiment. Commands come either
// as a list or as one comma separated line.
func (sc *SessionController) SubmitCommands(c *fiber.Ctx) error {
	var req commandRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	commands := req.Commands
	if len(commands) == 0 {
		commands = agent.SplitCommands(req.Line)
	}
	if len(commands) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no commands given",
		})
	}

	ack, err := sc.session.Submit(c.UserContext(), commands)
	if err != nil {
		return sc.fail(c, err)
	}
	return c.JSON(ackResponse{
		Log:    json.RawMessage(ack.Log),
		Width:  ack.Frame.Width,
		Height: ack.Frame.Height,
		Solved: ack.Solved,
		Reset:  ack.Reset,
		Ended:  sc.session.Info().Ended,
	})
}

func (sc *SessionController) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNoLevel):
		status = fiber.StatusNotFound
	case errors.Is(err, service.ErrExperimentEnded):
		status = fiber.StatusGone
	case errors.Is(err, service.ErrNotHumanSession), errors.Is(err, service.ErrTurnInProgress):
		status = fiber.StatusConflict
	}
	if status == fiber.StatusInternalServerError {
		sc.log.WithError(err).Error("request failed")
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
