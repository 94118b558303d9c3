package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/benbeisheim/gridpuzzle-backend/internal/capture"
	"github.com/benbeisheim/gridpuzzle-backend/internal/config"
	"github.com/benbeisheim/gridpuzzle-backend/internal/controller"
	"github.com/benbeisheim/gridpuzzle-backend/internal/logger"
	"github.com/benbeisheim/gridpuzzle-backend/internal/middleware"
	"github.com/benbeisheim/gridpuzzle-backend/internal/model"
	"github.com/benbeisheim/gridpuzzle-backend/internal/service"
	"github.com/benbeisheim/gridpuzzle-backend/internal/transport"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	levels := model.NewQueue()
	if cfg.Human {
		levels, err = config.LoadLevels(cfg.Configs)
		if err != nil {
			log.WithError(err).Fatal("failed to load levels")
		}
	}

	session := service.NewSession(service.SessionConfig{
		Human:    cfg.Human,
		CellSize: cfg.CellSize,
		Levels:   levels,
	}, func(l *model.Level) service.Capturer {
		return capture.NewBoardCapture(l, cfg.FrameCellPx)
	}, logger.Component(log, "session"))

	served := make(chan struct{})
	if cfg.Human {
		if err := session.Begin(ctx); err != nil {
			log.WithError(err).Fatal("failed to start experiment")
		}
		close(served)
	} else {
		client, err := transport.Dial(ctx, cfg.RelayURL, transport.Options{
			MaxMessageBytes: cfg.MaxMessageBytes,
		}, logger.Component(log, "transport"))
		if err != nil {
			log.WithError(err).Fatal("failed to reach relay")
		}
		go func() {
			defer close(served)
			if err := session.Serve(ctx, client); err != nil {
				log.WithError(err).Info("relay session ended")
			}
			stop()
		}()
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(middleware.RequestLogger(logger.Component(log, "http")))

	sessionController := controller.NewSessionController(session, logger.Component(log, "http"))
	sessionController.Register(app.Group("/api/session"))

	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	log.WithFields(logrus.Fields{
		"addr":  cfg.HTTPAddr,
		"human": cfg.Human,
	}).Info("simulator api listening")
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.WithError(err).Error("api stopped")
		stop()
	}
	<-served
}
