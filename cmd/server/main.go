package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/benbeisheim/gridpuzzle-backend/internal/config"
	"github.com/benbeisheim/gridpuzzle-backend/internal/controller"
	"github.com/benbeisheim/gridpuzzle-backend/internal/logger"
	"github.com/benbeisheim/gridpuzzle-backend/internal/middleware"
	"github.com/benbeisheim/gridpuzzle-backend/internal/service"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowedOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, X-Network-ID",
		AllowMethods: "GET, OPTIONS",
	}))
	app.Use(middleware.RequestLogger(logger.Component(log, "http")))

	// Initialize services
	relayManager := service.NewRelayManager(logger.Component(log, "relay"))
	relayService := service.NewRelayService(relayManager)

	relayController := controller.NewRelayController(relayService, logger.Component(log, "relay"))
	relayController.Register(app, websocket.Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		// Simulators and agents are native clients without an Origin header.
		Origins: []string{"*"},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	log.WithField("addr", cfg.RelayAddr).Info("relay listening")
	if err := app.Listen(cfg.RelayAddr); err != nil {
		log.WithError(err).Fatal("relay stopped")
	}
}
