package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/benbeisheim/gridpuzzle-backend/internal/agent"
	"github.com/benbeisheim/gridpuzzle-backend/internal/capture"
	"github.com/benbeisheim/gridpuzzle-backend/internal/config"
	"github.com/benbeisheim/gridpuzzle-backend/internal/logger"
	"github.com/benbeisheim/gridpuzzle-backend/internal/transport"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a yaml config file")
		partner    = flag.String("partner", "", "network id of the simulator; asked for when empty")
		setupPath  = flag.String("setup", "", "landmark file sent as Setup before playing")
		framesDir  = flag.String("frames", "", "directory to save every received frame as png")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := transport.Dial(ctx, cfg.RelayURL, transport.Options{
		MaxMessageBytes: cfg.MaxMessageBytes,
	}, logger.Component(log, "transport"))
	if err != nil {
		log.WithError(err).Fatal("failed to reach relay")
	}
	defer client.Close()

	inbox := make(chan []byte, 16)
	go func() {
		err := client.Run(ctx, agent.Feed(ctx, inbox))
		log.WithError(err).Debug("read loop ended")
		close(inbox)
	}()

	a := agent.New(client, inbox, logger.Component(log, "agent"))
	if err := a.AwaitRelay(ctx); err != nil {
		log.WithError(err).Fatal("relay handshake failed")
	}
	fmt.Printf("your network id is %s\n", a.NetworkID())

	stdin := bufio.NewReader(os.Stdin)
	for {
		id := *partner
		if id == "" {
			fmt.Print("Please enter the remote client id: ")
			line, err := stdin.ReadString('\n')
			if err != nil {
				log.WithError(err).Fatal("no partner id")
			}
			id = strings.TrimSpace(line)
		}
		if err := a.Pair(ctx, id); err != nil {
			log.WithError(err).Warn("pairing failed")
			if *partner != "" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	if *framesDir != "" {
		if err := os.MkdirAll(*framesDir, 0o755); err != nil {
			log.WithError(err).Fatal("failed to create frames directory")
		}
	}
	step := 0
	saveFrame := func(obs agent.Observation) {
		step++
		if *framesDir == "" || obs.Frame.Empty() {
			return
		}
		img, err := capture.EncodePNG(obs.Frame)
		if err != nil {
			log.WithError(err).Warn("failed to encode frame")
			return
		}
		path := filepath.Join(*framesDir, fmt.Sprintf("step_%03d.png", step))
		if err := os.WriteFile(path, img, 0o644); err != nil {
			log.WithError(err).Warn("failed to save frame")
		}
	}

	if *setupPath != "" {
		doc, err := os.ReadFile(*setupPath)
		if err != nil {
			log.WithError(err).Fatal("failed to read setup")
		}
		obs, err := a.Setup(ctx, doc)
		if err != nil {
			log.WithError(err).Fatal("setup rejected")
		}
		saveFrame(obs)
		agent.PrintObservation(os.Stdout, obs)
	}

	if err := a.Interact(ctx, stdin, os.Stdout, saveFrame); err != nil {
		log.WithError(err).Error("session ended")
	}
}
