package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/teamtrivia/roomsync/internal/bridge"
	"github.com/teamtrivia/roomsync/internal/config"
	"github.com/teamtrivia/roomsync/internal/quiz"
	"github.com/teamtrivia/roomsync/internal/transport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var (
		roomID  = flag.Int64("room", 0, "room PIN to observe")
		cfgPath = flag.String("config", "", "YAML config for the NATS target")
	)
	flag.Parse()
	if *roomID <= 0 {
		log.Fatal().Msg("-room is required and must be positive")
	}

	bridgeCfg := bridge.DefaultConfig()
	if *cfgPath != "" {
		if err := config.LoadYAML(*cfgPath, &bridgeCfg); err != nil {
			log.Fatal().Err(err).Msg("load config failed")
		}
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		bridgeCfg.URL = url
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clientCfg := config.ClientFromEnv()
	socket, err := transport.Dial(ctx, clientCfg.SocketURL, transport.DefaultSocketConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("socket dial failed")
	}
	defer socket.Close()

	publisher, err := bridge.NewPublisher(ctx, bridgeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connect publisher failed")
	}
	defer publisher.Close()

	// Join as an ordinary participant; the bridge never answers or
	// chats, it only listens.
	if err := socket.Emit(quiz.EventJoinRoom, quiz.RoomRef{RoomID: *roomID}); err != nil {
		log.Fatal().Err(err).Msg("join room failed")
	}

	log.Info().
		Int64("room_id", *roomID).
		Str("stream", bridgeCfg.StreamName).
		Msg("recording room events")
	publisher.Run(ctx, *roomID, socket.Events())
}
