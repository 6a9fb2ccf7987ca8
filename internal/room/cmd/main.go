package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/teamtrivia/roomsync/internal/config"
	"github.com/teamtrivia/roomsync/internal/quiz"
	"github.com/teamtrivia/roomsync/internal/room"
	"github.com/teamtrivia/roomsync/internal/transport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var (
		roomID = flag.Int64("room", 0, "room PIN to join or create")
		host   = flag.Bool("host", false, "create the room and act as host")
		name   = flag.String("name", "Quiz night", "room name (host only)")
		topic  = flag.String("topic", "General knowledge", "quiz topic (host only)")
		size   = flag.Int("size", 8, "participant capacity (host only)")
	)
	flag.Parse()
	if *roomID <= 0 {
		log.Fatal().Msg("-room is required and must be positive")
	}

	cfg := config.ClientFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := transport.NewAPI(cfg.ServerURL)
	if *host {
		resp, err := api.CreateRoom(ctx, transport.CreateRoomRequest{
			RoomID:          *roomID,
			RoomName:        *name,
			QuizTheme:       *topic,
			MaxParticipants: *size,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("create room failed")
		}
		if !resp.OK {
			log.Warn().Int64("room_id", *roomID).Msg("room already exists, rejoining as host")
		}
	} else {
		resp, err := api.CheckPIN(ctx, *roomID)
		if err != nil {
			log.Fatal().Err(err).Msg("check pin failed")
		}
		if !resp.OK {
			log.Fatal().Int64("room_id", *roomID).Msg("no room with this PIN")
		}
	}

	socket, err := transport.Dial(ctx, cfg.SocketURL, transport.DefaultSocketConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("socket dial failed")
	}
	defer socket.Close()

	ctrl := room.New(room.Config{
		RoomID:           *roomID,
		Socket:           socket,
		QuestionDuration: cfg.QuestionDuration,
		Logger:           log.Logger,
	})

	joinEvent := quiz.EventJoinRoom
	if *host {
		joinEvent = quiz.EventCreateRoom
	}
	if err := socket.Emit(joinEvent, quiz.RoomRef{RoomID: *roomID}); err != nil {
		log.Fatal().Err(err).Msg("room handshake failed")
	}

	go ctrl.Run(ctx, socket.Events())
	go render(ctx, ctrl)
	go func() {
		if err, ok := <-socket.Errors(); ok && err != nil {
			log.Warn().Err(err).Msg("connection lost, showing last known state")
		}
	}()

	readInput(ctx, ctrl)
	stop()
}

// render prints the room state after every update, new chat lines as
// they land and a status line while a question is running.
func render(ctx context.Context, ctrl *room.Controller) {
	printed := 0
	lastLine := ""
	for {
		select {
		case <-ctx.Done():
			return
		case <-ctrl.Updates():
		}

		v := ctrl.View()
		if !v.Loaded {
			continue
		}
		for ; printed < len(v.Messages); printed++ {
			m := v.Messages[printed]
			fmt.Printf("[%s] %s\n", m.Team, m.Text)
		}
		line := statusLine(v)
		if line != lastLine {
			fmt.Println(line)
			lastLine = line
		}
	}
}

func statusLine(v room.View) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s (%s) | %d/%d players | you: %s/%s",
		v.Name, v.Topic, len(v.Participants), v.MaxParticipants, v.Role, v.Team)
	if v.GameStatus == quiz.GameActive && v.Question != nil {
		fmt.Fprintf(&b, " | Q%d [%s] %s (%s) %ds",
			v.QuestionIndex, v.ActiveTeam, v.Question.Text,
			strings.Join(v.Question.Answers, ", "), v.Remaining)
	} else if v.GameStatus != "" {
		fmt.Fprintf(&b, " | game %s", v.GameStatus)
	}
	if v.Panel.Paused {
		b.WriteString(" | PAUSED")
	}
	if v.Advisory != "" {
		fmt.Fprintf(&b, " | %s", v.Advisory)
	}
	return b.String()
}

func readInput(ctx context.Context, ctrl *room.Controller) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "/quit":
			return
		case "/start":
			ctrl.StartGame()
		case "/next":
			ctrl.RequestNextQuestion()
		case "/answer":
			ctrl.SubmitAnswer(arg)
		case "/pause":
			ctrl.SetPaused(arg != "off")
		case "/lock":
			ctrl.SetLobbyLocked(arg != "off")
		case "/mute":
			ctrl.SetChatMuted(arg != "off")
		case "/hints":
			ctrl.SetHintsEnabled(arg != "off")
		case "/shuffle":
			ctrl.ShuffleTeams()
		case "/reset":
			ctrl.ResetTeams()
		default:
			ctrl.SendMessage(line)
		}
	}
}
