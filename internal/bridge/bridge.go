// Package bridge joins a room as a silent observer and republishes its
// event stream to NATS JetStream, so rounds can be recorded and
// analyzed without touching the game backend.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"

	"github.com/teamtrivia/roomsync/internal/quiz"
)

// Config holds the JetStream target for republished room events.
type Config struct {
	URL           string        `yaml:"url"`
	StreamName    string        `yaml:"stream"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`
}

// DefaultConfig returns the publisher defaults.
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		StreamName:    "QUIZ_EVENTS",
		SubjectPrefix: "quiz.rooms",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Publisher forwards room events onto a JetStream stream, one subject
// per room and event name.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config Config
}

// envelope is the recorded form of one room event.
type envelope struct {
	RoomID     int64           `json:"roomId"`
	Event      quiz.EventName  `json:"event"`
	Data       json.RawMessage `json:"data"`
	ObservedAt time.Time       `json:"observedAt"`
}

// NewPublisher connects to NATS and makes sure the stream exists.
func NewPublisher(ctx context.Context, config Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	p := &Publisher{nc: nc, js: js, config: config}
	if err := p.ensureStream(ctx); err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return p, nil
}

func (p *Publisher) ensureStream(ctx context.Context) error {
	_, err := p.js.Stream(ctx, p.config.StreamName)
	if err == nil {
		log.Info().Str("stream", p.config.StreamName).Msg("using existing JetStream stream")
		return nil
	}
	_, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Recorded quiz room events",
		Subjects:    []string{p.config.SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
	})
	if err != nil {
		return err
	}
	log.Info().Str("stream", p.config.StreamName).Msg("created JetStream stream")
	return nil
}

// Publish records one observed event. Publishing is asynchronous;
// failures are logged and never stall the observer.
func (p *Publisher) Publish(roomID int64, event quiz.Event) {
	subject := fmt.Sprintf("%s.%d.%s", p.config.SubjectPrefix, roomID, event.Name)
	data, err := json.Marshal(envelope{
		RoomID:     roomID,
		Event:      event.Name,
		Data:       event.Data,
		ObservedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("marshal recorded event")
		return
	}
	if _, err := p.js.PublishAsync(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("publish recorded event")
	}
}

// Run forwards events until the stream closes or ctx is cancelled.
func (p *Publisher) Run(ctx context.Context, roomID int64, events <-chan quiz.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			p.Publish(roomID, event)
		}
	}
}

// Close drains pending publishes and closes the connection.
func (p *Publisher) Close() {
	select {
	case <-p.js.PublishAsyncComplete():
	case <-time.After(5 * time.Second):
		log.Warn().Msg("timed out waiting for pending publishes")
	}
	p.nc.Close()
}
