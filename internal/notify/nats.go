package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

type streamPublisher interface {
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATS publishes to a JetStream stream under "<prefix>.<subject>".
type NATS struct {
	conn   *nats.Conn
	js     streamPublisher
	prefix string
}

// NewNATS connects and makes sure the stream captures the subject prefix.
func NewNATS(ctx context.Context, cfg config.NATSConfig) (*NATS, error) {
	conn, err := nats.Connect(cfg.URL, nats.Name("feeder"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, errors.NetworkError("failed to connect to NATS").WithCause(err).WithContext("url", cfg.URL).Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.NetworkError("failed to create JetStream context").WithCause(err).Build()
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "Feed session events",
		Subjects:    []string{cfg.Subject + ".>"},
		MaxAge:      30 * 24 * time.Hour,
	}); err != nil {
		conn.Close()
		return nil, errors.NetworkError("failed to create JetStream stream").
			WithCause(err).WithContext("stream", cfg.Stream).Build()
	}

	slog.Info("NATS publisher initialized", "url", cfg.URL, "stream", cfg.Stream, "subject", cfg.Subject)
	return &NATS{conn: conn, js: js, prefix: cfg.Subject}, nil
}

func (n *NATS) Publish(ctx context.Context, subject string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := n.js.Publish(ctx, n.prefix+"."+subject, payload); err != nil {
		return errors.NetworkError("failed to publish to NATS").WithCause(err).WithContext("subject", subject).Build()
	}
	return nil
}

func (n *NATS) Close() error {
	if n.conn != nil {
		return n.conn.Drain()
	}
	return nil
}
