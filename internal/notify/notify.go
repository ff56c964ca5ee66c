// Package notify fans feed session events out to message brokers.
//
// Publishing is best effort: the feeder keeps dispensing when a broker is
// unreachable, and delivery failures are logged by the caller.
package notify

import (
	"context"
	stderrors "errors"
	"log/slog"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/logfields"
)

// Publisher delivers one payload under a subject such as "session.completed".
// Each implementation maps the subject onto its own addressing scheme.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, string, []byte) error { return nil }
func (Nop) Close() error                                   { return nil }

// Multi publishes to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, subject string, payload []byte) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, subject, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, p := range m {
		errs = append(errs, p.Close())
	}
	return stderrors.Join(errs...)
}

// FromConfig connects every enabled broker. A broker that cannot be reached
// at startup is logged and left out.
func FromConfig(ctx context.Context, cfg config.EventsConfig) Publisher {
	var out Multi
	if cfg.NATS.Enabled {
		if p, err := NewNATS(ctx, cfg.NATS); err != nil {
			slog.Warn("NATS publisher disabled", logfields.Component("notify"), logfields.Error(err))
		} else {
			out = append(out, p)
		}
	}
	if cfg.MQTT.Enabled {
		if p, err := NewMQTT(cfg.MQTT); err != nil {
			slog.Warn("MQTT publisher disabled", logfields.Component("notify"), logfields.Error(err))
		} else {
			out = append(out, p)
		}
	}
	if cfg.Kafka.Enabled {
		if p, err := NewKafka(cfg.Kafka); err != nil {
			slog.Warn("Kafka publisher disabled", logfields.Component("notify"), logfields.Error(err))
		} else {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return Nop{}
	case 1:
		return out[0]
	}
	return out
}
