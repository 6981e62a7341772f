package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSConn is the subset of *nats.Conn used by NATSPublisher.
type NATSConn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSConfig holds configuration for the NATS publisher.
type NATSConfig struct {
	URL     string
	Subject string
	Logger  zerolog.Logger
}

// NATSPublisher publishes events to a NATS subject.
type NATSPublisher struct {
	conn    NATSConn
	subject string
	logger  zerolog.Logger
}

// NewNATSPublisher connects to the configured server.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name("routequality"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return NewNATSPublisherWithConn(nc, cfg.Subject, cfg.Logger), nil
}

// NewNATSPublisherWithConn creates a publisher over an existing connection.
func NewNATSPublisherWithConn(conn NATSConn, subject string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger,
	}
}

// Publish implements Publisher. The connection is flushed so that a returned
// nil error means the server received the message.
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	data, err := event.Encode()
	if err != nil {
		return err
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publishing to subject %s: %w", p.subject, err)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flushing subject %s: %w", p.subject, err)
	}

	p.logger.Debug().
		Str("event_id", event.ID).
		Str("subject", p.subject).
		Msg("published event")

	return nil
}

// Close implements Publisher.
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
