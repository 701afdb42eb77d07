package natspub

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"vidstream/internal/events"
)

const subjectPrefix = "engagement."

type Config struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
	ClientName    string
}

type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// Publisher forwards engagement events to NATS subjects engagement.<type>.
type Publisher struct {
	conn conn
}

func Connect(cfg Config) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Printf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: nc}, nil
}

func Subject(e events.Event) string {
	return subjectPrefix + e.Type
}

// Run publishes until ctx ends or feed closes. Failures are logged and skipped.
func (p *Publisher) Run(ctx context.Context, feed <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-feed:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				log.Println("nats marshal:", err)
				continue
			}
			if err := p.conn.Publish(Subject(e), data); err != nil {
				log.Printf("nats publish %s: %v", Subject(e), err)
			}
		}
	}
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
