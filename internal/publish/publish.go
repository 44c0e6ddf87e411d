// Package publish fans resolved flight lists out to NATS subscribers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"flightinfo/internal/flight"
)

// DefaultSubjectPrefix is prepended to every subject.
const DefaultSubjectPrefix = "flightinfo"

// Publisher receives the flights of one lookup. kind is "airport" or
// "aircraft" and key the airport code or aircraft identifier.
type Publisher interface {
	Publish(ctx context.Context, kind, key string, flights []flight.Record) error
	Close() error
}

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(context.Context, string, string, []flight.Record) error { return nil }
func (Nop) Close() error                                                   { return nil }

// Message is the JSON payload published for a lookup.
type Message struct {
	Kind      string          `json:"kind"`
	Key       string          `json:"key"`
	Flights   []flight.Record `json:"flights"`
	Published time.Time       `json:"published"`
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Name          string
}

// NATS publishes lookups to "<prefix>.<kind>.<key>".
type NATS struct {
	conn   *nats.Conn
	prefix string
	now    func() time.Time
}

// OpenNATS connects to the NATS server in cfg.URL.
func OpenNATS(cfg NATSConfig) (*NATS, error) {
	name := cfg.Name
	if name == "" {
		name = "flightinfo"
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newNATS(conn, cfg.SubjectPrefix), nil
}

func newNATS(conn *nats.Conn, prefix string) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATS{conn: conn, prefix: strings.TrimSuffix(prefix, "."), now: time.Now}
}

// Subject returns the subject a lookup is published on. Characters NATS
// treats as separators or wildcards are replaced in key.
func (n *NATS) Subject(kind, key string) string {
	key = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(key)
	return n.prefix + "." + kind + "." + key
}

// Publish sends flights as a Message. Publishing is asynchronous; errors only
// cover encoding and a closed connection.
func (n *NATS) Publish(ctx context.Context, kind, key string, flights []flight.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(Message{
		Kind:      kind,
		Key:       key,
		Flights:   flights,
		Published: n.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	if err := n.conn.Publish(n.Subject(kind, key), data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	return nil
}
