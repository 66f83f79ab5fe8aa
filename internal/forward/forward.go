// Package forward publishes final session snapshots to NATS.
//
// Snapshots are published to:
//
//	{prefix}.sessions.{session_id}.snapshot
//
// Delivery is fire-and-forget; consumers that need durability should bind a
// JetStream stream to the subject.
package forward

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/monitor"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "domainscope"

// ErrInvalidSessionID is returned for ids that cannot form a subject token.
var ErrInvalidSessionID = errors.New("invalid session id for subject")

// Message is the payload published for each session.
type Message struct {
	SessionID   string           `json:"session_id"`
	PublishedAt time.Time        `json:"published_at"`
	Snapshot    monitor.Snapshot `json:"snapshot"`
}

// Publisher sends snapshots over a NATS connection.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewPublisher creates a Publisher over nc.
func NewPublisher(nc *nats.Conn, prefix string, logger *zap.Logger) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		nc:     nc,
		prefix: strings.TrimSuffix(prefix, "."),
		logger: logger,
		now:    time.Now,
	}
}

// Connect dials the NATS server at url. An empty token connects without
// authentication.
func Connect(url, token string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("domainscope"),
		nats.MaxReconnects(-1),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// Subject returns the subject snapshots of sessionID are published to.
func (p *Publisher) Subject(sessionID string) string {
	return fmt.Sprintf("%s.sessions.%s.snapshot", p.prefix, sessionID)
}

// Publish sends snap for sessionID.
func (p *Publisher) Publish(ctx context.Context, sessionID string, snap monitor.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sessionID == "" || strings.ContainsAny(sessionID, ".*> \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}

	data, err := json.Marshal(Message{
		SessionID:   sessionID,
		PublishedAt: p.now().UTC(),
		Snapshot:    snap,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	subject := p.Subject(sessionID)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	p.logger.Debug("session snapshot forwarded",
		zap.String("subject", subject),
		zap.Int("bytes", len(data)))
	return nil
}

// Close drains the connection so buffered snapshots are delivered.
func (p *Publisher) Close() error {
	return p.nc.Drain()
}
