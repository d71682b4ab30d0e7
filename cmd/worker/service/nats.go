package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/alphauslabs/verticalbuilder/internal/config"
	"github.com/alphauslabs/verticalbuilder/internal/logfields"
)

// Subscriber consumes job descriptions published on a NATS subject. Workers
// share a queue group so each message is accepted by one worker. Requests
// get the same JSON answer as the push endpoint.
type Subscriber struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	svc    *BuildService
	logger *slog.Logger
}

// NewSubscriber connects to NATS and starts consuming cfg.Subject.
func NewSubscriber(cfg config.NATSConfig, svc *BuildService, logger *slog.Logger) (*Subscriber, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("NATS URL is required")
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("vertical-builder"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	s := &Subscriber{conn: conn, svc: svc, logger: logfields.OrDiscard(logger)}
	s.sub, err = conn.QueueSubscribe(cfg.Subject, cfg.QueueGroup, s.handle)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", cfg.Subject, err)
	}

	s.logger.Info("NATS intake subscribed",
		slog.String("url", cfg.URL),
		slog.String("subject", cfg.Subject),
		slog.String("queue_group", cfg.QueueGroup))
	return s, nil
}

func (s *Subscriber) handle(m *nats.Msg) {
	resp := s.answer(m.Data)
	if m.Reply == "" {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("Failed to encode NATS reply", logfields.Error(err))
		return
	}
	if err := m.Respond(data); err != nil {
		s.logger.Warn("Failed to send NATS reply", logfields.Error(err))
	}
}

func (s *Subscriber) answer(payload []byte) intakeResponse {
	d, err := s.svc.Accept(payload)
	switch {
	case errors.Is(err, ErrRejected):
		return intakeResponse{Status: "rejected"}
	case err != nil:
		s.logger.Error("Invalid NATS build request", logfields.Error(err))
		return intakeResponse{Status: "invalid", Error: err.Error()}
	default:
		return intakeResponse{Status: "accepted", JobID: d.JobID}
	}
}

// Close stops consuming and waits for in-flight messages to be handled.
func (s *Subscriber) Close() error {
	if err := s.sub.Drain(); err != nil {
		s.logger.Warn("Failed to drain NATS subscription", logfields.Error(err))
	}
	return s.conn.Drain()
}
