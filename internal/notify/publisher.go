// Package notify announces new evaluations on NATS JetStream.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/comment-evaluator/internal/model"
)

const (
	// StreamName is the JetStream stream holding evaluation events
	StreamName = "EVALUATIONS"

	// SubjectCreated receives one message per stored evaluation
	SubjectCreated = "evaluation.created"

	streamSubjects = "evaluation.*"
	streamMaxAge   = 30 * 24 * time.Hour
)

// Publisher is notified after an evaluation has been persisted
type Publisher interface {
	EvaluationCreated(ctx context.Context, e model.Evaluation) error
}

// Event is the JSON payload published for a new evaluation
type Event struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	Evaluation model.Evaluation `json:"evaluation"`
	Timestamp  time.Time        `json:"timestamp"`
}

// NopPublisher drops every event
type NopPublisher struct{}

// EvaluationCreated implements Publisher.EvaluationCreated
func (NopPublisher) EvaluationCreated(context.Context, model.Evaluation) error {
	return nil
}

// NATSPublisher publishes evaluation events to JetStream
type NATSPublisher struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewNATSPublisher ensures the EVALUATIONS stream exists
func NewNATSPublisher(ctx context.Context, js nats.JetStreamContext, logger *zap.Logger) (*NATSPublisher, error) {
	p := &NATSPublisher{
		js:     js,
		logger: logger.Named("notify"),
	}
	if err := ensureStream(ctx, js, p.logger); err != nil {
		return nil, fmt.Errorf("failed to setup stream: %w", err)
	}
	return p, nil
}

// ensureStream creates the EVALUATIONS stream unless it already exists
func ensureStream(ctx context.Context, js nats.JetStreamContext, logger *zap.Logger) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:     StreamName,
		Subjects: []string{streamSubjects},
		Storage:  nats.FileStorage,
		MaxAge:   streamMaxAge,
	}, nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			logger.Info("Stream already exists", zap.String("stream", StreamName))
			return nil
		}
		return err
	}

	logger.Info("Stream created successfully", zap.String("stream", StreamName))
	return nil
}

// EvaluationCreated publishes e. The event id doubles as the JetStream
// deduplication id.
func (p *NATSPublisher) EvaluationCreated(ctx context.Context, e model.Evaluation) error {
	event := Event{
		ID:         uuid.New().String(),
		Type:       SubjectCreated,
		Evaluation: e,
		Timestamp:  time.Now().UTC(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(SubjectCreated, data, nats.MsgId(event.ID), nats.Context(ctx)); err != nil {
		p.logger.Error("Failed to publish evaluation event",
			zap.Int64("evaluation_id", e.EvaluationID),
			zap.Error(err))
		return fmt.Errorf("failed to publish evaluation event: %w", err)
	}

	p.logger.Debug("Evaluation event published",
		zap.String("event_id", event.ID),
		zap.Int64("evaluation_id", e.EvaluationID))
	return nil
}

// Subscribe delivers decoded evaluation events to handler until ctx is done.
// The stream is created when no publisher has set it up yet.
func Subscribe(ctx context.Context, js nats.JetStreamContext, logger *zap.Logger, handler func(Event)) error {
	logger = logger.Named("notify")
	if err := ensureStream(ctx, js, logger); err != nil {
		return fmt.Errorf("failed to setup stream: %w", err)
	}

	sub, err := js.Subscribe(SubjectCreated, func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logger.Error("Failed to unmarshal evaluation event", zap.Error(err))
			msg.Term()
			return
		}

		handler(event)
		msg.Ack()
	}, nats.ManualAck())
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		<-ctx.Done()
		sub.Unsubscribe()
	}()
	return nil
}
