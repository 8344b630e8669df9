package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/yenvi12/aifshop-auth/internal/core/domain"
	"github.com/yenvi12/aifshop-auth/internal/core/port"
	"github.com/yenvi12/aifshop-auth/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes shop.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Email        string    `json:"email"`
		FirstName    string    `json:"first_name"`
		LastName     string    `json:"last_name"`
		Role         string    `json:"role"`
		RegisteredAt time.Time `json:"registered_at"`
		Source       string    `json:"source"`
	}{
		UserID:       event.UserID,
		Email:        event.Email,
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		Role:         event.Role,
		RegisteredAt: event.RegisteredAt.UTC(),
		Source:       event.Source,
	}

	return p.publish(ctx, event.EventID, "shop.user.registered", event.UserID, event.RegisteredAt, payload)
}

// PublishUserPromoted publishes shop.user.promoted events.
func (p *EventPublisher) PublishUserPromoted(ctx context.Context, event domain.UserPromotedEvent) error {
	payload := struct {
		UserID     string    `json:"user_id"`
		Email      string    `json:"email"`
		Role       string    `json:"role"`
		PromotedBy string    `json:"promoted_by"`
		PromotedAt time.Time `json:"promoted_at"`
	}{
		UserID:     event.UserID,
		Email:      event.Email,
		Role:       event.Role,
		PromotedBy: event.PromotedBy,
		PromotedAt: event.PromotedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "shop.user.promoted", event.UserID, event.PromotedAt, payload)
}

// PublishUserLoggedIn publishes shop.user.logged_in events.
func (p *EventPublisher) PublishUserLoggedIn(ctx context.Context, event domain.UserLoggedInEvent) error {
	payload := struct {
		UserID   string    `json:"user_id"`
		Email    string    `json:"email"`
		LoginAt  time.Time `json:"login_at"`
		ClientIP string    `json:"client_ip,omitempty"`
	}{
		UserID:   event.UserID,
		Email:    event.Email,
		LoginAt:  event.LoginAt.UTC(),
		ClientIP: event.ClientIP,
	}

	return p.publish(ctx, event.EventID, "shop.user.logged_in", event.UserID, event.LoginAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
