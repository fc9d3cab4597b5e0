package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"admissions/internal/platform/kafka/producer"
	"admissions/pkg/platform/privacy"
)

// LogAlertSink writes critical entries to the diagnostic logger at error level.
type LogAlertSink struct {
	logger *slog.Logger
}

func NewLogAlertSink(logger *slog.Logger) *LogAlertSink {
	return &LogAlertSink{logger: logger}
}

func (s *LogAlertSink) Alert(ctx context.Context, e Entry) error {
	s.logger.ErrorContext(ctx, "critical audit event",
		"entry_id", e.ID,
		"action", e.Action,
		"user_id", e.UserID,
		"ip", privacy.AnonymizeIP(e.IPAddress),
		"resource_type", e.ResourceType,
		"resource_id", e.ResourceID,
		"error_message", e.ErrorMessage,
	)
	return nil
}

// Publisher is the producer surface the Kafka sink needs.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// KafkaAlertSink publishes critical entries as JSON, keyed by entry id.
type KafkaAlertSink struct {
	producer Publisher
	topic    string
}

func NewKafkaAlertSink(p Publisher, topic string) *KafkaAlertSink {
	return &KafkaAlertSink{producer: p, topic: topic}
}

func (s *KafkaAlertSink) Alert(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}
	err = s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(e.ID),
		Value: payload,
		Headers: map[string]string{
			"action":   e.Action.String(),
			"severity": string(e.Severity),
		},
	})
	if err != nil {
		return fmt.Errorf("publish alert to %s: %w", s.topic, err)
	}
	return nil
}
