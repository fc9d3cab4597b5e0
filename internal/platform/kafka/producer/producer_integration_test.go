//go:build integration

package producer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"admissions/internal/platform/config"
	"admissions/internal/platform/kafka/producer"
	"admissions/pkg/testutil/containers"
)

type ProducerIntegrationSuite struct {
	suite.Suite
	kafka    *containers.KafkaContainer
	producer *producer.Producer
}

func TestProducerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ProducerIntegrationSuite))
}

func (s *ProducerIntegrationSuite) SetupSuite() {
	s.kafka = containers.GetManager().GetKafka(s.T())

	prod, err := producer.New(config.KafkaConfig{
		Brokers:         s.kafka.Brokers,
		Acks:            "all",
		Retries:         3,
		DeliveryTimeout: 10 * time.Second,
	}, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *ProducerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close(context.Background())
	}
}

// TestProduceDeliversWithHeaders verifies synchronous produce delivers the
// record with its headers intact.
func (s *ProducerIntegrationSuite) TestProduceDeliversWithHeaders() {
	ctx := context.Background()
	topic := "test-produce-" + time.Now().Format("20060102150405")

	err := s.producer.Produce(ctx, &producer.Message{
		Topic:   topic,
		Key:     []byte("user-1"),
		Value:   []byte(`{"action":"SUSPICIOUS_ACTIVITY"}`),
		Headers: map[string]string{"severity": "critical"},
	})
	s.Require().NoError(err)

	consumer, err := s.kafka.NewConsumer("test-produce-group", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	record := s.kafka.WaitForMessage(ctx, consumer, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == "user-1"
	})
	s.Require().NotNil(record, "message should be consumable")
	s.JSONEq(`{"action":"SUSPICIOUS_ACTIVITY"}`, string(record.Value))
	s.Require().Len(record.Headers, 1)
	s.Equal("critical", string(record.Headers[0].Value))
}

func (s *ProducerIntegrationSuite) TestProducerHealthy() {
	s.NoError(s.producer.Healthy(context.Background()))
}
