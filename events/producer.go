package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"honestlens/types"
)

// Publisher announces completed verifications.
type Publisher interface {
	PublishResult(ctx context.Context, req *types.VerificationRequest, res *types.VerificationResult) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) PublishResult(context.Context, *types.VerificationRequest, *types.VerificationResult) error {
	return nil
}

func (NopPublisher) Close() error { return nil }

// KafkaPublisher writes result events to a topic, keyed by request id.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers []string
	Topic   string
}

// NewKafkaPublisher creates a synchronous producer that waits for all in-sync replicas.
func NewKafkaPublisher(cfg ProducerConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return NewKafkaPublisherFromProducer(producer, cfg.Topic, logger), nil
}

// NewKafkaPublisherFromProducer wraps an existing producer.
func NewKafkaPublisherFromProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

func (p *KafkaPublisher) PublishResult(ctx context.Context, req *types.VerificationRequest, res *types.VerificationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ResultEvent{
		RequestID:   req.ID,
		Type:        req.Kind,
		Payload:     req.Payload,
		Priority:    req.Priority,
		DedupKey:    req.DedupKey,
		Result:      res,
		PublishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal result event: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(req.ID),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("method"), Value: []byte(res.Method)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish result %s: %w", req.ID, err)
	}
	p.logger.Debug("published result",
		zap.String("request_id", req.ID),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
