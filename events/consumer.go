package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"honestlens/types"
)

// MessageHandler processes one consumed message and reports whether to mark it.
// A message that is not marked is redelivered after a rebalance or restart.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// Consumer reads a topic through a consumer group and hands each message to a handler.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	topic   string
	groupID string
	ready   chan struct{}
	logger  *zap.Logger
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
}

// NewConsumer creates a consumer group client.
func NewConsumer(cfg ConsumerConfig, logger *zap.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer group: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		group:   group,
		handler: cfg.Handler,
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		ready:   make(chan struct{}),
		logger:  logger,
	}, nil
}

// Start joins the group and returns once the first session is set up or ctx ends.
// Consumption continues in the background until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &groupHandler{handler: c.handler, ready: c.ready, logger: c.logger}

	go func() {
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return
				}
				c.logger.Error("kafka consume failed", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
			handler.ready = make(chan struct{})
		}
	}()

	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer error", zap.Error(err))
		}
	}()

	select {
	case <-c.ready:
		c.logger.Info("kafka consumer started", zap.String("group", c.groupID), zap.String("topic", c.topic))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close leaves the group.
func (c *Consumer) Close() error {
	c.logger.Info("closing kafka consumer")
	return c.group.Close()
}

type groupHandler struct {
	handler MessageHandler
	ready   chan struct{}
	logger  *zap.Logger
}

// Setup is run at the beginning of a new session, before ConsumeClaim
func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	select {
	case <-h.ready:
	default:
		close(h.ready)
	}
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			h.logger.Debug("received kafka message",
				zap.Int32("partition", message.Partition),
				zap.Int64("offset", message.Offset),
				zap.ByteString("key", message.Key))

			shouldMark, err := h.handler.HandleMessage(session.Context(), message.Value)
			if err != nil {
				h.logger.Warn("failed to handle message", zap.Error(err))
			}
			if shouldMark {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// TypedMessageHandler decodes JSON messages into T before processing them.
type TypedMessageHandler[T any] struct {
	// Validate checks if the message should be processed
	Validate func(msg *T) bool
	// Process handles the actual message processing
	Process func(ctx context.Context, msg *T) error
	// AlwaysMark marks undecodable or invalid messages so they are skipped
	AlwaysMark bool
}

// HandleMessage implements MessageHandler.
func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		return h.AlwaysMark, fmt.Errorf("unmarshal message: %w", err)
	}
	if h.Validate != nil && !h.Validate(&msg) {
		return h.AlwaysMark, nil
	}
	if err := h.Process(ctx, &msg); err != nil {
		return false, err
	}
	return true, nil
}

// Submitter accepts verification requests.
type Submitter interface {
	Submit(ctx context.Context, kind types.Kind, payload string, priority types.Priority) (string, error)
}

// NewSubmitHandler turns request-topic messages into Submit calls. Invalid submissions
// are marked and dropped; other failures are left for redelivery.
func NewSubmitHandler(s Submitter, logger *zap.Logger) *TypedMessageHandler[SubmitMessage] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypedMessageHandler[SubmitMessage]{
		AlwaysMark: true,
		Validate: func(msg *SubmitMessage) bool {
			return msg.Type != "" && msg.Payload != ""
		},
		Process: func(ctx context.Context, msg *SubmitMessage) error {
			id, err := s.Submit(ctx, types.Kind(msg.Type), msg.Payload, types.Priority(msg.Priority))
			if errors.Is(err, types.ErrInvalidInput) {
				logger.Warn("dropping invalid submission", zap.String("type", msg.Type), zap.Error(err))
				return nil
			}
			if err != nil {
				return err
			}
			logger.Info("accepted submission from kafka", zap.String("request_id", id), zap.String("type", msg.Type))
			return nil
		},
	}
}
