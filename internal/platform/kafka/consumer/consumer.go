// Package consumer runs a Kafka consumer group and hands each record to a
// Handler, committing offsets only after the handler returns.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Message is the transport-neutral view of a consumed record.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

// Handler processes one message. Returning nil commits the offset; returning
// an error retries the message with backoff up to the configured attempts.
// Handlers should return nil for messages that will never succeed.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

type HandlerFunc func(ctx context.Context, msg *Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg *Message) error {
	return f(ctx, msg)
}

type Config struct {
	Brokers  []string
	Topic    string
	Group    string
	ClientID string
}

type Consumer struct {
	client      *kgo.Client
	cfg         Config
	handler     Handler
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration
}

type Option func(*Consumer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithRetry sets how often a failing message is retried before it is skipped.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Consumer) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

func New(cfg Config, handler Handler, opts ...Option) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" || cfg.Group == "" {
		return nil, errors.New("kafka topic and consumer group are required")
	}
	c := &Consumer{
		cfg:         cfg,
		handler:     handler,
		logger:      slog.Default(),
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}

	kopts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	}
	if cfg.ClientID != "" {
		kopts = append(kopts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	c.client = client
	return c, nil
}

// EnsureTopic creates the consumed topic if it does not exist yet.
func (c *Consumer) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	resp, err := kadm.NewClient(c.client).CreateTopic(ctx, partitions, replicationFactor, nil, c.cfg.Topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", c.cfg.Topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", c.cfg.Topic, resp.Err)
	}
	return nil
}

// Run polls until ctx is cancelled or the client is closed.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "kafka consumer started",
		"topic", c.cfg.Topic,
		"group", c.cfg.Group,
	)
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		for _, fe := range fetches.Errors() {
			c.logger.WarnContext(ctx, "kafka fetch error",
				"topic", fe.Topic,
				"partition", fe.Partition,
				"error", fe.Err,
			)
		}

		var done []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			if ctx.Err() != nil {
				return
			}
			c.process(ctx, r)
			done = append(done, r)
		})
		if len(done) == 0 {
			continue
		}
		if err := c.client.CommitRecords(ctx, done...); err != nil && ctx.Err() == nil {
			c.logger.ErrorContext(ctx, "failed to commit offsets",
				"topic", c.cfg.Topic,
				"error", err,
			)
		}
	}
}

func (c *Consumer) process(ctx context.Context, r *kgo.Record) {
	msg := toMessage(r)
	for attempt := 1; ; attempt++ {
		err := c.handler.Handle(ctx, msg)
		if err == nil {
			return
		}
		if attempt >= c.maxAttempts || ctx.Err() != nil {
			c.logger.ErrorContext(ctx, "dropping kafka message after retries",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"attempts", attempt,
				"error", err,
			)
			return
		}
		c.logger.WarnContext(ctx, "kafka message handler failed, retrying",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"attempt", attempt,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
}

// Close leaves the group and releases the client.
func (c *Consumer) Close() {
	c.client.Close()
}

func toMessage(r *kgo.Record) *Message {
	headers := make(map[string]string, len(r.Headers))
	for _, h := range r.Headers {
		headers[h.Key] = string(h.Value)
	}
	return &Message{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   headers,
		Timestamp: r.Timestamp,
	}
}
