// Package kafka ships signals and trade results to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/alanyoungcy/arbscanner/internal/domain"
)

// Config selects brokers and topics.
type Config struct {
	Brokers     []string
	SignalTopic string
	TradeTopic  string
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher implements domain.EventPublisher. Messages are JSON with the
// event type in an "event-type" header; signals are keyed by
// symbol|buy|sell and trades by symbol so one pair stays on one partition.
type Publisher struct {
	w           messageWriter
	signalTopic string
	tradeTopic  string
	now         func() time.Time
}

var _ domain.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a Publisher. The writer is lazy: no connection is made
// until the first message.
func NewPublisher(cfg Config) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.CRC32Balancer{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		Compression:  kafka.Snappy,
	}
	return newPublisher(w, cfg)
}

func newPublisher(w messageWriter, cfg Config) *Publisher {
	return &Publisher{
		w:           w,
		signalTopic: cfg.SignalTopic,
		tradeTopic:  cfg.TradeTopic,
		now:         time.Now,
	}
}

// PublishSignal writes sig to the signal topic.
func (p *Publisher) PublishSignal(ctx context.Context, sig domain.Signal) error {
	return p.write(ctx, p.signalTopic, "signal", sig.Key(), sig)
}

// PublishTrade writes res to the trade topic.
func (p *Publisher) PublishTrade(ctx context.Context, res domain.TradeResult) error {
	return p.write(ctx, p.tradeTopic, "trade", res.Symbol, res)
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

func (p *Publisher) write(ctx context.Context, topic, eventType, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kafka: marshal %s: %w", eventType, err)
	}
	now := p.now().UTC()
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: data,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(eventType)},
			{Key: "timestamp", Value: []byte(now.Format(time.RFC3339))},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write %s to %s: %w", eventType, topic, err)
	}
	return nil
}
