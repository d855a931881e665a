package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/Ameur-sidahmed/Stocks-backend/applog"
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("kafka publisher unavailable")

// Publisher sends outbox payloads with a sync producer. Consecutive broker
// failures open a circuit breaker so the relay stops hammering Kafka.
type Publisher struct {
	producer sarama.SyncProducer
	cb       *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewPublisher(brokers []string, logger *zap.Logger) (*Publisher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	p, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewPublisherWithProducer(p, logger), nil
}

func NewPublisherWithProducer(p sarama.SyncProducer, logger *zap.Logger) *Publisher {
	settings := gobreaker.Settings{
		Name:        "kafka-publisher",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Publisher{
		producer: p,
		cb:       gobreaker.NewCircuitBreaker(settings),
		logger:   logger,
	}
}

// Publish sends value keyed by key, carrying the trace context of ctx in the
// record headers.
func (p *Publisher) Publish(ctx context.Context, topic, key string, value []byte) error {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := make([]sarama.RecordHeader, 0, len(carrier))
	for k, v := range carrier {
		headers = append(headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Key:     sarama.StringEncoder(key),
		Value:   sarama.ByteEncoder(value),
		Headers: headers,
	}

	res, err := p.cb.Execute(func() (interface{}, error) {
		partition, offset, err := p.producer.SendMessage(msg)
		if err != nil {
			return nil, err
		}
		return [2]int64{int64(partition), offset}, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("send message to %s: %w", topic, err)
	}

	pos := res.([2]int64)
	applog.Debug(ctx, p.logger, "message sent",
		zap.String("topic", topic),
		zap.String("key", key),
		zap.Int64("partition", pos[0]),
		zap.Int64("offset", pos[1]),
	)
	return nil
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}
