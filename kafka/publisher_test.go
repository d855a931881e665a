package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"go.uber.org/zap"
)

func testConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	return config
}

func TestPublishSendsPayload(t *testing.T) {
	sp := mocks.NewSyncProducer(t, testConfig())
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"event_type":"invoice.created"}` {
			return errors.New("unexpected payload " + string(val))
		}
		return nil
	})

	p := NewPublisherWithProducer(sp, zap.NewNop())
	if err := p.Publish(context.Background(), "invoice_events", "12", []byte(`{"event_type":"invoice.created"}`)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestPublishWrapsBrokerError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, testConfig())
	sp.ExpectSendMessageAndFail(sarama.ErrNotLeaderForPartition)

	p := NewPublisherWithProducer(sp, zap.NewNop())
	err := p.Publish(context.Background(), "invoice_events", "1", []byte(`{}`))
	if !errors.Is(err, sarama.ErrNotLeaderForPartition) {
		t.Fatalf("expected broker error, got %v", err)
	}
	_ = p.Close()
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	sp := mocks.NewSyncProducer(t, testConfig())
	for i := 0; i < 5; i++ {
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	}

	p := NewPublisherWithProducer(sp, zap.NewNop())
	for i := 0; i < 5; i++ {
		if err := p.Publish(context.Background(), "invoice_events", "1", []byte(`{}`)); err == nil {
			t.Fatalf("attempt %d: expected error", i)
		}
	}

	// breaker is open: the producer is not called again
	err := p.Publish(context.Background(), "invoice_events", "1", []byte(`{}`))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	_ = p.Close()
}
