package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher produces audit events to a Kafka topic. Production is
// asynchronous; delivery failures are logged, never surfaced to callers.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	log    *slog.Logger
	clock  func() time.Time
}

// NewKafkaPublisher connects to the given brokers.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{
		client: client,
		topic:  topic,
		log:    log,
		clock:  time.Now,
	}, nil
}

func (p *KafkaPublisher) Emit(ctx context.Context, e Event) {
	e = stamp(e, p.clock)
	payload, err := json.Marshal(e)
	if err != nil {
		p.log.ErrorContext(ctx, "marshal audit event", slog.String("action", string(e.Action)), slog.Any("error", err))
		return
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(e.Subject),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(r *kgo.Record, err error) {
		if err != nil {
			p.log.Error("audit event delivery failed",
				slog.String("action", string(e.Action)),
				slog.String("subject", e.Subject),
				slog.Any("error", err))
		}
	})
}

// Close flushes outstanding records and releases the client.
func (p *KafkaPublisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return err
	}
	p.client.Close()
	return nil
}
