package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"

	"github.com/hackgods/availability-holds/internal/hold"
)

// KafkaNotifier publishes events to a topic keyed by holdee, so that all
// events of one provider's calendar land on the same partition in order.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaConfig returns the producer settings used for hold events.
func NewKafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Timeout = 10 * time.Second
	cfg.Producer.Idempotent = true
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_8_0_0
	return cfg
}

func NewKafkaNotifier(brokers []string, topic string) (*KafkaNotifier, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaNotifierWithProducer(producer, topic), nil
}

func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (k *KafkaNotifier) Notify(ctx context.Context, ev hold.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := NewMessage(ev).Encode()
	if err != nil {
		return fmt.Errorf("encode hold event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.Hold.HoldeeID.String()),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(ev.Type)},
			{Key: []byte("hold_id"), Value: []byte(ev.Hold.ID.String())},
		},
		Timestamp: ev.OccurredAt,
	}

	// SendMessage ignores ctx and can block through every retry, so wait on
	// it here and give up when ctx is done. The send itself keeps running.
	done := make(chan sendResult, 1)
	go func() {
		var r sendResult
		r.partition, r.offset, r.err = k.producer.SendMessage(msg)
		done <- r
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("send hold event to kafka: %w", ctx.Err())
	case r := <-done:
		if r.err != nil {
			return fmt.Errorf("send hold event to kafka: %w", r.err)
		}
		log.Printf("hold event published topic=%s partition=%d offset=%d type=%s hold_id=%s",
			k.topic, r.partition, r.offset, ev.Type, ev.Hold.ID)
		return nil
	}
}

type sendResult struct {
	partition int32
	offset    int64
	err       error
}

func (k *KafkaNotifier) Close() error {
	if err := k.producer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
