package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"

	"github.com/herald/herald/internal/logger"
)

const batchTimeout = 5 * time.Millisecond

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaPublisher writes events as JSON to a Kafka topic
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	log     *logger.Logger
}

// NewKafkaPublisher creates a publisher writing to topic. Broker entries may
// themselves be comma-separated lists.
func NewKafkaPublisher(brokerList []string, topic string, log *logger.Logger) (*KafkaPublisher, error) {
	brokers := splitCSV(strings.Join(brokerList, ","))
	if len(brokers) == 0 {
		return nil, fmt.Errorf("events: kafka brokers are required")
	}
	if topic == "" {
		return nil, fmt.Errorf("events: kafka topic is required")
	}

	// Publish waits for each single-event write, so skip the default 1s batch delay
	w := &kgo.Writer{
		Addr:         kgo.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		RequiredAcks: kgo.RequireOne,
		BatchTimeout: batchTimeout,
	}

	return &KafkaPublisher{
		writer:  w,
		timeout: 3 * time.Second,
		log:     log.WithComponent("kafka_events"),
	}, nil
}

// Publish writes one event keyed by campaign id
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}

	// Keep a slow broker from holding up dispatch
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(cctx, kgo.Message{
		Key:   []byte(e.key()),
		Value: b,
		Time:  e.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
