// Package audit publishes a record of every dispatched order action.
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Outcomes recorded for an action.
const (
	OutcomeOK       = "ok"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
	OutcomeIgnored  = "ignored"
)

// Entry is one audited action.
type Entry struct {
	SessionID string    `json:"session_id,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Kind      string    `json:"kind"`
	OrderID   string    `json:"order_id"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Sink receives audit entries.
type Sink interface {
	Publish(ctx context.Context, e Entry) error
	Close() error
}

// Nop discards entries.
type Nop struct{}

func (Nop) Publish(context.Context, Entry) error { return nil }
func (Nop) Close() error                        { return nil }

// Producer writes entries to a Kafka topic, keyed by order id so all
// actions on one order land on the same partition.
type Producer struct {
	w *kafka.Writer
}

// NewProducer creates a Producer for a comma separated broker list. Writes
// are asynchronous; dispatch never waits on the broker.
func NewProducer(brokers, topic string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(splitBrokers(brokers)...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, e Entry) error {
	msg, err := message(e)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, msg)
}

func (p *Producer) Close() error {
	return p.w.Close()
}

func message(e Entry) (kafka.Message, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(e.OrderID),
		Value: b,
		Time:  e.At,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "action", Value: []byte(e.Kind)},
		},
	}, nil
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
