// Package events publishes order lifecycle changes to downstream consumers
// such as dashboards and analytics jobs.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	KindOrderCreated   = "order.created"
	KindOrderAssigned  = "order.assigned"
	KindOrderDelivered = "order.delivered"
	KindDriverLocation = "driver.location"
)

// Event describes one state change.
type Event struct {
	Kind        string    `json:"kind"`
	OrderID     int64     `json:"order_id,omitempty"`
	ClientID    int64     `json:"client_id,omitempty"`
	DriverPhone string    `json:"driver_phone,omitempty"`
	Total       float64   `json:"total,omitempty"`
	ETAMinutes  *int      `json:"eta_min,omitempty"`
	Lat         *float64  `json:"lat,omitempty"`
	Lon         *float64  `json:"lon,omitempty"`
	At          time.Time `json:"at"`
}

// Key partitions events so one order (or driver) stays ordered.
func (e Event) Key() string {
	if e.OrderID != 0 {
		return "order-" + strconv.FormatInt(e.OrderID, 10)
	}
	return "driver-" + e.DriverPhone
}

// Publisher delivers events downstream.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LoggerPublisher writes events to the structured logger.
type LoggerPublisher struct {
	logger *slog.Logger
}

// NewLoggerPublisher constructs a logging publisher.
func NewLoggerPublisher(logger *slog.Logger) *LoggerPublisher {
	return &LoggerPublisher{logger: logger}
}

// Publish logs the event.
func (p *LoggerPublisher) Publish(_ context.Context, event Event) error {
	if p == nil || p.logger == nil {
		return nil
	}
	p.logger.Info("event", slog.String("kind", event.Kind), slog.String("key", event.Key()),
		slog.Int64("order_id", event.OrderID), slog.String("driver_phone", event.DriverPhone))
	return nil
}

// MessageWriter is the subset of *kafka.Writer used for publishing.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher encodes events as JSON messages keyed by order or driver.
type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher wraps a Kafka writer.
func NewKafkaPublisher(writer MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish writes the event to Kafka.
func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: value,
		Time:  event.At,
	})
}

// Emit publishes event, logging failures instead of returning them.
func Emit(ctx context.Context, pub Publisher, logger *slog.Logger, event Event) {
	if pub == nil {
		return
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	if err := pub.Publish(ctx, event); err != nil && logger != nil {
		logger.Warn("event publish failed", slog.String("kind", event.Kind), slog.Any("error", err))
	}
}
