package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/yeraldo2021/app-delivery-2025/internal/logging"
)

type captureWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisherEncodesEvent(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaPublisher(w)
	eta := 4
	at := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	err := pub.Publish(context.Background(), Event{Kind: KindOrderAssigned, OrderID: 12, DriverPhone: "+51911222333", ETAMinutes: &eta, At: at})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)
	require.Equal(t, "order-12", string(w.msgs[0].Key))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	require.Equal(t, KindOrderAssigned, decoded["kind"])
	require.EqualValues(t, 4, decoded["eta_min"])
	require.Equal(t, "+51911222333", decoded["driver_phone"])
}

func TestDriverEventKey(t *testing.T) {
	require.Equal(t, "driver-+51911222333", Event{Kind: KindDriverLocation, DriverPhone: "+51911222333"}.Key())
}

func TestEmitSwallowsFailures(t *testing.T) {
	w := &captureWriter{err: errors.New("broker down")}
	// Must not panic or propagate.
	Emit(context.Background(), NewKafkaPublisher(w), logging.Discard(), Event{Kind: KindOrderCreated, OrderID: 1})
	Emit(context.Background(), nil, logging.Discard(), Event{Kind: KindOrderCreated, OrderID: 1})
}

func TestEmitStampsTime(t *testing.T) {
	w := &captureWriter{}
	Emit(context.Background(), NewKafkaPublisher(w), logging.Discard(), Event{Kind: KindOrderDelivered, OrderID: 3})
	require.Len(t, w.msgs, 1)
	require.False(t, w.msgs[0].Time.IsZero())
}
