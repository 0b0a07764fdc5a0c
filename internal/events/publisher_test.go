package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &mockWriter{}
	p := &KafkaPublisher{writer: w}

	err := p.Publish(context.Background(), Event{
		Type:    TypeOrderPaid,
		Key:     "ORD-20240101-1234",
		UserID:  "u1",
		Payload: map[string]any{"points_earned": 13},
	})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "ORD-20240101-1234", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, TypeOrderPaid, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "u1", decoded.UserID)
	assert.False(t, decoded.OccurredAt.IsZero())
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &mockWriter{err: errors.New("broker down")}}

	err := p.Publish(context.Background(), Event{Type: TypeCouponClaimed, Key: "RWD-1"})
	assert.ErrorContains(t, err, "write coupon.claimed event")
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &mockWriter{}
	require.NoError(t, (&KafkaPublisher{writer: w}).Close())
	assert.True(t, w.closed)
}
