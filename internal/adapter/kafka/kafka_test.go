package kafka

import (
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkcheck/conditions-engine/internal/domain"
)

func TestMapMessageToRawSubmission(t *testing.T) {
	now := time.Now()
	msg := kafkago.Message{
		Key:       []byte("riverside"),
		Value:     []byte(`{"park":"riverside","status":"dry"}`),
		Topic:     "condition-reports",
		Partition: 2,
		Offset:    42,
		Time:      now,
		Headers: []kafkago.Header{
			{Key: "source", Value: []byte("pwa")},
		},
	}

	raw := mapMessageToRawSubmission(msg)

	assert.Equal(t, []byte("riverside"), raw.Key)
	assert.JSONEq(t, `{"park":"riverside","status":"dry"}`, string(raw.Value))
	assert.Equal(t, "condition-reports", raw.Topic)
	assert.Equal(t, 2, raw.Partition)
	assert.Equal(t, int64(42), raw.Offset)
	assert.Equal(t, now, raw.Timestamp)
	assert.Equal(t, "pwa", raw.Headers["source"])
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2025, 5, 14, 15, 30, 0, 0, time.UTC)
	status := domain.StatusWet
	event := domain.ConditionEvent{
		Kind:       domain.EventStatusChanged,
		Site:       "riverside",
		Status:     &status,
		OccurredAt: now,
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("riverside"), msg.Key)
	assert.Contains(t, string(msg.Value), `"kind":"status_changed"`)
	assert.Contains(t, string(msg.Value), `"status":"wet"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("status_changed"), msg.Headers[0].Value)
	assert.Equal(t, "occurred_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestSerializeToMessage_GlobalEventKeyedByKind(t *testing.T) {
	event := domain.ConditionEvent{
		Kind:       domain.EventRainReset,
		OccurredAt: time.Now(),
	}

	msg, err := serializeToMessage(event)
	require.NoError(t, err)
	assert.Equal(t, []byte("rain_reset"), msg.Key)
}
