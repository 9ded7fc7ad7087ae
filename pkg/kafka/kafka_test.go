package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	failures int
	calls    int
	batches  [][]kafka.Message
	closed   bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.calls <= w.failures {
		return errors.New("leader not available")
	}
	w.batches = append(w.batches, msgs)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishBatchEncodesJSON(t *testing.T) {
	w := &captureWriter{}
	p := NewProducerWithWriter(w, "predictions")
	err := p.PublishBatch(context.Background(), []Event{
		{Key: "f1", Value: map[string]string{"prediction": "3"}},
		{Key: "f2", Value: map[string]string{"prediction": "1"}},
	})
	require.NoError(t, err)
	require.Len(t, w.batches, 1)
	require.Len(t, w.batches[0], 2)
	assert.Equal(t, "f2", string(w.batches[0][1].Key))
	assert.JSONEq(t, `{"prediction":"1"}`, string(w.batches[0][1].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishRetriesTransientFailure(t *testing.T) {
	w := &captureWriter{failures: 2}
	p := NewProducerWithWriter(w, "predictions")
	require.NoError(t, p.Publish(context.Background(), Event{Key: "k", Value: 1}))
	assert.Equal(t, 3, w.calls)
}

func TestPublishBatchEmptyIsNoop(t *testing.T) {
	w := &captureWriter{}
	require.NoError(t, NewProducerWithWriter(w, "t").PublishBatch(context.Background(), nil))
	assert.Zero(t, w.calls)
}

func TestPublishRejectsUnencodableValue(t *testing.T) {
	w := &captureWriter{}
	err := NewProducerWithWriter(w, "t").Publish(context.Background(), Event{Key: "k", Value: func() {}})
	assert.Error(t, err)
	assert.Zero(t, w.calls)
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		FileID string `json:"file_id"`
	}
	data, err := json.Marshal(payload{FileID: "abc"})
	require.NoError(t, err)
	got, err := DecodeJSON[payload](data)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.FileID)

	_, err = DecodeJSON[payload]([]byte("nope"))
	assert.Error(t, err)
}
