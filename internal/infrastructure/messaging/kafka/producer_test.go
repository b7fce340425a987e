package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func newTestProducer(t *testing.T, w writerInterface) *Producer {
	t.Helper()
	p, err := NewProducer(ProducerConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "hs.classification.audit",
	}, nil)
	require.NoError(t, err)
	p.writer = w
	return p
}

func TestPublishFillsIdentityAndKeysByCode(t *testing.T) {
	w := &fakeWriter{}
	p := newTestProducer(t, w)

	ev := &AuditEvent{
		CatalogVersion: "2026-01",
		Query:          "frozen chicken breast",
		Code:           "02071410",
		Score:          100,
		RuleTrail:      []string{"RGI1"},
	}
	require.NoError(t, p.Publish(context.Background(), ev))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "02071410", string(msg.Key))
	assert.NotEmpty(t, ev.EventID)
	assert.False(t, ev.OccurredAt.IsZero())
	assert.WithinDuration(t, time.Now().UTC(), ev.OccurredAt, time.Minute)

	var decoded AuditEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.Code, decoded.Code)
	assert.Equal(t, ev.RuleTrail, decoded.RuleTrail)
	assert.Equal(t, int64(1), p.Sent())
}

func TestPublishCountsFailures(t *testing.T) {
	w := &fakeWriter{err: stderrors.New("broker down")}
	p := newTestProducer(t, w)

	err := p.Publish(context.Background(), &AuditEvent{Code: "0207"})
	require.Error(t, err)
	assert.Equal(t, int64(1), p.Failed())
	assert.Equal(t, int64(0), p.Sent())
}

func TestPublishAfterCloseFails(t *testing.T) {
	p := newTestProducer(t, &fakeWriter{})
	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "close is idempotent")

	err := p.Publish(context.Background(), &AuditEvent{Code: "0207"})
	assert.Error(t, err)
}

func TestNewProducerValidatesConfig(t *testing.T) {
	_, err := NewProducer(ProducerConfig{Topic: "t"}, nil)
	assert.Error(t, err)

	_, err = NewProducer(ProducerConfig{Brokers: []string{"b:9092"}}, nil)
	assert.Error(t, err)
}
