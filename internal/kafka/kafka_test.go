package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader hands out queued messages, then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	drained   chan struct{}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	close(r.drained)
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestProducerPublishesJSONUnderKey(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Topic: "learning.booking.notifications", Logger: logger.Discard()}

	n := models.Notification{ID: "n1", Kind: models.NotifyBookingConfirmed, UserID: "alice", SessionID: "s1"}
	require.NoError(t, p.Publish(context.Background(), "s1", n))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "s1", string(w.msgs[0].Key))
	var got models.Notification
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, n.Kind, got.Kind)
	assert.Equal(t, "alice", got.UserID)
}

func TestProducerReturnsWriteError(t *testing.T) {
	boom := errors.New("leader not available")
	p := &Producer{Writer: &fakeWriter{err: boom}, Topic: "t", Logger: logger.Discard()}
	assert.ErrorIs(t, p.Publish(context.Background(), "k", map[string]string{"a": "b"}), boom)
}

func TestConsumerSkipsBadMessagesAndCommitsAll(t *testing.T) {
	good, err := json.Marshal(models.Notification{ID: "n1", Kind: models.NotifyWaitlistPromoted, UserID: "bob"})
	require.NoError(t, err)
	failing, err := json.Marshal(models.Notification{ID: "n2", Kind: models.NotifyBookingCancelled, UserID: "carol"})
	require.NoError(t, err)

	r := &fakeReader{
		queue: []kafka.Message{
			{Offset: 1, Value: good},
			{Offset: 2, Value: []byte("{not json")},
			{Offset: 3, Value: failing},
		},
		drained: make(chan struct{}),
	}
	c := &Consumer{reader: r, topic: "t", logger: logger.Discard()}

	var handled []string
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(ctx context.Context, n models.Notification) error {
			handled = append(handled, n.UserID)
			if n.UserID == "carol" {
				return errors.New("mailbox full")
			}
			return nil
		})
	}()

	<-r.drained
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"bob", "carol"}, handled)
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
}
