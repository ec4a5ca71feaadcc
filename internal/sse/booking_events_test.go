package sse

import (
	"context"
	"testing"
	"time"

	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesUserAndSessionSubscribers(t *testing.T) {
	e := NewBookingEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := e.SubscribeToUser(ctx, "alice")
	bob := e.SubscribeToUser(ctx, "bob")
	session := e.SubscribeToSession(ctx, "s1")

	n := models.Notification{ID: "n1", Kind: models.NotifyBookingConfirmed, UserID: "alice", SessionID: "s1"}
	require.NoError(t, e.Notify(ctx, n))

	select {
	case got := <-alice:
		assert.Equal(t, "n1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("alice did not receive the event")
	}
	select {
	case got := <-session:
		assert.Equal(t, models.NotifyBookingConfirmed, got.Kind)
	case <-time.After(time.Second):
		t.Fatal("session subscriber did not receive the event")
	}
	select {
	case got := <-bob:
		t.Fatalf("bob received someone else's event: %+v", got)
	default:
	}
}

func TestSubscriberRemovedWhenContextEnds(t *testing.T) {
	e := NewBookingEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := e.SubscribeToUser(ctx, "alice")
	assert.Equal(t, 1, e.UserClientCount("alice"))

	cancel()
	assert.Eventually(t, func() bool { return e.UserClientCount("alice") == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-ch
	assert.False(t, open, "channel is closed on unsubscribe")

	// Emitting after the client left must not panic
	e.Emit(models.Notification{UserID: "alice", SessionID: "s1"})
}

func TestSlowClientDoesNotBlockEmit(t *testing.T) {
	e := NewBookingEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.SubscribeToSession(ctx, "s1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			e.Emit(models.Notification{SessionID: "s1"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on a full client buffer")
	}
	assert.Equal(t, 1, e.SessionClientCount("s1"))
}
