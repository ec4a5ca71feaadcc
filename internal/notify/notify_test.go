package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, v any) error {
	args := m.Called(ctx, key, v)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func TestKafkaKeysBySession(t *testing.T) {
	pub := new(MockPublisher)
	n := models.Notification{ID: "n1", Kind: models.NotifyBookingApproved, UserID: "alice", SessionID: "s1"}
	pub.On("Publish", mock.Anything, "s1", n).Return(nil)

	require.NoError(t, NewKafka(pub).Notify(context.Background(), n))
	pub.AssertExpectations(t)
}

func TestKafkaWrapsPublishError(t *testing.T) {
	pub := new(MockPublisher)
	boom := errors.New("no brokers")
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(boom)

	err := NewKafka(pub).Notify(context.Background(), models.Notification{Kind: models.NotifyBookingRejected})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "BOOKING_REJECTED")
}

func TestMultiDeliversToAllAndJoinsErrors(t *testing.T) {
	first, second, third := new(MockNotifier), new(MockNotifier), new(MockNotifier)
	errA, errC := errors.New("a"), errors.New("c")
	first.On("Notify", mock.Anything, mock.Anything).Return(errA)
	second.On("Notify", mock.Anything, mock.Anything).Return(nil)
	third.On("Notify", mock.Anything, mock.Anything).Return(errC)

	err := Multi{first, nil, second, third}.Notify(context.Background(), models.Notification{ID: "n"})
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
	first.AssertNumberOfCalls(t, "Notify", 1)
	second.AssertNumberOfCalls(t, "Notify", 1)
	third.AssertNumberOfCalls(t, "Notify", 1)
}

func TestLogWritesNotification(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New(logger.Options{Output: &buf, NoColor: true})
	require.NoError(t, err)

	n := models.Notification{Kind: models.NotifyWaitlistJoined, UserID: "bob", SessionID: "s9"}
	require.NoError(t, (&Log{Logger: log}).Notify(context.Background(), n))
	assert.Contains(t, buf.String(), "WAITLIST_JOINED -> bob")
}
