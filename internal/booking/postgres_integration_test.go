//go:build integration

package booking_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/lock"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest, port string) string {
	ctx := context.Background()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() { c.Terminate(ctx) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, port)
	require.NoError(t, err)
	return host + ":" + mapped.Port()
}

// TestConcurrentBookingAcrossReplicas runs two engines against one Postgres
// database, sharing session locks through Redis, and books a small session
// from many goroutines at once.
func TestConcurrentBookingAcrossReplicas(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Postgres integration test in short mode")
	}
	ctx := context.Background()

	pgAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "booking",
			"POSTGRES_PASSWORD": "booking",
			"POSTGRES_DB":       "booking",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}, "5432")
	redisAddr := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}, "6379")

	log := logger.Discard()
	bunDB, err := database.Open(ctx, config.DatabaseConfig{
		Driver:       "postgres",
		PostgresDSN:  fmt.Sprintf("postgres://booking:booking@%s/booking?sslmode=disable", pgAddr),
		AutoMigrate:  true,
		MaxOpenConns: 20,
		MaxIdleConns: 20,
		MaxLifetime:  time.Minute,
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })

	dir := &stubDirectory{managers: map[string]string{}, ineligible: map[string]bool{}}
	sent := &recordingNotifier{}
	replica := func() *booking.Engine {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		t.Cleanup(func() { client.Close() })
		locker := lock.Chain(lock.NewKeyedMutex(), lock.NewRedisLocker(client, log, 10*time.Second, 30*time.Second))
		return booking.NewEngine(db.New(bunDB), locker, dir, dir, sent, log)
	}
	engines := []*booking.Engine{replica(), replica()}

	session, err := engines[0].RegisterSession(ctx, models.Session{
		ID:         uuid.NewString(),
		Code:       "PG-100",
		StartsAt:   time.Now().UTC().Add(24 * time.Hour),
		TotalSeats: models.Seats(5),
	})
	require.NoError(t, err)

	const users = 20
	var wg sync.WaitGroup
	errs := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := engines[i%2].CreateBooking(ctx, booking.CreateBookingInput{
				UserID:    fmt.Sprintf("user-%02d", i),
				SessionID: session.ID,
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	confirmed, err := engines[0].SessionBookings(ctx, session.ID, models.BookingConfirmed)
	require.NoError(t, err)
	assert.Len(t, confirmed, 5)

	queue, err := engines[1].Waitlist(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, queue, users-5)
	for i, entry := range queue {
		assert.Equal(t, i+1, entry.Position)
	}

	current, err := engines[0].GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, current.Available())

	// Cancelling on one replica promotes the head of the queue.
	_, err = engines[1].Cancel(ctx, confirmed[0].ID, "schedule clash")
	require.NoError(t, err)

	promoted, err := engines[0].SessionBookings(ctx, session.ID, models.BookingConfirmed)
	require.NoError(t, err)
	assert.Len(t, promoted, 5)
	assert.Contains(t, sent.kinds(queue[0].UserID), models.NotifyWaitlistPromoted)

	queue, err = engines[0].Waitlist(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, queue, users-6)
	assert.Equal(t, 1, queue[0].Position)
}
