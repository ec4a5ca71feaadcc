package sse

import (
	"context"
	"sync"

	"ms-booking/internal/models"
)

// BookingEventEmitter fans committed booking notifications out to live SSE
// connections, by user and by session.
type BookingEventEmitter struct {
	// key: userID
	userClients     map[string][]chan models.Notification
	userClientMutex sync.RWMutex

	// key: sessionID
	sessionClients     map[string][]chan models.Notification
	sessionClientMutex sync.RWMutex
}

func NewBookingEventEmitter() *BookingEventEmitter {
	return &BookingEventEmitter{
		userClients:    make(map[string][]chan models.Notification),
		sessionClients: make(map[string][]chan models.Notification),
	}
}

// SubscribeToUser streams the user's own notifications until ctx is done.
func (e *BookingEventEmitter) SubscribeToUser(ctx context.Context, userID string) <-chan models.Notification {
	return subscribe(ctx, &e.userClientMutex, e.userClients, userID)
}

// SubscribeToSession streams every notification of a session until ctx is
// done. Used by session administrators.
func (e *BookingEventEmitter) SubscribeToSession(ctx context.Context, sessionID string) <-chan models.Notification {
	return subscribe(ctx, &e.sessionClientMutex, e.sessionClients, sessionID)
}

func subscribe(ctx context.Context, mu *sync.RWMutex, clients map[string][]chan models.Notification, key string) <-chan models.Notification {
	clientChan := make(chan models.Notification, 16)

	mu.Lock()
	clients[key] = append(clients[key], clientChan)
	mu.Unlock()

	go func() {
		<-ctx.Done()
		removeClient(mu, clients, key, clientChan)
	}()

	return clientChan
}

// Emit delivers n to the user's and the session's subscribers. Slow clients
// with a full buffer miss the event rather than block the caller.
func (e *BookingEventEmitter) Emit(n models.Notification) {
	broadcast(&e.userClientMutex, e.userClients, n.UserID, n)
	broadcast(&e.sessionClientMutex, e.sessionClients, n.SessionID, n)
}

// broadcast sends under the read lock so a disconnecting client's channel
// cannot be closed mid-send.
func broadcast(mu *sync.RWMutex, clients map[string][]chan models.Notification, key string, n models.Notification) {
	mu.RLock()
	defer mu.RUnlock()
	for _, clientChan := range clients[key] {
		select {
		case clientChan <- n:
		default:
		}
	}
}

// Notify makes the emitter usable as a booking notifier.
func (e *BookingEventEmitter) Notify(ctx context.Context, n models.Notification) error {
	e.Emit(n)
	return nil
}

func removeClient(mu *sync.RWMutex, clients map[string][]chan models.Notification, key string, clientChan chan models.Notification) {
	mu.Lock()
	defer mu.Unlock()

	list := clients[key]
	for i, ch := range list {
		if ch == clientChan {
			clients[key] = append(list[:i], list[i+1:]...)
			close(clientChan)
			break
		}
	}
	if len(clients[key]) == 0 {
		delete(clients, key)
	}
}

// UserClientCount returns the number of open streams for a user
func (e *BookingEventEmitter) UserClientCount(userID string) int {
	e.userClientMutex.RLock()
	defer e.userClientMutex.RUnlock()
	return len(e.userClients[userID])
}

// SessionClientCount returns the number of open streams for a session
func (e *BookingEventEmitter) SessionClientCount(sessionID string) int {
	e.sessionClientMutex.RLock()
	defer e.sessionClientMutex.RUnlock()
	return len(e.sessionClients[sessionID])
}
