// Package notify delivers booking notifications after the engine commits.
package notify

import (
	"context"
	"errors"
	"fmt"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

type publisher interface {
	Publish(ctx context.Context, key string, v any) error
}

// Kafka publishes notifications keyed by session id.
type Kafka struct {
	Producer publisher
}

func NewKafka(p publisher) *Kafka {
	return &Kafka{Producer: p}
}

func (k *Kafka) Notify(ctx context.Context, n models.Notification) error {
	if err := k.Producer.Publish(ctx, n.SessionID, n); err != nil {
		return fmt.Errorf("publish %s: %w", n.Kind, err)
	}
	return nil
}

// Log writes notifications to the service log. Used when Kafka is off.
type Log struct {
	Logger *logger.Logger
}

func (l *Log) Notify(ctx context.Context, n models.Notification) error {
	l.Logger.Info("NOTIFY", fmt.Sprintf("%s -> %s session=%s booking=%s %s", n.Kind, n.UserID, n.SessionID, n.BookingID, n.Message))
	return nil
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n models.Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
