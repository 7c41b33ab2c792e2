// Package watcher polls the relational store for service lifecycle events,
// cross-references the document store for the patient's device, and pushes
// a mobile notification for each new event.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultBatchSize = 100

// Watcher runs two independent poll loops, one for service starts and one
// for service stops. The loops share no mutable state; a failure in one
// never stops the other.
type Watcher struct {
	bookings  BookingRepository
	devices   DeviceDirectory
	push      PushSender
	logger    zerolog.Logger
	interval  time.Duration
	batchSize int
}

func New(bookings BookingRepository, devices DeviceDirectory, push PushSender, logger zerolog.Logger, interval time.Duration) *Watcher {
	return &Watcher{
		bookings:  bookings,
		devices:   devices,
		push:      push,
		logger:    logger,
		interval:  interval,
		batchSize: defaultBatchSize,
	}
}

// Run starts both loops and blocks until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.loop(ctx, EventStart)
	}()
	go func() {
		defer wg.Done()
		w.loop(ctx, EventStop)
	}()
	wg.Wait()
}

func (w *Watcher) loop(ctx context.Context, kind EventKind) {
	logger := w.logger.With().Str("loop", string(kind)).Logger()
	logger.Info().Dur("interval", w.interval).Msg("watcher loop started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.Sweep(ctx, kind); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("sweep failed")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("watcher loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep processes one batch of pending events of the given kind. Bookings
// whose push fails are left unmarked and picked up again on the next sweep;
// bookings whose patient has no registered device are marked handled, since
// there is nothing to deliver.
func (w *Watcher) Sweep(ctx context.Context, kind EventKind) error {
	var (
		pending []*Booking
		err     error
	)
	switch kind {
	case EventStart:
		pending, err = w.bookings.PendingStarted(ctx, w.batchSize)
	case EventStop:
		pending, err = w.bookings.PendingStopped(ctx, w.batchSize)
	default:
		return fmt.Errorf("unknown event kind %q", kind)
	}
	if err != nil {
		return err
	}

	for _, b := range pending {
		if err := w.notify(ctx, kind, b); err != nil {
			w.logger.Error().
				Err(err).
				Int64("booking_id", b.ID).
				Str("loop", string(kind)).
				Msg("notify failed")
		}
	}
	return nil
}

func (w *Watcher) notify(ctx context.Context, kind EventKind, b *Booking) error {
	device, err := w.devices.DeviceForPatient(ctx, b.PatientID)
	if errors.Is(err, ErrDeviceNotFound) {
		w.logger.Warn().
			Int64("booking_id", b.ID).
			Str("patient_id", b.PatientID).
			Msg("no device registered, skipping push")
		return w.bookings.MarkNotified(ctx, b.ID, kind)
	}
	if err != nil {
		return err
	}

	title, body := messageFor(kind, b)
	err = w.push.Send(ctx, device.FCMToken, title, body, map[string]string{
		"click_action": ClickAction,
		"booking_id":   fmt.Sprintf("%d", b.ID),
		"event":        string(kind),
	})
	if err != nil {
		// Leave the row unmarked so the next sweep retries the push.
		return err
	}

	return w.bookings.MarkNotified(ctx, b.ID, kind)
}

func messageFor(kind EventKind, b *Booking) (title, body string) {
	if kind == EventStart {
		return "Service started", fmt.Sprintf("Your %s service has started.", b.ServiceName)
	}
	return "Service completed", fmt.Sprintf("Your %s service has ended.", b.ServiceName)
}
