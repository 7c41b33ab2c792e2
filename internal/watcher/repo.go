package watcher

import "context"

// BookingRepository is the relational-store surface the poll loops scan.
// The two pending queries operate on disjoint row sets (starts vs stops),
// so the loops never contend over a booking.
type BookingRepository interface {
	// PendingStarted returns started bookings not yet announced.
	PendingStarted(ctx context.Context, limit int) ([]*Booking, error)
	// PendingStopped returns ended bookings not yet announced.
	PendingStopped(ctx context.Context, limit int) ([]*Booking, error)
	// MarkNotified records that the booking's event of the given kind has
	// been handled, so the next sweep skips it.
	MarkNotified(ctx context.Context, id int64, kind EventKind) error
}
