package watcher

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type bookingRepoPG struct{ pool *pgxpool.Pool }

func NewBookingRepoPG(pool *pgxpool.Pool) BookingRepository {
	return &bookingRepoPG{pool: pool}
}

const bookingCols = `id, patient_id, service_name, status, started_at, ended_at`

func (r *bookingRepoPG) PendingStarted(ctx context.Context, limit int) ([]*Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingCols+` FROM service_bookings
		WHERE status = 'started' AND start_notified_at IS NULL
		ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query started bookings: %w", err)
	}
	return scanBookings(rows)
}

func (r *bookingRepoPG) PendingStopped(ctx context.Context, limit int) ([]*Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingCols+` FROM service_bookings
		WHERE status IN ('stopped', 'completed') AND stop_notified_at IS NULL
		ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query stopped bookings: %w", err)
	}
	return scanBookings(rows)
}

func (r *bookingRepoPG) MarkNotified(ctx context.Context, id int64, kind EventKind) error {
	col := "start_notified_at"
	if kind == EventStop {
		col = "stop_notified_at"
	}
	_, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE service_bookings SET %s = NOW() WHERE id = $1`, col), id)
	if err != nil {
		return fmt.Errorf("mark booking %d notified: %w", id, err)
	}
	return nil
}

func scanBookings(rows pgx.Rows) ([]*Booking, error) {
	defer rows.Close()
	var bookings []*Booking
	for rows.Next() {
		var b Booking
		if err := rows.Scan(&b.ID, &b.PatientID, &b.ServiceName, &b.Status, &b.StartedAt, &b.EndedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}
