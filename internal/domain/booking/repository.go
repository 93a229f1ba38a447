package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows booking listings.
type ListFilter struct {
	RenterID  *uuid.UUID
	VehicleID *uuid.UUID
	Status    *Status
}

// Repository defines the persistence contract for booking aggregates.
type Repository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByNumber retrieves a booking by its human-readable booking number.
	FindByNumber(ctx context.Context, number string) (*Booking, error)

	// List retrieves bookings matching the filter with pagination.
	List(ctx context.Context, filter ListFilter, page, limit int) ([]*Booking, int64, error)

	// CountByStatus returns booking counts grouped by status (admin).
	CountByStatus(ctx context.Context) (map[string]int64, error)

	// HasOverlap reports whether any non-terminal booking of the vehicle
	// overlaps [start, end). Callers must hold the vehicle's row lock in the
	// same transaction for the check-then-act to be race-safe.
	HasOverlap(ctx context.Context, vehicleID uuid.UUID, start, end time.Time, excludeBookingID *uuid.UUID) (bool, error)

	// Save persists a new booking.
	Save(ctx context.Context, b *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, b *Booking) error
}
