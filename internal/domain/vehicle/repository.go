package vehicle

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows fleet listings.
type ListFilter struct {
	OnlyAvailable bool
	Status        VehicleStatus
}

// Repository defines the persistence contract for vehicle aggregates.
type Repository interface {
	// FindByID retrieves a vehicle by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Vehicle, error)

	// FindByIDForUpdate retrieves a vehicle and locks its row for the duration
	// of the surrounding transaction. Used to serialize overlap checks and
	// availability flips per vehicle.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Vehicle, error)

	// FindByRegistration retrieves a vehicle by registration number.
	FindByRegistration(ctx context.Context, registrationNumber string) (*Vehicle, error)

	// List retrieves vehicles matching the filter with pagination.
	List(ctx context.Context, filter ListFilter, page, limit int) ([]*Vehicle, int64, error)

	// Save persists a new vehicle.
	Save(ctx context.Context, v *Vehicle) error

	// Update persists changes to an existing vehicle with optimistic locking.
	Update(ctx context.Context, v *Vehicle) error
}
