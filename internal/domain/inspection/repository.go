package inspection

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for condition photos.
type Repository interface {
	// FindByBookingID returns all photos for a booking, oldest first.
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*Photo, error)

	// Save persists a new photo.
	Save(ctx context.Context, photo *Photo) error
}
