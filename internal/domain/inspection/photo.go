package inspection

import (
	"time"

	"github.com/google/uuid"

	"github.com/fleetrent/service-rental/internal/domain"
)

// PhotoType distinguishes handover from return condition photos.
type PhotoType string

const (
	PhotoTypeCollection PhotoType = "collection"
	PhotoTypeReturn     PhotoType = "return"
)

// IsValid returns true if the photo type is recognized.
func (p PhotoType) IsValid() bool {
	return p == PhotoTypeCollection || p == PhotoTypeReturn
}

// Photo records the vehicle's condition at collection or return. Photos are
// the evidence backing damage charges on the final invoice.
type Photo struct {
	id        uuid.UUID
	bookingID uuid.UUID
	takenBy   uuid.UUID
	photoType PhotoType
	photoURL  string
	caption   string
	takenAt   time.Time
	createdAt time.Time
}

// NewPhoto creates a new condition photo.
func NewPhoto(bookingID, takenBy uuid.UUID, photoType PhotoType, photoURL, caption string) (*Photo, error) {
	if !photoType.IsValid() {
		return nil, domain.NewValidationError("photo type must be collection or return")
	}
	if photoURL == "" {
		return nil, domain.NewValidationError("photo URL is required")
	}

	now := time.Now().UTC()
	return &Photo{
		id:        uuid.New(),
		bookingID: bookingID,
		takenBy:   takenBy,
		photoType: photoType,
		photoURL:  photoURL,
		caption:   caption,
		takenAt:   now,
		createdAt: now,
	}, nil
}

// Reconstruct rebuilds a Photo from persistence.
func Reconstruct(id, bookingID, takenBy uuid.UUID, photoType PhotoType, photoURL, caption string, takenAt, createdAt time.Time) *Photo {
	return &Photo{
		id:        id,
		bookingID: bookingID,
		takenBy:   takenBy,
		photoType: photoType,
		photoURL:  photoURL,
		caption:   caption,
		takenAt:   takenAt,
		createdAt: createdAt,
	}
}

// ID returns the photo's unique identifier.
func (p *Photo) ID() uuid.UUID { return p.id }

// BookingID returns the booking the photo documents.
func (p *Photo) BookingID() uuid.UUID { return p.bookingID }

// TakenBy returns the user who captured the photo.
func (p *Photo) TakenBy() uuid.UUID { return p.takenBy }

// Type returns collection or return.
func (p *Photo) Type() PhotoType { return p.photoType }

// URL returns the stored photo URL.
func (p *Photo) URL() string { return p.photoURL }

// Caption returns the optional caption.
func (p *Photo) Caption() string { return p.caption }

// TakenAt returns when the photo was captured.
func (p *Photo) TakenAt() time.Time { return p.takenAt }

// CreatedAt returns the persistence timestamp.
func (p *Photo) CreatedAt() time.Time { return p.createdAt }
