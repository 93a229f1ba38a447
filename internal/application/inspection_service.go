package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	bookingDomain "github.com/fleetrent/service-rental/internal/domain/booking"
	"github.com/fleetrent/service-rental/internal/domain/inspection"
)

// AddPhotoRequest holds one condition photo to attach to a booking.
type AddPhotoRequest struct {
	PhotoType string `json:"photo_type" binding:"required"`
	PhotoURL  string `json:"photo_url" binding:"required"`
	Caption   string `json:"caption"`
}

// PhotoDTO is the response representation of a condition photo.
type PhotoDTO struct {
	ID        uuid.UUID `json:"id"`
	BookingID uuid.UUID `json:"booking_id"`
	TakenBy   uuid.UUID `json:"taken_by"`
	PhotoType string    `json:"photo_type"`
	PhotoURL  string    `json:"photo_url"`
	Caption   string    `json:"caption,omitempty"`
	TakenAt   time.Time `json:"taken_at"`
	CreatedAt time.Time `json:"created_at"`
}

// InspectionService manages condition photos documenting vehicle handover and
// return.
type InspectionService struct {
	photos   inspection.Repository
	bookings bookingDomain.Repository
	logger   *zap.Logger
}

// NewInspectionService creates a new InspectionService.
func NewInspectionService(photos inspection.Repository, bookings bookingDomain.Repository, logger *zap.Logger) *InspectionService {
	return &InspectionService{photos: photos, bookings: bookings, logger: logger}
}

// AddPhoto attaches a condition photo to an existing booking.
func (s *InspectionService) AddPhoto(ctx context.Context, bookingID, takenBy uuid.UUID, req AddPhotoRequest) (*PhotoDTO, error) {
	if _, err := s.bookings.FindByID(ctx, bookingID); err != nil {
		return nil, err
	}

	photo, err := inspection.NewPhoto(bookingID, takenBy, inspection.PhotoType(req.PhotoType), req.PhotoURL, req.Caption)
	if err != nil {
		return nil, err
	}
	if err := s.photos.Save(ctx, photo); err != nil {
		return nil, err
	}

	result := toPhotoDTO(photo)
	return &result, nil
}

// ListPhotos returns all condition photos for a booking, oldest first.
func (s *InspectionService) ListPhotos(ctx context.Context, bookingID uuid.UUID) ([]PhotoDTO, error) {
	if _, err := s.bookings.FindByID(ctx, bookingID); err != nil {
		return nil, err
	}

	photos, err := s.photos.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	dtos := make([]PhotoDTO, len(photos))
	for i, p := range photos {
		dtos[i] = toPhotoDTO(p)
	}
	return dtos, nil
}

// --- Helpers ---

func toPhotoDTO(p *inspection.Photo) PhotoDTO {
	return PhotoDTO{
		ID:        p.ID(),
		BookingID: p.BookingID(),
		TakenBy:   p.TakenBy(),
		PhotoType: string(p.Type()),
		PhotoURL:  p.URL(),
		Caption:   p.Caption(),
		TakenAt:   p.TakenAt(),
		CreatedAt: p.CreatedAt(),
	}
}
