package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fleetrent/service-rental/internal/domain/inspection"
)

// InspectionPhotoModel is the GORM model for the inspection_photos table.
type InspectionPhotoModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;index"`
	TakenBy   uuid.UUID `gorm:"type:uuid;not null"`
	PhotoType string    `gorm:"not null;size:20"`
	PhotoURL  string    `gorm:"not null;size:500"`
	Caption   string    `gorm:"size:255"`
	TakenAt   time.Time `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (InspectionPhotoModel) TableName() string {
	return "inspection_photos"
}

// GormInspectionRepository is the GORM-based implementation of inspection.Repository.
type GormInspectionRepository struct {
	db *gorm.DB
}

// NewGormInspectionRepository creates a new GormInspectionRepository.
func NewGormInspectionRepository(db *gorm.DB) *GormInspectionRepository {
	return &GormInspectionRepository{db: db}
}

// FindByBookingID returns all photos for a booking, oldest first.
func (r *GormInspectionRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) ([]*inspection.Photo, error) {
	var models []InspectionPhotoModel
	if err := conn(ctx, r.db).Where("booking_id = ?", bookingID).Order("taken_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list inspection photos: %w", err)
	}

	photos := make([]*inspection.Photo, len(models))
	for i, m := range models {
		photos[i] = inspection.Reconstruct(
			m.ID,
			m.BookingID,
			m.TakenBy,
			inspection.PhotoType(m.PhotoType),
			m.PhotoURL,
			m.Caption,
			m.TakenAt,
			m.CreatedAt,
		)
	}
	return photos, nil
}

// Save persists a new photo.
func (r *GormInspectionRepository) Save(ctx context.Context, photo *inspection.Photo) error {
	model := &InspectionPhotoModel{
		ID:        photo.ID(),
		BookingID: photo.BookingID(),
		TakenBy:   photo.TakenBy(),
		PhotoType: string(photo.Type()),
		PhotoURL:  photo.URL(),
		Caption:   photo.Caption(),
		TakenAt:   photo.TakenAt(),
		CreatedAt: photo.CreatedAt(),
	}
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save inspection photo: %w", err)
	}
	return nil
}
