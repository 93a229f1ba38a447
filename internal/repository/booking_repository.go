package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fleetrent/service-rental/internal/domain"
	bookingDomain "github.com/fleetrent/service-rental/internal/domain/booking"
	"github.com/fleetrent/service-rental/internal/domain/pricing"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingNumber string          `gorm:"uniqueIndex;not null;size:20"`
	VehicleID     uuid.UUID       `gorm:"type:uuid;index;not null"`
	RenterID      uuid.UUID       `gorm:"type:uuid;index;not null"`
	Status        string          `gorm:"not null;size:20;index"`
	StartDate     time.Time       `gorm:"not null;index"`
	EndDate       time.Time       `gorm:"not null;index"`
	DailyRate     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency      string          `gorm:"not null;size:3"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Packages      json.RawMessage `gorm:"type:jsonb"`
	Notes         string          `gorm:"size:1000"`

	ConfirmedBy          *uuid.UUID      `gorm:"type:uuid"`
	ConfirmedAt          *time.Time      `gorm:""`
	AdvanceAmount        decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	AdvancePaid          bool            `gorm:"not null;default:false"`
	AdvancePaymentMethod string          `gorm:"size:30"`
	AdvancePaidAt        *time.Time      `gorm:""`
	FreeMileagePerDay    int64           `gorm:"not null;default:0"`
	FreeMileage          int64           `gorm:"not null;default:0"`
	ExtraMileageRate     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	CollectedBy         *uuid.UUID `gorm:"type:uuid"`
	CollectedAt         *time.Time `gorm:""`
	CollectionOdometer  *int64     `gorm:""`
	CollectionFuelLevel string     `gorm:"size:20"`
	CollectionNotes     string     `gorm:"size:1000"`

	ReturnedBy      *uuid.UUID `gorm:"type:uuid"`
	ReturnedAt      *time.Time `gorm:""`
	ReturnOdometer  *int64     `gorm:""`
	ReturnFuelLevel string     `gorm:"size:20"`
	ReturnNotes     string     `gorm:"size:1000"`

	RentalDays       int             `gorm:"not null;default:0"`
	RentalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalMileage     int64           `gorm:"not null;default:0"`
	ExtraMileage     int64           `gorm:"not null;default:0"`
	ExtraMileageCost decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	FuelCharge       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DamageCharge     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	LateReturnCharge decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	OtherCharges     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	OtherChargesNote string          `gorm:"size:500"`
	PackageCharges   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DiscountAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DiscountReason   string          `gorm:"size:500"`
	FinalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	BalanceDue       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	CancelledBy  *uuid.UUID `gorm:"type:uuid"`
	CancelledAt  *time.Time `gorm:""`
	CancelReason string     `gorm:"size:500"`

	InvoiceID *uuid.UUID `gorm:"type:uuid;uniqueIndex"`
	Version   int64      `gorm:"not null;default:1"`
	CreatedAt time.Time  `gorm:"not null"`
	UpdatedAt time.Time  `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

// GormBookingRepository is the GORM-based implementation of booking.Repository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model)
}

// FindByNumber retrieves a booking by its booking number.
func (r *GormBookingRepository) FindByNumber(ctx context.Context, number string) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := conn(ctx, r.db).Where("booking_number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", number)
		}
		return nil, fmt.Errorf("failed to find booking by number: %w", err)
	}
	return toDomainBooking(&model)
}

// List retrieves bookings matching the filter with pagination.
func (r *GormBookingRepository) List(ctx context.Context, filter bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	q := conn(ctx, r.db).Model(&BookingModel{})
	if filter.RenterID != nil {
		q = q.Where("renter_id = ?", *filter.RenterID)
	}
	if filter.VehicleID != nil {
		q = q.Where("vehicle_id = ?", *filter.VehicleID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", filter.Status.String())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i, m := range models {
		b, err := toDomainBooking(&m)
		if err != nil {
			return nil, 0, err
		}
		bookings[i] = b
	}
	return bookings, total, nil
}

// CountByStatus returns booking counts grouped by status (admin).
func (r *GormBookingRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := conn(ctx, r.db).Model(&BookingModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return counts, nil
}

// HasOverlap reports whether any non-terminal booking of the vehicle overlaps
// [start, end). The caller must hold the vehicle's row lock in the same
// transaction for the check to be race-safe.
func (r *GormBookingRepository) HasOverlap(ctx context.Context, vehicleID uuid.UUID, start, end time.Time, excludeBookingID *uuid.UUID) (bool, error) {
	blocking := []string{
		bookingDomain.StatusPending.String(),
		bookingDomain.StatusConfirmed.String(),
		bookingDomain.StatusCollected.String(),
	}
	q := conn(ctx, r.db).Model(&BookingModel{}).
		Where("vehicle_id = ?", vehicleID).
		Where("status IN ?", blocking).
		Where("start_date < ? AND end_date > ?", end, start)
	if excludeBookingID != nil {
		q = q.Where("id <> ?", *excludeBookingID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check booking overlap: %w", err)
	}
	return count > 0, nil
}

// Save persists a new booking.
func (r *GormBookingRepository) Save(ctx context.Context, b *bookingDomain.Booking) error {
	model, err := toBookingModel(b)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflictError("booking number collision, retry the request")
		}
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, b *bookingDomain.Booking) error {
	model, err := toBookingModel(b)
	if err != nil {
		return fmt.Errorf("failed to convert booking to model: %w", err)
	}

	// Only update if the version matches (current version - 1, since
	// IncrementVersion was called before Update).
	expectedVersion := b.Version() - 1
	result := conn(ctx, r.db).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		if isUniqueViolation(result.Error) {
			return domain.NewConflictError("booking already has an invoice")
		}
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// --- Conversion helpers ---

func toBookingModel(b *bookingDomain.Booking) (*BookingModel, error) {
	s := b.Snapshot()

	var packagesJSON json.RawMessage
	if len(s.Packages) > 0 {
		data, err := json.Marshal(s.Packages)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal package selections: %w", err)
		}
		packagesJSON = data
	}

	return &BookingModel{
		ID:                   s.ID,
		BookingNumber:        s.BookingNumber,
		VehicleID:            s.VehicleID,
		RenterID:             s.RenterID,
		Status:               s.Status.String(),
		StartDate:            s.StartDate,
		EndDate:              s.EndDate,
		DailyRate:            s.DailyRate,
		Currency:             s.Currency,
		TotalPrice:           s.TotalPrice,
		Packages:             packagesJSON,
		Notes:                s.Notes,
		ConfirmedBy:          s.ConfirmedBy,
		ConfirmedAt:          s.ConfirmedAt,
		AdvanceAmount:        s.AdvanceAmount,
		AdvancePaid:          s.AdvancePaid,
		AdvancePaymentMethod: s.AdvancePaymentMethod,
		AdvancePaidAt:        s.AdvancePaidAt,
		FreeMileagePerDay:    s.FreeMileagePerDay,
		FreeMileage:          s.FreeMileage,
		ExtraMileageRate:     s.ExtraMileageRate,
		CollectedBy:          s.CollectedBy,
		CollectedAt:          s.CollectedAt,
		CollectionOdometer:   s.CollectionOdometer,
		CollectionFuelLevel:  s.CollectionFuelLevel,
		CollectionNotes:      s.CollectionNotes,
		ReturnedBy:           s.ReturnedBy,
		ReturnedAt:           s.ReturnedAt,
		ReturnOdometer:       s.ReturnOdometer,
		ReturnFuelLevel:      s.ReturnFuelLevel,
		ReturnNotes:          s.ReturnNotes,
		RentalDays:           s.RentalDays,
		RentalAmount:         s.RentalAmount,
		TotalMileage:         s.TotalMileage,
		ExtraMileage:         s.ExtraMileage,
		ExtraMileageCost:     s.ExtraMileageCost,
		FuelCharge:           s.FuelCharge,
		DamageCharge:         s.DamageCharge,
		LateReturnCharge:     s.LateReturnCharge,
		OtherCharges:         s.OtherCharges,
		OtherChargesNote:     s.OtherChargesNote,
		PackageCharges:       s.PackageCharges,
		DiscountAmount:       s.DiscountAmount,
		DiscountReason:       s.DiscountReason,
		FinalAmount:          s.FinalAmount,
		BalanceDue:           s.BalanceDue,
		CancelledBy:          s.CancelledBy,
		CancelledAt:          s.CancelledAt,
		CancelReason:         s.CancelReason,
		InvoiceID:            s.InvoiceID,
		Version:              s.Version,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}, nil
}

func toDomainBooking(m *BookingModel) (*bookingDomain.Booking, error) {
	status, err := bookingDomain.ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}

	var packages []pricing.PackageSelection
	if len(m.Packages) > 0 {
		if err := json.Unmarshal(m.Packages, &packages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal package selections: %w", err)
		}
	}

	return bookingDomain.FromSnapshot(bookingDomain.Snapshot{
		ID:                   m.ID,
		BookingNumber:        m.BookingNumber,
		VehicleID:            m.VehicleID,
		RenterID:             m.RenterID,
		Status:               status,
		StartDate:            m.StartDate,
		EndDate:              m.EndDate,
		DailyRate:            m.DailyRate,
		Currency:             m.Currency,
		TotalPrice:           m.TotalPrice,
		Packages:             packages,
		Notes:                m.Notes,
		ConfirmedBy:          m.ConfirmedBy,
		ConfirmedAt:          m.ConfirmedAt,
		AdvanceAmount:        m.AdvanceAmount,
		AdvancePaid:          m.AdvancePaid,
		AdvancePaymentMethod: m.AdvancePaymentMethod,
		AdvancePaidAt:        m.AdvancePaidAt,
		FreeMileagePerDay:    m.FreeMileagePerDay,
		FreeMileage:          m.FreeMileage,
		ExtraMileageRate:     m.ExtraMileageRate,
		CollectedBy:          m.CollectedBy,
		CollectedAt:          m.CollectedAt,
		CollectionOdometer:   m.CollectionOdometer,
		CollectionFuelLevel:  m.CollectionFuelLevel,
		CollectionNotes:      m.CollectionNotes,
		ReturnedBy:           m.ReturnedBy,
		ReturnedAt:           m.ReturnedAt,
		ReturnOdometer:       m.ReturnOdometer,
		ReturnFuelLevel:      m.ReturnFuelLevel,
		ReturnNotes:          m.ReturnNotes,
		RentalDays:           m.RentalDays,
		RentalAmount:         m.RentalAmount,
		TotalMileage:         m.TotalMileage,
		ExtraMileage:         m.ExtraMileage,
		ExtraMileageCost:     m.ExtraMileageCost,
		FuelCharge:           m.FuelCharge,
		DamageCharge:         m.DamageCharge,
		LateReturnCharge:     m.LateReturnCharge,
		OtherCharges:         m.OtherCharges,
		OtherChargesNote:     m.OtherChargesNote,
		PackageCharges:       m.PackageCharges,
		DiscountAmount:       m.DiscountAmount,
		DiscountReason:       m.DiscountReason,
		FinalAmount:          m.FinalAmount,
		BalanceDue:           m.BalanceDue,
		CancelledBy:          m.CancelledBy,
		CancelledAt:          m.CancelledAt,
		CancelReason:         m.CancelReason,
		InvoiceID:            m.InvoiceID,
		Version:              m.Version,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	})
}
