package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fleetrent/service-rental/internal/domain"
	vehicleDomain "github.com/fleetrent/service-rental/internal/domain/vehicle"
)

// VehicleModel is the GORM model for the vehicles table.
type VehicleModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	RegistrationNumber string          `gorm:"uniqueIndex;not null;size:20"`
	Make               string          `gorm:"not null;size:50"`
	Model              string          `gorm:"not null;size:50"`
	Year               int             `gorm:"not null"`
	DailyRate          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Odometer           int64           `gorm:"not null;default:0"`
	FuelType           string          `gorm:"size:20"`
	Transmission       string          `gorm:"size:20"`
	Seats              int             `gorm:"not null;default:0"`
	Notes              string          `gorm:"size:1000"`
	Available          bool            `gorm:"not null;default:true;index"`
	Status             string          `gorm:"not null;size:20;index"`
	Version            int64           `gorm:"not null;default:1"`
	CreatedAt          time.Time       `gorm:"not null"`
	UpdatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (VehicleModel) TableName() string {
	return "vehicles"
}

// GormVehicleRepository is the GORM-based implementation of vehicle.Repository.
type GormVehicleRepository struct {
	db *gorm.DB
}

// NewGormVehicleRepository creates a new GormVehicleRepository.
func NewGormVehicleRepository(db *gorm.DB) *GormVehicleRepository {
	return &GormVehicleRepository{db: db}
}

// FindByID retrieves a vehicle by its unique identifier.
func (r *GormVehicleRepository) FindByID(ctx context.Context, id uuid.UUID) (*vehicleDomain.Vehicle, error) {
	return r.findOne(ctx, conn(ctx, r.db), id)
}

// FindByIDForUpdate retrieves a vehicle and locks its row for the duration of
// the surrounding transaction. All booking creation and availability flips
// for one vehicle serialize on this lock.
func (r *GormVehicleRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*vehicleDomain.Vehicle, error) {
	return r.findOne(ctx, conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormVehicleRepository) findOne(_ context.Context, q *gorm.DB, id uuid.UUID) (*vehicleDomain.Vehicle, error) {
	var model VehicleModel
	if err := q.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("vehicle", id.String())
		}
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}
	return toDomainVehicle(&model)
}

// FindByRegistration retrieves a vehicle by registration number.
func (r *GormVehicleRepository) FindByRegistration(ctx context.Context, registrationNumber string) (*vehicleDomain.Vehicle, error) {
	var model VehicleModel
	if err := conn(ctx, r.db).Where("registration_number = ?", registrationNumber).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("vehicle", registrationNumber)
		}
		return nil, fmt.Errorf("failed to find vehicle by registration: %w", err)
	}
	return toDomainVehicle(&model)
}

// List retrieves vehicles matching the filter with pagination.
func (r *GormVehicleRepository) List(ctx context.Context, filter vehicleDomain.ListFilter, page, limit int) ([]*vehicleDomain.Vehicle, int64, error) {
	q := conn(ctx, r.db).Model(&VehicleModel{})
	if filter.OnlyAvailable {
		q = q.Where("available = ?", true)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count vehicles: %w", err)
	}

	var models []VehicleModel
	offset := (page - 1) * limit
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list vehicles: %w", err)
	}

	vehicles := make([]*vehicleDomain.Vehicle, len(models))
	for i, m := range models {
		v, err := toDomainVehicle(&m)
		if err != nil {
			return nil, 0, err
		}
		vehicles[i] = v
	}
	return vehicles, total, nil
}

// Save persists a new vehicle.
func (r *GormVehicleRepository) Save(ctx context.Context, v *vehicleDomain.Vehicle) error {
	if err := conn(ctx, r.db).Create(toVehicleModel(v)).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflictError(fmt.Sprintf("vehicle with registration %s already exists", v.RegistrationNumber()))
		}
		return fmt.Errorf("failed to save vehicle: %w", err)
	}
	return nil
}

// Update persists changes to an existing vehicle with optimistic locking.
func (r *GormVehicleRepository) Update(ctx context.Context, v *vehicleDomain.Vehicle) error {
	model := toVehicleModel(v)
	expectedVersion := v.Version() - 1
	result := conn(ctx, r.db).
		Model(&VehicleModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update vehicle: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("vehicle was modified by another transaction")
	}
	return nil
}

// --- Conversion helpers ---

func toVehicleModel(v *vehicleDomain.Vehicle) *VehicleModel {
	return &VehicleModel{
		ID:                 v.ID(),
		RegistrationNumber: v.RegistrationNumber(),
		Make:               v.Make(),
		Model:              v.Model(),
		Year:               v.Year(),
		DailyRate:          v.DailyRate(),
		Odometer:           v.Odometer(),
		FuelType:           v.FuelType(),
		Transmission:       v.Transmission(),
		Seats:              v.Seats(),
		Notes:              v.Notes(),
		Available:          v.Available(),
		Status:             string(v.Status()),
		Version:            v.Version(),
		CreatedAt:          v.CreatedAt(),
		UpdatedAt:          v.UpdatedAt(),
	}
}

func toDomainVehicle(m *VehicleModel) (*vehicleDomain.Vehicle, error) {
	status := vehicleDomain.VehicleStatus(m.Status)
	if status != vehicleDomain.StatusActive && status != vehicleDomain.StatusRetired {
		return nil, fmt.Errorf("invalid vehicle status: %s", m.Status)
	}
	return vehicleDomain.Reconstruct(
		m.ID,
		m.RegistrationNumber,
		m.Make,
		m.Model,
		m.Year,
		m.DailyRate,
		m.Odometer,
		m.FuelType,
		m.Transmission,
		m.Seats,
		m.Notes,
		m.Available,
		status,
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	), nil
}
