package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fleetrent/service-rental/internal/domain"
	vehicleDomain "github.com/fleetrent/service-rental/internal/domain/vehicle"
)

// CreateVehicleRequest holds the data needed to register a fleet vehicle.
type CreateVehicleRequest struct {
	RegistrationNumber string          `json:"registration_number" binding:"required"`
	Make               string          `json:"make" binding:"required"`
	Model              string          `json:"model" binding:"required"`
	Year               int             `json:"year" binding:"required"`
	DailyRate          decimal.Decimal `json:"daily_rate" binding:"required"`
	Odometer           int64           `json:"odometer"`
	FuelType           string          `json:"fuel_type"`
	Transmission       string          `json:"transmission"`
	Seats              int             `json:"seats"`
	Notes              string          `json:"notes"`
}

// UpdateVehicleRequest carries the mutable fleet fields. Nil fields are left
// untouched.
type UpdateVehicleRequest struct {
	DailyRate *decimal.Decimal `json:"daily_rate"`
	Notes     *string          `json:"notes"`
}

// SetAvailabilityRequest flips the availability flag manually (admin).
type SetAvailabilityRequest struct {
	Available bool `json:"available"`
}

// VehicleDTO is the response representation of a fleet vehicle.
type VehicleDTO struct {
	ID                 uuid.UUID       `json:"id"`
	RegistrationNumber string          `json:"registration_number"`
	Make               string          `json:"make"`
	Model              string          `json:"model"`
	Year               int             `json:"year"`
	DailyRate          decimal.Decimal `json:"daily_rate"`
	Odometer           int64           `json:"odometer"`
	FuelType           string          `json:"fuel_type,omitempty"`
	Transmission       string          `json:"transmission,omitempty"`
	Seats              int             `json:"seats"`
	Notes              string          `json:"notes,omitempty"`
	Available          bool            `json:"available"`
	Status             string          `json:"status"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// FleetService manages the vehicle fleet. The available-fleet listing is the
// one cached read; everything else goes straight to the database.
type FleetService struct {
	vehicles vehicleDomain.Repository
	tx       domain.Transactor
	cache    *AvailabilityCache
	logger   *zap.Logger
}

// NewFleetService creates a new FleetService.
func NewFleetService(
	vehicles vehicleDomain.Repository,
	tx domain.Transactor,
	cache *AvailabilityCache,
	logger *zap.Logger,
) *FleetService {
	return &FleetService{
		vehicles: vehicles,
		tx:       tx,
		cache:    cache,
		logger:   logger,
	}
}

// CreateVehicle registers a new fleet vehicle.
func (s *FleetService) CreateVehicle(ctx context.Context, req CreateVehicleRequest) (*VehicleDTO, error) {
	v, err := vehicleDomain.NewVehicle(
		req.RegistrationNumber,
		req.Make,
		req.Model,
		req.Year,
		req.DailyRate,
		req.Odometer,
		req.FuelType,
		req.Transmission,
		req.Seats,
		req.Notes,
	)
	if err != nil {
		return nil, err
	}
	if err := s.vehicles.Save(ctx, v); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	result := toVehicleDTO(v)
	return &result, nil
}

// UpdateVehicle changes rate and notes. Rate changes affect future bookings
// only; confirmed bookings keep the rate snapshotted at creation.
func (s *FleetService) UpdateVehicle(ctx context.Context, vehicleID uuid.UUID, req UpdateVehicleRequest) (*VehicleDTO, error) {
	var v *vehicleDomain.Vehicle
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.vehicles.FindByIDForUpdate(ctx, vehicleID)
		if err != nil {
			return err
		}
		if req.DailyRate != nil {
			if err := v.UpdateRate(*req.DailyRate); err != nil {
				return err
			}
		}
		if req.Notes != nil {
			v.UpdateNotes(*req.Notes)
		}
		v.IncrementVersion()
		return s.vehicles.Update(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	result := toVehicleDTO(v)
	return &result, nil
}

// SetAvailability flips the availability flag manually. Repeating the current
// value is a no-op, not an error; the write is skipped entirely.
func (s *FleetService) SetAvailability(ctx context.Context, vehicleID uuid.UUID, available bool) (*VehicleDTO, error) {
	var (
		v       *vehicleDomain.Vehicle
		changed bool
	)
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.vehicles.FindByIDForUpdate(ctx, vehicleID)
		if err != nil {
			return err
		}
		changed = v.SetAvailable(available)
		if !changed {
			return nil
		}
		v.IncrementVersion()
		return s.vehicles.Update(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.cache.Invalidate(ctx)
	}
	result := toVehicleDTO(v)
	return &result, nil
}

// RetireVehicle removes a vehicle from the rentable fleet.
func (s *FleetService) RetireVehicle(ctx context.Context, vehicleID uuid.UUID) (*VehicleDTO, error) {
	var v *vehicleDomain.Vehicle
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.vehicles.FindByIDForUpdate(ctx, vehicleID)
		if err != nil {
			return err
		}
		if err := v.Retire(); err != nil {
			return err
		}
		v.IncrementVersion()
		return s.vehicles.Update(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	result := toVehicleDTO(v)
	return &result, nil
}

// GetVehicle retrieves a single vehicle.
func (s *FleetService) GetVehicle(ctx context.Context, vehicleID uuid.UUID) (*VehicleDTO, error) {
	v, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	result := toVehicleDTO(v)
	return &result, nil
}

// ListVehicles retrieves paginated vehicles. The unpaged available-only
// listing is served from the cache when warm.
func (s *FleetService) ListVehicles(ctx context.Context, filter vehicleDomain.ListFilter, page, limit int) (*domain.PaginatedResult[VehicleDTO], error) {
	cacheable := filter.OnlyAvailable && filter.Status == "" && page == 1
	if cacheable {
		if dtos, ok := s.cache.GetAvailableFleet(ctx); ok && len(dtos) <= limit {
			result := domain.NewPaginatedResult(dtos, int64(len(dtos)), page, limit)
			return &result, nil
		}
	}

	vehicles, total, err := s.vehicles.List(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]VehicleDTO, len(vehicles))
	for i, v := range vehicles {
		dtos[i] = toVehicleDTO(v)
	}

	if cacheable && total <= int64(limit) {
		s.cache.SetAvailableFleet(ctx, dtos)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// --- Helpers ---

func toVehicleDTO(v *vehicleDomain.Vehicle) VehicleDTO {
	return VehicleDTO{
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
