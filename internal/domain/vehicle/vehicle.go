package vehicle

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetrent/service-rental/internal/domain"
)

// VehicleStatus represents the fleet lifecycle state of a vehicle.
type VehicleStatus string

const (
	StatusActive  VehicleStatus = "active"
	StatusRetired VehicleStatus = "retired"
)

// Vehicle is the aggregate root for a fleet vehicle. The available flag is
// flipped only by the availability coordinator in lock-step with booking
// transitions, never by fleet edits.
type Vehicle struct {
	id                 uuid.UUID
	registrationNumber string
	make               string
	model              string
	year               int
	dailyRate          decimal.Decimal
	odometer           int64
	fuelType           string
	transmission       string
	seats              int
	notes              string
	available          bool
	status             VehicleStatus
	version            int64
	createdAt          time.Time
	updatedAt          time.Time
}

// NewVehicle creates a new active, available fleet vehicle with validated fields.
func NewVehicle(
	registrationNumber, make, model string,
	year int,
	dailyRate decimal.Decimal,
	odometer int64,
	fuelType, transmission string,
	seats int,
	notes string,
) (*Vehicle, error) {
	if registrationNumber == "" {
		return nil, domain.NewValidationError("registration number is required")
	}
	if make == "" || model == "" {
		return nil, domain.NewValidationError("vehicle make and model are required")
	}
	if year < 1950 {
		return nil, domain.NewValidationError(fmt.Sprintf("implausible vehicle year: %d", year))
	}
	if !dailyRate.IsPositive() {
		return nil, domain.NewValidationError("daily rate must be positive")
	}
	if odometer < 0 {
		return nil, domain.NewValidationError("odometer cannot be negative")
	}

	now := time.Now().UTC()
	return &Vehicle{
		id:                 uuid.New(),
		registrationNumber: registrationNumber,
		make:               make,
		model:              model,
		year:               year,
		dailyRate:          dailyRate,
		odometer:           odometer,
		fuelType:           fuelType,
		transmission:       transmission,
		seats:              seats,
		notes:              notes,
		available:          true,
		status:             StatusActive,
		version:            1,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// Reconstruct rebuilds a Vehicle from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	registrationNumber, make, model string,
	year int,
	dailyRate decimal.Decimal,
	odometer int64,
	fuelType, transmission string,
	seats int,
	notes string,
	available bool,
	status VehicleStatus,
	version int64,
	createdAt, updatedAt time.Time,
) *Vehicle {
	return &Vehicle{
		id:                 id,
		registrationNumber: registrationNumber,
		make:               make,
		model:              model,
		year:               year,
		dailyRate:          dailyRate,
		odometer:           odometer,
		fuelType:           fuelType,
		transmission:       transmission,
		seats:              seats,
		notes:              notes,
		available:          available,
		status:             status,
		version:            version,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

// ID returns the vehicle's unique identifier.
func (v *Vehicle) ID() uuid.UUID { return v.id }

// RegistrationNumber returns the plate / registration number.
func (v *Vehicle) RegistrationNumber() string { return v.registrationNumber }

// Make returns the manufacturer name.
func (v *Vehicle) Make() string { return v.make }

// Model returns the model name.
func (v *Vehicle) Model() string { return v.model }

// Year returns the model year.
func (v *Vehicle) Year() int { return v.year }

// DailyRate returns the current daily rental rate.
func (v *Vehicle) DailyRate() decimal.Decimal { return v.dailyRate }

// Odometer returns the last recorded odometer reading.
func (v *Vehicle) Odometer() int64 { return v.odometer }

// FuelType returns the fuel type.
func (v *Vehicle) FuelType() string { return v.fuelType }

// Transmission returns the transmission type.
func (v *Vehicle) Transmission() string { return v.transmission }

// Seats returns the seat count.
func (v *Vehicle) Seats() int { return v.seats }

// Notes returns free-text fleet notes.
func (v *Vehicle) Notes() string { return v.notes }

// Available reports whether the vehicle is free to be collected.
func (v *Vehicle) Available() bool { return v.available }

// Status returns the fleet lifecycle status.
func (v *Vehicle) Status() VehicleStatus { return v.status }

// Version returns the entity version for optimistic locking.
func (v *Vehicle) Version() int64 { return v.version }

// CreatedAt returns the creation timestamp.
func (v *Vehicle) CreatedAt() time.Time { return v.createdAt }

// UpdatedAt returns the last-updated timestamp.
func (v *Vehicle) UpdatedAt() time.Time { return v.updatedAt }

// SetAvailable flips the availability flag. Setting an already-matching value
// is a no-op, not an error. Returns true when the flag actually changed.
func (v *Vehicle) SetAvailable(available bool) bool {
	if v.available == available {
		return false
	}
	v.available = available
	v.updatedAt = time.Now().UTC()
	return true
}

// RecordOdometer stores a new odometer reading. Readings never go backwards.
func (v *Vehicle) RecordOdometer(reading int64) error {
	if reading < v.odometer {
		return domain.NewValidationError(fmt.Sprintf(
			"odometer reading %d is below the last recorded reading %d", reading, v.odometer))
	}
	v.odometer = reading
	v.updatedAt = time.Now().UTC()
	return nil
}

// UpdateRate changes the daily rental rate for future bookings.
func (v *Vehicle) UpdateRate(dailyRate decimal.Decimal) error {
	if !dailyRate.IsPositive() {
		return domain.NewValidationError("daily rate must be positive")
	}
	v.dailyRate = dailyRate
	v.updatedAt = time.Now().UTC()
	return nil
}

// UpdateNotes replaces the fleet notes.
func (v *Vehicle) UpdateNotes(notes string) {
	v.notes = notes
	v.updatedAt = time.Now().UTC()
}

// Retire removes the vehicle from the rentable fleet.
func (v *Vehicle) Retire() error {
	if v.status == StatusRetired {
		return domain.NewConflictError("vehicle is already retired")
	}
	v.status = StatusRetired
	v.updatedAt = time.Now().UTC()
	return nil
}

// IsRentable reports whether new bookings may target this vehicle.
func (v *Vehicle) IsRentable() bool {
	return v.status == StatusActive
}

// IncrementVersion bumps the version for optimistic locking.
func (v *Vehicle) IncrementVersion() {
	v.version++
	v.updatedAt = time.Now().UTC()
}
