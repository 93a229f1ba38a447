package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fleetrent/service-rental/internal/config"
	"github.com/fleetrent/service-rental/internal/domain"
	bookingDomain "github.com/fleetrent/service-rental/internal/domain/booking"
	"github.com/fleetrent/service-rental/internal/domain/pricing"
	vehicleDomain "github.com/fleetrent/service-rental/internal/domain/vehicle"
	"github.com/fleetrent/service-rental/internal/events"
)

// CreateBookingRequest holds the data needed to create a new booking.
type CreateBookingRequest struct {
	VehicleID uuid.UUID                  `json:"vehicle_id" binding:"required"`
	StartDate time.Time                  `json:"start_date" binding:"required"`
	EndDate   time.Time                  `json:"end_date" binding:"required"`
	Packages  []pricing.PackageSelection `json:"packages"`
	Notes     string                     `json:"notes"`
}

// ConfirmBookingRequest carries the advance-payment intent and optional
// mileage-term overrides recorded at confirmation.
type ConfirmBookingRequest struct {
	AdvanceAmount        decimal.Decimal  `json:"advance_amount"`
	AdvancePaid          bool             `json:"advance_paid"`
	AdvancePaymentMethod string           `json:"advance_payment_method"`
	AdvancePaidAt        *time.Time       `json:"advance_paid_at"`
	FreeMileagePerDay    *int64           `json:"free_mileage_per_day"`
	ExtraMileageRate     *decimal.Decimal `json:"extra_mileage_rate"`
}

// CollectVehicleRequest carries the handover reading.
type CollectVehicleRequest struct {
	Odometer  int64  `json:"odometer" binding:"required"`
	FuelLevel string `json:"fuel_level"`
	Notes     string `json:"notes"`
}

// CompleteRentalRequest carries the return reading, the optional actual
// rental period, and supplemental charges.
type CompleteRentalRequest struct {
	ReturnOdometer   int64           `json:"return_odometer" binding:"required"`
	FuelLevel        string          `json:"fuel_level"`
	Notes            string          `json:"notes"`
	ActualStart      *time.Time      `json:"actual_start"`
	ActualEnd        *time.Time      `json:"actual_end"`
	FuelCharge       decimal.Decimal `json:"fuel_charge"`
	DamageCharge     decimal.Decimal `json:"damage_charge"`
	LateReturnCharge decimal.Decimal `json:"late_return_charge"`
	OtherCharges     decimal.Decimal `json:"other_charges"`
	OtherChargesNote string          `json:"other_charges_note"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	DiscountReason   string          `json:"discount_reason"`
}

// CancelBookingRequest carries the cancellation reason.
type CancelBookingRequest struct {
	Reason string `json:"reason"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID            uuid.UUID                  `json:"id"`
	BookingNumber string                     `json:"booking_number"`
	VehicleID     uuid.UUID                  `json:"vehicle_id"`
	RenterID      uuid.UUID                  `json:"renter_id"`
	Status        string                     `json:"status"`
	StartDate     time.Time                  `json:"start_date"`
	EndDate       time.Time                  `json:"end_date"`
	DailyRate     decimal.Decimal            `json:"daily_rate"`
	Currency      string                     `json:"currency"`
	TotalPrice    decimal.Decimal            `json:"total_price"`
	Packages      []pricing.PackageSelection `json:"packages,omitempty"`
	Notes         string                     `json:"notes,omitempty"`

	ConfirmedAt          *time.Time      `json:"confirmed_at,omitempty"`
	AdvanceAmount        decimal.Decimal `json:"advance_amount"`
	AdvancePaid          bool            `json:"advance_paid"`
	AdvancePaymentMethod string          `json:"advance_payment_method,omitempty"`
	AdvancePaidAt        *time.Time      `json:"advance_paid_at,omitempty"`
	FreeMileagePerDay    int64           `json:"free_mileage_per_day"`
	FreeMileage          int64           `json:"free_mileage"`
	ExtraMileageRate     decimal.Decimal `json:"extra_mileage_rate"`

	CollectedAt         *time.Time `json:"collected_at,omitempty"`
	CollectionOdometer  *int64     `json:"collection_odometer,omitempty"`
	CollectionFuelLevel string     `json:"collection_fuel_level,omitempty"`
	CollectionNotes     string     `json:"collection_notes,omitempty"`

	ReturnedAt      *time.Time `json:"returned_at,omitempty"`
	ReturnOdometer  *int64     `json:"return_odometer,omitempty"`
	ReturnFuelLevel string     `json:"return_fuel_level,omitempty"`
	ReturnNotes     string     `json:"return_notes,omitempty"`

	RentalDays       int             `json:"rental_days"`
	RentalAmount     decimal.Decimal `json:"rental_amount"`
	TotalMileage     int64           `json:"total_mileage"`
	ExtraMileage     int64           `json:"extra_mileage"`
	ExtraMileageCost decimal.Decimal `json:"extra_mileage_cost"`
	FuelCharge       decimal.Decimal `json:"fuel_charge"`
	DamageCharge     decimal.Decimal `json:"damage_charge"`
	LateReturnCharge decimal.Decimal `json:"late_return_charge"`
	OtherCharges     decimal.Decimal `json:"other_charges"`
	OtherChargesNote string          `json:"other_charges_note,omitempty"`
	PackageCharges   decimal.Decimal `json:"package_charges"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	DiscountReason   string          `json:"discount_reason,omitempty"`
	FinalAmount      decimal.Decimal `json:"final_amount"`
	BalanceDue       decimal.Decimal `json:"balance_due"`

	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`

	InvoiceID *uuid.UUID `json:"invoice_id,omitempty"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// BookingService orchestrates the booking lifecycle. Every transition runs in
// one transaction that also covers the vehicle availability flip it implies;
// events publish only after the transaction commits.
type BookingService struct {
	bookings bookingDomain.Repository
	vehicles vehicleDomain.Repository
	tx       domain.Transactor
	cache    *AvailabilityCache
	producer events.Publisher
	rates    config.RateConfig
	logger   *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookings bookingDomain.Repository,
	vehicles vehicleDomain.Repository,
	tx domain.Transactor,
	cache *AvailabilityCache,
	producer events.Publisher,
	rates config.RateConfig,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		vehicles: vehicles,
		tx:       tx,
		cache:    cache,
		producer: producer,
		rates:    rates,
		logger:   logger,
	}
}

// CreateBooking creates a PENDING booking after the double-booking check. The
// vehicle row is locked before the overlap query so two concurrent requests
// for the same vehicle serialize; the loser sees the winner's booking.
func (s *BookingService) CreateBooking(ctx context.Context, renterID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	var bk *bookingDomain.Booking
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		vehicle, err := s.vehicles.FindByIDForUpdate(ctx, req.VehicleID)
		if err != nil {
			return err
		}
		if !vehicle.IsRentable() {
			return domain.NewConflictError(fmt.Sprintf("vehicle %s is retired from the fleet", vehicle.RegistrationNumber()))
		}

		overlap, err := s.bookings.HasOverlap(ctx, req.VehicleID, req.StartDate, req.EndDate, nil)
		if err != nil {
			return err
		}
		if overlap {
			return domain.NewConflictError("vehicle is already booked for an overlapping period")
		}

		quote := pricing.Quote(pricing.QuoteInput{
			Start:          req.StartDate,
			End:            req.EndDate,
			DailyRate:      vehicle.DailyRate(),
			Packages:       req.Packages,
			TaxRatePercent: s.rates.TaxRatePercent,
		})

		bk, err = bookingDomain.NewBooking(
			req.VehicleID,
			renterID,
			req.StartDate,
			req.EndDate,
			vehicle.DailyRate(),
			s.rates.Currency,
			quote.Total,
			req.Packages,
			req.Notes,
		)
		if err != nil {
			return err
		}
		return s.bookings.Save(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	s.publishBookingEvent(ctx, events.BookingCreated, bk)
	result := toBookingDTO(bk)
	return &result, nil
}

// ConfirmBooking transitions PENDING -> CONFIRMED. Mileage terms fall back to
// the configured defaults when the request carries no override.
func (s *BookingService) ConfirmBooking(ctx context.Context, bookingID, actorID uuid.UUID, req ConfirmBookingRequest) (*BookingDTO, error) {
	freeMileage := s.rates.FreeMileagePerDay
	if req.FreeMileagePerDay != nil {
		freeMileage = *req.FreeMileagePerDay
	}
	extraRate := s.rates.ExtraMileageRate
	if req.ExtraMileageRate != nil {
		extraRate = *req.ExtraMileageRate
	}

	var bk *bookingDomain.Booking
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		bk, err = s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := bk.Confirm(bookingDomain.ConfirmInput{
			ActorID:              actorID,
			AdvanceAmount:        req.AdvanceAmount,
			AdvancePaid:          req.AdvancePaid,
			AdvancePaymentMethod: req.AdvancePaymentMethod,
			AdvancePaidAt:        req.AdvancePaidAt,
			FreeMileagePerDay:    freeMileage,
			ExtraMileageRate:     extraRate,
		}); err != nil {
			return err
		}
		bk.IncrementVersion()
		return s.bookings.Update(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	s.publishBookingEvent(ctx, events.BookingConfirmed, bk)
	result := toBookingDTO(bk)
	return &result, nil
}

// CollectVehicle transitions CONFIRMED -> COLLECTED, records the handover
// odometer on the vehicle, and takes the vehicle out of the available fleet.
func (s *BookingService) CollectVehicle(ctx context.Context, bookingID, actorID uuid.UUID, req CollectVehicleRequest) (*BookingDTO, error) {
	var bk *bookingDomain.Booking
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		bk, err = s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		vehicle, err := s.vehicles.FindByIDForUpdate(ctx, bk.VehicleID())
		if err != nil {
			return err
		}
		if !vehicle.Available() {
			return domain.NewConflictError(fmt.Sprintf("vehicle %s is currently out", vehicle.RegistrationNumber()))
		}

		if err := bk.Collect(bookingDomain.CollectInput{
			ActorID:   actorID,
			Odometer:  req.Odometer,
			FuelLevel: req.FuelLevel,
			Notes:     req.Notes,
		}); err != nil {
			return err
		}

		if err := vehicle.RecordOdometer(req.Odometer); err != nil {
			return err
		}
		vehicle.SetAvailable(false)
		vehicle.IncrementVersion()
		if err := s.vehicles.Update(ctx, vehicle); err != nil {
			return err
		}

		bk.IncrementVersion()
		return s.bookings.Update(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	s.publishBookingEvent(ctx, events.BookingCollected, bk)
	result := toBookingDTO(bk)
	return &result, nil
}

// CompleteRental transitions COLLECTED -> COMPLETED, runs the authoritative
// recalculation inside the aggregate, and returns the vehicle to the fleet.
func (s *BookingService) CompleteRental(ctx context.Context, bookingID, actorID uuid.UUID, req CompleteRentalRequest) (*BookingDTO, error) {
	var bk *bookingDomain.Booking
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		bk, err = s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		vehicle, err := s.vehicles.FindByIDForUpdate(ctx, bk.VehicleID())
		if err != nil {
			return err
		}

		if err := bk.Complete(bookingDomain.CompleteInput{
			ActorID:          actorID,
			ReturnOdometer:   req.ReturnOdometer,
			FuelLevel:        req.FuelLevel,
			Notes:            req.Notes,
			ActualStart:      req.ActualStart,
			ActualEnd:        req.ActualEnd,
			FuelCharge:       req.FuelCharge,
			DamageCharge:     req.DamageCharge,
			LateReturnCharge: req.LateReturnCharge,
			OtherCharges:     req.OtherCharges,
			OtherChargesNote: req.OtherChargesNote,
			DiscountAmount:   req.DiscountAmount,
			DiscountReason:   req.DiscountReason,
		}); err != nil {
			return err
		}

		if err := vehicle.RecordOdometer(req.ReturnOdometer); err != nil {
			return err
		}
		vehicle.SetAvailable(true)
		vehicle.IncrementVersion()
		if err := s.vehicles.Update(ctx, vehicle); err != nil {
			return err
		}

		bk.IncrementVersion()
		return s.bookings.Update(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	s.publishCompleted(ctx, bk)
	result := toBookingDTO(bk)
	return &result, nil
}

// CancelBooking cancels a booking before settlement begins. When the vehicle
// was already out, cancellation returns it to the available fleet.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, actorID uuid.UUID, req CancelBookingRequest) (*BookingDTO, error) {
	var (
		bk     *bookingDomain.Booking
		wasOut bool
	)
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		bk, err = s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}
		wasOut = bk.WasCollected()

		if err := bk.Cancel(actorID, req.Reason); err != nil {
			return err
		}

		if wasOut {
			vehicle, err := s.vehicles.FindByIDForUpdate(ctx, bk.VehicleID())
			if err != nil {
				return err
			}
			vehicle.SetAvailable(true)
			vehicle.IncrementVersion()
			if err := s.vehicles.Update(ctx, vehicle); err != nil {
				return err
			}
		}

		bk.IncrementVersion()
		return s.bookings.Update(ctx, bk)
	})
	if err != nil {
		return nil, err
	}

	if wasOut {
		s.cache.Invalidate(ctx)
	}
	s.publishBookingEvent(ctx, events.BookingCancelled, bk)
	result := toBookingDTO(bk)
	return &result, nil
}

// GetBooking retrieves a single booking. Renters may only see their own.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID, requesterID uuid.UUID, staff bool) (*BookingDTO, error) {
	bk, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !staff && bk.RenterID() != requesterID {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// GetBookingByNumber retrieves a booking by its human-readable number.
func (s *BookingService) GetBookingByNumber(ctx context.Context, number string, requesterID uuid.UUID, staff bool) (*BookingDTO, error) {
	bk, err := s.bookings.FindByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if !staff && bk.RenterID() != requesterID {
		return nil, domain.NewForbiddenError("booking does not belong to this user")
	}
	result := toBookingDTO(bk)
	return &result, nil
}

// ListBookings retrieves paginated bookings matching the filter.
func (s *BookingService) ListBookings(ctx context.Context, filter bookingDomain.ListFilter, page, limit int) (*domain.PaginatedResult[BookingDTO], error) {
	bookings, total, err := s.bookings.List(ctx, filter, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]BookingDTO, len(bookings))
	for i, bk := range bookings {
		dtos[i] = toBookingDTO(bk)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// PreviewQuote computes a non-binding price estimate for a planned period.
func (s *BookingService) PreviewQuote(ctx context.Context, vehicleID uuid.UUID, start, end time.Time, packages []pricing.PackageSelection) (*pricing.Breakdown, error) {
	if !end.After(start) {
		return nil, domain.NewValidationError("end date must be after start date")
	}
	vehicle, err := s.vehicles.FindByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	breakdown := pricing.Quote(pricing.QuoteInput{
		Start:          start,
		End:            end,
		DailyRate:      vehicle.DailyRate(),
		Packages:       packages,
		TaxRatePercent: s.rates.TaxRatePercent,
	})
	return &breakdown, nil
}

// --- Admin methods ---

// BookingStatsDTO holds booking statistics for the admin dashboard.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"total_bookings"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// GetBookingStats returns aggregate booking statistics (admin).
func (s *BookingService) GetBookingStats(ctx context.Context) (*BookingStatsDTO, error) {
	counts, err := s.bookings.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	return &BookingStatsDTO{
		TotalBookings: total,
		ByStatus:      counts,
	}, nil
}

// --- Helpers ---

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	s := bk.Snapshot()
	return BookingDTO{
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
		Packages:             s.Packages,
		Notes:                s.Notes,
		ConfirmedAt:          s.ConfirmedAt,
		AdvanceAmount:        s.AdvanceAmount,
		AdvancePaid:          s.AdvancePaid,
		AdvancePaymentMethod: s.AdvancePaymentMethod,
		AdvancePaidAt:        s.AdvancePaidAt,
		FreeMileagePerDay:    s.FreeMileagePerDay,
		FreeMileage:          s.FreeMileage,
		ExtraMileageRate:     s.ExtraMileageRate,
		CollectedAt:          s.CollectedAt,
		CollectionOdometer:   s.CollectionOdometer,
		CollectionFuelLevel:  s.CollectionFuelLevel,
		CollectionNotes:      s.CollectionNotes,
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
		CancelledAt:          s.CancelledAt,
		CancelReason:         s.CancelReason,
		InvoiceID:            s.InvoiceID,
		Version:              s.Version,
		CreatedAt:            s.CreatedAt,
		UpdatedAt:            s.UpdatedAt,
	}
}

func (s *BookingService) publishBookingEvent(ctx context.Context, eventType string, bk *bookingDomain.Booking) {
	evt := events.BookingEvent{
		BookingID:     bk.ID(),
		BookingNumber: bk.BookingNumber(),
		VehicleID:     bk.VehicleID(),
		RenterID:      bk.RenterID(),
		Status:        bk.Status().String(),
		OccurredAt:    time.Now().UTC(),
	}
	s.publish(ctx, events.TopicRentalEvents, eventType, bk.ID().String(), evt)
}

func (s *BookingService) publishCompleted(ctx context.Context, bk *bookingDomain.Booking) {
	evt := events.BookingCompletedEvent{
		BookingEvent: events.BookingEvent{
			BookingID:     bk.ID(),
			BookingNumber: bk.BookingNumber(),
			VehicleID:     bk.VehicleID(),
			RenterID:      bk.RenterID(),
			Status:        bk.Status().String(),
			OccurredAt:    time.Now().UTC(),
		},
		FinalAmount: bk.FinalAmount(),
		BalanceDue:  bk.BalanceDue(),
		Currency:    bk.Currency(),
	}
	s.publish(ctx, events.TopicRentalEvents, events.BookingCompleted, bk.ID().String(), evt)
}

func (s *BookingService) publish(ctx context.Context, topic, eventType, key string, data any) {
	if err := s.producer.Publish(ctx, topic, eventType, key, data); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
