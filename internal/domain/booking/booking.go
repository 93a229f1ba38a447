package booking

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetrent/service-rental/internal/domain"
	"github.com/fleetrent/service-rental/internal/domain/pricing"
)

const bookingNumberChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Snapshot is the full persisted state of a booking. Repositories and DTO
// mapping read it via Snapshot() and rebuild aggregates via FromSnapshot;
// all mutation goes through the transition methods.
//
// Mileage and financial fields are populated only once the corresponding
// transition has occurred. A PENDING booking carries none of them.
type Snapshot struct {
	ID            uuid.UUID
	BookingNumber string
	VehicleID     uuid.UUID
	RenterID      uuid.UUID
	Status        Status
	StartDate     time.Time
	EndDate       time.Time
	DailyRate     decimal.Decimal
	Currency      string
	TotalPrice    decimal.Decimal
	Packages      []pricing.PackageSelection
	Notes         string

	// Confirmation.
	ConfirmedBy          *uuid.UUID
	ConfirmedAt          *time.Time
	AdvanceAmount        decimal.Decimal
	AdvancePaid          bool
	AdvancePaymentMethod string
	AdvancePaidAt        *time.Time
	FreeMileagePerDay    int64
	FreeMileage          int64
	ExtraMileageRate     decimal.Decimal

	// Collection.
	CollectedBy         *uuid.UUID
	CollectedAt         *time.Time
	CollectionOdometer  *int64
	CollectionFuelLevel string
	CollectionNotes     string

	// Return / completion.
	ReturnedBy      *uuid.UUID
	ReturnedAt      *time.Time
	ReturnOdometer  *int64
	ReturnFuelLevel string
	ReturnNotes     string

	RentalDays       int
	RentalAmount     decimal.Decimal
	TotalMileage     int64
	ExtraMileage     int64
	ExtraMileageCost decimal.Decimal
	FuelCharge       decimal.Decimal
	DamageCharge     decimal.Decimal
	LateReturnCharge decimal.Decimal
	OtherCharges     decimal.Decimal
	OtherChargesNote string
	PackageCharges   decimal.Decimal
	DiscountAmount   decimal.Decimal
	DiscountReason   string
	FinalAmount      decimal.Decimal
	BalanceDue       decimal.Decimal

	// Cancellation.
	CancelledBy  *uuid.UUID
	CancelledAt  *time.Time
	CancelReason string

	InvoiceID *uuid.UUID
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Booking is the aggregate root for a vehicle rental. Its lifecycle is driven
// exclusively by the transition methods; each validates its precondition
// before touching any state, so a rejected action leaves the booking intact.
type Booking struct {
	s Snapshot
}

// generateBookingNumber creates a booking number in the format "RNT-XXXXXX".
func generateBookingNumber() (string, error) {
	result := make([]byte, 6)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(bookingNumberChars))))
		if err != nil {
			return "", fmt.Errorf("failed to generate booking number: %w", err)
		}
		result[i] = bookingNumberChars[n.Int64()]
	}
	return "RNT-" + string(result), nil
}

// NewBooking creates a PENDING booking for the planned rental period.
// totalPrice is the non-binding estimate quoted at creation; the figure is
// recomputed authoritatively from the actual period at completion.
func NewBooking(
	vehicleID, renterID uuid.UUID,
	startDate, endDate time.Time,
	dailyRate decimal.Decimal,
	currency string,
	totalPrice decimal.Decimal,
	packages []pricing.PackageSelection,
	notes string,
) (*Booking, error) {
	if vehicleID == uuid.Nil {
		return nil, domain.NewValidationError("vehicle ID is required")
	}
	if renterID == uuid.Nil {
		return nil, domain.NewValidationError("renter ID is required")
	}
	if !endDate.After(startDate) {
		return nil, domain.NewValidationError("end date must be after start date")
	}
	if !dailyRate.IsPositive() {
		return nil, domain.NewValidationError("daily rate must be positive")
	}

	number, err := generateBookingNumber()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Booking{s: Snapshot{
		ID:            uuid.New(),
		BookingNumber: number,
		VehicleID:     vehicleID,
		RenterID:      renterID,
		Status:        StatusPending,
		StartDate:     startDate.UTC(),
		EndDate:       endDate.UTC(),
		DailyRate:     dailyRate,
		Currency:      currency,
		TotalPrice:    totalPrice,
		Packages:      packages,
		Notes:         notes,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}}, nil
}

// FromSnapshot rebuilds a Booking from persistence data (no validation beyond
// the status string).
func FromSnapshot(s Snapshot) (*Booking, error) {
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("invalid booking status: %s", s.Status)
	}
	return &Booking{s: s}, nil
}

// Snapshot returns a copy of the booking's full persisted state.
func (b *Booking) Snapshot() Snapshot {
	s := b.s
	s.Packages = append([]pricing.PackageSelection(nil), b.s.Packages...)
	return s
}

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.s.ID }

// BookingNumber returns the human-readable booking number.
func (b *Booking) BookingNumber() string { return b.s.BookingNumber }

// VehicleID returns the rented vehicle's ID.
func (b *Booking) VehicleID() uuid.UUID { return b.s.VehicleID }

// RenterID returns the renter's user ID.
func (b *Booking) RenterID() uuid.UUID { return b.s.RenterID }

// Status returns the current lifecycle status.
func (b *Booking) Status() Status { return b.s.Status }

// Period returns the booking's current rental period. After completion this
// is the actual period, not the originally planned one.
func (b *Booking) Period() (start, end time.Time) { return b.s.StartDate, b.s.EndDate }

// Currency returns the currency code.
func (b *Booking) Currency() string { return b.s.Currency }

// FinalAmount returns the recalculated total owed after completion.
func (b *Booking) FinalAmount() decimal.Decimal { return b.s.FinalAmount }

// BalanceDue returns the amount outstanding after the paid advance.
func (b *Booking) BalanceDue() decimal.Decimal { return b.s.BalanceDue }

// InvoiceID returns the owning invoice's ID once one has been generated.
func (b *Booking) InvoiceID() *uuid.UUID { return b.s.InvoiceID }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.s.Version }

// ConfirmInput carries the data stamped onto a booking at confirmation.
// FreeMileagePerDay and ExtraMileageRate arrive already resolved by the
// caller (per-request override or configured default).
type ConfirmInput struct {
	ActorID              uuid.UUID
	AdvanceAmount        decimal.Decimal
	AdvancePaid          bool
	AdvancePaymentMethod string
	AdvancePaidAt        *time.Time
	FreeMileagePerDay    int64
	ExtraMileageRate     decimal.Decimal
}

// Confirm transitions PENDING -> CONFIRMED, recording the advance-payment
// intent and the mileage terms for the planned period.
func (b *Booking) Confirm(in ConfirmInput) error {
	if !b.s.Status.CanTransitionTo(StatusConfirmed) {
		return domain.NewInvalidStateError("confirm booking", b.s.Status.String(), StatusPending.String())
	}
	if in.AdvanceAmount.IsNegative() {
		return domain.NewValidationError("advance amount cannot be negative")
	}
	if in.AdvancePaid && in.AdvancePaymentMethod == "" {
		return domain.NewValidationError("advance payment method is required when the advance is marked paid")
	}
	if in.FreeMileagePerDay < 0 {
		return domain.NewValidationError("free mileage per day cannot be negative")
	}
	if in.ExtraMileageRate.IsNegative() {
		return domain.NewValidationError("extra mileage rate cannot be negative")
	}

	now := time.Now().UTC()
	plannedDays := pricing.RentalDays(b.s.StartDate, b.s.EndDate)

	b.s.Status = StatusConfirmed
	b.s.ConfirmedBy = &in.ActorID
	b.s.ConfirmedAt = &now
	b.s.AdvanceAmount = in.AdvanceAmount
	b.s.AdvancePaid = in.AdvancePaid
	b.s.AdvancePaymentMethod = in.AdvancePaymentMethod
	if in.AdvancePaid {
		paidAt := now
		if in.AdvancePaidAt != nil {
			paidAt = in.AdvancePaidAt.UTC()
		}
		b.s.AdvancePaidAt = &paidAt
	}
	b.s.FreeMileagePerDay = in.FreeMileagePerDay
	b.s.FreeMileage = pricing.FreeMileageAllowance(plannedDays, in.FreeMileagePerDay)
	b.s.ExtraMileageRate = in.ExtraMileageRate
	b.s.UpdatedAt = now
	return nil
}

// CollectInput carries the handover data stamped at vehicle collection.
type CollectInput struct {
	ActorID   uuid.UUID
	Odometer  int64
	FuelLevel string
	Notes     string
}

// Collect transitions CONFIRMED -> COLLECTED, recording the handover reading.
// The caller is responsible for flipping vehicle availability in the same
// transaction.
func (b *Booking) Collect(in CollectInput) error {
	if !b.s.Status.CanTransitionTo(StatusCollected) {
		return domain.NewInvalidStateError("collect vehicle", b.s.Status.String(), StatusConfirmed.String())
	}
	if in.Odometer < 0 {
		return domain.NewValidationError("collection odometer reading cannot be negative")
	}

	now := time.Now().UTC()
	b.s.Status = StatusCollected
	b.s.CollectedBy = &in.ActorID
	b.s.CollectedAt = &now
	odo := in.Odometer
	b.s.CollectionOdometer = &odo
	b.s.CollectionFuelLevel = in.FuelLevel
	b.s.CollectionNotes = in.Notes
	b.s.UpdatedAt = now
	return nil
}

// CompleteInput carries the return data and supplemental charges applied at
// completion. ActualStart/ActualEnd override the planned period when the
// vehicle was held for a different span than booked.
type CompleteInput struct {
	ActorID          uuid.UUID
	ReturnOdometer   int64
	FuelLevel        string
	Notes            string
	ActualStart      *time.Time
	ActualEnd        *time.Time
	FuelCharge       decimal.Decimal
	DamageCharge     decimal.Decimal
	LateReturnCharge decimal.Decimal
	OtherCharges     decimal.Decimal
	OtherChargesNote string
	DiscountAmount   decimal.Decimal
	DiscountReason   string
}

// Complete transitions COLLECTED -> COMPLETED and performs the authoritative
// recalculation: rental days and base amount from the actual period, mileage
// overage against the recomputed allowance, package and supplemental charges,
// and the resulting final amount and balance due. The booking's period is
// rewritten to the actual period.
func (b *Booking) Complete(in CompleteInput) error {
	if !b.s.Status.CanTransitionTo(StatusCompleted) {
		return domain.NewInvalidStateError("complete rental", b.s.Status.String(), StatusCollected.String())
	}
	if b.s.CollectionOdometer == nil {
		return domain.NewValidationError("booking has no collection odometer reading")
	}
	if in.ReturnOdometer < *b.s.CollectionOdometer {
		return domain.NewValidationError(fmt.Sprintf(
			"return odometer %d is below collection odometer %d", in.ReturnOdometer, *b.s.CollectionOdometer))
	}
	for _, c := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"fuel charge", in.FuelCharge},
		{"damage charge", in.DamageCharge},
		{"late return charge", in.LateReturnCharge},
		{"other charges", in.OtherCharges},
		{"discount amount", in.DiscountAmount},
	} {
		if c.value.IsNegative() {
			return domain.NewValidationError(c.name + " cannot be negative")
		}
	}

	start, end := b.s.StartDate, b.s.EndDate
	if in.ActualStart != nil {
		start = in.ActualStart.UTC()
	}
	if in.ActualEnd != nil {
		end = in.ActualEnd.UTC()
	}
	if !end.After(start) {
		return domain.NewValidationError("actual end date must be after actual start date")
	}

	now := time.Now().UTC()
	days := pricing.RentalDays(start, end)
	hours := pricing.RentalHours(start, end)
	discountPercent := pricing.MaxPackageDiscount(b.s.Packages)
	rentalAmount := pricing.BaseRentalAmount(b.s.DailyRate, days, discountPercent)
	freeMileage := pricing.FreeMileageAllowance(days, b.s.FreeMileagePerDay)
	totalMileage := in.ReturnOdometer - *b.s.CollectionOdometer
	extraMileage := pricing.ExtraMileage(totalMileage, freeMileage)
	extraMileageCost := pricing.ExtraMileageCost(totalMileage, freeMileage, b.s.ExtraMileageRate)
	packageCharges := pricing.PackageCharges(b.s.Packages, days, hours)

	finalAmount := rentalAmount.
		Add(extraMileageCost).
		Add(in.FuelCharge).
		Add(in.DamageCharge).
		Add(in.LateReturnCharge).
		Add(in.OtherCharges).
		Add(packageCharges).
		Sub(in.DiscountAmount)

	balanceDue := finalAmount
	if b.s.AdvancePaid {
		balanceDue = balanceDue.Sub(b.s.AdvanceAmount)
	}
	if balanceDue.IsNegative() {
		balanceDue = decimal.Zero
	}

	b.s.Status = StatusCompleted
	b.s.ReturnedBy = &in.ActorID
	b.s.ReturnedAt = &now
	odo := in.ReturnOdometer
	b.s.ReturnOdometer = &odo
	b.s.ReturnFuelLevel = in.FuelLevel
	b.s.ReturnNotes = in.Notes
	b.s.StartDate = start
	b.s.EndDate = end
	b.s.RentalDays = days
	b.s.RentalAmount = rentalAmount
	b.s.FreeMileage = freeMileage
	b.s.TotalMileage = totalMileage
	b.s.ExtraMileage = extraMileage
	b.s.ExtraMileageCost = extraMileageCost
	b.s.FuelCharge = in.FuelCharge
	b.s.DamageCharge = in.DamageCharge
	b.s.LateReturnCharge = in.LateReturnCharge
	b.s.OtherCharges = in.OtherCharges
	b.s.OtherChargesNote = in.OtherChargesNote
	b.s.PackageCharges = packageCharges
	b.s.DiscountAmount = in.DiscountAmount
	b.s.DiscountReason = in.DiscountReason
	b.s.FinalAmount = finalAmount
	b.s.BalanceDue = balanceDue
	b.s.UpdatedAt = now
	return nil
}

// Cancel transitions to CANCELLED from any status where settlement has not
// begun. The caller restores vehicle availability when the prior status was
// COLLECTED; WasCollected reports that before the transition is applied.
func (b *Booking) Cancel(actorID uuid.UUID, reason string) error {
	if !b.s.Status.CanBeCancelled() {
		return domain.NewInvalidStateError("cancel booking", b.s.Status.String(),
			fmt.Sprintf("%s, %s or %s", StatusPending, StatusConfirmed, StatusCollected))
	}
	now := time.Now().UTC()
	b.s.Status = StatusCancelled
	b.s.CancelledBy = &actorID
	b.s.CancelledAt = &now
	b.s.CancelReason = reason
	b.s.UpdatedAt = now
	return nil
}

// WasCollected reports whether the vehicle is currently out with the renter.
func (b *Booking) WasCollected() bool {
	return b.s.Status == StatusCollected
}

// AttachInvoice transitions COMPLETED -> INVOICED and records the owning
// invoice. A booking that already holds an invoice reference rejects a second
// attachment as a conflict.
func (b *Booking) AttachInvoice(invoiceID uuid.UUID) error {
	if b.s.InvoiceID != nil {
		return domain.NewConflictError("booking already has an invoice")
	}
	if !b.s.Status.CanTransitionTo(StatusInvoiced) {
		return domain.NewInvalidStateError("generate invoice", b.s.Status.String(), StatusCompleted.String())
	}
	b.s.Status = StatusInvoiced
	b.s.InvoiceID = &invoiceID
	b.s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkPaid transitions INVOICED -> PAID once the invoice fully settles.
func (b *Booking) MarkPaid() error {
	if !b.s.Status.CanTransitionTo(StatusPaid) {
		return domain.NewInvalidStateError("settle booking", b.s.Status.String(), StatusInvoiced.String())
	}
	b.s.Status = StatusPaid
	b.s.BalanceDue = decimal.Zero
	b.s.UpdatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.s.Version++
	b.s.UpdatedAt = time.Now().UTC()
}
