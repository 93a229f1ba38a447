package invoice

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetrent/service-rental/internal/domain"
	"github.com/fleetrent/service-rental/internal/domain/booking"
)

// Status represents the settlement state of an invoice.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusIssued        Status = "ISSUED"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
)

// IsValid returns true if the status is a recognized invoice status.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusIssued, StatusPartiallyPaid, StatusPaid:
		return true
	}
	return false
}

// Snapshot is the full persisted state of an invoice. Every charge component
// is a point-in-time copy of the booking's post-completion figures; nothing
// is recomputed from the originally planned dates.
type Snapshot struct {
	ID            uuid.UUID
	InvoiceNumber string
	BookingID     uuid.UUID
	Status        Status

	PeriodStart time.Time
	PeriodEnd   time.Time
	RentalDays  int
	DailyRate   decimal.Decimal
	Currency    string

	RentalAmount     decimal.Decimal
	TotalMileage     int64
	FreeMileage      int64
	ExtraMileage     int64
	ExtraMileageRate decimal.Decimal
	ExtraMileageCost decimal.Decimal
	PackageCharges   decimal.Decimal
	FuelCharge       decimal.Decimal
	DamageCharge     decimal.Decimal
	LateReturnCharge decimal.Decimal
	OtherCharges     decimal.Decimal

	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxRatePercent decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal

	AdvancePaid decimal.Decimal
	AmountPaid  decimal.Decimal
	BalanceDue  decimal.Decimal

	IssuedAt *time.Time
	DueDate  time.Time
	PaidAt   *time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Invoice is the aggregate root for the finalized bill of one completed
// booking. Totals are fixed at generation; only the payment ledger mutates it
// afterwards, and once PAID it is immutable except for its append-only
// payment records.
type Invoice struct {
	s Snapshot
}

// NewFromBooking derives an invoice from a COMPLETED booking. The invoice
// number arrives already assigned under the per-year sequence lock. When the
// booking's advance was actually marked paid, amountPaid is pre-seeded with
// it; the matching ledger backfill is the caller's responsibility.
func NewFromBooking(b *booking.Booking, invoiceNumber string, taxRatePercent decimal.Decimal, paymentTermsDays int) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, domain.NewValidationError("invoice number is required")
	}
	bs := b.Snapshot()
	if bs.Status != booking.StatusCompleted {
		return nil, domain.NewInvalidStateError("generate invoice", bs.Status.String(), booking.StatusCompleted.String())
	}
	if bs.InvoiceID != nil {
		return nil, domain.NewConflictError(fmt.Sprintf("booking %s already has an invoice", bs.BookingNumber))
	}

	subtotal := bs.RentalAmount.
		Add(bs.PackageCharges).
		Add(bs.ExtraMileageCost).
		Add(bs.FuelCharge).
		Add(bs.DamageCharge).
		Add(bs.LateReturnCharge).
		Add(bs.OtherCharges)

	taxAmount := decimal.Zero
	if taxRatePercent.IsPositive() {
		taxAmount = subtotal.Sub(bs.DiscountAmount).Mul(taxRatePercent).Div(decimal.NewFromInt(100))
	}
	totalAmount := subtotal.Sub(bs.DiscountAmount).Add(taxAmount)

	advancePaid := decimal.Zero
	if bs.AdvancePaid {
		advancePaid = bs.AdvanceAmount
	}
	amountPaid := advancePaid
	balanceDue := totalAmount.Sub(amountPaid)
	if balanceDue.IsNegative() {
		balanceDue = decimal.Zero
	}

	status := StatusDraft
	if advancePaid.IsPositive() {
		status = StatusPartiallyPaid
	}

	now := time.Now().UTC()
	inv := &Invoice{s: Snapshot{
		ID:               uuid.New(),
		InvoiceNumber:    invoiceNumber,
		BookingID:        bs.ID,
		Status:           status,
		PeriodStart:      bs.StartDate,
		PeriodEnd:        bs.EndDate,
		RentalDays:       bs.RentalDays,
		DailyRate:        bs.DailyRate,
		Currency:         bs.Currency,
		RentalAmount:     bs.RentalAmount,
		TotalMileage:     bs.TotalMileage,
		FreeMileage:      bs.FreeMileage,
		ExtraMileage:     bs.ExtraMileage,
		ExtraMileageRate: bs.ExtraMileageRate,
		ExtraMileageCost: bs.ExtraMileageCost,
		PackageCharges:   bs.PackageCharges,
		FuelCharge:       bs.FuelCharge,
		DamageCharge:     bs.DamageCharge,
		LateReturnCharge: bs.LateReturnCharge,
		OtherCharges:     bs.OtherCharges,
		Subtotal:         subtotal,
		DiscountAmount:   bs.DiscountAmount,
		TaxRatePercent:   taxRatePercent,
		TaxAmount:        taxAmount,
		TotalAmount:      totalAmount,
		AdvancePaid:      advancePaid,
		AmountPaid:       amountPaid,
		BalanceDue:       balanceDue,
		DueDate:          now.AddDate(0, 0, paymentTermsDays),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}}

	// An advance large enough to cover the whole bill settles it at creation.
	if inv.s.BalanceDue.IsZero() && inv.s.TotalAmount.IsPositive() && inv.s.AmountPaid.GreaterThanOrEqual(inv.s.TotalAmount) {
		inv.s.Status = StatusPaid
		paidAt := now
		inv.s.PaidAt = &paidAt
	}
	return inv, nil
}

// FromSnapshot rebuilds an Invoice from persistence data.
func FromSnapshot(s Snapshot) (*Invoice, error) {
	if !s.Status.IsValid() {
		return nil, fmt.Errorf("invalid invoice status: %s", s.Status)
	}
	return &Invoice{s: s}, nil
}

// Snapshot returns a copy of the invoice's full persisted state.
func (i *Invoice) Snapshot() Snapshot { return i.s }

// ID returns the invoice's unique identifier.
func (i *Invoice) ID() uuid.UUID { return i.s.ID }

// InvoiceNumber returns the human-readable sequential number.
func (i *Invoice) InvoiceNumber() string { return i.s.InvoiceNumber }

// BookingID returns the owning booking's ID.
func (i *Invoice) BookingID() uuid.UUID { return i.s.BookingID }

// Status returns the settlement status.
func (i *Invoice) Status() Status { return i.s.Status }

// TotalAmount returns the invoiced total.
func (i *Invoice) TotalAmount() decimal.Decimal { return i.s.TotalAmount }

// AmountPaid returns the sum of recorded payments.
func (i *Invoice) AmountPaid() decimal.Decimal { return i.s.AmountPaid }

// BalanceDue returns the outstanding amount, never negative.
func (i *Invoice) BalanceDue() decimal.Decimal { return i.s.BalanceDue }

// Version returns the entity version for optimistic locking.
func (i *Invoice) Version() int64 { return i.s.Version }

// Issue marks a draft invoice as sent to the renter.
func (i *Invoice) Issue() error {
	if i.s.Status != StatusDraft {
		return domain.NewConflictError(fmt.Sprintf("invoice %s is not a draft", i.s.InvoiceNumber))
	}
	now := time.Now().UTC()
	i.s.Status = StatusIssued
	i.s.IssuedAt = &now
	i.s.UpdatedAt = now
	return nil
}

// ApplyPayment records amount against the invoice, recomputes the balance and
// settlement status, and reports whether the invoice is now fully settled.
func (i *Invoice) ApplyPayment(amount decimal.Decimal) (settled bool, err error) {
	if !amount.IsPositive() {
		return false, domain.NewValidationError("payment amount must be positive")
	}
	if i.s.Status == StatusPaid {
		return false, domain.NewConflictError(fmt.Sprintf("invoice %s is already fully paid", i.s.InvoiceNumber))
	}

	now := time.Now().UTC()
	i.s.AmountPaid = i.s.AmountPaid.Add(amount)
	balance := i.s.TotalAmount.Sub(i.s.AmountPaid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}
	i.s.BalanceDue = balance
	i.s.UpdatedAt = now

	if balance.IsZero() {
		i.s.Status = StatusPaid
		i.s.PaidAt = &now
		return true, nil
	}
	i.s.Status = StatusPartiallyPaid
	return false, nil
}

// IncrementVersion bumps the version for optimistic locking.
func (i *Invoice) IncrementVersion() {
	i.s.Version++
	i.s.UpdatedAt = time.Now().UTC()
}
