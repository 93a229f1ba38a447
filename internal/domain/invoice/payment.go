package invoice

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetrent/service-rental/internal/domain"
	"github.com/fleetrent/service-rental/internal/domain/booking"
)

// PaymentMethod identifies how a payment was received.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodCard         PaymentMethod = "card"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodMobileMoney  PaymentMethod = "mobile_money"
	MethodCheque       PaymentMethod = "cheque"
	MethodOnline       PaymentMethod = "online"
)

// IsValid returns true if the payment method is recognized.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodMobileMoney, MethodCheque, MethodOnline:
		return true
	}
	return false
}

// Payment is one append-only ledger entry against an invoice. Entries are
// immutable once written; the sum of a ledger equals the owning invoice's
// amountPaid at all times.
type Payment struct {
	ID         uuid.UUID
	InvoiceID  uuid.UUID
	Amount     decimal.Decimal
	Method     PaymentMethod
	Reference  string
	Notes      string
	RecordedBy uuid.UUID
	PaidAt     time.Time
	CreatedAt  time.Time
}

// NewPayment creates a validated ledger entry timestamped now.
func NewPayment(invoiceID uuid.UUID, amount decimal.Decimal, method PaymentMethod, reference, notes string, recordedBy uuid.UUID) (*Payment, error) {
	if invoiceID == uuid.Nil {
		return nil, domain.NewValidationError("invoice ID is required")
	}
	if !amount.IsPositive() {
		return nil, domain.NewValidationError("payment amount must be positive")
	}
	if !method.IsValid() {
		return nil, domain.NewValidationError(fmt.Sprintf("unrecognized payment method: %s", method))
	}

	now := time.Now().UTC()
	return &Payment{
		ID:         uuid.New(),
		InvoiceID:  invoiceID,
		Amount:     amount,
		Method:     method,
		Reference:  reference,
		Notes:      notes,
		RecordedBy: recordedBy,
		PaidAt:     now,
		CreatedAt:  now,
	}, nil
}

// NewAdvanceBackfill creates the synthetic ledger entry written when an
// invoice is generated for a booking whose advance was marked paid. It is not
// a new payment event: it backfills the ledger so that the sum of entries
// matches the pre-seeded amountPaid, timestamped at the original advance
// payment time (falling back to confirmation time, then now).
func NewAdvanceBackfill(invoiceID uuid.UUID, bs booking.Snapshot, recordedBy uuid.UUID) (*Payment, error) {
	if !bs.AdvancePaid || !bs.AdvanceAmount.IsPositive() {
		return nil, domain.NewValidationError("booking has no paid advance to backfill")
	}
	method := PaymentMethod(bs.AdvancePaymentMethod)
	if !method.IsValid() {
		method = MethodCash
	}

	now := time.Now().UTC()
	paidAt := now
	switch {
	case bs.AdvancePaidAt != nil:
		paidAt = *bs.AdvancePaidAt
	case bs.ConfirmedAt != nil:
		paidAt = *bs.ConfirmedAt
	}

	return &Payment{
		ID:         uuid.New(),
		InvoiceID:  invoiceID,
		Amount:     bs.AdvanceAmount,
		Method:     method,
		Reference:  bs.BookingNumber,
		Notes:      "advance paid at booking confirmation",
		RecordedBy: recordedBy,
		PaidAt:     paidAt,
		CreatedAt:  now,
	}, nil
}
