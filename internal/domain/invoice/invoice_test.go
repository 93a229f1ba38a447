package invoice

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetrent/service-rental/internal/domain"
	"github.com/fleetrent/service-rental/internal/domain/booking"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// completedBooking builds a booking driven through the full lifecycle to
// COMPLETED: 2 days at 5000/day, 100 km within allowance.
func completedBooking(t *testing.T, advance decimal.Decimal, advancePaid bool) *booking.Booking {
	t.Helper()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC)

	b, err := booking.NewBooking(uuid.New(), uuid.New(), start, end, d("5000"), "KES", d("10000"), nil, "")
	require.NoError(t, err)
	require.NoError(t, b.Confirm(booking.ConfirmInput{
		ActorID:              uuid.New(),
		AdvanceAmount:        advance,
		AdvancePaid:          advancePaid,
		AdvancePaymentMethod: "cash",
		FreeMileagePerDay:    50,
		ExtraMileageRate:     d("20"),
	}))
	require.NoError(t, b.Collect(booking.CollectInput{ActorID: uuid.New(), Odometer: 1000}))
	require.NoError(t, b.Complete(booking.CompleteInput{ActorID: uuid.New(), ReturnOdometer: 1100}))
	return b
}

func assertInvariants(t *testing.T, s Snapshot) {
	t.Helper()
	assert.True(t, s.TotalAmount.Equal(s.Subtotal.Sub(s.DiscountAmount).Add(s.TaxAmount)),
		"totalAmount = subtotal - discount + tax")
	expectedBalance := s.TotalAmount.Sub(s.AmountPaid)
	if expectedBalance.IsNegative() {
		expectedBalance = decimal.Zero
	}
	assert.True(t, s.BalanceDue.Equal(expectedBalance), "balanceDue clamped at zero")
}

func TestNewFromBooking_Totals(t *testing.T) {
	b := completedBooking(t, decimal.Zero, false)

	inv, err := NewFromBooking(b, "INV-2024-000001", d("16"), 14)
	require.NoError(t, err)

	s := inv.Snapshot()
	assert.Equal(t, StatusDraft, s.Status, "no advance -> DRAFT")
	assert.Equal(t, 2, s.RentalDays)
	assert.True(t, d("10000").Equal(s.Subtotal))
	assert.True(t, d("1600").Equal(s.TaxAmount))
	assert.True(t, d("11600").Equal(s.TotalAmount))
	assert.True(t, s.AmountPaid.IsZero())
	assert.Equal(t, b.ID(), s.BookingID)
	assertInvariants(t, s)

	wantDue := time.Now().UTC().AddDate(0, 0, 14)
	assert.WithinDuration(t, wantDue, s.DueDate, time.Minute)
}

func TestNewFromBooking_AdvancePreSeedsLedger(t *testing.T) {
	b := completedBooking(t, d("2000"), true)

	inv, err := NewFromBooking(b, "INV-2024-000002", decimal.Zero, 14)
	require.NoError(t, err)

	s := inv.Snapshot()
	assert.Equal(t, StatusPartiallyPaid, s.Status)
	assert.True(t, d("2000").Equal(s.AmountPaid))
	assert.True(t, d("8000").Equal(s.BalanceDue))
	assertInvariants(t, s)
}

func TestNewFromBooking_UnpaidAdvanceIgnored(t *testing.T) {
	b := completedBooking(t, d("2000"), false)

	inv, err := NewFromBooking(b, "INV-2024-000003", decimal.Zero, 14)
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, inv.Status())
	assert.True(t, inv.AmountPaid().IsZero())
}

func TestNewFromBooking_RequiresCompleted(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	b, err := booking.NewBooking(uuid.New(), uuid.New(), start, start.AddDate(0, 0, 2), d("5000"), "KES", d("10000"), nil, "")
	require.NoError(t, err)

	_, err = NewFromBooking(b, "INV-2024-000004", decimal.Zero, 14)
	assert.Equal(t, domain.CodeInvalidState, domain.CodeOf(err))
	assert.Contains(t, err.Error(), "must be COMPLETED")
}

func TestNewFromBooking_RejectsSecondInvoice(t *testing.T) {
	b := completedBooking(t, decimal.Zero, false)
	require.NoError(t, b.AttachInvoice(uuid.New()))

	_, err := NewFromBooking(b, "INV-2024-000005", decimal.Zero, 14)
	assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))
}

func TestApplyPayment(t *testing.T) {
	b := completedBooking(t, decimal.Zero, false)
	inv, err := NewFromBooking(b, "INV-2024-000006", decimal.Zero, 14)
	require.NoError(t, err)
	require.NoError(t, inv.Issue())

	// Partial payment.
	settled, err := inv.ApplyPayment(d("4000"))
	require.NoError(t, err)
	assert.False(t, settled)
	assert.Equal(t, StatusPartiallyPaid, inv.Status())
	assert.True(t, d("6000").Equal(inv.BalanceDue()))
	assertInvariants(t, inv.Snapshot())

	// Scenario D: paying the full balance settles the invoice.
	settled, err = inv.ApplyPayment(d("6000"))
	require.NoError(t, err)
	assert.True(t, settled)
	assert.Equal(t, StatusPaid, inv.Status())
	assert.True(t, inv.BalanceDue().IsZero())
	require.NotNil(t, inv.Snapshot().PaidAt)
	assertInvariants(t, inv.Snapshot())

	// A PAID invoice accepts no further payments.
	_, err = inv.ApplyPayment(d("1"))
	assert.Equal(t, domain.CodeConflict, domain.CodeOf(err))
}

func TestApplyPayment_OverpaymentClampsToZero(t *testing.T) {
	b := completedBooking(t, decimal.Zero, false)
	inv, err := NewFromBooking(b, "INV-2024-000007", decimal.Zero, 14)
	require.NoError(t, err)

	settled, err := inv.ApplyPayment(d("999999"))
	require.NoError(t, err)
	assert.True(t, settled)
	assert.True(t, inv.BalanceDue().IsZero())
}

func TestApplyPayment_RejectsNonPositive(t *testing.T) {
	b := completedBooking(t, decimal.Zero, false)
	inv, err := NewFromBooking(b, "INV-2024-000008", decimal.Zero, 14)
	require.NoError(t, err)

	_, err = inv.ApplyPayment(decimal.Zero)
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	_, err = inv.ApplyPayment(d("-50"))
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
}

func TestIssue(t *testing.T) {
	b := completedBooking(t, decimal.Zero, false)
	inv, err := NewFromBooking(b, "INV-2024-000009", decimal.Zero, 14)
	require.NoError(t, err)

	require.NoError(t, inv.Issue())
	assert.Equal(t, StatusIssued, inv.Status())
	assert.NotNil(t, inv.Snapshot().IssuedAt)

	assert.Error(t, inv.Issue(), "issuing twice is a conflict")
}

func TestNewPayment_Validation(t *testing.T) {
	_, err := NewPayment(uuid.New(), d("100"), "barter", "", "", uuid.New())
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))

	_, err = NewPayment(uuid.New(), decimal.Zero, MethodCash, "", "", uuid.New())
	assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))

	p, err := NewPayment(uuid.New(), d("100"), MethodMobileMoney, "TX123", "deposit", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, MethodMobileMoney, p.Method)
}

func TestNewAdvanceBackfill_TimestampFallback(t *testing.T) {
	b := completedBooking(t, d("2000"), true)
	bs := b.Snapshot()

	p, err := NewAdvanceBackfill(uuid.New(), bs, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, bs.AdvancePaidAt)
	assert.True(t, p.PaidAt.Equal(*bs.AdvancePaidAt), "backfill keeps the original advance timestamp")
	assert.True(t, d("2000").Equal(p.Amount))

	// Without an advance timestamp it falls back to confirmation time.
	bs.AdvancePaidAt = nil
	p, err = NewAdvanceBackfill(uuid.New(), bs, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, bs.ConfirmedAt)
	assert.True(t, p.PaidAt.Equal(*bs.ConfirmedAt))

	// No paid advance, nothing to backfill.
	bs.AdvancePaid = false
	_, err = NewAdvanceBackfill(uuid.New(), bs, uuid.New())
	assert.Error(t, err)
}

func TestNumberFormatAndParse(t *testing.T) {
	n := FormatNumber("INV", 2024, 1)
	assert.Equal(t, "INV-2024-000001", n)

	prefix, year, seq, err := ParseNumber("INV-2024-000042")
	require.NoError(t, err)
	assert.Equal(t, "INV", prefix)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 42, seq)

	_, _, _, err = ParseNumber("nonsense")
	assert.Error(t, err)
}
