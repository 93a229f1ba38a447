package application

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleetrent/service-rental/internal/config"
	"github.com/fleetrent/service-rental/internal/domain"
	bookingDomain "github.com/fleetrent/service-rental/internal/domain/booking"
	invoiceDomain "github.com/fleetrent/service-rental/internal/domain/invoice"
	"github.com/fleetrent/service-rental/internal/events"
)

type testEnv struct {
	bookings   *fakeBookingRepo
	vehicles   *fakeVehicleRepo
	invoices   *fakeInvoiceRepo
	photos     *fakeInspectionRepo
	publisher  *fakePublisher
	booking    *BookingService
	invoice    *InvoiceService
	fleet      *FleetService
	inspection *InspectionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	rates := config.RateConfig{
		FreeMileagePerDay: 50,
		ExtraMileageRate:  decimal.NewFromInt(20),
		TaxRatePercent:    decimal.Zero,
		InvoicePrefix:     "INV",
		PaymentTermsDays:  14,
		Currency:          "KES",
	}

	env := &testEnv{
		bookings:  newFakeBookingRepo(),
		vehicles:  newFakeVehicleRepo(),
		invoices:  newFakeInvoiceRepo(),
		photos:    newFakeInspectionRepo(),
		publisher: &fakePublisher{},
	}
	tx := fakeTransactor{}
	cache := NewAvailabilityCache(nil, logger)

	env.booking = NewBookingService(env.bookings, env.vehicles, tx, cache, env.publisher, rates, logger)
	env.invoice = NewInvoiceService(env.invoices, env.bookings, tx, env.publisher, rates, logger)
	env.fleet = NewFleetService(env.vehicles, tx, cache, logger)
	env.inspection = NewInspectionService(env.photos, env.bookings, logger)
	return env
}

func (e *testEnv) addVehicle(t *testing.T, dailyRate int64) *VehicleDTO {
	t.Helper()
	dto, err := e.fleet.CreateVehicle(context.Background(), CreateVehicleRequest{
		RegistrationNumber: "KDA " + uuid.NewString()[:6],
		Make:               "Toyota",
		Model:              "Axio",
		Year:               2021,
		DailyRate:          decimal.NewFromInt(dailyRate),
		Odometer:           12000,
		Seats:              5,
	})
	require.NoError(t, err)
	return dto
}

func TestCreateBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	renter := uuid.New()
	vehicle := env.addVehicle(t, 5000)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)

	dto, err := env.booking.CreateBooking(ctx, renter, CreateBookingRequest{
		VehicleID: vehicle.ID,
		StartDate: start,
		EndDate:   end,
	})
	require.NoError(t, err)

	assert.Equal(t, "PENDING", dto.Status)
	assert.Equal(t, renter, dto.RenterID)
	assert.True(t, decimal.NewFromInt(10000).Equal(dto.TotalPrice), "quote: 2 days x 5000")
	assert.Regexp(t, `^RNT-[A-Z2-9]{6}$`, dto.BookingNumber)
	assert.Equal(t, []string{events.BookingCreated}, env.publisher.types())
}

func TestCreateBookingRejectsOverlap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vehicle := env.addVehicle(t, 5000)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)

	_, err := env.booking.CreateBooking(ctx, uuid.New(), CreateBookingRequest{
		VehicleID: vehicle.ID, StartDate: start, EndDate: end,
	})
	require.NoError(t, err)

	// Overlapping window on the same vehicle.
	_, err = env.booking.CreateBooking(ctx, uuid.New(), CreateBookingRequest{
		VehicleID: vehicle.ID,
		StartDate: start.AddDate(0, 0, 1),
		EndDate:   end.AddDate(0, 0, 2),
	})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))

	// An adjacent window starting exactly at the previous end is fine.
	_, err = env.booking.CreateBooking(ctx, uuid.New(), CreateBookingRequest{
		VehicleID: vehicle.ID,
		StartDate: end,
		EndDate:   end.AddDate(0, 0, 2),
	})
	assert.NoError(t, err)
}

func TestCreateBookingRejectsRetiredVehicle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vehicle := env.addVehicle(t, 5000)

	_, err := env.fleet.RetireVehicle(ctx, vehicle.ID)
	require.NoError(t, err)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	_, err = env.booking.CreateBooking(ctx, uuid.New(), CreateBookingRequest{
		VehicleID: vehicle.ID, StartDate: start, EndDate: start.AddDate(0, 0, 1),
	})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
}

// runLifecycle drives a booking through create, confirm, collect and complete
// with a 2-day period, a 2000 advance paid in cash, and 150 km over allowance.
func runLifecycle(t *testing.T, env *testEnv) (*BookingDTO, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	renter := uuid.New()
	staff := uuid.New()
	vehicle := env.addVehicle(t, 5000)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)

	dto, err := env.booking.CreateBooking(ctx, renter, CreateBookingRequest{
		VehicleID: vehicle.ID, StartDate: start, EndDate: end,
	})
	require.NoError(t, err)

	dto, err = env.booking.ConfirmBooking(ctx, dto.ID, staff, ConfirmBookingRequest{
		AdvanceAmount:        decimal.NewFromInt(2000),
		AdvancePaid:          true,
		AdvancePaymentMethod: "cash",
	})
	require.NoError(t, err)
	require.Equal(t, "CONFIRMED", dto.Status)
	require.Equal(t, int64(100), dto.FreeMileage, "2 days x 50 km")

	dto, err = env.booking.CollectVehicle(ctx, dto.ID, staff, CollectVehicleRequest{
		Odometer: 12000, FuelLevel: "full",
	})
	require.NoError(t, err)
	require.Equal(t, "COLLECTED", dto.Status)

	v, err := env.fleet.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	require.False(t, v.Available, "vehicle out with the renter")

	dto, err = env.booking.CompleteRental(ctx, dto.ID, staff, CompleteRentalRequest{
		ReturnOdometer: 12250, FuelLevel: "full",
	})
	require.NoError(t, err)
	require.Equal(t, "COMPLETED", dto.Status)

	v, err = env.fleet.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	require.True(t, v.Available, "vehicle back in the fleet")
	require.Equal(t, int64(12250), v.Odometer)

	return dto, vehicle.ID
}

func TestCompleteRecalculatesFinalAmount(t *testing.T) {
	env := newTestEnv(t)
	dto, _ := runLifecycle(t, env)

	// 2 days x 5000 + 150 extra km x 20.
	assert.True(t, decimal.NewFromInt(13000).Equal(dto.FinalAmount), "got %s", dto.FinalAmount)
	assert.Equal(t, int64(250), dto.TotalMileage)
	assert.Equal(t, int64(150), dto.ExtraMileage)
	// Paid advance of 2000 reduces the balance.
	assert.True(t, decimal.NewFromInt(11000).Equal(dto.BalanceDue), "got %s", dto.BalanceDue)
}

func TestGenerateInvoice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dto, _ := runLifecycle(t, env)
	staff := uuid.New()
	year := time.Now().UTC().Year()

	inv, err := env.invoice.GenerateInvoice(ctx, dto.ID, staff)
	require.NoError(t, err)

	assert.Equal(t, invoiceDomain.FormatNumber("INV", year, 1), inv.InvoiceNumber)
	assert.Equal(t, string(invoiceDomain.StatusPartiallyPaid), inv.Status)
	assert.True(t, decimal.NewFromInt(13000).Equal(inv.TotalAmount))
	assert.True(t, decimal.NewFromInt(2000).Equal(inv.AmountPaid), "advance pre-seeded")
	assert.True(t, decimal.NewFromInt(11000).Equal(inv.BalanceDue))

	// The advance backfill is the first ledger entry.
	ledger, err := env.invoice.ListPayments(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.True(t, decimal.NewFromInt(2000).Equal(ledger[0].Amount))
	assert.Equal(t, "cash", ledger[0].Method)

	// The booking now owns the invoice.
	bk, err := env.booking.GetBooking(ctx, dto.ID, staff, true)
	require.NoError(t, err)
	assert.Equal(t, "INVOICED", bk.Status)
	require.NotNil(t, bk.InvoiceID)
	assert.Equal(t, inv.ID, *bk.InvoiceID)

	// A second generation for the same booking is rejected.
	_, err = env.invoice.GenerateInvoice(ctx, dto.ID, staff)
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
}

func TestInvoiceNumbersAreSequential(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := uuid.New()
	year := time.Now().UTC().Year()

	first, _ := runLifecycle(t, env)
	second, _ := runLifecycle(t, env)

	inv1, err := env.invoice.GenerateInvoice(ctx, first.ID, staff)
	require.NoError(t, err)
	inv2, err := env.invoice.GenerateInvoice(ctx, second.ID, staff)
	require.NoError(t, err)

	assert.Equal(t, invoiceDomain.FormatNumber("INV", year, 1), inv1.InvoiceNumber)
	assert.Equal(t, invoiceDomain.FormatNumber("INV", year, 2), inv2.InvoiceNumber)
}

func TestRecordPaymentSettlesBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dto, _ := runLifecycle(t, env)
	staff := uuid.New()

	inv, err := env.invoice.GenerateInvoice(ctx, dto.ID, staff)
	require.NoError(t, err)

	inv, err = env.invoice.RecordPayment(ctx, inv.ID, staff, RecordPaymentRequest{
		Amount: decimal.NewFromInt(11000),
		Method: "bank_transfer",
	})
	require.NoError(t, err)

	assert.Equal(t, string(invoiceDomain.StatusPaid), inv.Status)
	assert.True(t, inv.BalanceDue.IsZero())
	require.NotNil(t, inv.PaidAt)

	bk, err := env.booking.GetBooking(ctx, dto.ID, staff, true)
	require.NoError(t, err)
	assert.Equal(t, "PAID", bk.Status)

	// Ledger sums to the amount paid.
	ledger, err := env.invoice.ListPayments(ctx, inv.ID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, p := range ledger {
		sum = sum.Add(p.Amount)
	}
	assert.True(t, sum.Equal(inv.AmountPaid))

	// Further payments against a settled invoice are rejected.
	_, err = env.invoice.RecordPayment(ctx, inv.ID, staff, RecordPaymentRequest{
		Amount: decimal.NewFromInt(100),
		Method: "cash",
	})
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
}

func TestRecordGatewayPayment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dto, _ := runLifecycle(t, env)
	staff := uuid.New()

	inv, err := env.invoice.GenerateInvoice(ctx, dto.ID, staff)
	require.NoError(t, err)

	evt := events.GatewayPaymentConfirmedEvent{
		GatewayPaymentID: "gw-12345",
		InvoiceNumber:    inv.InvoiceNumber,
		Amount:           decimal.NewFromInt(11000),
		Method:           "mobile_money",
		OccurredAt:       time.Now().UTC(),
	}
	require.NoError(t, env.invoice.RecordGatewayPayment(ctx, evt))

	settled, err := env.invoice.GetInvoiceByNumber(ctx, inv.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, string(invoiceDomain.StatusPaid), settled.Status)

	bk, err := env.booking.GetBooking(ctx, dto.ID, staff, true)
	require.NoError(t, err)
	assert.Equal(t, "PAID", bk.Status)

	// A redelivered confirmation is dropped, not retried forever.
	assert.NoError(t, env.invoice.RecordGatewayPayment(ctx, evt))
}

func TestCancelCollectedBookingRestoresVehicle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	renter := uuid.New()
	staff := uuid.New()
	vehicle := env.addVehicle(t, 5000)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	dto, err := env.booking.CreateBooking(ctx, renter, CreateBookingRequest{
		VehicleID: vehicle.ID, StartDate: start, EndDate: start.AddDate(0, 0, 2),
	})
	require.NoError(t, err)
	dto, err = env.booking.ConfirmBooking(ctx, dto.ID, staff, ConfirmBookingRequest{})
	require.NoError(t, err)
	dto, err = env.booking.CollectVehicle(ctx, dto.ID, staff, CollectVehicleRequest{Odometer: 12000})
	require.NoError(t, err)

	dto, err = env.booking.CancelBooking(ctx, dto.ID, staff, CancelBookingRequest{Reason: "renter emergency"})
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", dto.Status)

	v, err := env.fleet.GetVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	assert.True(t, v.Available, "cancellation returns the vehicle to the fleet")
}

func TestCancelAfterCompletionRejected(t *testing.T) {
	env := newTestEnv(t)
	dto, _ := runLifecycle(t, env)

	_, err := env.booking.CancelBooking(context.Background(), dto.ID, uuid.New(), CancelBookingRequest{Reason: "too late"})
	require.Error(t, err)
	assert.Equal(t, domain.CodeInvalidState, domain.CodeOf(err))
}

func TestRenterCannotSeeOthersBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vehicle := env.addVehicle(t, 5000)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	dto, err := env.booking.CreateBooking(ctx, uuid.New(), CreateBookingRequest{
		VehicleID: vehicle.ID, StartDate: start, EndDate: start.AddDate(0, 0, 1),
	})
	require.NoError(t, err)

	_, err = env.booking.GetBooking(ctx, dto.ID, uuid.New(), false)
	require.Error(t, err)
	assert.Equal(t, domain.CodeForbidden, domain.CodeOf(err))
}

func TestPreviewQuote(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vehicle := env.addVehicle(t, 5000)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	// 2 days and 6 hours rounds up to 3 billable days.
	breakdown, err := env.booking.PreviewQuote(ctx, vehicle.ID, start, start.Add(54*time.Hour), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, breakdown.Days)
	assert.True(t, decimal.NewFromInt(15000).Equal(breakdown.Total))
}

func TestSetAvailabilityIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	vehicle := env.addVehicle(t, 5000)

	v, err := env.fleet.SetAvailability(ctx, vehicle.ID, false)
	require.NoError(t, err)
	assert.False(t, v.Available)
	versionAfterFlip := v.Version

	// Repeating the same value changes nothing, including the version.
	v, err = env.fleet.SetAvailability(ctx, vehicle.ID, false)
	require.NoError(t, err)
	assert.False(t, v.Available)
	assert.Equal(t, versionAfterFlip, v.Version)
}

func TestInspectionPhotos(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	staff := uuid.New()
	vehicle := env.addVehicle(t, 5000)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	dto, err := env.booking.CreateBooking(ctx, uuid.New(), CreateBookingRequest{
		VehicleID: vehicle.ID, StartDate: start, EndDate: start.AddDate(0, 0, 1),
	})
	require.NoError(t, err)

	_, err = env.inspection.AddPhoto(ctx, dto.ID, staff, AddPhotoRequest{
		PhotoType: "collection",
		PhotoURL:  "https://cdn.fleetrent.example/photos/front.jpg",
	})
	require.NoError(t, err)

	_, err = env.inspection.AddPhoto(ctx, dto.ID, staff, AddPhotoRequest{
		PhotoType: "dashboard",
		PhotoURL:  "https://cdn.fleetrent.example/photos/dash.jpg",
	})
	require.Error(t, err, "unknown photo type")

	photos, err := env.inspection.ListPhotos(ctx, dto.ID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.Equal(t, "collection", photos[0].PhotoType)

	_, err = env.inspection.ListPhotos(ctx, uuid.New())
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
}

var _ events.GatewayPaymentRecorder = (*InvoiceService)(nil)

var _ bookingDomain.Repository = (*fakeBookingRepo)(nil)
