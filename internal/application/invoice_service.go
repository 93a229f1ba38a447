package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fleetrent/service-rental/internal/config"
	"github.com/fleetrent/service-rental/internal/domain"
	bookingDomain "github.com/fleetrent/service-rental/internal/domain/booking"
	invoiceDomain "github.com/fleetrent/service-rental/internal/domain/invoice"
	"github.com/fleetrent/service-rental/internal/events"
)

// RecordPaymentRequest holds one manually recorded payment.
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Method    string          `json:"method" binding:"required"`
	Reference string          `json:"reference"`
	Notes     string          `json:"notes"`
}

// InvoiceDTO is the response representation of an invoice.
type InvoiceDTO struct {
	ID            uuid.UUID `json:"id"`
	InvoiceNumber string    `json:"invoice_number"`
	BookingID     uuid.UUID `json:"booking_id"`
	Status        string    `json:"status"`

	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	RentalDays  int             `json:"rental_days"`
	DailyRate   decimal.Decimal `json:"daily_rate"`
	Currency    string          `json:"currency"`

	RentalAmount     decimal.Decimal `json:"rental_amount"`
	TotalMileage     int64           `json:"total_mileage"`
	FreeMileage      int64           `json:"free_mileage"`
	ExtraMileage     int64           `json:"extra_mileage"`
	ExtraMileageRate decimal.Decimal `json:"extra_mileage_rate"`
	ExtraMileageCost decimal.Decimal `json:"extra_mileage_cost"`
	PackageCharges   decimal.Decimal `json:"package_charges"`
	FuelCharge       decimal.Decimal `json:"fuel_charge"`
	DamageCharge     decimal.Decimal `json:"damage_charge"`
	LateReturnCharge decimal.Decimal `json:"late_return_charge"`
	OtherCharges     decimal.Decimal `json:"other_charges"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxRatePercent decimal.Decimal `json:"tax_rate_percent"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`

	AdvancePaid decimal.Decimal `json:"advance_paid"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	BalanceDue  decimal.Decimal `json:"balance_due"`

	IssuedAt *time.Time `json:"issued_at,omitempty"`
	DueDate  time.Time  `json:"due_date"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentDTO is the response representation of one ledger entry.
type PaymentDTO struct {
	ID         uuid.UUID       `json:"id"`
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	Reference  string          `json:"reference,omitempty"`
	Notes      string          `json:"notes,omitempty"`
	RecordedBy uuid.UUID       `json:"recorded_by"`
	PaidAt     time.Time       `json:"paid_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// systemActorID marks ledger entries written by automated consumers rather
// than a staff user.
var systemActorID = uuid.Nil

// InvoiceService orchestrates invoice generation and the payment ledger.
// Generation runs the per-year sequence read, the invoice insert, the advance
// backfill and the booking attachment in one transaction, so a conflict on any
// of them leaves no partial state behind.
type InvoiceService struct {
	invoices invoiceDomain.Repository
	bookings bookingDomain.Repository
	tx       domain.Transactor
	producer events.Publisher
	rates    config.RateConfig
	logger   *zap.Logger
}

// NewInvoiceService creates a new InvoiceService.
func NewInvoiceService(
	invoices invoiceDomain.Repository,
	bookings bookingDomain.Repository,
	tx domain.Transactor,
	producer events.Publisher,
	rates config.RateConfig,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		bookings: bookings,
		tx:       tx,
		producer: producer,
		rates:    rates,
		logger:   logger,
	}
}

// GenerateInvoice derives the invoice for a COMPLETED booking, assigns the
// next sequential number for the current year, backfills the paid advance into
// the ledger and attaches the invoice to the booking. Two generators racing on
// the first invoice of a year have no sequence row to lock; the loser's insert
// hits the invoice number's unique index and the whole transaction is retried
// once with a freshly read sequence.
func (s *InvoiceService) GenerateInvoice(ctx context.Context, bookingID, actorID uuid.UUID) (*InvoiceDTO, error) {
	inv, err := s.generateOnce(ctx, bookingID, actorID)
	if domain.IsConflict(err) {
		s.logger.Warn("invoice generation conflict, retrying once",
			zap.String("booking_id", bookingID.String()),
			zap.Error(err),
		)
		inv, err = s.generateOnce(ctx, bookingID, actorID)
	}
	if err != nil {
		return nil, err
	}

	s.publishInvoiceEvent(ctx, events.InvoiceGenerated, inv)
	result := toInvoiceDTO(inv)
	return &result, nil
}

func (s *InvoiceService) generateOnce(ctx context.Context, bookingID, actorID uuid.UUID) (*invoiceDomain.Invoice, error) {
	var inv *invoiceDomain.Invoice
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		bk, err := s.bookings.FindByID(ctx, bookingID)
		if err != nil {
			return err
		}

		year := time.Now().UTC().Year()
		seq, err := s.invoices.NextSequence(ctx, s.rates.InvoicePrefix, year)
		if err != nil {
			return err
		}
		number := invoiceDomain.FormatNumber(s.rates.InvoicePrefix, year, seq)

		inv, err = invoiceDomain.NewFromBooking(bk, number, s.rates.TaxRatePercent, s.rates.PaymentTermsDays)
		if err != nil {
			return err
		}
		if err := s.invoices.Save(ctx, inv); err != nil {
			return err
		}

		bs := bk.Snapshot()
		if bs.AdvancePaid && bs.AdvanceAmount.IsPositive() {
			backfill, err := invoiceDomain.NewAdvanceBackfill(inv.ID(), bs, actorID)
			if err != nil {
				return err
			}
			if err := s.invoices.SavePayment(ctx, backfill); err != nil {
				return err
			}
		}

		if err := bk.AttachInvoice(inv.ID()); err != nil {
			return err
		}
		// An advance covering the whole bill settles the invoice at creation,
		// which settles the booking with it.
		if inv.Status() == invoiceDomain.StatusPaid {
			if err := bk.MarkPaid(); err != nil {
				return err
			}
		}
		bk.IncrementVersion()
		return s.bookings.Update(ctx, bk)
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// IssueInvoice marks a draft invoice as sent to the renter.
func (s *InvoiceService) IssueInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceDTO, error) {
	var inv *invoiceDomain.Invoice
	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		var err error
		inv, err = s.invoices.FindByID(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := inv.Issue(); err != nil {
			return err
		}
		inv.IncrementVersion()
		return s.invoices.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	s.publishInvoiceEvent(ctx, events.InvoiceIssued, inv)
	result := toInvoiceDTO(inv)
	return &result, nil
}

// RecordPayment appends a ledger entry, recomputes the invoice balance and,
// when the invoice fully settles, marks the owning booking PAID in the same
// transaction.
func (s *InvoiceService) RecordPayment(ctx context.Context, invoiceID, actorID uuid.UUID, req RecordPaymentRequest) (*InvoiceDTO, error) {
	inv, payment, settled, err := s.applyPayment(ctx, func(ctx context.Context) (*invoiceDomain.Invoice, error) {
		return s.invoices.FindByID(ctx, invoiceID)
	}, req.Amount, invoiceDomain.PaymentMethod(req.Method), req.Reference, req.Notes, actorID)
	if err != nil {
		return nil, err
	}

	s.publishPaymentReceived(ctx, inv, payment, settled)
	result := toInvoiceDTO(inv)
	return &result, nil
}

// RecordGatewayPayment applies a settlement confirmation consumed from the
// payment gateway topic. It satisfies events.GatewayPaymentRecorder; a
// returned error leaves the message uncommitted so the consumer retries it.
func (s *InvoiceService) RecordGatewayPayment(ctx context.Context, evt events.GatewayPaymentConfirmedEvent) error {
	method := invoiceDomain.PaymentMethod(evt.Method)
	if !method.IsValid() {
		method = invoiceDomain.MethodOnline
	}

	inv, payment, settled, err := s.applyPayment(ctx, func(ctx context.Context) (*invoiceDomain.Invoice, error) {
		return s.invoices.FindByNumber(ctx, evt.InvoiceNumber)
	}, evt.Amount, method, evt.GatewayPaymentID, "confirmed by payment gateway", systemActorID)
	if err != nil {
		// A fully settled invoice means this confirmation was already applied;
		// dropping the duplicate keeps the consumer from retrying forever.
		if domain.IsConflict(err) {
			s.logger.Warn("gateway payment already applied",
				zap.String("invoice_number", evt.InvoiceNumber),
				zap.String("gateway_payment_id", evt.GatewayPaymentID),
			)
			return nil
		}
		return err
	}

	s.publishPaymentReceived(ctx, inv, payment, settled)
	return nil
}

func (s *InvoiceService) applyPayment(
	ctx context.Context,
	find func(ctx context.Context) (*invoiceDomain.Invoice, error),
	amount decimal.Decimal,
	method invoiceDomain.PaymentMethod,
	reference, notes string,
	actorID uuid.UUID,
) (inv *invoiceDomain.Invoice, payment *invoiceDomain.Payment, settled bool, err error) {
	err = s.tx.Transact(ctx, func(ctx context.Context) error {
		inv, err = find(ctx)
		if err != nil {
			return err
		}

		payment, err = invoiceDomain.NewPayment(inv.ID(), amount, method, reference, notes, actorID)
		if err != nil {
			return err
		}
		settled, err = inv.ApplyPayment(amount)
		if err != nil {
			return err
		}

		inv.IncrementVersion()
		if err := s.invoices.Update(ctx, inv); err != nil {
			return err
		}
		if err := s.invoices.SavePayment(ctx, payment); err != nil {
			return err
		}

		if settled {
			bk, err := s.bookings.FindByID(ctx, inv.BookingID())
			if err != nil {
				return err
			}
			if err := bk.MarkPaid(); err != nil {
				return err
			}
			bk.IncrementVersion()
			return s.bookings.Update(ctx, bk)
		}
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}
	return inv, payment, settled, nil
}

// GetInvoice retrieves a single invoice by ID.
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceDTO, error) {
	inv, err := s.invoices.FindByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	result := toInvoiceDTO(inv)
	return &result, nil
}

// GetInvoiceByNumber retrieves a single invoice by its number.
func (s *InvoiceService) GetInvoiceByNumber(ctx context.Context, invoiceNumber string) (*InvoiceDTO, error) {
	inv, err := s.invoices.FindByNumber(ctx, invoiceNumber)
	if err != nil {
		return nil, err
	}
	result := toInvoiceDTO(inv)
	return &result, nil
}

// GetInvoiceForBooking retrieves the invoice owned by a booking.
func (s *InvoiceService) GetInvoiceForBooking(ctx context.Context, bookingID uuid.UUID) (*InvoiceDTO, error) {
	inv, err := s.invoices.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	result := toInvoiceDTO(inv)
	return &result, nil
}

// ListInvoices retrieves paginated invoices, newest first.
func (s *InvoiceService) ListInvoices(ctx context.Context, page, limit int) (*domain.PaginatedResult[InvoiceDTO], error) {
	invoices, total, err := s.invoices.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}

	result := domain.NewPaginatedResult(dtos, total, page, limit)
	return &result, nil
}

// ListPayments returns the full ledger for an invoice, oldest first.
func (s *InvoiceService) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]PaymentDTO, error) {
	if _, err := s.invoices.FindByID(ctx, invoiceID); err != nil {
		return nil, err
	}
	payments, err := s.invoices.ListPayments(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos, nil
}

// --- Helpers ---

func toInvoiceDTO(inv *invoiceDomain.Invoice) InvoiceDTO {
	s := inv.Snapshot()
	return InvoiceDTO{
		ID:               s.ID,
		InvoiceNumber:    s.InvoiceNumber,
		BookingID:        s.BookingID,
		Status:           string(s.Status),
		PeriodStart:      s.PeriodStart,
		PeriodEnd:        s.PeriodEnd,
		RentalDays:       s.RentalDays,
		DailyRate:        s.DailyRate,
		Currency:         s.Currency,
		RentalAmount:     s.RentalAmount,
		TotalMileage:     s.TotalMileage,
		FreeMileage:      s.FreeMileage,
		ExtraMileage:     s.ExtraMileage,
		ExtraMileageRate: s.ExtraMileageRate,
		ExtraMileageCost: s.ExtraMileageCost,
		PackageCharges:   s.PackageCharges,
		FuelCharge:       s.FuelCharge,
		DamageCharge:     s.DamageCharge,
		LateReturnCharge: s.LateReturnCharge,
		OtherCharges:     s.OtherCharges,
		Subtotal:         s.Subtotal,
		DiscountAmount:   s.DiscountAmount,
		TaxRatePercent:   s.TaxRatePercent,
		TaxAmount:        s.TaxAmount,
		TotalAmount:      s.TotalAmount,
		AdvancePaid:      s.AdvancePaid,
		AmountPaid:       s.AmountPaid,
		BalanceDue:       s.BalanceDue,
		IssuedAt:         s.IssuedAt,
		DueDate:          s.DueDate,
		PaidAt:           s.PaidAt,
		Version:          s.Version,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func toPaymentDTO(p *invoiceDomain.Payment) PaymentDTO {
	return PaymentDTO{
		ID:         p.ID,
		InvoiceID:  p.InvoiceID,
		Amount:     p.Amount,
		Method:     string(p.Method),
		Reference:  p.Reference,
		Notes:      p.Notes,
		RecordedBy: p.RecordedBy,
		PaidAt:     p.PaidAt,
		CreatedAt:  p.CreatedAt,
	}
}

func (s *InvoiceService) publishInvoiceEvent(ctx context.Context, eventType string, inv *invoiceDomain.Invoice) {
	snap := inv.Snapshot()
	evt := events.InvoiceEvent{
		InvoiceID:     snap.ID,
		InvoiceNumber: snap.InvoiceNumber,
		BookingID:     snap.BookingID,
		TotalAmount:   snap.TotalAmount,
		BalanceDue:    snap.BalanceDue,
		Currency:      snap.Currency,
		OccurredAt:    time.Now().UTC(),
	}
	s.publish(ctx, events.TopicBillingEvents, eventType, snap.ID.String(), evt)
}

func (s *InvoiceService) publishPaymentReceived(ctx context.Context, inv *invoiceDomain.Invoice, p *invoiceDomain.Payment, settled bool) {
	evt := events.PaymentReceivedEvent{
		PaymentID:     p.ID,
		InvoiceID:     inv.ID(),
		InvoiceNumber: inv.InvoiceNumber(),
		BookingID:     inv.BookingID(),
		Amount:        p.Amount,
		Method:        string(p.Method),
		BalanceDue:    inv.BalanceDue(),
		Settled:       settled,
		OccurredAt:    time.Now().UTC(),
	}
	s.publish(ctx, events.TopicBillingEvents, events.PaymentReceived, inv.ID().String(), evt)
}

func (s *InvoiceService) publish(ctx context.Context, topic, eventType, key string, data any) {
	if err := s.producer.Publish(ctx, topic, eventType, key, data); err != nil {
		s.logger.Error("failed to publish event",
			zap.String("topic", topic),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
