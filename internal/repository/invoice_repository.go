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
	invoiceDomain "github.com/fleetrent/service-rental/internal/domain/invoice"
)

// InvoiceModel is the GORM model for the invoices table.
type InvoiceModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	InvoiceNumber string    `gorm:"uniqueIndex;not null;size:30"`
	BookingID     uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Status        string    `gorm:"not null;size:20;index"`

	PeriodStart time.Time       `gorm:"not null"`
	PeriodEnd   time.Time       `gorm:"not null"`
	RentalDays  int             `gorm:"not null"`
	DailyRate   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Currency    string          `gorm:"not null;size:3"`

	RentalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalMileage     int64           `gorm:"not null;default:0"`
	FreeMileage      int64           `gorm:"not null;default:0"`
	ExtraMileage     int64           `gorm:"not null;default:0"`
	ExtraMileageRate decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	ExtraMileageCost decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	PackageCharges   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	FuelCharge       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	DamageCharge     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	LateReturnCharge decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	OtherCharges     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`

	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TaxRatePercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	AdvancePaid decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	AmountPaid  decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	BalanceDue  decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	IssuedAt *time.Time
	DueDate  time.Time `gorm:"not null"`
	PaidAt   *time.Time

	Version   int64     `gorm:"not null;default:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (InvoiceModel) TableName() string {
	return "invoices"
}

// PaymentModel is the GORM model for the append-only payments table. Rows are
// only ever inserted, never updated or deleted.
type PaymentModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Method     string          `gorm:"not null;size:20"`
	Reference  string          `gorm:"size:100"`
	Notes      string          `gorm:"size:500"`
	RecordedBy uuid.UUID       `gorm:"type:uuid;not null"`
	PaidAt     time.Time       `gorm:"not null"`
	CreatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for the GORM model.
func (PaymentModel) TableName() string {
	return "payments"
}

// GormInvoiceRepository is the GORM-based implementation of invoice.Repository.
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository.
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID retrieves an invoice by its unique identifier.
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoiceDomain.Invoice, error) {
	var model InvoiceModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("invoice", id.String())
		}
		return nil, fmt.Errorf("failed to find invoice: %w", err)
	}
	return toDomainInvoice(&model)
}

// FindByNumber retrieves an invoice by its human-readable number.
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, invoiceNumber string) (*invoiceDomain.Invoice, error) {
	var model InvoiceModel
	if err := conn(ctx, r.db).Where("invoice_number = ?", invoiceNumber).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("invoice", invoiceNumber)
		}
		return nil, fmt.Errorf("failed to find invoice by number: %w", err)
	}
	return toDomainInvoice(&model)
}

// FindByBookingID retrieves the invoice owned by a booking, if any.
func (r *GormInvoiceRepository) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*invoiceDomain.Invoice, error) {
	var model InvoiceModel
	if err := conn(ctx, r.db).Where("booking_id = ?", bookingID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("invoice for booking", bookingID.String())
		}
		return nil, fmt.Errorf("failed to find invoice by booking: %w", err)
	}
	return toDomainInvoice(&model)
}

// List retrieves invoices with pagination, newest first.
func (r *GormInvoiceRepository) List(ctx context.Context, page, limit int) ([]*invoiceDomain.Invoice, int64, error) {
	q := conn(ctx, r.db).Model(&InvoiceModel{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	var models []InvoiceModel
	offset := (page - 1) * limit
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}

	invoices := make([]*invoiceDomain.Invoice, len(models))
	for i, m := range models {
		inv, err := toDomainInvoice(&m)
		if err != nil {
			return nil, 0, err
		}
		invoices[i] = inv
	}
	return invoices, total, nil
}

// NextSequence reads the highest assigned sequence for prefix+year under a row
// lock and returns the next value. Concurrent generators for the same year
// serialize on the locked rows; simultaneous first-of-year generation has no
// row to lock, which the invoice_number unique index catches at Save time.
func (r *GormInvoiceRepository) NextSequence(ctx context.Context, prefix string, year int) (int, error) {
	pattern := fmt.Sprintf("%s-%d-%%", prefix, year)

	var model InvoiceModel
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("invoice_number LIKE ?", pattern).
		Order("invoice_number DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 1, nil
		}
		return 0, fmt.Errorf("failed to read invoice sequence: %w", err)
	}

	_, _, seq, parseErr := invoiceDomain.ParseNumber(model.InvoiceNumber)
	if parseErr != nil {
		return 0, fmt.Errorf("malformed invoice number %s in sequence read: %w", model.InvoiceNumber, parseErr)
	}
	return seq + 1, nil
}

// Save persists a new invoice. A duplicate number or a second invoice for the
// same booking surfaces as a conflict.
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoiceDomain.Invoice) error {
	if err := conn(ctx, r.db).Create(toInvoiceModel(inv)).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.NewConflictError(fmt.Sprintf("invoice %s collides with an existing invoice", inv.InvoiceNumber()))
		}
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	return nil
}

// Update persists changes to an existing invoice with optimistic locking.
func (r *GormInvoiceRepository) Update(ctx context.Context, inv *invoiceDomain.Invoice) error {
	model := toInvoiceModel(inv)
	expectedVersion := inv.Version() - 1
	result := conn(ctx, r.db).
		Model(&InvoiceModel{}).
		Where("id = ? AND version = ?", model.ID, expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return fmt.Errorf("failed to update invoice: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("invoice was modified by another transaction")
	}
	return nil
}

// SavePayment appends a ledger entry.
func (r *GormInvoiceRepository) SavePayment(ctx context.Context, p *invoiceDomain.Payment) error {
	model := &PaymentModel{
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
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to save payment: %w", err)
	}
	return nil
}

// ListPayments returns all ledger entries for an invoice, oldest first.
func (r *GormInvoiceRepository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*invoiceDomain.Payment, error) {
	var models []PaymentModel
	if err := conn(ctx, r.db).Where("invoice_id = ?", invoiceID).Order("paid_at ASC, created_at ASC").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	payments := make([]*invoiceDomain.Payment, len(models))
	for i, m := range models {
		payments[i] = &invoiceDomain.Payment{
			ID:         m.ID,
			InvoiceID:  m.InvoiceID,
			Amount:     m.Amount,
			Method:     invoiceDomain.PaymentMethod(m.Method),
			Reference:  m.Reference,
			Notes:      m.Notes,
			RecordedBy: m.RecordedBy,
			PaidAt:     m.PaidAt,
			CreatedAt:  m.CreatedAt,
		}
	}
	return payments, nil
}

// --- Conversion helpers ---

func toInvoiceModel(inv *invoiceDomain.Invoice) *InvoiceModel {
	s := inv.Snapshot()
	return &InvoiceModel{
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

func toDomainInvoice(m *InvoiceModel) (*invoiceDomain.Invoice, error) {
	return invoiceDomain.FromSnapshot(invoiceDomain.Snapshot{
		ID:               m.ID,
		InvoiceNumber:    m.InvoiceNumber,
		BookingID:        m.BookingID,
		Status:           invoiceDomain.Status(m.Status),
		PeriodStart:      m.PeriodStart,
		PeriodEnd:        m.PeriodEnd,
		RentalDays:       m.RentalDays,
		DailyRate:        m.DailyRate,
		Currency:         m.Currency,
		RentalAmount:     m.RentalAmount,
		TotalMileage:     m.TotalMileage,
		FreeMileage:      m.FreeMileage,
		ExtraMileage:     m.ExtraMileage,
		ExtraMileageRate: m.ExtraMileageRate,
		ExtraMileageCost: m.ExtraMileageCost,
		PackageCharges:   m.PackageCharges,
		FuelCharge:       m.FuelCharge,
		DamageCharge:     m.DamageCharge,
		LateReturnCharge: m.LateReturnCharge,
		OtherCharges:     m.OtherCharges,
		Subtotal:         m.Subtotal,
		DiscountAmount:   m.DiscountAmount,
		TaxRatePercent:   m.TaxRatePercent,
		TaxAmount:        m.TaxAmount,
		TotalAmount:      m.TotalAmount,
		AdvancePaid:      m.AdvancePaid,
		AmountPaid:       m.AmountPaid,
		BalanceDue:       m.BalanceDue,
		IssuedAt:         m.IssuedAt,
		DueDate:          m.DueDate,
		PaidAt:           m.PaidAt,
		Version:          m.Version,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	})
}
