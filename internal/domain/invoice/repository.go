package invoice

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for invoices and their ledgers.
type Repository interface {
	// FindByID retrieves an invoice by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// FindByNumber retrieves an invoice by its human-readable number.
	FindByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)

	// FindByBookingID retrieves the invoice owned by a booking, if any.
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*Invoice, error)

	// List retrieves invoices with pagination, newest first.
	List(ctx context.Context, page, limit int) ([]*Invoice, int64, error)

	// NextSequence returns the next invoice sequence for prefix+year: one
	// greater than the highest existing sequence, starting at 1. The read must
	// be serialized against concurrent generation in the same transaction
	// scope (row lock over the year's invoices).
	NextSequence(ctx context.Context, prefix string, year int) (int, error)

	// Save persists a new invoice. A duplicate invoice number or a second
	// invoice for the same booking surfaces as a conflict.
	Save(ctx context.Context, inv *Invoice) error

	// Update persists changes to an existing invoice with optimistic locking.
	Update(ctx context.Context, inv *Invoice) error

	// SavePayment appends a ledger entry.
	SavePayment(ctx context.Context, p *Payment) error

	// ListPayments returns all ledger entries for an invoice, oldest first.
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]*Payment, error)
}

// FormatNumber renders an invoice number as {PREFIX}-{YEAR}-{6-digit seq}.
func FormatNumber(prefix string, year, sequence int) string {
	return formatNumber(prefix, year, sequence)
}
