package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Topics published and consumed by the rental service.
const (
	TopicRentalEvents  = "rental.events"
	TopicBillingEvents = "billing.events"
	TopicGatewayEvents = "payment-gateway.events"
)

// Event types on rental.events.
const (
	BookingCreated   = "rental.booking.created"
	BookingConfirmed = "rental.booking.confirmed"
	BookingCollected = "rental.booking.collected"
	BookingCompleted = "rental.booking.completed"
	BookingCancelled = "rental.booking.cancelled"
)

// Event types on billing.events.
const (
	InvoiceGenerated = "billing.invoice.generated"
	InvoiceIssued    = "billing.invoice.issued"
	PaymentReceived  = "billing.payment.received"
)

// Event types consumed from payment-gateway.events.
const (
	GatewayPaymentConfirmed = "gateway.payment.confirmed"
)

// BookingEvent is the common payload for booking lifecycle events.
type BookingEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	VehicleID     uuid.UUID `json:"vehicle_id"`
	RenterID      uuid.UUID `json:"renter_id"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BookingCompletedEvent carries the recalculated settlement figures.
type BookingCompletedEvent struct {
	BookingEvent
	FinalAmount decimal.Decimal `json:"final_amount"`
	BalanceDue  decimal.Decimal `json:"balance_due"`
	Currency    string          `json:"currency"`
}

// InvoiceEvent is the payload for invoice lifecycle events.
type InvoiceEvent struct {
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	BookingID     uuid.UUID       `json:"booking_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	Currency      string          `json:"currency"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// PaymentReceivedEvent is published after a ledger entry commits.
type PaymentReceivedEvent struct {
	PaymentID     uuid.UUID       `json:"payment_id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	BookingID     uuid.UUID       `json:"booking_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	Settled       bool            `json:"settled"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// GatewayPaymentConfirmedEvent is the external gateway's settlement
// confirmation consumed from payment-gateway.events.
type GatewayPaymentConfirmedEvent struct {
	GatewayPaymentID string          `json:"gateway_payment_id"`
	InvoiceNumber    string          `json:"invoice_number"`
	Amount           decimal.Decimal `json:"amount"`
	Method           string          `json:"method"`
	OccurredAt       time.Time       `json:"occurred_at"`
}
