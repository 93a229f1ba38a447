package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fleetrent/service-rental/internal/domain"
	bookingDomain "github.com/fleetrent/service-rental/internal/domain/booking"
	"github.com/fleetrent/service-rental/internal/domain/inspection"
	invoiceDomain "github.com/fleetrent/service-rental/internal/domain/invoice"
	vehicleDomain "github.com/fleetrent/service-rental/internal/domain/vehicle"
)

// fakeTransactor runs fn directly; the in-memory repositories have no
// transactional semantics to coordinate.
type fakeTransactor struct{}

func (fakeTransactor) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakePublisher records published events for assertions.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	Topic string
	Type  string
	Key   string
	Data  any
}

func (p *fakePublisher) Publish(_ context.Context, topic, eventType, key string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Type: eventType, Key: key, Data: data})
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// fakeBookingRepo is an in-memory booking.Repository.
type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]bookingDomain.Snapshot
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{bookings: make(map[uuid.UUID]bookingDomain.Snapshot)}
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.bookings[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id.String())
	}
	return bookingDomain.FromSnapshot(s)
}

func (r *fakeBookingRepo) FindByNumber(_ context.Context, number string) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.bookings {
		if s.BookingNumber == number {
			return bookingDomain.FromSnapshot(s)
		}
	}
	return nil, domain.NewNotFoundError("booking", number)
}

func (r *fakeBookingRepo) List(_ context.Context, filter bookingDomain.ListFilter, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, s := range r.bookings {
		if filter.RenterID != nil && s.RenterID != *filter.RenterID {
			continue
		}
		if filter.VehicleID != nil && s.VehicleID != *filter.VehicleID {
			continue
		}
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		bk, _ := bookingDomain.FromSnapshot(s)
		out = append(out, bk)
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) CountByStatus(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, s := range r.bookings {
		counts[s.Status.String()]++
	}
	return counts, nil
}

func (r *fakeBookingRepo) HasOverlap(_ context.Context, vehicleID uuid.UUID, start, end time.Time, exclude *uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.bookings {
		if s.VehicleID != vehicleID || !s.Status.BlocksVehicle() {
			continue
		}
		if exclude != nil && s.ID == *exclude {
			continue
		}
		if s.StartDate.Before(end) && s.EndDate.After(start) {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, b *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID()] = b.Snapshot()
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, b *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.bookings[b.ID()]
	if !ok {
		return domain.NewNotFoundError("booking", b.ID().String())
	}
	if current.Version != b.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	r.bookings[b.ID()] = b.Snapshot()
	return nil
}

// fakeVehicleRepo is an in-memory vehicle.Repository. The ForUpdate variant
// behaves identically; there is no lock to take.
type fakeVehicleRepo struct {
	mu       sync.Mutex
	vehicles map[uuid.UUID]*vehicleDomain.Vehicle
}

func newFakeVehicleRepo() *fakeVehicleRepo {
	return &fakeVehicleRepo{vehicles: make(map[uuid.UUID]*vehicleDomain.Vehicle)}
}

func (r *fakeVehicleRepo) clone(v *vehicleDomain.Vehicle) *vehicleDomain.Vehicle {
	return vehicleDomain.Reconstruct(
		v.ID(), v.RegistrationNumber(), v.Make(), v.Model(), v.Year(),
		v.DailyRate(), v.Odometer(), v.FuelType(), v.Transmission(), v.Seats(),
		v.Notes(), v.Available(), v.Status(), v.Version(), v.CreatedAt(), v.UpdatedAt(),
	)
}

func (r *fakeVehicleRepo) FindByID(_ context.Context, id uuid.UUID) (*vehicleDomain.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vehicles[id]
	if !ok {
		return nil, domain.NewNotFoundError("vehicle", id.String())
	}
	return r.clone(v), nil
}

func (r *fakeVehicleRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*vehicleDomain.Vehicle, error) {
	return r.FindByID(ctx, id)
}

func (r *fakeVehicleRepo) FindByRegistration(_ context.Context, reg string) (*vehicleDomain.Vehicle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.vehicles {
		if v.RegistrationNumber() == reg {
			return r.clone(v), nil
		}
	}
	return nil, domain.NewNotFoundError("vehicle", reg)
}

func (r *fakeVehicleRepo) List(_ context.Context, filter vehicleDomain.ListFilter, page, limit int) ([]*vehicleDomain.Vehicle, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*vehicleDomain.Vehicle
	for _, v := range r.vehicles {
		if filter.OnlyAvailable && !v.Available() {
			continue
		}
		if filter.Status != "" && v.Status() != filter.Status {
			continue
		}
		out = append(out, r.clone(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().After(out[j].CreatedAt()) })
	return out, int64(len(out)), nil
}

func (r *fakeVehicleRepo) Save(_ context.Context, v *vehicleDomain.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.vehicles {
		if existing.RegistrationNumber() == v.RegistrationNumber() {
			return domain.NewConflictError("vehicle registration already exists")
		}
	}
	r.vehicles[v.ID()] = r.clone(v)
	return nil
}

func (r *fakeVehicleRepo) Update(_ context.Context, v *vehicleDomain.Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.vehicles[v.ID()]
	if !ok {
		return domain.NewNotFoundError("vehicle", v.ID().String())
	}
	if current.Version() != v.Version()-1 {
		return domain.NewConflictError("vehicle was modified by another transaction")
	}
	r.vehicles[v.ID()] = r.clone(v)
	return nil
}

// fakeInvoiceRepo is an in-memory invoice.Repository.
type fakeInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]invoiceDomain.Snapshot
	payments map[uuid.UUID][]*invoiceDomain.Payment
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{
		invoices: make(map[uuid.UUID]invoiceDomain.Snapshot),
		payments: make(map[uuid.UUID][]*invoiceDomain.Payment),
	}
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*invoiceDomain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.invoices[id]
	if !ok {
		return nil, domain.NewNotFoundError("invoice", id.String())
	}
	return invoiceDomain.FromSnapshot(s)
}

func (r *fakeInvoiceRepo) FindByNumber(_ context.Context, number string) (*invoiceDomain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.invoices {
		if s.InvoiceNumber == number {
			return invoiceDomain.FromSnapshot(s)
		}
	}
	return nil, domain.NewNotFoundError("invoice", number)
}

func (r *fakeInvoiceRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) (*invoiceDomain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.invoices {
		if s.BookingID == bookingID {
			return invoiceDomain.FromSnapshot(s)
		}
	}
	return nil, domain.NewNotFoundError("invoice for booking", bookingID.String())
}

func (r *fakeInvoiceRepo) List(_ context.Context, page, limit int) ([]*invoiceDomain.Invoice, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*invoiceDomain.Invoice
	for _, s := range r.invoices {
		inv, _ := invoiceDomain.FromSnapshot(s)
		out = append(out, inv)
	}
	return out, int64(len(out)), nil
}

func (r *fakeInvoiceRepo) NextSequence(_ context.Context, prefix string, year int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	best := 0
	for _, s := range r.invoices {
		p, y, seq, err := invoiceDomain.ParseNumber(s.InvoiceNumber)
		if err != nil || p != prefix || y != year {
			continue
		}
		if seq > best {
			best = seq
		}
	}
	return best + 1, nil
}

func (r *fakeInvoiceRepo) Save(_ context.Context, inv *invoiceDomain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := inv.Snapshot()
	for _, existing := range r.invoices {
		if existing.InvoiceNumber == s.InvoiceNumber || existing.BookingID == s.BookingID {
			return domain.NewConflictError("invoice collides with an existing invoice")
		}
	}
	r.invoices[s.ID] = s
	return nil
}

func (r *fakeInvoiceRepo) Update(_ context.Context, inv *invoiceDomain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.invoices[inv.ID()]
	if !ok {
		return domain.NewNotFoundError("invoice", inv.ID().String())
	}
	if current.Version != inv.Version()-1 {
		return domain.NewConflictError("invoice was modified by another transaction")
	}
	r.invoices[inv.ID()] = inv.Snapshot()
	return nil
}

func (r *fakeInvoiceRepo) SavePayment(_ context.Context, p *invoiceDomain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.InvoiceID] = append(r.payments[p.InvoiceID], &cp)
	return nil
}

func (r *fakeInvoiceRepo) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]*invoiceDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := r.payments[invoiceID]
	out := make([]*invoiceDomain.Payment, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].PaidAt.Before(out[j].PaidAt) })
	return out, nil
}

// fakeInspectionRepo is an in-memory inspection.Repository.
type fakeInspectionRepo struct {
	mu     sync.Mutex
	photos map[uuid.UUID][]*inspection.Photo
}

func newFakeInspectionRepo() *fakeInspectionRepo {
	return &fakeInspectionRepo{photos: make(map[uuid.UUID][]*inspection.Photo)}
}

func (r *fakeInspectionRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*inspection.Photo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*inspection.Photo(nil), r.photos[bookingID]...), nil
}

func (r *fakeInspectionRepo) Save(_ context.Context, photo *inspection.Photo) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.photos[photo.BookingID()] = append(r.photos[photo.BookingID()], photo)
	return nil
}
