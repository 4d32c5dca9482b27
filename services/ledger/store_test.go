package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	ledgerRepo "rentflow/database/repository/ledger"
	"rentflow/models"

	"go.uber.org/zap"
)

// memStore is an in-memory LedgerRepository with the same atomicity
// guarantees as the Mongo implementation.
type memStore struct {
	mu          sync.Mutex
	rentals     map[string]models.Rental
	obligations map[string]models.PaymentObligation
	invoices    map[string]models.Invoice
	counters    map[string]int64

	rentalErrs map[string]error
	updateErrs map[string]error
	updates    int

	// beforeUpdate runs ahead of every UpdateObligation, outside the lock.
	beforeUpdate func(id string)
}

func newMemStore() *memStore {
	return &memStore{
		rentals:     map[string]models.Rental{},
		obligations: map[string]models.PaymentObligation{},
		invoices:    map[string]models.Invoice{},
		counters:    map[string]int64{},
		rentalErrs:  map[string]error{},
		updateErrs:  map[string]error{},
	}
}

func (m *memStore) CreateRental(_ context.Context, r *models.Rental) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rentals[r.ID]; ok {
		return ledgerRepo.ErrDuplicate
	}
	m.rentals[r.ID] = *r
	return nil
}

func (m *memStore) GetRental(_ context.Context, id string) (*models.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.rentalErrs[id]; err != nil {
		return nil, err
	}
	r, ok := m.rentals[id]
	if !ok {
		return nil, ledgerRepo.ErrNotFound
	}
	return &r, nil
}

func (m *memStore) ListRentalsByStatus(_ context.Context, status models.RentalStatus) ([]models.Rental, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Rental
	for _, r := range m.rentals {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) MarkReminderSent(_ context.Context, id string, previous *time.Time, sentAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rentals[id]
	if !ok {
		return false, nil
	}
	switch {
	case previous == nil && r.LastReminderSentAt != nil:
		return false, nil
	case previous != nil && (r.LastReminderSentAt == nil || !r.LastReminderSentAt.Equal(*previous)):
		return false, nil
	}
	r.LastReminderSentAt = &sentAt
	m.rentals[id] = r
	return true, nil
}

func (m *memStore) InsertObligation(_ context.Context, ob *models.PaymentObligation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.obligations {
		if o.RentalID == ob.RentalID && o.MonthKey == ob.MonthKey {
			return ledgerRepo.ErrDuplicate
		}
	}
	m.obligations[ob.ID] = copyObligation(*ob)
	return nil
}

func (m *memStore) GetObligation(_ context.Context, id string) (*models.PaymentObligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ob, ok := m.obligations[id]
	if !ok {
		return nil, ledgerRepo.ErrNotFound
	}
	c := copyObligation(ob)
	return &c, nil
}

func (m *memStore) FindObligationByRentalAndMonth(_ context.Context, rentalID, monthKey string) (*models.PaymentObligation, error) {
	return m.findOne(func(o models.PaymentObligation) bool { return o.RentalID == rentalID && o.MonthKey == monthKey })
}

func (m *memStore) FindObligationByPaymentEvent(_ context.Context, eventID string) (*models.PaymentObligation, error) {
	return m.findOne(func(o models.PaymentObligation) bool {
		_, ok := o.FindPayment(eventID)
		return ok
	})
}

func (m *memStore) findOne(match func(models.PaymentObligation) bool) (*models.PaymentObligation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.obligations {
		if match(o) {
			c := copyObligation(o)
			return &c, nil
		}
	}
	return nil, ledgerRepo.ErrNotFound
}

func (m *memStore) FindObligationsDueBy(_ context.Context, status models.ObligationStatus, cutoff time.Time) ([]models.PaymentObligation, error) {
	return m.filter(func(o models.PaymentObligation) bool { return o.Status == status && o.DueDate.Before(cutoff) }), nil
}

func (m *memStore) FindObligations(_ context.Context, q ledgerRepo.ObligationQuery) ([]models.PaymentObligation, error) {
	return m.filter(func(o models.PaymentObligation) bool {
		if len(q.Statuses) > 0 {
			found := false
			for _, s := range q.Statuses {
				if o.Status == s {
					found = true
				}
			}
			if !found {
				return false
			}
		}
		return (q.MonthKey == "" || o.MonthKey == q.MonthKey) &&
			(q.OwnerRef == "" || o.OwnerRef == q.OwnerRef) &&
			(q.RentalID == "" || o.RentalID == q.RentalID)
	}), nil
}

func (m *memStore) FindPaidBetween(_ context.Context, from, to time.Time) ([]models.PaymentObligation, error) {
	return m.filter(func(o models.PaymentObligation) bool {
		return o.Status == models.ObligationPaid && o.PaidDate != nil &&
			!o.PaidDate.Before(from) && o.PaidDate.Before(to)
	}), nil
}

func (m *memStore) filter(match func(models.PaymentObligation) bool) []models.PaymentObligation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PaymentObligation
	for _, o := range m.obligations {
		if match(o) {
			out = append(out, copyObligation(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memStore) UpdateObligation(_ context.Context, ob *models.PaymentObligation) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate(ob.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.updateErrs[ob.ID]; err != nil {
		return err
	}
	cur, ok := m.obligations[ob.ID]
	if !ok {
		return ledgerRepo.ErrNotFound
	}
	if cur.Version != ob.Version {
		return ledgerRepo.ErrVersionConflict
	}
	// mirrors the unique payments.eventId index
	for _, other := range m.obligations {
		if other.ID == ob.ID {
			continue
		}
		for _, p := range ob.Payments {
			if _, taken := other.FindPayment(p.EventID); taken {
				return ledgerRepo.ErrDuplicate
			}
		}
	}
	ob.Version++
	m.obligations[ob.ID] = copyObligation(*ob)
	m.updates++
	return nil
}

func (m *memStore) DeleteObligation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.obligations[id]; !ok {
		return ledgerRepo.ErrNotFound
	}
	delete(m.obligations, id)
	return nil
}

func (m *memStore) InsertInvoice(_ context.Context, inv *models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.invoices {
		if existing.PaymentEventID == inv.PaymentEventID || existing.Number == inv.Number {
			return ledgerRepo.ErrDuplicate
		}
	}
	m.invoices[inv.ID] = *inv
	return nil
}

func (m *memStore) GetInvoice(_ context.Context, id string) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, ledgerRepo.ErrNotFound
	}
	return &inv, nil
}

func (m *memStore) FindInvoiceByPaymentEvent(_ context.Context, eventID string) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.PaymentEventID == eventID {
			c := inv
			return &c, nil
		}
	}
	return nil, ledgerRepo.ErrNotFound
}

func (m *memStore) ListInvoicesByRental(_ context.Context, rentalID string) ([]models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Invoice
	for _, inv := range m.invoices {
		if inv.RentalID == rentalID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memStore) MarkInvoiceDelivered(_ context.Context, id string, at time.Time, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return ledgerRepo.ErrNotFound
	}
	inv.Delivered = true
	inv.DeliveredAt = &at
	inv.ArtifactRef = ref
	m.invoices[id] = inv
	return nil
}

func (m *memStore) NextInvoiceSequence(_ context.Context, bucket string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[bucket]++
	return m.counters[bucket], nil
}

func (m *memStore) invoiceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.invoices)
}

func (m *memStore) put(ob models.PaymentObligation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obligations[ob.ID] = copyObligation(ob)
}

func copyObligation(ob models.PaymentObligation) models.PaymentObligation {
	ob.Payments = append([]models.PaymentRecord(nil), ob.Payments...)
	return ob
}

// recordingNotifier captures messages instead of queueing them.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []models.NotificationMessage
	err      error
}

func (n *recordingNotifier) Send(_ context.Context, msg models.NotificationMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) kinds() []models.TemplateKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.TemplateKind, 0, len(n.messages))
	for _, m := range n.messages {
		out = append(out, m.Kind)
	}
	return out
}

type stubRenderer struct{ err error }

func (r stubRenderer) Render(doc models.InvoiceDocument) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-" + doc.Number), nil
}

type stubArtifacts struct{}

func (stubArtifacts) SaveInvoice(_ context.Context, number string, _ []byte) (string, error) {
	return "https://files.example.com/invoices/" + number + ".pdf", nil
}

// testClock is a settable clock shared by a test and the service.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc      *DefaultLedgerService
	store    *memStore
	notifier *recordingNotifier
	clock    *testClock
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	store := newMemStore()
	notifier := &recordingNotifier{}
	clock := &testClock{t: now}
	svc := NewLedgerService(store, notifier, stubRenderer{}, stubArtifacts{}, zap.NewNop(), Settings{
		Location:       time.UTC,
		ChannelTimeout: time.Second,
	})
	svc.Now = clock.Now
	t.Cleanup(svc.Drain)
	return &fixture{svc: svc, store: store, notifier: notifier, clock: clock}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// addRental stores a rental directly, without generating a schedule.
func (f *fixture) addRental(t *testing.T, id string, start time.Time, status models.RentalStatus) *models.Rental {
	t.Helper()
	r := &models.Rental{
		ID:                 id,
		OwnerRef:           id + "@example.com",
		Customer:           models.Customer{Name: "Customer " + id, Email: id + "@example.com", Phone: "+254700000000"},
		Items:              []models.RentalItem{{ItemRef: "sofa-1", Name: "Sofa", Quantity: 1, MonthlyRate: 2000}},
		StartDate:          start,
		TotalMonthlyAmount: 2000,
		Status:             status,
	}
	if err := f.store.CreateRental(context.Background(), r); err != nil {
		t.Fatalf("create rental: %v", err)
	}
	return r
}

// addObligation stores an obligation directly with the given state.
func (f *fixture) addObligation(rentalID, id, monthKey string, due time.Time, status models.ObligationStatus, amount, paid float64) models.PaymentObligation {
	ob := models.PaymentObligation{
		ID:         id,
		RentalID:   rentalID,
		OwnerRef:   rentalID + "@example.com",
		Customer:   models.Customer{Name: "Customer " + rentalID, Email: rentalID + "@example.com"},
		MonthKey:   monthKey,
		Amount:     amount,
		PaidAmount: paid,
		DueDate:    due,
		Status:     status,
	}
	f.store.put(ob)
	return ob
}

var errBoom = errors.New("boom")
