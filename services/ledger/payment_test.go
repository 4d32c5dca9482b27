package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"rentflow/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPayment_SettlementIssuesInvoiceOnce(t *testing.T) {
	now := time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, now)
	ctx := context.Background()
	f.addRental(t, "r1", day(2025, 9, 1), models.RentalStatusActive)
	f.addObligation("r1", "o1", "2025-10", day(2025, 10, 1), models.ObligationOverdue, 2000, 0)

	in := models.PaymentInput{ObligationID: "o1", Amount: 2000, Method: "mpesa", PaymentEventID: "evt-1"}
	res, err := f.svc.RecordPayment(ctx, in)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, models.ObligationPaid, res.Obligation.Status)
	require.NotNil(t, res.Obligation.PaidDate)
	assert.True(t, res.Payment.Settled)
	require.NotNil(t, res.Invoice)
	assert.Equal(t, "INV-2025-1110-0001", res.Invoice.Number)

	replay, err := f.svc.RecordPayment(ctx, in)
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	require.NotNil(t, replay.Invoice)
	assert.Equal(t, res.Invoice.ID, replay.Invoice.ID)

	again, err := f.svc.IssueInvoice(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-1110-0001", again.Number)
	assert.Equal(t, 1, f.store.invoiceCount())

	ob, err := f.store.GetObligation(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, ob.Payments, 1)
	assert.Equal(t, 2000.0, ob.PaidAmount)

	f.svc.Drain()
	stored, err := f.store.GetInvoice(ctx, res.Invoice.ID)
	require.NoError(t, err)
	assert.True(t, stored.Delivered)
	assert.Equal(t, "https://files.example.com/invoices/INV-2025-1110-0001.pdf", stored.ArtifactRef)
	assert.ElementsMatch(t,
		[]models.TemplateKind{models.TemplatePaymentConfirmation, models.TemplateInvoice},
		f.notifier.kinds())
}

func TestIssueInvoice_SurvivesObligationDeletion(t *testing.T) {
	f := newFixture(t, time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	f.addRental(t, "r1", day(2025, 9, 1), models.RentalStatusActive)
	f.addObligation("r1", "o1", "2025-10", day(2025, 10, 1), models.ObligationOverdue, 2000, 0)

	res, err := f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "o1", Amount: 2000, PaymentEventID: "evt-1"})
	require.NoError(t, err)
	require.NotNil(t, res.Invoice)

	require.NoError(t, f.svc.DeleteObligation(ctx, "o1"))

	inv, err := f.svc.IssueInvoice(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, res.Invoice.ID, inv.ID)
	assert.Equal(t, "INV-2025-1110-0001", inv.Number)
	assert.Equal(t, 1, f.store.invoiceCount())

	listed, err := f.svc.ListInvoices(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestRecordPayment_PartialThenRemainder(t *testing.T) {
	f := newFixture(t, time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	f.addRental(t, "r1", day(2025, 9, 1), models.RentalStatusActive)
	f.addObligation("r1", "o1", "2025-11", day(2025, 12, 1), models.ObligationPending, 2000, 0)

	partial, err := f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "o1", Amount: 500, PaymentEventID: "p1"})
	require.NoError(t, err)
	assert.Equal(t, models.ObligationPartial, partial.Obligation.Status)
	assert.Nil(t, partial.Invoice)
	assert.Nil(t, partial.Obligation.PaidDate)
	require.NotNil(t, partial.Obligation.PaymentMethod)
	assert.Equal(t, "cash", *partial.Obligation.PaymentMethod)

	var stateErr *InvalidStateError
	_, err = f.svc.IssueInvoice(ctx, "p1")
	assert.ErrorAs(t, err, &stateErr)

	var vErr *ValidationError
	_, err = f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "o1", Amount: 1600})
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "1500.00")

	settled, err := f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "o1", Amount: 1500, PaymentEventID: "p2"})
	require.NoError(t, err)
	assert.Equal(t, models.ObligationPaid, settled.Obligation.Status)
	assert.Equal(t, 2000.0, settled.Obligation.PaidAmount)
	require.NotNil(t, settled.Invoice)
	assert.Equal(t, "p2", settled.Invoice.PaymentEventID)

	_, err = f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "o1", Amount: 1})
	assert.ErrorAs(t, err, &stateErr)
}

func TestRecordPayment_Validation(t *testing.T) {
	f := newFixture(t, day(2025, 11, 10))
	ctx := context.Background()
	f.addObligation("r1", "o1", "2025-11", day(2025, 12, 1), models.ObligationPending, 2000, 0)
	f.addObligation("r2", "o2", "2025-11", day(2025, 12, 1), models.ObligationPending, 2000, 0)

	var vErr *ValidationError
	_, err := f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "o1", Amount: 0})
	assert.ErrorAs(t, err, &vErr)
	_, err = f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "o1", Amount: -5})
	assert.ErrorAs(t, err, &vErr)

	var nfErr *NotFoundError
	_, err = f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "missing", Amount: 10})
	assert.ErrorAs(t, err, &nfErr)
	_, err = f.svc.IssueInvoice(ctx, "no-such-event")
	assert.ErrorAs(t, err, &nfErr)

	_, err = f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "o1", Amount: 100, PaymentEventID: "shared"})
	require.NoError(t, err)
	var stateErr *InvalidStateError
	_, err = f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "o2", Amount: 100, PaymentEventID: "shared"})
	assert.ErrorAs(t, err, &stateErr)
}

func TestRecordPayment_EventClaimedByAnotherObligationMidWrite(t *testing.T) {
	f := newFixture(t, day(2025, 11, 10))
	ctx := context.Background()
	f.addObligation("r1", "o1", "2025-11", day(2025, 12, 1), models.ObligationPending, 2000, 0)
	f.addObligation("r2", "o2", "2025-11", day(2025, 12, 1), models.ObligationPending, 2000, 0)

	// another writer records "shared" on o1 after the lookup, before o2's write
	var once sync.Once
	f.store.beforeUpdate = func(id string) {
		if id != "o2" {
			return
		}
		once.Do(func() {
			ob, err := f.store.GetObligation(ctx, "o1")
			require.NoError(t, err)
			ob.Status = models.ObligationPartial
			ob.PaidAmount = 100
			ob.Payments = append(ob.Payments, models.PaymentRecord{EventID: "shared", Amount: 100, Method: "cash"})
			f.store.put(*ob)
		})
	}

	var stateErr *InvalidStateError
	_, err := f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "o2", Amount: 100, PaymentEventID: "shared"})
	require.ErrorAs(t, err, &stateErr)
	assert.Contains(t, stateErr.Reason, "another obligation")

	o2, err := f.store.GetObligation(ctx, "o2")
	require.NoError(t, err)
	assert.Equal(t, models.ObligationPending, o2.Status)
	assert.Empty(t, o2.Payments)
}

func TestRecordPayment_ConcurrentPaymentsOnOneObligation(t *testing.T) {
	f := newFixture(t, day(2025, 11, 10))
	ctx := context.Background()
	f.addObligation("r1", "o1", "2025-11", day(2025, 12, 1), models.ObligationPending, 2000, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.RecordPayment(ctx, models.PaymentInput{
				ObligationID:   "o1",
				Amount:         1000,
				PaymentEventID: fmt.Sprintf("half-%d", i),
			})
		}(i)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	ob, err := f.store.GetObligation(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.ObligationPaid, ob.Status)
	assert.Len(t, ob.Payments, 2)
	assert.Equal(t, 1, f.store.invoiceCount())
}

func TestIssueInvoice_ConcurrentSettlementsGetUniqueNumbers(t *testing.T) {
	f := newFixture(t, time.Date(2025, 11, 10, 15, 30, 0, 0, time.UTC))
	ctx := context.Background()
	const n = 100
	for i := 0; i < n; i++ {
		f.addObligation(fmt.Sprintf("r%03d", i), fmt.Sprintf("o%03d", i), "2025-10", day(2025, 10, 1), models.ObligationOverdue, 2000, 0)
	}

	var wg sync.WaitGroup
	numbers := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.RecordPayment(ctx, models.PaymentInput{
				ObligationID:   fmt.Sprintf("o%03d", i),
				Amount:         2000,
				PaymentEventID: fmt.Sprintf("evt-%03d", i),
			})
			if err != nil {
				errs[i] = err
				return
			}
			if res.Invoice != nil {
				numbers[i] = res.Invoice.Number
			}
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	seen := map[string]bool{}
	for _, num := range numbers {
		require.True(t, strings.HasPrefix(num, "INV-2025-1110-"), num)
		assert.False(t, seen[num], "duplicate invoice number %s", num)
		seen[num] = true
	}
	sort.Strings(numbers)
	for i, num := range numbers {
		assert.Equal(t, FormatInvoiceNumber("INV", day(2025, 11, 10), int64(i+1)), num)
	}
}

func TestIssueInvoice_ChannelFailureDoesNotFailInvoice(t *testing.T) {
	f := newFixture(t, time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC))
	ctx := context.Background()
	f.notifier.err = errBoom
	f.svc.Renderer = stubRenderer{err: errBoom}
	f.addObligation("r1", "o1", "2025-10", day(2025, 10, 1), models.ObligationOverdue, 2000, 0)

	res, err := f.svc.RecordPayment(ctx, models.PaymentInput{ObligationID: "o1", Amount: 2000, PaymentEventID: "evt-1"})
	require.NoError(t, err)
	require.NotNil(t, res.Invoice)

	f.svc.Drain()
	stored, err := f.store.GetInvoice(ctx, res.Invoice.ID)
	require.NoError(t, err)
	assert.False(t, stored.Delivered)
}

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "INV-2025-1110-0001", FormatInvoiceNumber("INV", day(2025, 11, 10), 1))
	assert.Equal(t, "RF-2026-0102-10000", FormatInvoiceNumber("RF", day(2026, 1, 2), 10000))
}
