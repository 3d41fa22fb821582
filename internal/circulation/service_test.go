package circulation_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryflow/internal/catalog"
	"libraryflow/internal/circulation"
	"libraryflow/internal/events"
	"libraryflow/internal/membership"
	"libraryflow/internal/storage/memory"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type desk struct {
	clock  *fakeClock
	store  *memory.Store
	svc    circulation.Service
	staff  *membership.Staff
	item   *catalog.Item
	copy   *catalog.Copy
	patron *membership.Patron
}

func newDesk(t *testing.T, repos func(circulation.Repositories) circulation.Repositories) *desk {
	t.Helper()
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2024, time.May, 6, 9, 0, 0, 0, time.UTC)}
	store := memory.NewStore()

	r := store.Circulation()
	if repos != nil {
		r = repos(r)
	}
	d := &desk{
		clock: clock,
		store: store,
		svc:   circulation.NewService(r, events.NewBus(), circulation.DefaultPolicies(), clock.Now, log.New(io.Discard)),
	}

	var err error
	d.staff, err = store.Staff.Save(ctx, &membership.Staff{Name: "Desk", Email: "desk@library.test", Status: membership.StaffActive})
	require.NoError(t, err)
	d.item, err = store.Items.Save(ctx, &catalog.Item{Title: "Invisible Cities"})
	require.NoError(t, err)
	d.copy, err = store.Copies.Save(ctx, &catalog.Copy{ItemID: d.item.ID, Barcode: "LF1", Status: catalog.CopyAvailable})
	require.NoError(t, err)
	d.patron = d.newPatron(t, "reader@example.org")
	return d
}

func (d *desk) newPatron(t *testing.T, email string) *membership.Patron {
	t.Helper()
	p, err := d.store.Patrons.Save(context.Background(), &membership.Patron{
		Email: email, Name: email, Tier: membership.TierRegular, Status: membership.PatronActive,
	})
	require.NoError(t, err)
	return p
}

func (d *desk) copyStatus(t *testing.T) catalog.CopyStatus {
	t.Helper()
	cp, err := d.store.Copies.GetByID(context.Background(), d.copy.ID)
	require.NoError(t, err)
	return cp.Status
}

func TestCheckoutCopy(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)

	loan, err := d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)
	assert.Equal(t, d.clock.now.AddDate(0, 0, 14), loan.DueDate)
	assert.Equal(t, catalog.CopyOnLoan, d.copyStatus(t))

	other := d.newPatron(t, "other@example.org")
	_, err = d.svc.CheckoutCopy(ctx, d.copy.ID, other.ID, d.staff.ID)
	assert.ErrorIs(t, err, catalog.ErrCopyNotAvailable)
}

func TestCheckoutEligibility(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)

	_, err := d.svc.CheckoutCopy(ctx, d.copy.ID, uuid.New(), d.staff.ID)
	assert.ErrorIs(t, err, membership.ErrPatronNotFound)
	_, err = d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, uuid.New())
	assert.ErrorIs(t, err, membership.ErrStaffNotFound)
	_, err = d.svc.CheckoutCopy(ctx, uuid.New(), d.patron.ID, d.staff.ID)
	assert.ErrorIs(t, err, catalog.ErrCopyNotFound)

	suspended := d.newPatron(t, "suspended@example.org")
	suspended.Status = membership.PatronSuspended
	_, err = d.store.Patrons.Save(ctx, suspended)
	require.NoError(t, err)
	_, err = d.svc.CheckoutCopy(ctx, d.copy.ID, suspended.ID, d.staff.ID)
	assert.ErrorIs(t, err, circulation.ErrPatronNotEligible)

	retired := *d.staff
	retired.Status = membership.StaffInactive
	_, err = d.store.Staff.Save(ctx, &retired)
	require.NoError(t, err)
	_, err = d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	assert.ErrorIs(t, err, circulation.ErrStaffNotEligible)

	assert.Equal(t, catalog.CopyAvailable, d.copyStatus(t))
}

type failingLoans struct {
	circulation.LoanRepository
}

func (failingLoans) Save(context.Context, *circulation.Loan) (*circulation.Loan, error) {
	return nil, errors.New("disk full")
}

func TestCheckoutCompensatesCopyWhenLoanSaveFails(t *testing.T) {
	d := newDesk(t, func(r circulation.Repositories) circulation.Repositories {
		r.Loans = failingLoans{r.Loans}
		return r
	})

	_, err := d.svc.CheckoutCopy(context.Background(), d.copy.ID, d.patron.ID, d.staff.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, catalog.CopyAvailable, d.copyStatus(t))
}

func TestRenewLoanBlockedByHold(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)
	loan, err := d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)

	d.clock.now = d.clock.now.AddDate(0, 0, 10)
	renewed, err := d.svc.RenewLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, d.clock.now.AddDate(0, 0, 14), renewed.DueDate)

	waiting := d.newPatron(t, "waiting@example.org")
	_, err = d.svc.PlaceHold(ctx, d.item.ID, waiting.ID)
	require.NoError(t, err)
	_, err = d.svc.RenewLoan(ctx, loan.ID)
	assert.ErrorIs(t, err, circulation.ErrItemOnHold)
}

func TestPlaceHoldRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)

	_, err := d.svc.PlaceHold(ctx, d.item.ID, d.patron.ID)
	require.NoError(t, err)
	_, err = d.svc.PlaceHold(ctx, d.item.ID, d.patron.ID)
	assert.ErrorIs(t, err, circulation.ErrDuplicateHold)
	_, err = d.svc.PlaceHold(ctx, uuid.New(), d.patron.ID)
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
}

func TestProcessHoldsForReturnedCopyWithoutHolds(t *testing.T) {
	d := newDesk(t, nil)
	hold, err := d.svc.ProcessHoldsForReturnedCopy(context.Background(), d.copy.ID)
	require.NoError(t, err)
	assert.Nil(t, hold)
	assert.Equal(t, catalog.CopyAvailable, d.copyStatus(t))
}

func TestExpireHolds(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)
	stale, err := d.svc.PlaceHold(ctx, d.item.ID, d.patron.ID)
	require.NoError(t, err)

	d.clock.now = d.clock.now.AddDate(0, 0, 5)
	fresh, err := d.svc.PlaceHold(ctx, d.item.ID, d.newPatron(t, "fresh@example.org").ID)
	require.NoError(t, err)

	expired, err := d.svc.ExpireHolds(ctx, d.clock.now.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)
	assert.Equal(t, circulation.HoldExpired, expired[0].Status)

	got, err := d.svc.GetHold(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.HoldPending, got.Status)
}

func TestSweepSkipsLoansDueToday(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)
	loan, err := d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)

	flagged, err := d.svc.SweepOverdueLoans(ctx, loan.DueDate.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, flagged)

	_, err = d.svc.ProcessOverdueLoan(ctx, loan.ID)
	assert.ErrorIs(t, err, circulation.ErrLoanNotDue)
}

func TestFinePaymentRestoresEligibility(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)
	loan, err := d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)

	fine, err := d.svc.AssessFine(ctx, d.patron.ID, loan.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(50), fine.AmountCents)

	_, err = d.svc.ReturnLoan(ctx, loan.ID, d.staff.ID)
	require.NoError(t, err)
	_, err = d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	assert.ErrorIs(t, err, circulation.ErrOutstandingFines)

	paid, err := d.svc.PayFine(ctx, fine.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.FinePaid, paid.Status)
	_, err = d.svc.WaiveFine(ctx, fine.ID)
	assert.ErrorIs(t, err, circulation.ErrFineSettled)

	_, err = d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)

	fines, err := d.svc.ListFines(ctx, d.patron.ID)
	require.NoError(t, err)
	assert.Len(t, fines, 1)
}

func TestMarkLoanLostMarksCopy(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)
	loan, err := d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)

	lost, err := d.svc.MarkLoanLost(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanLost, lost.Status)
	assert.Equal(t, catalog.CopyLost, d.copyStatus(t))

	_, err = d.svc.ReturnLoan(ctx, loan.ID, d.staff.ID)
	assert.ErrorIs(t, err, circulation.ErrLoanNotOutstanding)
}

func TestConcurrentCheckoutsLendCopyOnce(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)

	const readers = 20
	patrons := make([]*membership.Patron, readers)
	for i := range patrons {
		patrons[i] = d.newPatron(t, fmt.Sprintf("reader%d@example.org", i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		lent    int
		refused int
	)
	for _, p := range patrons {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.svc.CheckoutCopy(ctx, d.copy.ID, p.ID, d.staff.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				lent++
				return
			}
			if errors.Is(err, catalog.ErrCopyNotAvailable) {
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, lent)
	assert.Equal(t, readers-1, refused)
	assert.Equal(t, catalog.CopyOnLoan, d.copyStatus(t))

	loans, err := d.store.Loans.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, loans, 1)
}

// stallingHolds keeps each pending-hold lookup waiting until a second lookup
// arrives or a short grace period runs out. Unserialized callers would both
// read the same queue before either saves.
type stallingHolds struct {
	circulation.HoldRepository
	armed   atomic.Bool
	mu      sync.Mutex
	arrived int
	both    chan struct{}
}

func newStallingHolds() *stallingHolds {
	return &stallingHolds{both: make(chan struct{})}
}

func (h *stallingHolds) FindPendingByItem(ctx context.Context, itemID uuid.UUID) ([]*circulation.Hold, error) {
	holds, err := h.HoldRepository.FindPendingByItem(ctx, itemID)
	if !h.armed.Load() {
		return holds, err
	}
	h.mu.Lock()
	h.arrived++
	if h.arrived == 2 {
		close(h.both)
	}
	h.mu.Unlock()

	select {
	case <-h.both:
	case <-time.After(100 * time.Millisecond):
	}
	return holds, err
}

// newTwoCopyDesk adds a second copy of the desk's item and returns the stalling
// hold repository wired into the service.
func newTwoCopyDesk(t *testing.T) (*desk, *catalog.Copy, *stallingHolds) {
	t.Helper()
	holds := newStallingHolds()
	d := newDesk(t, func(r circulation.Repositories) circulation.Repositories {
		holds.HoldRepository = r.Holds
		r.Holds = holds
		return r
	})
	second, err := d.store.Copies.Save(context.Background(), &catalog.Copy{ItemID: d.item.ID, Barcode: "LF2", Status: catalog.CopyAvailable})
	require.NoError(t, err)
	return d, second, holds
}

func (d *desk) statusCounts(t *testing.T, ids ...uuid.UUID) map[catalog.CopyStatus]int {
	t.Helper()
	counts := make(map[catalog.CopyStatus]int)
	for _, id := range ids {
		cp, err := d.store.Copies.GetByID(context.Background(), id)
		require.NoError(t, err)
		counts[cp.Status]++
	}
	return counts
}

func TestConcurrentReturnsReserveOneCopyPerHold(t *testing.T) {
	ctx := context.Background()
	d, second, holds := newTwoCopyDesk(t)

	first, err := d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)
	other, err := d.svc.CheckoutCopy(ctx, second.ID, d.newPatron(t, "other@example.org").ID, d.staff.ID)
	require.NoError(t, err)
	hold, err := d.svc.PlaceHold(ctx, d.item.ID, d.newPatron(t, "waiting@example.org").ID)
	require.NoError(t, err)

	holds.armed.Store(true)
	var wg sync.WaitGroup
	for _, loan := range []*circulation.Loan{first, other} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := d.svc.ReturnLoan(ctx, loan.ID, d.staff.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, map[catalog.CopyStatus]int{catalog.CopyReserved: 1, catalog.CopyAvailable: 1},
		d.statusCounts(t, d.copy.ID, second.ID))

	got, err := d.svc.GetHold(ctx, hold.ID)
	require.NoError(t, err)
	require.Equal(t, circulation.HoldFulfilled, got.Status)
	reserved, err := d.store.Copies.GetByID(ctx, *got.CopyID)
	require.NoError(t, err)
	assert.Equal(t, catalog.CopyReserved, reserved.Status, "the hold points at the copy set aside")
}

func TestConcurrentHoldProcessingReservesOneCopy(t *testing.T) {
	ctx := context.Background()
	d, second, holds := newTwoCopyDesk(t)
	hold, err := d.svc.PlaceHold(ctx, d.item.ID, d.patron.ID)
	require.NoError(t, err)

	holds.armed.Store(true)
	var (
		wg        sync.WaitGroup
		fulfilled atomic.Int32
	)
	for _, id := range []uuid.UUID{d.copy.ID, second.ID} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := d.svc.ProcessHoldsForReturnedCopy(ctx, id)
			assert.NoError(t, err)
			if got != nil {
				fulfilled.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fulfilled.Load())
	assert.Equal(t, map[catalog.CopyStatus]int{catalog.CopyReserved: 1, catalog.CopyAvailable: 1},
		d.statusCounts(t, d.copy.ID, second.ID))

	got, err := d.svc.GetHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.HoldFulfilled, got.Status)
}

func TestReturnReservesCopyBeforeAnyCheckout(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)
	loan, err := d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)
	waiting := d.newPatron(t, "waiting@example.org")
	hold, err := d.svc.PlaceHold(ctx, d.item.ID, waiting.ID)
	require.NoError(t, err)

	// No LoanReturned handler is registered on this desk's bus.
	_, err = d.svc.ReturnLoan(ctx, loan.ID, d.staff.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.CopyReserved, d.copyStatus(t))

	walkIn := d.newPatron(t, "walkin@example.org")
	_, err = d.svc.CheckoutCopy(ctx, d.copy.ID, walkIn.ID, d.staff.ID)
	assert.ErrorIs(t, err, circulation.ErrCopyReservedElsewhere)

	got, err := d.svc.GetHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.HoldFulfilled, got.Status)
	assert.Equal(t, d.clock.now.AddDate(0, 0, 7), got.ExpiryDate, "pickup deadline")

	hold, err = d.svc.ProcessHoldsForReturnedCopy(ctx, d.copy.ID)
	require.NoError(t, err)
	assert.Nil(t, hold, "a reserved copy is not offered twice")
}

func TestExpireHoldsLapsesUncollectedReservation(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)
	day0 := d.clock.now

	loan, err := d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)
	first, err := d.svc.PlaceHold(ctx, d.item.ID, d.newPatron(t, "first@example.org").ID)
	require.NoError(t, err)

	d.clock.now = day0.AddDate(0, 0, 3)
	_, err = d.svc.ReturnLoan(ctx, loan.ID, d.staff.ID)
	require.NoError(t, err)

	d.clock.now = day0.AddDate(0, 0, 6)
	second, err := d.svc.PlaceHold(ctx, d.item.ID, d.newPatron(t, "second@example.org").ID)
	require.NoError(t, err)

	// The last day of the pickup window still counts.
	expired, err := d.svc.ExpireHolds(ctx, day0.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.Empty(t, expired)

	expired, err = d.svc.ExpireHolds(ctx, day0.AddDate(0, 0, 11))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, first.ID, expired[0].ID)
	assert.Equal(t, circulation.HoldExpired, expired[0].Status)

	next, err := d.svc.GetHold(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.HoldFulfilled, next.Status, "the lapsed copy goes to the next in line")
	require.NotNil(t, next.CopyID)
	assert.Equal(t, d.copy.ID, *next.CopyID)
	assert.Equal(t, catalog.CopyReserved, d.copyStatus(t))

	expired, err = d.svc.ExpireHolds(ctx, day0.AddDate(0, 0, 19))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, second.ID, expired[0].ID)
	assert.Equal(t, catalog.CopyAvailable, d.copyStatus(t), "nobody left waiting")
}

func TestCancelHoldAfterReturnKeepsReservation(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)
	loan, err := d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)
	hold, err := d.svc.PlaceHold(ctx, d.item.ID, d.newPatron(t, "waiting@example.org").ID)
	require.NoError(t, err)

	_, err = d.svc.ReturnLoan(ctx, loan.ID, d.staff.ID)
	require.NoError(t, err)

	// The patron asked to cancel while the copy was still out.
	_, err = d.svc.CancelHold(ctx, hold.ID)
	assert.ErrorIs(t, err, circulation.ErrHoldNotPending)
	got, err := d.svc.GetHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.HoldFulfilled, got.Status)
	assert.Equal(t, catalog.CopyReserved, d.copyStatus(t))
}

func TestReturnRepricesUnpaidFine(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)
	loan, err := d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)

	flagged, err := d.svc.SweepOverdueLoans(ctx, loan.DueDate.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	fine, err := d.svc.AssessFine(ctx, d.patron.ID, loan.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(25), fine.AmountCents)

	d.clock.now = loan.DueDate.AddDate(0, 0, 6)
	_, err = d.svc.ReturnLoan(ctx, loan.ID, d.staff.ID)
	require.NoError(t, err)

	fines, err := d.svc.ListFines(ctx, d.patron.ID)
	require.NoError(t, err)
	require.Len(t, fines, 1)
	assert.Equal(t, fine.ID, fines[0].ID)
	assert.Equal(t, 6, fines[0].DaysLate)
	assert.Equal(t, int64(150), fines[0].AmountCents)
}

func TestReturnLeavesSettledFineAlone(t *testing.T) {
	ctx := context.Background()
	d := newDesk(t, nil)
	loan, err := d.svc.CheckoutCopy(ctx, d.copy.ID, d.patron.ID, d.staff.ID)
	require.NoError(t, err)
	fine, err := d.svc.AssessFine(ctx, d.patron.ID, loan.ID, 1)
	require.NoError(t, err)
	_, err = d.svc.PayFine(ctx, fine.ID)
	require.NoError(t, err)

	d.clock.now = loan.DueDate.AddDate(0, 0, 4)
	_, err = d.svc.ReturnLoan(ctx, loan.ID, d.staff.ID)
	require.NoError(t, err)

	fines, err := d.svc.ListFines(ctx, d.patron.ID)
	require.NoError(t, err)
	require.Len(t, fines, 1)
	assert.Equal(t, circulation.FinePaid, fines[0].Status)
	assert.Equal(t, 1, fines[0].DaysLate)
}
