// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"libraryflow/internal/catalog"
	"libraryflow/internal/events"
	"libraryflow/internal/membership"
	"libraryflow/internal/policy"
)

// Clock returns the current time.
type Clock func() time.Time

// service implements the Service interface.
type service struct {
	repos    Repositories
	bus      *events.Bus
	policies Policies
	clock    Clock
	logger   *log.Logger
	desk     sync.Mutex
}

// NewService creates a new circulation service instance. The policies read
// the same clock as the service.
func NewService(repos Repositories, bus *events.Bus, policies Policies, clock Clock, logger *log.Logger) Service {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	policies.Loan.Now = clock
	policies.Hold.Now = clock
	return &service{
		repos:    repos,
		bus:      bus,
		policies: policies,
		clock:    clock,
		logger:   logger,
	}
}

// CheckoutCopy lends a copy to a patron. A reserved copy only goes to the
// patron whose hold reserved it, and the loan is linked to that hold.
func (s *service) CheckoutCopy(ctx context.Context, copyID, patronID, staffID uuid.UUID) (*Loan, error) {
	patron, err := s.eligiblePatron(ctx, patronID)
	if err != nil {
		return nil, err
	}
	if err := s.activeStaff(ctx, staffID); err != nil {
		return nil, err
	}

	c := events.NewCollector()
	loan, err := s.lend(ctx, c, copyID, patron, staffID)
	if err != nil {
		return nil, err
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return loan, nil
}

// lend moves the copy onto a new loan. Concurrent checkouts of one copy are
// serialized here so only the first of them finds it available.
func (s *service) lend(ctx context.Context, c *events.Collector, copyID uuid.UUID, patron *membership.Patron, staffID uuid.UUID) (*Loan, error) {
	s.desk.Lock()
	defer s.desk.Unlock()

	cp, err := s.loadCopy(ctx, copyID)
	if err != nil {
		return nil, err
	}

	var hold *Hold
	if cp.Status == catalog.CopyReserved {
		if hold, err = s.repos.Holds.FindFulfilledByCopy(ctx, cp.ID); err != nil {
			return nil, fmt.Errorf("find hold for copy: %w", err)
		}
		if hold == nil || hold.PatronID != patron.ID {
			return nil, ErrCopyReservedElsewhere
		}
	}

	now := s.clock()
	previous := cp.Status
	if err := cp.Lend(now); err != nil {
		return nil, err
	}
	loan := NewLoan(c, s.policies.Loan, patron, cp, staffID, now)

	if _, err := s.repos.Copies.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save copy: %w", err)
	}
	if loan, err = s.repos.Loans.Save(ctx, loan); err != nil {
		s.compensateCopy(ctx, cp, previous)
		return nil, fmt.Errorf("save loan: %w", err)
	}
	if hold != nil {
		if err := hold.AttachLoan(loan.ID, now); err != nil {
			return nil, err
		}
		if _, err := s.repos.Holds.Save(ctx, hold); err != nil {
			return nil, fmt.Errorf("save hold: %w", err)
		}
	}
	return loan, nil
}

// compensateCopy puts a copy back into its previous status after a failed
// checkout.
func (s *service) compensateCopy(ctx context.Context, cp *catalog.Copy, previous catalog.CopyStatus) {
	s.logger.Warn("compensating failed checkout", "copy_id", cp.ID, "status", previous)
	cp.Status = previous
	cp.Version++
	if _, err := s.repos.Copies.Save(ctx, cp); err != nil {
		s.logger.Error("compensate copy status", "copy_id", cp.ID, "err", err)
	}
}

// RenewLoan extends an active loan unless another patron is waiting.
func (s *service) RenewLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	patron, err := s.eligiblePatron(ctx, loan.PatronID)
	if err != nil {
		return nil, err
	}
	cp, err := s.loadCopy(ctx, loan.CopyID)
	if err != nil {
		return nil, err
	}
	pending, err := s.repos.Holds.FindPendingByItem(ctx, cp.ItemID)
	if err != nil {
		return nil, fmt.Errorf("find pending holds: %w", err)
	}
	if len(pending) > 0 {
		return nil, ErrItemOnHold
	}

	c := events.NewCollector()
	if err := loan.Renew(c, s.policies.Loan, patron, cp, s.clock()); err != nil {
		return nil, err
	}
	return s.saveLoan(ctx, c, loan)
}

// ReturnLoan checks a copy back in. The copy goes straight to the oldest
// pending hold on its item, and an unpaid fine for the loan is repriced to
// the days it actually came back late.
func (s *service) ReturnLoan(ctx context.Context, loanID, staffID uuid.UUID) (*Loan, error) {
	if err := s.activeStaff(ctx, staffID); err != nil {
		return nil, err
	}

	c := events.NewCollector()
	loan, err := s.checkIn(ctx, c, loanID, staffID)
	if err != nil {
		return nil, err
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return loan, nil
}

// checkIn runs the return under the desk lock, so the copy is reserved for a
// waiting patron before any checkout can see it available.
func (s *service) checkIn(ctx context.Context, c *events.Collector, loanID, staffID uuid.UUID) (*Loan, error) {
	s.desk.Lock()
	defer s.desk.Unlock()

	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	cp, err := s.loadCopy(ctx, loan.CopyID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if err := loan.Return(c, staffID, now); err != nil {
		return nil, err
	}
	if err := cp.Release(now); err != nil {
		return nil, err
	}
	if _, err := s.repos.Copies.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save copy: %w", err)
	}
	if loan, err = s.repos.Loans.Save(ctx, loan); err != nil {
		return nil, fmt.Errorf("save loan: %w", err)
	}
	if err := s.reassessFine(ctx, c, loan, now); err != nil {
		return nil, err
	}
	if _, err := s.offerToNextHold(ctx, c, cp, now); err != nil {
		return nil, err
	}
	return loan, nil
}

// reassessFine reprices the unpaid fine of a late loan. The overdue sweep
// fines a loan on its first late day; the return settles the real count.
func (s *service) reassessFine(ctx context.Context, c *events.Collector, loan *Loan, now time.Time) error {
	daysLate := policy.DaysLate(loan.DueDate, now)
	if daysLate == 0 {
		return nil
	}
	fines, err := s.repos.Fines.FindByPatron(ctx, loan.PatronID)
	if err != nil {
		return fmt.Errorf("list fines: %w", err)
	}
	for _, fine := range fines {
		if fine.LoanID != loan.ID || fine.Status != FineUnpaid || fine.DaysLate >= daysLate {
			continue
		}
		if err := fine.Reassess(c, s.policies.Fine, daysLate, now); err != nil {
			return err
		}
		if _, err := s.repos.Fines.Save(ctx, fine); err != nil {
			return fmt.Errorf("save fine: %w", err)
		}
		s.logger.Info("fine reassessed", "fine_id", fine.ID, "loan_id", loan.ID, "days_late", daysLate)
	}
	return nil
}

func (s *service) MarkLoanDamaged(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	c := events.NewCollector()
	if err := loan.MarkDamaged(c, s.clock()); err != nil {
		return nil, err
	}
	return s.saveLoan(ctx, c, loan)
}

// MarkLoanLost declares the loaned copy lost, for the loan and the copy.
func (s *service) MarkLoanLost(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	cp, err := s.loadCopy(ctx, loan.CopyID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	c := events.NewCollector()
	if err := loan.MarkLost(c, now); err != nil {
		return nil, err
	}
	if err := cp.MarkLost(now); err != nil {
		return nil, err
	}
	if _, err := s.repos.Copies.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save copy: %w", err)
	}
	return s.saveLoan(ctx, c, loan)
}

// ProcessOverdueLoan flags a loan past its due date. The fine is assessed by
// the LoanOverdue handler.
func (s *service) ProcessOverdueLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	c := events.NewCollector()
	if err := loan.MarkOverdue(c, s.clock()); err != nil {
		return nil, err
	}
	return s.saveLoan(ctx, c, loan)
}

// SweepOverdueLoans flags every active loan at least one day late as of now.
// Each loan is its own unit of work; the first failure stops the sweep.
func (s *service) SweepOverdueLoans(ctx context.Context, now time.Time) ([]*Loan, error) {
	due, err := s.repos.Loans.FindDue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("find due loans: %w", err)
	}

	var flagged []*Loan
	for _, loan := range due {
		c := events.NewCollector()
		if err := loan.MarkOverdue(c, now); err != nil {
			// Due earlier today: not a full day late yet.
			continue
		}
		saved, err := s.saveLoan(ctx, c, loan)
		if err != nil {
			return flagged, err
		}
		flagged = append(flagged, saved)
	}
	return flagged, nil
}

func (s *service) saveLoan(ctx context.Context, c *events.Collector, loan *Loan) (*Loan, error) {
	loan, err := s.repos.Loans.Save(ctx, loan)
	if err != nil {
		return nil, fmt.Errorf("save loan: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *service) GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error) {
	loan, err := s.repos.Loans.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get loan: %w", err)
	}
	if loan == nil {
		return nil, ErrLoanNotFound
	}
	return loan, nil
}

// PlaceHold queues a patron for the next copy of an item.
func (s *service) PlaceHold(ctx context.Context, itemID, patronID uuid.UUID) (*Hold, error) {
	patron, err := s.eligiblePatron(ctx, patronID)
	if err != nil {
		return nil, err
	}
	item, err := s.repos.Items.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return nil, catalog.ErrItemNotFound
	}
	pending, err := s.repos.Holds.FindPendingByItem(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("find pending holds: %w", err)
	}
	for _, h := range pending {
		if h.PatronID == patron.ID {
			return nil, ErrDuplicateHold
		}
	}

	c := events.NewCollector()
	hold := NewHold(c, s.policies.Hold, item.ID, patron.ID, s.clock())
	return s.saveHold(ctx, c, hold)
}

func (s *service) CancelHold(ctx context.Context, holdID uuid.UUID) (*Hold, error) {
	c := events.NewCollector()
	hold, err := s.withHold(ctx, holdID, func(h *Hold) error {
		return h.Cancel(c, s.clock())
	})
	if err != nil {
		return nil, err
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return hold, nil
}

// withHold reloads a hold under the desk lock, applies a transition and
// saves it. A hold read earlier may have been fulfilled by a return since.
func (s *service) withHold(ctx context.Context, id uuid.UUID, apply func(*Hold) error) (*Hold, error) {
	s.desk.Lock()
	defer s.desk.Unlock()

	hold, err := s.GetHold(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(hold); err != nil {
		return nil, err
	}
	if hold, err = s.repos.Holds.Save(ctx, hold); err != nil {
		return nil, fmt.Errorf("save hold: %w", err)
	}
	return hold, nil
}

// ProcessHoldsForReturnedCopy reserves a returned copy for the oldest pending
// hold on its item. It returns nil, nil when nobody is waiting or the copy is
// no longer available.
func (s *service) ProcessHoldsForReturnedCopy(ctx context.Context, copyID uuid.UUID) (*Hold, error) {
	c := events.NewCollector()
	hold, err := s.reserveCopy(ctx, c, copyID)
	if err != nil || hold == nil {
		return nil, err
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return hold, nil
}

func (s *service) reserveCopy(ctx context.Context, c *events.Collector, copyID uuid.UUID) (*Hold, error) {
	s.desk.Lock()
	defer s.desk.Unlock()

	cp, err := s.loadCopy(ctx, copyID)
	if err != nil {
		return nil, err
	}
	if cp.Status != catalog.CopyAvailable {
		return nil, nil
	}
	return s.offerToNextHold(ctx, c, cp, s.clock())
}

// offerToNextHold sets an available copy aside for the oldest pending hold on
// its item, or leaves it on the shelf when nobody is waiting. Callers hold
// the desk lock.
func (s *service) offerToNextHold(ctx context.Context, c *events.Collector, cp *catalog.Copy, now time.Time) (*Hold, error) {
	pending, err := s.repos.Holds.FindPendingByItem(ctx, cp.ItemID)
	if err != nil {
		return nil, fmt.Errorf("find pending holds: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	hold := pending[0]
	if err := hold.Fulfill(c, s.policies.Hold, cp.ID, now); err != nil {
		return nil, err
	}
	if err := cp.Reserve(now); err != nil {
		return nil, err
	}
	if _, err := s.repos.Copies.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save copy: %w", err)
	}
	if hold, err = s.repos.Holds.Save(ctx, hold); err != nil {
		return nil, fmt.Errorf("save hold: %w", err)
	}
	s.logger.Debug("copy reserved", "copy_id", cp.ID, "hold_id", hold.ID, "pickup_by", hold.ExpiryDate)
	return hold, nil
}

// ExpireHolds closes every pending hold whose window has passed as of now,
// then lapses reservations nobody picked up in time. A lapsed copy is offered
// to the next pending hold on its item or goes back on the shelf.
func (s *service) ExpireHolds(ctx context.Context, now time.Time) ([]*Hold, error) {
	pending, err := s.repos.Holds.FindPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("find pending holds: %w", err)
	}

	var expired []*Hold
	for _, p := range pending {
		if !s.policies.Hold.IsExpiredAt(p.RequestDate, now) {
			continue
		}
		c := events.NewCollector()
		hold, err := s.withHold(ctx, p.ID, func(h *Hold) error {
			return h.Expire(c, s.policies.Hold, now)
		})
		if errors.Is(err, ErrHoldNotPending) {
			// Fulfilled or cancelled since the scan.
			continue
		}
		if err != nil {
			return expired, err
		}
		if err := s.bus.Flush(ctx, c); err != nil {
			return expired, err
		}
		expired = append(expired, hold)
	}

	shelf, err := s.repos.Holds.FindAwaitingPickup(ctx)
	if err != nil {
		return expired, fmt.Errorf("find holds awaiting pickup: %w", err)
	}
	for _, p := range shelf {
		c := events.NewCollector()
		hold, err := s.lapse(ctx, c, p.ID, now)
		if err != nil {
			return expired, err
		}
		if hold == nil {
			continue
		}
		if err := s.bus.Flush(ctx, c); err != nil {
			return expired, err
		}
		expired = append(expired, hold)
	}
	return expired, nil
}

// lapse expires an uncollected reservation and passes its copy on. It
// returns nil, nil when the hold was picked up or is still inside its pickup
// window.
func (s *service) lapse(ctx context.Context, c *events.Collector, holdID uuid.UUID, now time.Time) (*Hold, error) {
	s.desk.Lock()
	defer s.desk.Unlock()

	hold, err := s.GetHold(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if err := hold.Lapse(c, now); err != nil {
		// Picked up meanwhile, or still inside its pickup window.
		return nil, nil
	}
	cp, err := s.loadCopy(ctx, *hold.CopyID)
	if err != nil {
		return nil, err
	}
	if err := cp.Unreserve(now); err != nil {
		return nil, err
	}

	if hold, err = s.repos.Holds.Save(ctx, hold); err != nil {
		return nil, fmt.Errorf("save hold: %w", err)
	}
	if _, err := s.repos.Copies.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save copy: %w", err)
	}
	if _, err := s.offerToNextHold(ctx, c, cp, now); err != nil {
		return nil, err
	}
	s.logger.Info("reservation lapsed", "hold_id", hold.ID, "copy_id", cp.ID, "patron_id", hold.PatronID)
	return hold, nil
}

func (s *service) saveHold(ctx context.Context, c *events.Collector, hold *Hold) (*Hold, error) {
	hold, err := s.repos.Holds.Save(ctx, hold)
	if err != nil {
		return nil, fmt.Errorf("save hold: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return hold, nil
}

func (s *service) GetHold(ctx context.Context, id uuid.UUID) (*Hold, error) {
	hold, err := s.repos.Holds.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get hold: %w", err)
	}
	if hold == nil {
		return nil, ErrHoldNotFound
	}
	return hold, nil
}

// AssessFine charges a patron for a late loan.
func (s *service) AssessFine(ctx context.Context, patronID, loanID uuid.UUID, daysLate int) (*Fine, error) {
	if _, err := s.patron(ctx, patronID); err != nil {
		return nil, err
	}
	if _, err := s.GetLoan(ctx, loanID); err != nil {
		return nil, err
	}

	c := events.NewCollector()
	fine, err := NewFine(c, s.policies.Fine, patronID, loanID, daysLate, s.clock())
	if err != nil {
		return nil, err
	}
	return s.saveFine(ctx, c, fine)
}

func (s *service) PayFine(ctx context.Context, fineID uuid.UUID) (*Fine, error) {
	return s.settleFine(ctx, fineID, (*Fine).Pay)
}

func (s *service) WaiveFine(ctx context.Context, fineID uuid.UUID) (*Fine, error) {
	return s.settleFine(ctx, fineID, (*Fine).Waive)
}

func (s *service) settleFine(ctx context.Context, fineID uuid.UUID, apply func(*Fine, events.Recorder, time.Time) error) (*Fine, error) {
	fine, err := s.repos.Fines.GetByID(ctx, fineID)
	if err != nil {
		return nil, fmt.Errorf("get fine: %w", err)
	}
	if fine == nil {
		return nil, ErrFineNotFound
	}
	c := events.NewCollector()
	if err := apply(fine, c, s.clock()); err != nil {
		return nil, err
	}
	return s.saveFine(ctx, c, fine)
}

func (s *service) saveFine(ctx context.Context, c *events.Collector, fine *Fine) (*Fine, error) {
	fine, err := s.repos.Fines.Save(ctx, fine)
	if err != nil {
		return nil, fmt.Errorf("save fine: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return fine, nil
}

func (s *service) ListFines(ctx context.Context, patronID uuid.UUID) ([]*Fine, error) {
	if _, err := s.patron(ctx, patronID); err != nil {
		return nil, err
	}
	fines, err := s.repos.Fines.FindByPatron(ctx, patronID)
	if err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	return fines, nil
}

func (s *service) patron(ctx context.Context, id uuid.UUID) (*membership.Patron, error) {
	patron, err := s.repos.Patrons.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get patron: %w", err)
	}
	if patron == nil {
		return nil, membership.ErrPatronNotFound
	}
	return patron, nil
}

// eligiblePatron loads a patron who is active and owes nothing.
func (s *service) eligiblePatron(ctx context.Context, id uuid.UUID) (*membership.Patron, error) {
	patron, err := s.patron(ctx, id)
	if err != nil {
		return nil, err
	}
	if !patron.CanBorrow() {
		return nil, ErrPatronNotEligible
	}
	fines, err := s.repos.Fines.FindByPatron(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list fines: %w", err)
	}
	for _, f := range fines {
		if f.Status == FineUnpaid {
			return nil, ErrOutstandingFines
		}
	}
	return patron, nil
}

func (s *service) activeStaff(ctx context.Context, id uuid.UUID) error {
	staff, err := s.repos.Staff.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get staff: %w", err)
	}
	if staff == nil {
		return membership.ErrStaffNotFound
	}
	if staff.Status != membership.StaffActive {
		return ErrStaffNotEligible
	}
	return nil
}

func (s *service) loadCopy(ctx context.Context, id uuid.UUID) (*catalog.Copy, error) {
	cp, err := s.repos.Copies.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get copy: %w", err)
	}
	if cp == nil {
		return nil, catalog.ErrCopyNotFound
	}
	return cp, nil
}
