// internal/circulation/domain.go
package circulation

import (
	"time"

	"github.com/google/uuid"

	"libraryflow/internal/catalog"
	"libraryflow/internal/events"
	"libraryflow/internal/membership"
	"libraryflow/internal/policy"
)

// LoanStatus is the state of a loan.
type LoanStatus string

const (
	LoanActive   LoanStatus = "ACTIVE"
	LoanOverdue  LoanStatus = "OVERDUE"
	LoanReturned LoanStatus = "RETURNED"
	LoanLost     LoanStatus = "LOST"
)

// Loan represents a copy checked out by a patron.
type Loan struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	CopyID     uuid.UUID  `json:"copy_id" db:"copy_id"`
	PatronID   uuid.UUID  `json:"patron_id" db:"patron_id"`
	StaffOutID uuid.UUID  `json:"staff_out_id" db:"staff_out_id"`
	StaffInID  *uuid.UUID `json:"staff_in_id,omitempty" db:"staff_in_id"`
	BranchID   uuid.UUID  `json:"branch_id" db:"branch_id"`
	LoanDate   time.Time  `json:"loan_date" db:"loan_date"`
	DueDate    time.Time  `json:"due_date" db:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
	Damaged    bool       `json:"damaged" db:"damaged"`
	Renewals   int        `json:"renewals" db:"renewals"`
	Version    int        `json:"version" db:"version"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
}

// NewLoan lends a copy to a patron at the copy's branch and records
// LoanCreated. The due date comes from the loan policy.
func NewLoan(rec events.Recorder, lp policy.LoanPolicy, patron *membership.Patron, cp *catalog.Copy, staffOutID uuid.UUID, now time.Time) *Loan {
	loan := &Loan{
		ID:         uuid.New(),
		CopyID:     cp.ID,
		PatronID:   patron.ID,
		StaffOutID: staffOutID,
		BranchID:   cp.BranchID,
		LoanDate:   now,
		DueDate:    lp.DueDate(now, patron, cp),
		Status:     LoanActive,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	rec.Record(events.LoanCreated{
		LoanID:     loan.ID,
		CopyID:     loan.CopyID,
		PatronID:   loan.PatronID,
		StaffOutID: loan.StaffOutID,
		BranchID:   loan.BranchID,
		LoanDate:   loan.LoanDate,
		DueDate:    loan.DueDate,
	})
	return loan
}

// IsOutstanding reports whether the copy has not come back yet.
func (l *Loan) IsOutstanding() bool {
	return l.Status == LoanActive || l.Status == LoanOverdue
}

// Renew restarts the loan period from today.
func (l *Loan) Renew(rec events.Recorder, lp policy.LoanPolicy, b policy.Borrower, c policy.Lendable, now time.Time) error {
	if l.Status != LoanActive {
		return ErrLoanNotActive
	}
	l.DueDate = lp.RenewalDueDate(b, c)
	l.Renewals++
	l.touch(now)
	rec.Record(events.LoanRenewed{LoanID: l.ID, DueDate: l.DueDate})
	return nil
}

// Return closes an active or overdue loan. The return date is set once.
func (l *Loan) Return(rec events.Recorder, staffInID uuid.UUID, now time.Time) error {
	if !l.IsOutstanding() {
		return ErrLoanNotOutstanding
	}
	returned := now
	l.ReturnDate = &returned
	l.StaffInID = &staffInID
	l.Status = LoanReturned
	l.touch(now)
	rec.Record(events.LoanReturned{
		LoanID:     l.ID,
		CopyID:     l.CopyID,
		PatronID:   l.PatronID,
		StaffInID:  staffInID,
		ReturnDate: returned,
	})
	return nil
}

// MarkOverdue flags an active loan whose due date has passed.
func (l *Loan) MarkOverdue(rec events.Recorder, now time.Time) error {
	if l.Status != LoanActive {
		return ErrLoanNotActive
	}
	daysLate := policy.DaysLate(l.DueDate, now)
	if daysLate == 0 {
		return ErrLoanNotDue
	}
	l.Status = LoanOverdue
	l.touch(now)
	rec.Record(events.LoanOverdue{
		LoanID:   l.ID,
		CopyID:   l.CopyID,
		PatronID: l.PatronID,
		DueDate:  l.DueDate,
		DaysLate: daysLate,
	})
	return nil
}

// MarkDamaged reports damage to the loaned copy. Lost loans cannot be
// damaged and damage is reported once.
func (l *Loan) MarkDamaged(rec events.Recorder, now time.Time) error {
	if l.Status == LoanLost {
		return ErrLoanLost
	}
	if l.Damaged {
		return ErrAlreadyDamaged
	}
	l.Damaged = true
	l.touch(now)
	rec.Record(events.LoanDamaged{LoanID: l.ID, CopyID: l.CopyID, PatronID: l.PatronID})
	return nil
}

// MarkLost declares an outstanding loan's copy lost.
func (l *Loan) MarkLost(rec events.Recorder, now time.Time) error {
	if !l.IsOutstanding() {
		return ErrLoanNotOutstanding
	}
	l.Status = LoanLost
	l.touch(now)
	rec.Record(events.LoanMarkedLost{LoanID: l.ID, CopyID: l.CopyID, PatronID: l.PatronID})
	return nil
}

func (l *Loan) touch(now time.Time) {
	l.Version++
	l.UpdatedAt = now
}

// HoldStatus is the state of a hold request.
type HoldStatus string

const (
	HoldPending   HoldStatus = "PENDING"
	HoldFulfilled HoldStatus = "FULFILLED"
	HoldExpired   HoldStatus = "EXPIRED"
	HoldCancelled HoldStatus = "CANCELLED"
)

// Hold is a patron's request for the next available copy of an item.
type Hold struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ItemID      uuid.UUID  `json:"item_id" db:"item_id"`
	PatronID    uuid.UUID  `json:"patron_id" db:"patron_id"`
	CopyID      *uuid.UUID `json:"copy_id,omitempty" db:"copy_id"`
	LoanID      *uuid.UUID `json:"loan_id,omitempty" db:"loan_id"`
	RequestDate time.Time  `json:"request_date" db:"request_date"`
	ExpiryDate  time.Time  `json:"expiry_date" db:"expiry_date"`
	Status      HoldStatus `json:"status" db:"status"`
	Version     int        `json:"version" db:"version"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// NewHold places a pending hold and records HoldPlaced.
func NewHold(rec events.Recorder, hp policy.HoldPolicy, itemID, patronID uuid.UUID, now time.Time) *Hold {
	h := &Hold{
		ID:          uuid.New(),
		ItemID:      itemID,
		PatronID:    patronID,
		RequestDate: now,
		ExpiryDate:  hp.ExpiryDate(now),
		Status:      HoldPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec.Record(events.HoldPlaced{
		HoldID:      h.ID,
		ItemID:      h.ItemID,
		PatronID:    h.PatronID,
		RequestDate: h.RequestDate,
		ExpiryDate:  h.ExpiryDate,
	})
	return h
}

// Fulfill sets copyID aside for the patron. ExpiryDate becomes the pickup
// deadline, one hold window from now.
func (h *Hold) Fulfill(rec events.Recorder, hp policy.HoldPolicy, copyID uuid.UUID, now time.Time) error {
	if h.Status != HoldPending {
		return ErrHoldNotPending
	}
	h.CopyID = &copyID
	h.ExpiryDate = hp.ExpiryDate(now)
	h.Status = HoldFulfilled
	h.touch(now)
	rec.Record(events.HoldFulfilled{HoldID: h.ID, ItemID: h.ItemID, PatronID: h.PatronID, CopyID: copyID})
	return nil
}

// Expire closes a pending hold whose window has passed.
func (h *Hold) Expire(rec events.Recorder, hp policy.HoldPolicy, now time.Time) error {
	if h.Status != HoldPending {
		return ErrHoldNotPending
	}
	if !hp.IsExpiredAt(h.RequestDate, now) {
		return ErrHoldNotExpired
	}
	h.Status = HoldExpired
	h.touch(now)
	rec.Record(events.HoldExpired{HoldID: h.ID, ItemID: h.ItemID, PatronID: h.PatronID})
	return nil
}

// Lapse expires a fulfilled hold whose copy was not picked up by ExpiryDate.
// The caller puts the copy back on the shelf.
func (h *Hold) Lapse(rec events.Recorder, now time.Time) error {
	if h.Status != HoldFulfilled {
		return ErrHoldNotFulfilled
	}
	if h.LoanID != nil {
		return ErrHoldHasLoan
	}
	if policy.DaysBetween(h.ExpiryDate, now) <= 0 {
		return ErrHoldNotExpired
	}
	h.Status = HoldExpired
	h.touch(now)
	rec.Record(events.HoldExpired{HoldID: h.ID, ItemID: h.ItemID, PatronID: h.PatronID, CopyID: h.CopyID})
	return nil
}

func (h *Hold) Cancel(rec events.Recorder, now time.Time) error {
	if h.Status != HoldPending {
		return ErrHoldNotPending
	}
	h.Status = HoldCancelled
	h.touch(now)
	rec.Record(events.HoldCancelled{HoldID: h.ID, ItemID: h.ItemID, PatronID: h.PatronID})
	return nil
}

// AttachLoan links the loan that picked up the reserved copy. The loan's own
// LoanCreated event covers it, so nothing is recorded.
func (h *Hold) AttachLoan(loanID uuid.UUID, now time.Time) error {
	if h.Status != HoldFulfilled {
		return ErrHoldNotFulfilled
	}
	if h.LoanID != nil {
		return ErrHoldHasLoan
	}
	h.LoanID = &loanID
	h.touch(now)
	return nil
}

func (h *Hold) touch(now time.Time) {
	h.Version++
	h.UpdatedAt = now
}

// FineStatus is the state of a fine.
type FineStatus string

const (
	FineUnpaid FineStatus = "UNPAID"
	FinePaid   FineStatus = "PAID"
	FineWaived FineStatus = "WAIVED"
)

// Fine is a charge for returning a loan late.
type Fine struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	PatronID    uuid.UUID  `json:"patron_id" db:"patron_id"`
	LoanID      uuid.UUID  `json:"loan_id" db:"loan_id"`
	DaysLate    int        `json:"days_late" db:"days_late"`
	AmountCents int64      `json:"amount_cents" db:"amount_cents"`
	Status      FineStatus `json:"status" db:"status"`
	SettledAt   *time.Time `json:"settled_at,omitempty" db:"settled_at"`
	Version     int        `json:"version" db:"version"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// NewFine assesses a fine priced by the fine policy and records FineAssessed.
func NewFine(rec events.Recorder, fp policy.FinePolicy, patronID, loanID uuid.UUID, daysLate int, now time.Time) (*Fine, error) {
	if daysLate <= 0 {
		return nil, ErrInvalidDaysLate
	}
	f := &Fine{
		ID:          uuid.New(),
		PatronID:    patronID,
		LoanID:      loanID,
		DaysLate:    daysLate,
		AmountCents: fp.Amount(daysLate),
		Status:      FineUnpaid,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	rec.Record(events.FineAssessed{
		FineID:      f.ID,
		PatronID:    f.PatronID,
		LoanID:      f.LoanID,
		DaysLate:    f.DaysLate,
		AmountCents: f.AmountCents,
	})
	return f, nil
}

// Reassess reprices an unpaid fine when the loan turned out later than it
// was when fined. A fine that already covers daysLate is left alone and
// nothing is recorded.
func (f *Fine) Reassess(rec events.Recorder, fp policy.FinePolicy, daysLate int, now time.Time) error {
	if f.Status != FineUnpaid {
		return ErrFineSettled
	}
	if daysLate <= f.DaysLate {
		return nil
	}
	f.DaysLate = daysLate
	f.AmountCents = fp.Amount(daysLate)
	f.Version++
	f.UpdatedAt = now
	rec.Record(events.FineReassessed{
		FineID:      f.ID,
		PatronID:    f.PatronID,
		LoanID:      f.LoanID,
		DaysLate:    f.DaysLate,
		AmountCents: f.AmountCents,
	})
	return nil
}

func (f *Fine) Pay(rec events.Recorder, now time.Time) error {
	if err := f.settle(FinePaid, now); err != nil {
		return err
	}
	rec.Record(events.FinePaid{FineID: f.ID, PatronID: f.PatronID})
	return nil
}

func (f *Fine) Waive(rec events.Recorder, now time.Time) error {
	if err := f.settle(FineWaived, now); err != nil {
		return err
	}
	rec.Record(events.FineWaived{FineID: f.ID, PatronID: f.PatronID})
	return nil
}

func (f *Fine) settle(status FineStatus, now time.Time) error {
	if f.Status != FineUnpaid {
		return ErrFineSettled
	}
	settled := now
	f.Status = status
	f.SettledAt = &settled
	f.Version++
	f.UpdatedAt = now
	return nil
}
