package events

import (
	"time"

	"github.com/google/uuid"
)

// LoanCreated is recorded when a copy is checked out to a patron.
type LoanCreated struct {
	LoanID     uuid.UUID `json:"loan_id"`
	CopyID     uuid.UUID `json:"copy_id"`
	PatronID   uuid.UUID `json:"patron_id"`
	StaffOutID uuid.UUID `json:"staff_out_id"`
	BranchID   uuid.UUID `json:"branch_id"`
	LoanDate   time.Time `json:"loan_date"`
	DueDate    time.Time `json:"due_date"`
}

func (LoanCreated) Kind() Kind { return KindLoanCreated }
func (e LoanCreated) AggregateID() uuid.UUID { return e.LoanID }

// LoanRenewed is recorded when a loan's due date is pushed out.
type LoanRenewed struct {
	LoanID  uuid.UUID `json:"loan_id"`
	DueDate time.Time `json:"due_date"`
}

func (LoanRenewed) Kind() Kind { return KindLoanRenewed }
func (e LoanRenewed) AggregateID() uuid.UUID { return e.LoanID }

// LoanReturned is recorded when a copy comes back.
type LoanReturned struct {
	LoanID     uuid.UUID `json:"loan_id"`
	CopyID     uuid.UUID `json:"copy_id"`
	PatronID   uuid.UUID `json:"patron_id"`
	StaffInID  uuid.UUID `json:"staff_in_id"`
	ReturnDate time.Time `json:"return_date"`
}

func (LoanReturned) Kind() Kind { return KindLoanReturned }
func (e LoanReturned) AggregateID() uuid.UUID { return e.LoanID }

// LoanOverdue is recorded when a loan passes its due date unreturned.
type LoanOverdue struct {
	LoanID   uuid.UUID `json:"loan_id"`
	CopyID   uuid.UUID `json:"copy_id"`
	PatronID uuid.UUID `json:"patron_id"`
	DueDate  time.Time `json:"due_date"`
	DaysLate int       `json:"days_late"`
}

func (LoanOverdue) Kind() Kind { return KindLoanOverdue }
func (e LoanOverdue) AggregateID() uuid.UUID { return e.LoanID }

// LoanDamaged is recorded when a loaned copy is reported damaged.
type LoanDamaged struct {
	LoanID   uuid.UUID `json:"loan_id"`
	CopyID   uuid.UUID `json:"copy_id"`
	PatronID uuid.UUID `json:"patron_id"`
}

func (LoanDamaged) Kind() Kind { return KindLoanDamaged }
func (e LoanDamaged) AggregateID() uuid.UUID { return e.LoanID }

// LoanMarkedLost is recorded when a loaned copy is declared lost.
type LoanMarkedLost struct {
	LoanID   uuid.UUID `json:"loan_id"`
	CopyID   uuid.UUID `json:"copy_id"`
	PatronID uuid.UUID `json:"patron_id"`
}

func (LoanMarkedLost) Kind() Kind { return KindLoanMarkedLost }
func (e LoanMarkedLost) AggregateID() uuid.UUID { return e.LoanID }

// HoldPlaced is recorded when a patron requests an item.
type HoldPlaced struct {
	HoldID      uuid.UUID `json:"hold_id"`
	ItemID      uuid.UUID `json:"item_id"`
	PatronID    uuid.UUID `json:"patron_id"`
	RequestDate time.Time `json:"request_date"`
	ExpiryDate  time.Time `json:"expiry_date"`
}

func (HoldPlaced) Kind() Kind { return KindHoldPlaced }
func (e HoldPlaced) AggregateID() uuid.UUID { return e.HoldID }

// HoldFulfilled is recorded when a returned copy is set aside for a hold.
type HoldFulfilled struct {
	HoldID   uuid.UUID `json:"hold_id"`
	ItemID   uuid.UUID `json:"item_id"`
	PatronID uuid.UUID `json:"patron_id"`
	CopyID   uuid.UUID `json:"copy_id"`
}

func (HoldFulfilled) Kind() Kind { return KindHoldFulfilled }
func (e HoldFulfilled) AggregateID() uuid.UUID { return e.HoldID }

// HoldExpired is recorded when a pending hold outlives its window, or when a
// reserved copy is not picked up in time. CopyID is set in the second case.
type HoldExpired struct {
	HoldID   uuid.UUID  `json:"hold_id"`
	ItemID   uuid.UUID  `json:"item_id"`
	PatronID uuid.UUID  `json:"patron_id"`
	CopyID   *uuid.UUID `json:"copy_id,omitempty"`
}

func (HoldExpired) Kind() Kind { return KindHoldExpired }
func (e HoldExpired) AggregateID() uuid.UUID { return e.HoldID }

// HoldCancelled is recorded when a patron withdraws a pending hold.
type HoldCancelled struct {
	HoldID   uuid.UUID `json:"hold_id"`
	ItemID   uuid.UUID `json:"item_id"`
	PatronID uuid.UUID `json:"patron_id"`
}

func (HoldCancelled) Kind() Kind { return KindHoldCancelled }
func (e HoldCancelled) AggregateID() uuid.UUID { return e.HoldID }

// FineAssessed is recorded when a patron is charged for a late loan.
type FineAssessed struct {
	FineID      uuid.UUID `json:"fine_id"`
	PatronID    uuid.UUID `json:"patron_id"`
	LoanID      uuid.UUID `json:"loan_id"`
	DaysLate    int       `json:"days_late"`
	AmountCents int64     `json:"amount_cents"`
}

func (FineAssessed) Kind() Kind { return KindFineAssessed }
func (e FineAssessed) AggregateID() uuid.UUID { return e.FineID }

// FineReassessed is recorded when an unpaid fine is repriced because the loan
// came back later than it was when first fined.
type FineReassessed struct {
	FineID      uuid.UUID `json:"fine_id"`
	PatronID    uuid.UUID `json:"patron_id"`
	LoanID      uuid.UUID `json:"loan_id"`
	DaysLate    int       `json:"days_late"`
	AmountCents int64     `json:"amount_cents"`
}

func (FineReassessed) Kind() Kind { return KindFineReassessed }
func (e FineReassessed) AggregateID() uuid.UUID { return e.FineID }

// FinePaid is recorded when a fine is settled.
type FinePaid struct {
	FineID   uuid.UUID `json:"fine_id"`
	PatronID uuid.UUID `json:"patron_id"`
}

func (FinePaid) Kind() Kind { return KindFinePaid }
func (e FinePaid) AggregateID() uuid.UUID { return e.FineID }

// FineWaived is recorded when staff forgive a fine.
type FineWaived struct {
	FineID   uuid.UUID `json:"fine_id"`
	PatronID uuid.UUID `json:"patron_id"`
}

func (FineWaived) Kind() Kind { return KindFineWaived }
func (e FineWaived) AggregateID() uuid.UUID { return e.FineID }
