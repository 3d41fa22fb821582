// internal/circulation/service.go
package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"libraryflow/internal/catalog"
	"libraryflow/internal/membership"
	"libraryflow/internal/policy"
	"libraryflow/internal/storage"
)

// Service defines the interface for the circulation service.
type Service interface {
	CheckoutCopy(ctx context.Context, copyID, patronID, staffID uuid.UUID) (*Loan, error)
	RenewLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error)
	ReturnLoan(ctx context.Context, loanID, staffID uuid.UUID) (*Loan, error)
	MarkLoanDamaged(ctx context.Context, loanID uuid.UUID) (*Loan, error)
	MarkLoanLost(ctx context.Context, loanID uuid.UUID) (*Loan, error)
	ProcessOverdueLoan(ctx context.Context, loanID uuid.UUID) (*Loan, error)
	SweepOverdueLoans(ctx context.Context, now time.Time) ([]*Loan, error)
	GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error)

	PlaceHold(ctx context.Context, itemID, patronID uuid.UUID) (*Hold, error)
	CancelHold(ctx context.Context, holdID uuid.UUID) (*Hold, error)
	ProcessHoldsForReturnedCopy(ctx context.Context, copyID uuid.UUID) (*Hold, error)
	ExpireHolds(ctx context.Context, now time.Time) ([]*Hold, error)
	GetHold(ctx context.Context, id uuid.UUID) (*Hold, error)

	AssessFine(ctx context.Context, patronID, loanID uuid.UUID, daysLate int) (*Fine, error)
	PayFine(ctx context.Context, fineID uuid.UUID) (*Fine, error)
	WaiveFine(ctx context.Context, fineID uuid.UUID) (*Fine, error)
	ListFines(ctx context.Context, patronID uuid.UUID) ([]*Fine, error)
}

type LoanRepository interface {
	storage.Repository[Loan]
	// FindActiveByCopy returns the outstanding loan of a copy, or nil, nil.
	FindActiveByCopy(ctx context.Context, copyID uuid.UUID) (*Loan, error)
	// FindDue returns active loans due before the given instant.
	FindDue(ctx context.Context, before time.Time) ([]*Loan, error)
}

type HoldRepository interface {
	storage.Repository[Hold]
	// FindPendingByItem returns pending holds on an item, oldest request
	// first; equal request dates keep the order the holds were placed in.
	FindPendingByItem(ctx context.Context, itemID uuid.UUID) ([]*Hold, error)
	FindPending(ctx context.Context) ([]*Hold, error)
	// FindFulfilledByCopy returns the fulfilled hold reserving a copy, or nil, nil.
	FindFulfilledByCopy(ctx context.Context, copyID uuid.UUID) (*Hold, error)
	// FindAwaitingPickup returns fulfilled holds whose copy has not been
	// lent yet.
	FindAwaitingPickup(ctx context.Context) ([]*Hold, error)
}

type FineRepository interface {
	storage.Repository[Fine]
	FindByPatron(ctx context.Context, patronID uuid.UUID) ([]*Fine, error)
}

// Repositories groups the ports the circulation service needs, including the
// catalog and membership ports it reads and updates copies through.
type Repositories struct {
	Loans   LoanRepository
	Holds   HoldRepository
	Fines   FineRepository
	Items   catalog.ItemRepository
	Copies  catalog.CopyRepository
	Patrons membership.PatronRepository
	Staff   membership.StaffRepository
}

// Policies parameterizes loan periods, hold windows and fines.
type Policies struct {
	Loan policy.LoanPolicy
	Hold policy.HoldPolicy
	Fine policy.FinePolicy
}

// DefaultPolicies returns the standard library rules.
func DefaultPolicies() Policies {
	return Policies{
		Loan: policy.DefaultLoanPolicy(),
		Hold: policy.DefaultHoldPolicy(),
		Fine: policy.DefaultFinePolicy(),
	}
}
