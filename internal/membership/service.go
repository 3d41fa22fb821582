// internal/membership/service.go
package membership

import (
	"context"

	"github.com/google/uuid"

	"libraryflow/internal/storage"
)

// Service defines the interface for the membership service.
type Service interface {
	RegisterPatron(ctx context.Context, email, name, tier string) (*Patron, error)
	GetPatron(ctx context.Context, id uuid.UUID) (*Patron, error)
	ListPatrons(ctx context.Context) ([]*Patron, error)
	ChangePatronTier(ctx context.Context, id uuid.UUID, tier string) (*Patron, error)
	SuspendPatron(ctx context.Context, id uuid.UUID) (*Patron, error)
	ReinstatePatron(ctx context.Context, id uuid.UUID) (*Patron, error)

	HireStaff(ctx context.Context, in HireStaffInput) (*Staff, error)
	AuthenticateStaff(ctx context.Context, email, password string) (*Staff, error)
	GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error)
	ListStaff(ctx context.Context) ([]*Staff, error)
	AssignStaffToBranch(ctx context.Context, staffID, branchID uuid.UUID) (*Staff, error)
	DeactivateStaff(ctx context.Context, id uuid.UUID) (*Staff, error)
	DeleteStaff(ctx context.Context, id uuid.UUID) error

	OpenBranch(ctx context.Context, name, address string) (*Branch, error)
	GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error)
	ListBranches(ctx context.Context) ([]*Branch, error)
	AssignBranchManager(ctx context.Context, branchID, staffID uuid.UUID) (*Branch, error)
	CloseBranch(ctx context.Context, id uuid.UUID) (*Branch, error)
	DeleteBranch(ctx context.Context, id uuid.UUID) error
}

// HireStaffInput holds the fields of a new staff account.
type HireStaffInput struct {
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
	BranchID *uuid.UUID `json:"branch_id"`
	Password string     `json:"password"`
}

type PatronRepository interface {
	storage.Repository[Patron]
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type StaffRepository interface {
	storage.Repository[Staff]
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// FindByEmail returns nil, nil when no staff member has the email.
	FindByEmail(ctx context.Context, email string) (*Staff, error)
}

type BranchRepository interface {
	storage.Repository[Branch]
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// Repositories groups the ports the membership service needs.
type Repositories struct {
	Patrons  PatronRepository
	Staff    StaffRepository
	Branches BranchRepository
}
