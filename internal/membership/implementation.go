// internal/membership/implementation.go
package membership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"libraryflow/internal/events"
)

// Clock returns the current time.
type Clock func() time.Time

// service implements the Service interface.
type service struct {
	repos       Repositories
	bus         *events.Bus
	rateLimiter *rate.Limiter
	clock       Clock
}

// NewService creates a new membership service instance. The limiter guards
// patron registration and staff login; nil disables limiting.
func NewService(repos Repositories, bus *events.Bus, limiter *rate.Limiter, clock Clock) Service {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repos:       repos,
		bus:         bus,
		rateLimiter: limiter,
		clock:       clock,
	}
}

// RegisterPatron creates a new patron with a unique email.
func (s *service) RegisterPatron(ctx context.Context, email, name, tier string) (*Patron, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	t, err := ParseTier(tier)
	if err != nil {
		return nil, err
	}
	exists, err := s.repos.Patrons.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check patron email: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}

	c := events.NewCollector()
	patron, err := NewPatron(c, email, name, t, s.clock())
	if err != nil {
		return nil, err
	}
	if patron, err = s.repos.Patrons.Save(ctx, patron); err != nil {
		return nil, fmt.Errorf("save patron: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return patron, nil
}

// GetPatron retrieves a patron by their ID.
func (s *service) GetPatron(ctx context.Context, id uuid.UUID) (*Patron, error) {
	patron, err := s.repos.Patrons.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get patron: %w", err)
	}
	if patron == nil {
		return nil, ErrPatronNotFound
	}
	return patron, nil
}

func (s *service) ListPatrons(ctx context.Context) ([]*Patron, error) {
	patrons, err := s.repos.Patrons.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patrons: %w", err)
	}
	return patrons, nil
}

// ChangePatronTier updates a patron's membership tier.
func (s *service) ChangePatronTier(ctx context.Context, id uuid.UUID, tier string) (*Patron, error) {
	t, err := ParseTier(tier)
	if err != nil {
		return nil, err
	}
	return s.updatePatron(ctx, id, func(p *Patron, c events.Recorder, now time.Time) error {
		return p.ChangeTier(c, t, now)
	})
}

func (s *service) SuspendPatron(ctx context.Context, id uuid.UUID) (*Patron, error) {
	return s.updatePatron(ctx, id, (*Patron).Suspend)
}

func (s *service) ReinstatePatron(ctx context.Context, id uuid.UUID) (*Patron, error) {
	return s.updatePatron(ctx, id, (*Patron).Reinstate)
}

func (s *service) updatePatron(ctx context.Context, id uuid.UUID, apply func(*Patron, events.Recorder, time.Time) error) (*Patron, error) {
	patron, err := s.GetPatron(ctx, id)
	if err != nil {
		return nil, err
	}
	c := events.NewCollector()
	if err := apply(patron, c, s.clock()); err != nil {
		return nil, err
	}
	if patron, err = s.repos.Patrons.Save(ctx, patron); err != nil {
		return nil, fmt.Errorf("save patron: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return patron, nil
}

// HireStaff creates a staff account with an Argon2id password hash.
func (s *service) HireStaff(ctx context.Context, in HireStaffInput) (*Staff, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	exists, err := s.repos.Staff.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check staff email: %w", err)
	}
	if exists {
		return nil, ErrDuplicateEmail
	}
	if in.BranchID != nil {
		if _, err := s.openBranch(ctx, *in.BranchID); err != nil {
			return nil, err
		}
	}
	passwordHash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	c := events.NewCollector()
	staff, err := NewStaff(c, in.Name, email, role, in.BranchID, s.clock())
	if err != nil {
		return nil, err
	}
	staff.PasswordHash = passwordHash
	if staff, err = s.repos.Staff.Save(ctx, staff); err != nil {
		return nil, fmt.Errorf("save staff: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return staff, nil
}

// AuthenticateStaff verifies a staff member's credentials and returns the
// staff member if successful.
func (s *service) AuthenticateStaff(ctx context.Context, email, password string) (*Staff, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}

	staff, err := s.repos.Staff.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if staff == nil || staff.Status != StaffActive {
		return nil, ErrInvalidCredentials
	}

	ok, err := verifyPassword(password, staff.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return staff, nil
}

func (s *service) GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	staff, err := s.repos.Staff.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}
	if staff == nil {
		return nil, ErrStaffNotFound
	}
	return staff, nil
}

func (s *service) ListStaff(ctx context.Context) ([]*Staff, error) {
	staff, err := s.repos.Staff.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	return staff, nil
}

// AssignStaffToBranch moves a staff member to an open branch.
func (s *service) AssignStaffToBranch(ctx context.Context, staffID, branchID uuid.UUID) (*Staff, error) {
	if _, err := s.openBranch(ctx, branchID); err != nil {
		return nil, err
	}
	return s.updateStaff(ctx, staffID, func(st *Staff, c events.Recorder, now time.Time) error {
		return st.AssignToBranch(c, branchID, now)
	})
}

func (s *service) DeactivateStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.updateStaff(ctx, id, (*Staff).Deactivate)
}

func (s *service) updateStaff(ctx context.Context, id uuid.UUID, apply func(*Staff, events.Recorder, time.Time) error) (*Staff, error) {
	staff, err := s.GetStaff(ctx, id)
	if err != nil {
		return nil, err
	}
	c := events.NewCollector()
	if err := apply(staff, c, s.clock()); err != nil {
		return nil, err
	}
	if staff, err = s.repos.Staff.Save(ctx, staff); err != nil {
		return nil, fmt.Errorf("save staff: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return staff, nil
}

// DeleteStaff removes a deactivated staff account.
func (s *service) DeleteStaff(ctx context.Context, id uuid.UUID) error {
	staff, err := s.GetStaff(ctx, id)
	if err != nil {
		return err
	}
	if staff.Status != StaffInactive {
		return ErrStaffStillActive
	}
	if err := s.repos.Staff.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete staff: %w", err)
	}
	return nil
}

// OpenBranch registers a branch with a unique name.
func (s *service) OpenBranch(ctx context.Context, name, address string) (*Branch, error) {
	exists, err := s.repos.Branches.ExistsByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("check branch name: %w", err)
	}
	if exists {
		return nil, ErrDuplicateBranchName
	}

	c := events.NewCollector()
	branch, err := NewBranch(c, name, address, s.clock())
	if err != nil {
		return nil, err
	}
	if branch, err = s.repos.Branches.Save(ctx, branch); err != nil {
		return nil, fmt.Errorf("save branch: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return branch, nil
}

func (s *service) GetBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	branch, err := s.repos.Branches.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get branch: %w", err)
	}
	if branch == nil {
		return nil, ErrBranchNotFound
	}
	return branch, nil
}

func (s *service) openBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	branch, err := s.GetBranch(ctx, id)
	if err != nil {
		return nil, err
	}
	if branch.Status != BranchActive {
		return nil, ErrBranchClosed
	}
	return branch, nil
}

func (s *service) ListBranches(ctx context.Context) ([]*Branch, error) {
	branches, err := s.repos.Branches.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	return branches, nil
}

// AssignBranchManager records the new manager. Moving the manager's own
// branch assignment happens in the ManagerAssignedToBranch handler.
func (s *service) AssignBranchManager(ctx context.Context, branchID, staffID uuid.UUID) (*Branch, error) {
	branch, err := s.GetBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}
	staff, err := s.GetStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}

	c := events.NewCollector()
	if err := branch.AssignManager(c, staff, s.clock()); err != nil {
		return nil, err
	}
	if branch, err = s.repos.Branches.Save(ctx, branch); err != nil {
		return nil, fmt.Errorf("save branch: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return branch, nil
}

func (s *service) CloseBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	branch, err := s.GetBranch(ctx, id)
	if err != nil {
		return nil, err
	}
	c := events.NewCollector()
	if err := branch.Close(c, s.clock()); err != nil {
		return nil, err
	}
	if branch, err = s.repos.Branches.Save(ctx, branch); err != nil {
		return nil, fmt.Errorf("save branch: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return branch, nil
}

// DeleteBranch removes a closed branch.
func (s *service) DeleteBranch(ctx context.Context, id uuid.UUID) error {
	branch, err := s.GetBranch(ctx, id)
	if err != nil {
		return err
	}
	if branch.Status != BranchClosed {
		return ErrBranchStillOpen
	}
	if err := s.repos.Branches.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	return nil
}
