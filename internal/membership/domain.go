// internal/membership/domain.go
package membership

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"libraryflow/internal/events"
)

// Tier is a patron's membership level.
type Tier string

const (
	TierRegular Tier = "regular"
	TierPremium Tier = "premium"
)

// ParseTier accepts a tier name in any case. An empty name is regular.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return TierRegular, nil
	case TierRegular, TierPremium:
		return t, nil
	}
	return "", ErrInvalidTier
}

// PatronStatus is whether a patron may borrow.
type PatronStatus string

const (
	PatronActive    PatronStatus = "ACTIVE"
	PatronSuspended PatronStatus = "SUSPENDED"
)

// Patron represents a library member.
type Patron struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Email     string       `json:"email" db:"email"`
	Name      string       `json:"name" db:"name"`
	Tier      Tier         `json:"membership_tier" db:"membership_tier"`
	Status    PatronStatus `json:"status" db:"status"`
	Version   int          `json:"version" db:"version"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// NewPatron registers a patron and records PatronRegistered.
func NewPatron(rec events.Recorder, email, name string, tier Tier, now time.Time) (*Patron, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if tier, err = ParseTier(string(tier)); err != nil {
		return nil, err
	}

	p := &Patron{
		ID:        uuid.New(),
		Email:     email,
		Name:      name,
		Tier:      tier,
		Status:    PatronActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec.Record(events.PatronRegistered{PatronID: p.ID, Email: p.Email, Name: p.Name, Tier: string(p.Tier)})
	return p, nil
}

// IsPremiumMembership reports whether the patron gets extended loans.
func (p *Patron) IsPremiumMembership() bool {
	return p.Tier == TierPremium
}

// CanBorrow reports whether the patron may check out or place holds.
func (p *Patron) CanBorrow() bool {
	return p.Status == PatronActive
}

func (p *Patron) ChangeTier(rec events.Recorder, tier Tier, now time.Time) error {
	tier, err := ParseTier(string(tier))
	if err != nil {
		return err
	}
	if tier == p.Tier {
		return ErrTierUnchanged
	}
	p.Tier = tier
	p.touch(now)
	rec.Record(events.PatronTierChanged{PatronID: p.ID, NewTier: string(tier)})
	return nil
}

func (p *Patron) Suspend(rec events.Recorder, now time.Time) error {
	if p.Status == PatronSuspended {
		return ErrPatronSuspended
	}
	p.Status = PatronSuspended
	p.touch(now)
	rec.Record(events.PatronSuspended{PatronID: p.ID})
	return nil
}

func (p *Patron) Reinstate(rec events.Recorder, now time.Time) error {
	if p.Status == PatronActive {
		return ErrPatronActive
	}
	p.Status = PatronActive
	p.touch(now)
	rec.Record(events.PatronReinstated{PatronID: p.ID})
	return nil
}

func (p *Patron) touch(now time.Time) {
	p.Version++
	p.UpdatedAt = now
}

// Role is a staff member's permission level.
type Role string

const (
	RoleLibrarian Role = "librarian"
	RoleManager   Role = "manager"
	RoleAdmin     Role = "admin"
)

var roleRank = map[Role]int{
	RoleLibrarian: 1,
	RoleManager:   2,
	RoleAdmin:     3,
}

// ParseRole accepts a role name in any case. An empty name is librarian.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if r == "" {
		return RoleLibrarian, nil
	}
	if _, ok := roleRank[r]; !ok {
		return "", ErrInvalidRole
	}
	return r, nil
}

// RoleAtLeast reports whether role grants at least the permissions of minimum.
func RoleAtLeast(role, minimum Role) bool {
	return roleRank[role] >= roleRank[minimum] && roleRank[minimum] > 0
}

// StaffStatus is whether a staff account is in service.
type StaffStatus string

const (
	StaffActive   StaffStatus = "ACTIVE"
	StaffInactive StaffStatus = "INACTIVE"
)

// Staff is a library employee. Credentials never leave the service.
type Staff struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	Email        string      `json:"email" db:"email"`
	Role         Role        `json:"role" db:"role"`
	BranchID     *uuid.UUID  `json:"branch_id,omitempty" db:"branch_id"`
	Status       StaffStatus `json:"status" db:"status"`
	PasswordHash string      `json:"-" db:"password_hash"`
	Version      int         `json:"version" db:"version"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// NewStaff hires a staff member and records StaffHired.
func NewStaff(rec events.Recorder, name, email string, role Role, branchID *uuid.UUID, now time.Time) (*Staff, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if role, err = ParseRole(string(role)); err != nil {
		return nil, err
	}

	st := &Staff{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Role:      role,
		Status:    StaffActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if branchID != nil {
		id := *branchID
		st.BranchID = &id
	}
	rec.Record(events.StaffHired{
		StaffID:  st.ID,
		Name:     st.Name,
		Email:    st.Email,
		Role:     string(st.Role),
		BranchID: st.BranchID,
	})
	return st, nil
}

// AssignToBranch moves the staff member to branchID. Assigning the current
// branch again changes nothing and records nothing.
func (s *Staff) AssignToBranch(rec events.Recorder, branchID uuid.UUID, now time.Time) error {
	if s.Status != StaffActive {
		return ErrStaffInactive
	}
	if s.BranchID != nil && *s.BranchID == branchID {
		return nil
	}
	s.BranchID = &branchID
	s.touch(now)
	rec.Record(events.StaffBranchAssigned{StaffID: s.ID, BranchID: branchID})
	return nil
}

func (s *Staff) Deactivate(rec events.Recorder, now time.Time) error {
	if s.Status == StaffInactive {
		return ErrStaffInactive
	}
	s.Status = StaffInactive
	s.touch(now)
	rec.Record(events.StaffDeactivated{StaffID: s.ID})
	return nil
}

func (s *Staff) touch(now time.Time) {
	s.Version++
	s.UpdatedAt = now
}

// BranchStatus is whether a branch is open.
type BranchStatus string

const (
	BranchActive BranchStatus = "ACTIVE"
	BranchClosed BranchStatus = "CLOSED"
)

// Branch is a physical library location.
type Branch struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Address   string       `json:"address" db:"address"`
	ManagerID *uuid.UUID   `json:"manager_id,omitempty" db:"manager_id"`
	Status    BranchStatus `json:"status" db:"status"`
	Version   int          `json:"version" db:"version"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// NewBranch opens a branch and records BranchOpened.
func NewBranch(rec events.Recorder, name, address string, now time.Time) (*Branch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	b := &Branch{
		ID:        uuid.New(),
		Name:      name,
		Address:   strings.TrimSpace(address),
		Status:    BranchActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec.Record(events.BranchOpened{BranchID: b.ID, Name: b.Name})
	return b, nil
}

// AssignManager makes an active staff member the branch manager.
func (b *Branch) AssignManager(rec events.Recorder, manager *Staff, now time.Time) error {
	if b.Status != BranchActive {
		return ErrBranchClosed
	}
	if manager == nil {
		return ErrStaffNotFound
	}
	if manager.Status != StaffActive {
		return ErrStaffInactive
	}
	if b.ManagerID != nil && *b.ManagerID == manager.ID {
		return ErrManagerUnchanged
	}
	id := manager.ID
	b.ManagerID = &id
	b.touch(now)
	rec.Record(events.ManagerAssignedToBranch{BranchID: b.ID, StaffID: id})
	return nil
}

func (b *Branch) Close(rec events.Recorder, now time.Time) error {
	if b.Status == BranchClosed {
		return ErrBranchClosed
	}
	b.Status = BranchClosed
	b.touch(now)
	rec.Record(events.BranchClosed{BranchID: b.ID})
	return nil
}

func (b *Branch) touch(now time.Time) {
	b.Version++
	b.UpdatedAt = now
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}
