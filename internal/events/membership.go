package events

import "github.com/google/uuid"

// PatronRegistered is published when a new patron registers.
type PatronRegistered struct {
	PatronID uuid.UUID `json:"patron_id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Tier     string    `json:"tier"`
}

func (PatronRegistered) Kind() Kind { return KindPatronRegistered }
func (e PatronRegistered) AggregateID() uuid.UUID { return e.PatronID }

// PatronTierChanged is published when a patron's membership tier is changed.
type PatronTierChanged struct {
	PatronID uuid.UUID `json:"patron_id"`
	NewTier  string    `json:"new_tier"`
}

func (PatronTierChanged) Kind() Kind { return KindPatronTierChanged }
func (e PatronTierChanged) AggregateID() uuid.UUID { return e.PatronID }

type PatronSuspended struct {
	PatronID uuid.UUID `json:"patron_id"`
}

func (PatronSuspended) Kind() Kind { return KindPatronSuspended }
func (e PatronSuspended) AggregateID() uuid.UUID { return e.PatronID }

type PatronReinstated struct {
	PatronID uuid.UUID `json:"patron_id"`
}

func (PatronReinstated) Kind() Kind { return KindPatronReinstated }
func (e PatronReinstated) AggregateID() uuid.UUID { return e.PatronID }

// StaffHired is published when a staff member is added.
type StaffHired struct {
	StaffID  uuid.UUID  `json:"staff_id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Role     string     `json:"role"`
	BranchID *uuid.UUID `json:"branch_id,omitempty"`
}

func (StaffHired) Kind() Kind { return KindStaffHired }
func (e StaffHired) AggregateID() uuid.UUID { return e.StaffID }

type StaffBranchAssigned struct {
	StaffID  uuid.UUID `json:"staff_id"`
	BranchID uuid.UUID `json:"branch_id"`
}

func (StaffBranchAssigned) Kind() Kind { return KindStaffBranchAssigned }
func (e StaffBranchAssigned) AggregateID() uuid.UUID { return e.StaffID }

type StaffDeactivated struct {
	StaffID uuid.UUID `json:"staff_id"`
}

func (StaffDeactivated) Kind() Kind { return KindStaffDeactivated }
func (e StaffDeactivated) AggregateID() uuid.UUID { return e.StaffID }

// BranchOpened is published when a new branch is registered.
type BranchOpened struct {
	BranchID uuid.UUID `json:"branch_id"`
	Name     string    `json:"name"`
}

func (BranchOpened) Kind() Kind { return KindBranchOpened }
func (e BranchOpened) AggregateID() uuid.UUID { return e.BranchID }

// ManagerAssignedToBranch is published when a branch gets a new manager.
type ManagerAssignedToBranch struct {
	BranchID uuid.UUID `json:"branch_id"`
	StaffID  uuid.UUID `json:"staff_id"`
}

func (ManagerAssignedToBranch) Kind() Kind { return KindManagerAssignedToBranch }
func (e ManagerAssignedToBranch) AggregateID() uuid.UUID { return e.BranchID }

type BranchClosed struct {
	BranchID uuid.UUID `json:"branch_id"`
}

func (BranchClosed) Kind() Kind { return KindBranchClosed }
func (e BranchClosed) AggregateID() uuid.UUID { return e.BranchID }
