package acquisitions

import "libraryflow/internal/apperr"

var (
	ErrOrderNotFound = apperr.NotFound("acquisition order not found")

	ErrOrderNotPending  = apperr.Invariant("acquisition order is not pending")
	ErrEmptyOrder       = apperr.Invariant("acquisition order has no lines")
	ErrInvalidQuantity  = apperr.Invariant("quantity must be positive")
	ErrInvalidUnitPrice = apperr.Invariant("unit price cannot be negative")
	ErrOverReceived     = apperr.Invariant("received quantity exceeds ordered quantity")
	ErrStaffInactive    = apperr.Invariant("staff member is inactive")
	ErrReceiverNoBranch = apperr.Invariant("receiving staff member has no branch")
)
