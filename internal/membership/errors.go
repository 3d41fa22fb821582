package membership

import (
	"errors"

	"libraryflow/internal/apperr"
)

var (
	ErrPatronNotFound = apperr.NotFound("patron not found")
	ErrStaffNotFound  = apperr.NotFound("staff member not found")
	ErrBranchNotFound = apperr.NotFound("branch not found")

	ErrDuplicateEmail      = apperr.Conflict("email already registered")
	ErrDuplicateBranchName = apperr.Conflict("a branch with this name already exists")

	ErrInvalidEmail    = apperr.Invariant("a valid email is required")
	ErrInvalidName     = apperr.Invariant("name is required")
	ErrInvalidTier     = apperr.Invariant("unknown membership tier")
	ErrInvalidRole     = apperr.Invariant("unknown staff role")
	ErrWeakPassword    = apperr.Invariant("password must be at least 8 characters")
	ErrTierUnchanged   = apperr.Invariant("patron already has this tier")
	ErrPatronSuspended = apperr.Invariant("patron is suspended")
	ErrPatronActive    = apperr.Invariant("patron is not suspended")

	ErrStaffInactive    = apperr.Invariant("staff member is inactive")
	ErrStaffStillActive = apperr.Invariant("only inactive staff can be deleted")
	ErrBranchClosed     = apperr.Invariant("branch is closed")
	ErrBranchStillOpen  = apperr.Invariant("only closed branches can be deleted")
	ErrManagerUnchanged = apperr.Invariant("staff member already manages this branch")
)

// ErrInvalidCredentials and ErrRateLimited carry no domain kind; the HTTP
// layer maps them to 401 and 429.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("rate limit exceeded")
)
