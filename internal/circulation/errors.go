package circulation

import "libraryflow/internal/apperr"

var (
	ErrLoanNotFound = apperr.NotFound("loan not found")
	ErrHoldNotFound = apperr.NotFound("hold not found")
	ErrFineNotFound = apperr.NotFound("fine not found")

	ErrDuplicateHold = apperr.Conflict("patron already has a pending hold on this item")

	ErrLoanNotOutstanding = apperr.Invariant("loan is not outstanding")
	ErrLoanNotActive      = apperr.Invariant("loan is not active")
	ErrLoanNotDue         = apperr.Invariant("loan is not past its due date")
	ErrLoanLost           = apperr.Invariant("loan is lost")
	ErrAlreadyDamaged     = apperr.Invariant("loan already reported damaged")
	ErrItemOnHold         = apperr.Invariant("item has pending holds")

	ErrHoldNotPending   = apperr.Invariant("hold is not pending")
	ErrHoldNotFulfilled = apperr.Invariant("hold is not fulfilled")
	ErrHoldHasLoan      = apperr.Invariant("hold already has a loan")
	ErrHoldNotExpired   = apperr.Invariant("hold window has not passed")

	ErrFineSettled     = apperr.Invariant("fine already settled")
	ErrInvalidDaysLate = apperr.Invariant("days late must be positive")

	ErrPatronNotEligible     = apperr.Invariant("patron is not eligible to borrow")
	ErrOutstandingFines      = apperr.Invariant("patron has unpaid fines")
	ErrStaffNotEligible      = apperr.Invariant("staff member is inactive")
	ErrCopyReservedElsewhere = apperr.Invariant("copy is reserved for another patron")
)
