package catalog

import "libraryflow/internal/apperr"

var (
	ErrItemNotFound        = apperr.NotFound("item not found")
	ErrCopyNotFound        = apperr.NotFound("copy not found")
	ErrSerialNotFound      = apperr.NotFound("serial not found")
	ErrSerialIssueNotFound = apperr.NotFound("serial issue not found")

	ErrDuplicateTitle   = apperr.Conflict("an item with this title already exists")
	ErrDuplicateBarcode = apperr.Conflict("a copy with this barcode already exists")

	ErrInvalidTitle       = apperr.Invariant("title is required")
	ErrInvalidBarcode     = apperr.Invariant("barcode is required")
	ErrInvalidFrequency   = apperr.Invariant("unknown serial frequency")
	ErrInvalidIssueNumber = apperr.Invariant("issue number is required")
	ErrInvalidQuantity    = apperr.Invariant("quantity must be positive")

	ErrSerialAlreadyActive   = apperr.Invariant("serial already active")
	ErrSerialAlreadyInactive = apperr.Invariant("serial already inactive")
	ErrSerialInactive        = apperr.Invariant("serial subscription is inactive")
	ErrIssueAlreadyCataloged = apperr.Invariant("serial issue already has a copy")

	ErrCopyNotAvailable      = apperr.Invariant("copy is not available")
	ErrCopyNotOnLoan         = apperr.Invariant("copy is not on loan")
	ErrCopyNotReserved       = apperr.Invariant("copy is not reserved")
	ErrCopyAlreadySuperseded = apperr.Invariant("copy already marked as an older version")
	ErrCopyNotWithdrawable   = apperr.Invariant("only available or lost copies can be withdrawn")
)
