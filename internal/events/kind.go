package events

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies a domain event type. It is the dispatch key of the Bus.
type Kind uint8

// Event kinds. The set is closed: adding a kind means adding a constant here,
// an entry in kindInfo and an event struct returning it from Kind().
const (
	KindUnknown Kind = iota

	KindItemCataloged
	KindCopyAdded
	KindCopyWithdrawn
	KindCopySuperseded
	KindSerialSubscribed
	KindSerialActivated
	KindSerialDeactivated
	KindSerialIssueReceived
	KindSerialIssueCataloged

	KindLoanCreated
	KindLoanRenewed
	KindLoanReturned
	KindLoanOverdue
	KindLoanDamaged
	KindLoanMarkedLost
	KindHoldPlaced
	KindHoldFulfilled
	KindHoldExpired
	KindHoldCancelled
	KindFineAssessed
	KindFineReassessed
	KindFinePaid
	KindFineWaived

	KindAcquisitionOrderCreated
	KindAcquisitionOrderLineAdded
	KindAcquisitionOrderReceived
	KindAcquisitionOrderCancelled

	KindPatronRegistered
	KindPatronTierChanged
	KindPatronSuspended
	KindPatronReinstated
	KindStaffHired
	KindStaffBranchAssigned
	KindStaffDeactivated
	KindBranchOpened
	KindManagerAssignedToBranch
	KindBranchClosed

	kindCount
)

// Aggregate types used as the journal stream type.
const (
	AggregateItem             = "item"
	AggregateCopy             = "copy"
	AggregateSerial           = "serial"
	AggregateSerialIssue      = "serial_issue"
	AggregateLoan             = "loan"
	AggregateHold             = "hold"
	AggregateFine             = "fine"
	AggregateAcquisitionOrder = "acquisition_order"
	AggregatePatron           = "patron"
	AggregateStaff            = "staff"
	AggregateBranch           = "branch"
)

var kindInfo = [kindCount]struct {
	name      string
	aggregate string
}{
	KindUnknown: {"Unknown", ""},

	KindItemCataloged:        {"ItemCataloged", AggregateItem},
	KindCopyAdded:            {"CopyAdded", AggregateCopy},
	KindCopyWithdrawn:        {"CopyWithdrawn", AggregateCopy},
	KindCopySuperseded:       {"CopySuperseded", AggregateCopy},
	KindSerialSubscribed:     {"SerialSubscribed", AggregateSerial},
	KindSerialActivated:      {"SerialActivated", AggregateSerial},
	KindSerialDeactivated:    {"SerialDeactivated", AggregateSerial},
	KindSerialIssueReceived:  {"SerialIssueReceived", AggregateSerialIssue},
	KindSerialIssueCataloged: {"SerialIssueCataloged", AggregateSerialIssue},

	KindLoanCreated:    {"LoanCreated", AggregateLoan},
	KindLoanRenewed:    {"LoanRenewed", AggregateLoan},
	KindLoanReturned:   {"LoanReturned", AggregateLoan},
	KindLoanOverdue:    {"LoanOverdue", AggregateLoan},
	KindLoanDamaged:    {"LoanDamaged", AggregateLoan},
	KindLoanMarkedLost: {"LoanMarkedLost", AggregateLoan},
	KindHoldPlaced:     {"HoldPlaced", AggregateHold},
	KindHoldFulfilled:  {"HoldFulfilled", AggregateHold},
	KindHoldExpired:    {"HoldExpired", AggregateHold},
	KindHoldCancelled:  {"HoldCancelled", AggregateHold},
	KindFineAssessed:   {"FineAssessed", AggregateFine},
	KindFineReassessed: {"FineReassessed", AggregateFine},
	KindFinePaid:       {"FinePaid", AggregateFine},
	KindFineWaived:     {"FineWaived", AggregateFine},

	KindAcquisitionOrderCreated:   {"AcquisitionOrderCreated", AggregateAcquisitionOrder},
	KindAcquisitionOrderLineAdded: {"AcquisitionOrderLineAdded", AggregateAcquisitionOrder},
	KindAcquisitionOrderReceived:  {"AcquisitionOrderReceived", AggregateAcquisitionOrder},
	KindAcquisitionOrderCancelled: {"AcquisitionOrderCancelled", AggregateAcquisitionOrder},

	KindPatronRegistered:        {"PatronRegistered", AggregatePatron},
	KindPatronTierChanged:       {"PatronTierChanged", AggregatePatron},
	KindPatronSuspended:         {"PatronSuspended", AggregatePatron},
	KindPatronReinstated:        {"PatronReinstated", AggregatePatron},
	KindStaffHired:              {"StaffHired", AggregateStaff},
	KindStaffBranchAssigned:     {"StaffBranchAssigned", AggregateStaff},
	KindStaffDeactivated:        {"StaffDeactivated", AggregateStaff},
	KindBranchOpened:            {"BranchOpened", AggregateBranch},
	KindManagerAssignedToBranch: {"ManagerAssignedToBranch", AggregateBranch},
	KindBranchClosed:            {"BranchClosed", AggregateBranch},
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k > KindUnknown && k < kindCount
}

// String returns the event type name used in logs and the journal.
func (k Kind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindInfo[k].name
}

// Aggregate returns the aggregate type an event of kind k belongs to.
func (k Kind) Aggregate() string {
	if k >= kindCount {
		return ""
	}
	return kindInfo[k].aggregate
}

// Kinds returns every valid kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindUnknown + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Event is an immutable record of something that already happened to an
// aggregate.
type Event interface {
	Kind() Kind
	AggregateID() uuid.UUID
}
