// Package eventhandlers connects the bounded contexts. Each handler receives
// an event value and reacts through the owning context's service, which runs
// and flushes its own unit of work.
package eventhandlers

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"libraryflow/internal/acquisitions"
	"libraryflow/internal/catalog"
	"libraryflow/internal/circulation"
	"libraryflow/internal/events"
	"libraryflow/internal/membership"
)

// Deps are the services the handlers call into.
type Deps struct {
	Catalog     catalog.Service
	Circulation circulation.Service
	Membership  membership.Service
	Logger      *log.Logger
}

type handlers struct {
	Deps
}

// Register subscribes every cross-context handler on bus.
func Register(bus *events.Bus, deps Deps) {
	if deps.Logger == nil {
		deps.Logger = log.Default()
	}
	h := &handlers{Deps: deps}

	events.On(bus, h.loanReturned)
	events.On(bus, h.loanOverdue)
	events.On(bus, h.loanDamaged)
	events.On(bus, h.loanMarkedLost)
	events.On(bus, h.orderReceived)
	events.On(bus, h.managerAssigned)
}

// loanReturned offers the returned copy to the oldest pending hold on its item.
// A desk return reserves the copy before the event goes out, which leaves the
// copy unavailable here and makes this a no-op.
func (h *handlers) loanReturned(ctx context.Context, e events.LoanReturned) error {
	hold, err := h.Circulation.ProcessHoldsForReturnedCopy(ctx, e.CopyID)
	if err != nil {
		return fmt.Errorf("process holds for copy %s: %w", e.CopyID, err)
	}
	if hold != nil {
		h.Logger.Info("hold fulfilled", "hold_id", hold.ID, "copy_id", e.CopyID, "patron_id", hold.PatronID)
	}
	return nil
}

func (h *handlers) loanOverdue(ctx context.Context, e events.LoanOverdue) error {
	fine, err := h.Circulation.AssessFine(ctx, e.PatronID, e.LoanID, e.DaysLate)
	if err != nil {
		return fmt.Errorf("assess fine for loan %s: %w", e.LoanID, err)
	}
	h.Logger.Info("fine assessed", "fine_id", fine.ID, "loan_id", e.LoanID, "amount_cents", fine.AmountCents)
	return nil
}

func (h *handlers) loanDamaged(_ context.Context, e events.LoanDamaged) error {
	h.Logger.Warn("loan damaged", "loan_id", e.LoanID, "copy_id", e.CopyID, "patron_id", e.PatronID)
	return nil
}

func (h *handlers) loanMarkedLost(_ context.Context, e events.LoanMarkedLost) error {
	h.Logger.Warn("loan marked lost", "loan_id", e.LoanID, "copy_id", e.CopyID, "patron_id", e.PatronID)
	return nil
}

// orderReceived shelves the delivered copies at the receiving staff member's
// branch, dated with the order's receipt date.
func (h *handlers) orderReceived(ctx context.Context, e events.AcquisitionOrderReceived) error {
	staff, err := h.Membership.GetStaff(ctx, e.StaffID)
	if err != nil {
		return fmt.Errorf("load receiving staff %s: %w", e.StaffID, err)
	}
	if staff.BranchID == nil {
		return acquisitions.ErrReceiverNoBranch
	}

	for _, line := range e.Lines {
		if line.Quantity == 0 {
			continue
		}
		copies, err := h.Catalog.AddCopiesFromAcquisition(ctx, line.ItemID, *staff.BranchID, line.Quantity, e.ReceivedDate)
		if err != nil {
			return fmt.Errorf("add copies for order line %s: %w", line.LineID, err)
		}
		h.Logger.Info("copies acquired", "order_id", e.OrderID, "item_id", line.ItemID, "count", len(copies))
	}
	return nil
}

func (h *handlers) managerAssigned(ctx context.Context, e events.ManagerAssignedToBranch) error {
	if _, err := h.Membership.AssignStaffToBranch(ctx, e.StaffID, e.BranchID); err != nil {
		return fmt.Errorf("move manager %s to branch %s: %w", e.StaffID, e.BranchID, err)
	}
	return nil
}
