package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"libraryflow/internal/acquisitions"
	"libraryflow/internal/catalog"
	"libraryflow/internal/circulation"
	"libraryflow/internal/membership"
)

func itemID(i *catalog.Item) *uuid.UUID { return &i.ID }
func copyID(c *catalog.Copy) *uuid.UUID { return &c.ID }
func serialID(s *catalog.Serial) *uuid.UUID { return &s.ID }
func issueID(i *catalog.SerialIssue) *uuid.UUID { return &i.ID }
func loanID(l *circulation.Loan) *uuid.UUID { return &l.ID }
func holdID(h *circulation.Hold) *uuid.UUID { return &h.ID }
func fineID(f *circulation.Fine) *uuid.UUID { return &f.ID }
func orderID(o *acquisitions.Order) *uuid.UUID { return &o.ID }
func patronID(p *membership.Patron) *uuid.UUID { return &p.ID }
func staffID(s *membership.Staff) *uuid.UUID { return &s.ID }
func branchID(b *membership.Branch) *uuid.UUID { return &b.ID }

type ItemRepository struct{ *table[catalog.Item] }

func (r *ItemRepository) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	return r.exists(ctx, lower("title").Eq(strings.ToLower(title)))
}

type CopyRepository struct{ *table[catalog.Copy] }

func (r *CopyRepository) FindByItem(ctx context.Context, itemID uuid.UUID) ([]*catalog.Copy, error) {
	return r.selectWhere(ctx, goqu.C("item_id").Eq(itemID))
}

func (r *CopyRepository) ExistsByBarcode(ctx context.Context, barcode string) (bool, error) {
	return r.exists(ctx, goqu.C("barcode").Eq(barcode))
}

type SerialRepository struct{ *table[catalog.Serial] }

type SerialIssueRepository struct{ *table[catalog.SerialIssue] }

func (r *SerialIssueRepository) FindBySerial(ctx context.Context, serialID uuid.UUID) ([]*catalog.SerialIssue, error) {
	return r.selectWhere(ctx, goqu.C("serial_id").Eq(serialID))
}

type LoanRepository struct{ *table[circulation.Loan] }

// FindActiveByCopy returns the loan currently holding the copy, if any.
func (r *LoanRepository) FindActiveByCopy(ctx context.Context, copyID uuid.UUID) (*circulation.Loan, error) {
	return r.first(ctx,
		goqu.C("copy_id").Eq(copyID),
		goqu.C("status").In(circulation.LoanActive, circulation.LoanOverdue),
	)
}

// FindDue returns active loans due strictly before the given instant.
func (r *LoanRepository) FindDue(ctx context.Context, before time.Time) ([]*circulation.Loan, error) {
	return r.selectWhere(ctx,
		goqu.C("status").Eq(circulation.LoanActive),
		goqu.C("due_date").Lt(before),
	)
}

type HoldRepository struct{ *table[circulation.Hold] }

// FindPendingByItem returns the item's pending holds, oldest request first.
// Holds placed at the same instant keep their placement order.
func (r *HoldRepository) FindPendingByItem(ctx context.Context, itemID uuid.UUID) ([]*circulation.Hold, error) {
	where := []exp.Expression{
		goqu.C("item_id").Eq(itemID),
		goqu.C("status").Eq(circulation.HoldPending),
	}
	return r.selectOrdered(ctx, where, goqu.C("request_date").Asc(), goqu.C("seq").Asc())
}

func (r *HoldRepository) FindPending(ctx context.Context) ([]*circulation.Hold, error) {
	return r.selectWhere(ctx, goqu.C("status").Eq(circulation.HoldPending))
}

// FindFulfilledByCopy returns the hold the copy is reserved for and that
// has not been picked up yet.
func (r *HoldRepository) FindFulfilledByCopy(ctx context.Context, copyID uuid.UUID) (*circulation.Hold, error) {
	return r.first(ctx,
		goqu.C("copy_id").Eq(copyID),
		goqu.C("status").Eq(circulation.HoldFulfilled),
		goqu.C("loan_id").IsNull(),
	)
}

func (r *HoldRepository) FindAwaitingPickup(ctx context.Context) ([]*circulation.Hold, error) {
	return r.selectWhere(ctx,
		goqu.C("status").Eq(circulation.HoldFulfilled),
		goqu.C("loan_id").IsNull(),
	)
}

type FineRepository struct{ *table[circulation.Fine] }

func (r *FineRepository) FindByPatron(ctx context.Context, patronID uuid.UUID) ([]*circulation.Fine, error) {
	return r.selectWhere(ctx, goqu.C("patron_id").Eq(patronID))
}

type PatronRepository struct{ *table[membership.Patron] }

func (r *PatronRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, lower("email").Eq(strings.ToLower(email)))
}

type StaffRepository struct{ *table[membership.Staff] }

func (r *StaffRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, lower("email").Eq(strings.ToLower(email)))
}

func (r *StaffRepository) FindByEmail(ctx context.Context, email string) (*membership.Staff, error) {
	return r.first(ctx, lower("email").Eq(strings.ToLower(email)))
}

type BranchRepository struct{ *table[membership.Branch] }

func (r *BranchRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.exists(ctx, lower("name").Eq(strings.ToLower(name)))
}

// OrderRepository stores orders in acquisition_orders and their lines in
// acquisition_order_lines. An order and its lines are written in one
// transaction.
type OrderRepository struct {
	orders *table[acquisitions.Order]
	lines  *table[acquisitions.OrderLine]
}

func newOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{
		orders: newTable[acquisitions.Order](db, "acquisition_orders", orderID),
		lines: newTable[acquisitions.OrderLine](db, "acquisition_order_lines", func(l *acquisitions.OrderLine) *uuid.UUID {
			return &l.ID
		}),
	}
}

func (r *OrderRepository) FindAll(ctx context.Context) ([]*acquisitions.Order, error) {
	orders, err := r.orders.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	lines, err := r.lines.selectWhere(ctx, goqu.C("order_id").In(ids))
	if err != nil {
		return nil, err
	}
	byOrder := make(map[uuid.UUID][]acquisitions.OrderLine, len(orders))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], *l)
	}
	for _, o := range orders {
		o.Lines = byOrder[o.ID]
	}
	return orders, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*acquisitions.Order, error) {
	o, err := r.orders.GetByID(ctx, id)
	if err != nil || o == nil {
		return o, err
	}
	lines, err := r.lines.selectWhere(ctx, goqu.C("order_id").Eq(id))
	if err != nil {
		return nil, err
	}
	for _, l := range lines {
		o.Lines = append(o.Lines, *l)
	}
	return o, nil
}

// Save replaces the stored lines with the order's current ones.
func (r *OrderRepository) Save(ctx context.Context, o *acquisitions.Order) (*acquisitions.Order, error) {
	tx, err := r.orders.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := r.orders.upsert(ctx, tx, o); err != nil {
		return nil, err
	}

	query, args, err := dialect.Delete(r.lines.name).Prepared(true).
		Where(goqu.C("order_id").Eq(o.ID)).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build delete on %s: %w", r.lines.name, err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("clear order lines: %w", err)
	}

	for i := range o.Lines {
		line := &o.Lines[i]
		line.OrderID = o.ID
		if err := r.lines.insert(ctx, tx, line); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.orders.DeleteByID(ctx, id)
}
