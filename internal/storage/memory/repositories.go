package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"libraryflow/internal/acquisitions"
	"libraryflow/internal/catalog"
	"libraryflow/internal/circulation"
	"libraryflow/internal/membership"
)

type ItemRepository struct{ *Table[catalog.Item] }

func NewItemRepository() *ItemRepository {
	return &ItemRepository{NewTable(func(i *catalog.Item) *uuid.UUID { return &i.ID }, nil)}
}

// ExistsByTitle compares titles case-insensitively.
func (r *ItemRepository) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	return r.Exists(ctx, func(i *catalog.Item) bool { return strings.EqualFold(i.Title, title) })
}

type CopyRepository struct{ *Table[catalog.Copy] }

func NewCopyRepository() *CopyRepository {
	return &CopyRepository{NewTable(func(c *catalog.Copy) *uuid.UUID { return &c.ID }, nil)}
}

func (r *CopyRepository) FindByItem(ctx context.Context, itemID uuid.UUID) ([]*catalog.Copy, error) {
	return r.Filter(ctx, func(c *catalog.Copy) bool { return c.ItemID == itemID })
}

func (r *CopyRepository) ExistsByBarcode(ctx context.Context, barcode string) (bool, error) {
	return r.Exists(ctx, func(c *catalog.Copy) bool { return c.Barcode == barcode })
}

type SerialRepository struct{ *Table[catalog.Serial] }

func NewSerialRepository() *SerialRepository {
	return &SerialRepository{NewTable(func(s *catalog.Serial) *uuid.UUID { return &s.ID }, nil)}
}

type SerialIssueRepository struct{ *Table[catalog.SerialIssue] }

func NewSerialIssueRepository() *SerialIssueRepository {
	return &SerialIssueRepository{NewTable(func(i *catalog.SerialIssue) *uuid.UUID { return &i.ID }, nil)}
}

func (r *SerialIssueRepository) FindBySerial(ctx context.Context, serialID uuid.UUID) ([]*catalog.SerialIssue, error) {
	return r.Filter(ctx, func(i *catalog.SerialIssue) bool { return i.SerialID == serialID })
}

type LoanRepository struct{ *Table[circulation.Loan] }

func NewLoanRepository() *LoanRepository {
	return &LoanRepository{NewTable(func(l *circulation.Loan) *uuid.UUID { return &l.ID }, nil)}
}

func (r *LoanRepository) FindActiveByCopy(ctx context.Context, copyID uuid.UUID) (*circulation.Loan, error) {
	return r.First(ctx, func(l *circulation.Loan) bool { return l.CopyID == copyID && l.IsOutstanding() })
}

func (r *LoanRepository) FindDue(ctx context.Context, before time.Time) ([]*circulation.Loan, error) {
	return r.Filter(ctx, func(l *circulation.Loan) bool {
		return l.Status == circulation.LoanActive && l.DueDate.Before(before)
	})
}

type HoldRepository struct{ *Table[circulation.Hold] }

func NewHoldRepository() *HoldRepository {
	return &HoldRepository{NewTable(func(h *circulation.Hold) *uuid.UUID { return &h.ID }, nil)}
}

// FindPendingByItem sorts stably by request date over insertion order, so
// holds requested at the same instant stay in the order they were placed.
func (r *HoldRepository) FindPendingByItem(ctx context.Context, itemID uuid.UUID) ([]*circulation.Hold, error) {
	holds, err := r.Filter(ctx, func(h *circulation.Hold) bool {
		return h.ItemID == itemID && h.Status == circulation.HoldPending
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(holds, func(a, b *circulation.Hold) int {
		return a.RequestDate.Compare(b.RequestDate)
	})
	return holds, nil
}

func (r *HoldRepository) FindPending(ctx context.Context) ([]*circulation.Hold, error) {
	return r.Filter(ctx, func(h *circulation.Hold) bool { return h.Status == circulation.HoldPending })
}

func (r *HoldRepository) FindFulfilledByCopy(ctx context.Context, copyID uuid.UUID) (*circulation.Hold, error) {
	return r.First(ctx, func(h *circulation.Hold) bool {
		return h.Status == circulation.HoldFulfilled && h.CopyID != nil && *h.CopyID == copyID && h.LoanID == nil
	})
}

func (r *HoldRepository) FindAwaitingPickup(ctx context.Context) ([]*circulation.Hold, error) {
	return r.Filter(ctx, func(h *circulation.Hold) bool {
		return h.Status == circulation.HoldFulfilled && h.LoanID == nil
	})
}

type FineRepository struct{ *Table[circulation.Fine] }

func NewFineRepository() *FineRepository {
	return &FineRepository{NewTable(func(f *circulation.Fine) *uuid.UUID { return &f.ID }, nil)}
}

func (r *FineRepository) FindByPatron(ctx context.Context, patronID uuid.UUID) ([]*circulation.Fine, error) {
	return r.Filter(ctx, func(f *circulation.Fine) bool { return f.PatronID == patronID })
}

type OrderRepository struct{ *Table[acquisitions.Order] }

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{NewTable(
		func(o *acquisitions.Order) *uuid.UUID { return &o.ID },
		func(o *acquisitions.Order) *acquisitions.Order {
			c := *o
			c.Lines = slices.Clone(o.Lines)
			return &c
		},
	)}
}

type PatronRepository struct{ *Table[membership.Patron] }

func NewPatronRepository() *PatronRepository {
	return &PatronRepository{NewTable(func(p *membership.Patron) *uuid.UUID { return &p.ID }, nil)}
}

func (r *PatronRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.Exists(ctx, func(p *membership.Patron) bool { return strings.EqualFold(p.Email, email) })
}

type StaffRepository struct{ *Table[membership.Staff] }

func NewStaffRepository() *StaffRepository {
	return &StaffRepository{NewTable(func(s *membership.Staff) *uuid.UUID { return &s.ID }, nil)}
}

func (r *StaffRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.Exists(ctx, func(s *membership.Staff) bool { return strings.EqualFold(s.Email, email) })
}

func (r *StaffRepository) FindByEmail(ctx context.Context, email string) (*membership.Staff, error) {
	return r.First(ctx, func(s *membership.Staff) bool { return strings.EqualFold(s.Email, email) })
}

type BranchRepository struct{ *Table[membership.Branch] }

func NewBranchRepository() *BranchRepository {
	return &BranchRepository{NewTable(func(b *membership.Branch) *uuid.UUID { return &b.ID }, nil)}
}

func (r *BranchRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	return r.Exists(ctx, func(b *membership.Branch) bool { return strings.EqualFold(b.Name, name) })
}

// Store holds one repository per aggregate.
type Store struct {
	Items   *ItemRepository
	Copies  *CopyRepository
	Serials *SerialRepository
	Issues  *SerialIssueRepository

	Loans *LoanRepository
	Holds *HoldRepository
	Fines *FineRepository

	Orders *OrderRepository

	Patrons  *PatronRepository
	Staff    *StaffRepository
	Branches *BranchRepository
}

// NewStore creates empty repositories.
func NewStore() *Store {
	return &Store{
		Items:    NewItemRepository(),
		Copies:   NewCopyRepository(),
		Serials:  NewSerialRepository(),
		Issues:   NewSerialIssueRepository(),
		Loans:    NewLoanRepository(),
		Holds:    NewHoldRepository(),
		Fines:    NewFineRepository(),
		Orders:   NewOrderRepository(),
		Patrons:  NewPatronRepository(),
		Staff:    NewStaffRepository(),
		Branches: NewBranchRepository(),
	}
}

func (s *Store) Catalog() catalog.Repositories {
	return catalog.Repositories{Items: s.Items, Copies: s.Copies, Serials: s.Serials, Issues: s.Issues}
}

func (s *Store) Circulation() circulation.Repositories {
	return circulation.Repositories{
		Loans:   s.Loans,
		Holds:   s.Holds,
		Fines:   s.Fines,
		Items:   s.Items,
		Copies:  s.Copies,
		Patrons: s.Patrons,
		Staff:   s.Staff,
	}
}

func (s *Store) Acquisitions() acquisitions.Repositories {
	return acquisitions.Repositories{Orders: s.Orders, Items: s.Items, Staff: s.Staff}
}

func (s *Store) Membership() membership.Repositories {
	return membership.Repositories{Patrons: s.Patrons, Staff: s.Staff, Branches: s.Branches}
}
