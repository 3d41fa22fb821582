package acquisitions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"libraryflow/internal/catalog"
	"libraryflow/internal/events"
	"libraryflow/internal/membership"
)

// Clock returns the current time.
type Clock func() time.Time

type service struct {
	repos Repositories
	bus   *events.Bus
	clock Clock
}

// NewService creates a new acquisitions service instance.
func NewService(repos Repositories, bus *events.Bus, clock Clock) Service {
	if clock == nil {
		clock = time.Now
	}
	return &service{repos: repos, bus: bus, clock: clock}
}

func (s *service) CreateOrder(ctx context.Context, vendorID, staffID uuid.UUID) (*Order, error) {
	if _, err := s.activeStaff(ctx, staffID); err != nil {
		return nil, err
	}
	c := events.NewCollector()
	order := NewOrder(c, vendorID, staffID, s.clock())
	return s.save(ctx, c, order)
}

func (s *service) AddOrderLine(ctx context.Context, orderID, itemID uuid.UUID, quantity int, unitPriceCents int64) (*Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	item, err := s.repos.Items.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return nil, catalog.ErrItemNotFound
	}

	c := events.NewCollector()
	if _, err := order.AddLine(c, item.ID, quantity, unitPriceCents, s.clock()); err != nil {
		return nil, err
	}
	return s.save(ctx, c, order)
}

// ReceiveOrder books the delivery. The copies are created at the receiving
// staff member's branch by the AcquisitionOrderReceived handler.
func (s *service) ReceiveOrder(ctx context.Context, orderID, staffID uuid.UUID) (*Order, error) {
	staff, err := s.activeStaff(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if staff.BranchID == nil {
		return nil, ErrReceiverNoBranch
	}
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	c := events.NewCollector()
	if err := order.Receive(c, staff.ID, s.clock()); err != nil {
		return nil, err
	}
	return s.save(ctx, c, order)
}

func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	c := events.NewCollector()
	if err := order.Cancel(c, s.clock()); err != nil {
		return nil, err
	}
	return s.save(ctx, c, order)
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, err := s.repos.Orders.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *service) ListOrders(ctx context.Context) ([]*Order, error) {
	orders, err := s.repos.Orders.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *service) save(ctx context.Context, c *events.Collector, order *Order) (*Order, error) {
	order, err := s.repos.Orders.Save(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) activeStaff(ctx context.Context, id uuid.UUID) (*membership.Staff, error) {
	staff, err := s.repos.Staff.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get staff: %w", err)
	}
	if staff == nil {
		return nil, membership.ErrStaffNotFound
	}
	if staff.Status != membership.StaffActive {
		return nil, ErrStaffInactive
	}
	return staff, nil
}
