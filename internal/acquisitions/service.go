package acquisitions

import (
	"context"

	"github.com/google/uuid"

	"libraryflow/internal/catalog"
	"libraryflow/internal/membership"
	"libraryflow/internal/storage"
)

// Service defines the interface for the acquisitions service.
type Service interface {
	CreateOrder(ctx context.Context, vendorID, staffID uuid.UUID) (*Order, error)
	AddOrderLine(ctx context.Context, orderID, itemID uuid.UUID, quantity int, unitPriceCents int64) (*Order, error)
	ReceiveOrder(ctx context.Context, orderID, staffID uuid.UUID) (*Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID) (*Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context) ([]*Order, error)
}

// OrderRepository persists orders together with their lines.
type OrderRepository interface {
	storage.Repository[Order]
}

type Repositories struct {
	Orders OrderRepository
	Items  catalog.ItemRepository
	Staff  membership.StaffRepository
}
