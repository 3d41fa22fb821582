// internal/catalog/service.go
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"libraryflow/internal/storage"
)

// Service defines the interface for the catalog service.
type Service interface {
	CatalogItem(ctx context.Context, in ItemInput) (*Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
	ListItems(ctx context.Context) ([]*Item, error)

	AddCopyToItem(ctx context.Context, itemID, branchID uuid.UUID, barcode string, acquired time.Time) (*Copy, error)
	AddCopiesFromAcquisition(ctx context.Context, itemID, branchID uuid.UUID, quantity int, acquired time.Time) ([]*Copy, error)
	GetCopy(ctx context.Context, id uuid.UUID) (*Copy, error)
	ListCopies(ctx context.Context, itemID uuid.UUID) ([]*Copy, error)
	WithdrawCopy(ctx context.Context, id uuid.UUID) (*Copy, error)
	MarkCopyOlderVersion(ctx context.Context, id uuid.UUID) (*Copy, error)

	SubscribeSerial(ctx context.Context, itemID uuid.UUID, title, issn, frequency string) (*Serial, error)
	RenewSerialSubscription(ctx context.Context, id uuid.UUID) (*Serial, error)
	UnsubscribeSerial(ctx context.Context, id uuid.UUID) (*Serial, error)
	GetSerial(ctx context.Context, id uuid.UUID) (*Serial, error)
	ListSerials(ctx context.Context) ([]*Serial, error)
	ReceiveSerialIssue(ctx context.Context, serialID uuid.UUID, issueNumber string, copyID *uuid.UUID) (*SerialIssue, error)
	AttachCopyToIssue(ctx context.Context, issueID, copyID uuid.UUID) (*SerialIssue, error)
	ListSerialIssues(ctx context.Context, serialID uuid.UUID) ([]*SerialIssue, error)
}

// ItemRepository persists items.
type ItemRepository interface {
	storage.Repository[Item]
	ExistsByTitle(ctx context.Context, title string) (bool, error)
}

// CopyRepository persists copies.
type CopyRepository interface {
	storage.Repository[Copy]
	FindByItem(ctx context.Context, itemID uuid.UUID) ([]*Copy, error)
	ExistsByBarcode(ctx context.Context, barcode string) (bool, error)
}

// SerialRepository persists serial subscriptions.
type SerialRepository interface {
	storage.Repository[Serial]
}

// SerialIssueRepository persists received issues.
type SerialIssueRepository interface {
	storage.Repository[SerialIssue]
	FindBySerial(ctx context.Context, serialID uuid.UUID) ([]*SerialIssue, error)
}

// Repositories groups the ports the catalog service needs.
type Repositories struct {
	Items   ItemRepository
	Copies  CopyRepository
	Serials SerialRepository
	Issues  SerialIssueRepository
}
