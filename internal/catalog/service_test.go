package catalog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryflow/internal/catalog"
	"libraryflow/internal/events"
	"libraryflow/internal/storage/memory"
)

var fixedNow = time.Date(2024, time.February, 1, 8, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// sequence hands out the given barcodes in order, then numbered ones.
func sequence(codes ...string) catalog.BarcodeGenerator {
	i := 0
	return func() string {
		defer func() { i++ }()
		if i < len(codes) {
			return codes[i]
		}
		return fmt.Sprintf("SEQ%04d", i)
	}
}

type recorded struct {
	kinds []events.Kind
}

func newService(t *testing.T, barcodes catalog.BarcodeGenerator) (catalog.Service, *recorded) {
	t.Helper()
	bus := events.NewBus()
	rec := &recorded{}
	for _, k := range []events.Kind{
		events.KindItemCataloged, events.KindCopyAdded, events.KindCopyWithdrawn,
		events.KindCopySuperseded, events.KindSerialSubscribed, events.KindSerialActivated,
		events.KindSerialDeactivated, events.KindSerialIssueReceived, events.KindSerialIssueCataloged,
	} {
		bus.Subscribe(k, func(_ context.Context, e events.Event) error {
			rec.kinds = append(rec.kinds, e.Kind())
			return nil
		})
	}
	return catalog.NewService(memory.NewStore().Catalog(), bus, barcodes, clock), rec
}

func TestCatalogItemRejectsDuplicateTitle(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t, nil)

	item, err := svc.CatalogItem(ctx, catalog.ItemInput{Title: "Dracula", Author: "Bram Stoker"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, item.ID)

	_, err = svc.CatalogItem(ctx, catalog.ItemInput{Title: "dracula"})
	assert.ErrorIs(t, err, catalog.ErrDuplicateTitle)
	assert.Equal(t, []events.Kind{events.KindItemCataloged}, rec.kinds)
}

func TestAddCopyToItem(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, sequence("LFAAA"))
	item, err := svc.CatalogItem(ctx, catalog.ItemInput{Title: "Frankenstein"})
	require.NoError(t, err)
	branch := uuid.New()

	generated, err := svc.AddCopyToItem(ctx, item.ID, branch, "", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "LFAAA", generated.Barcode)
	assert.Equal(t, fixedNow, generated.AcquisitionDate)

	_, err = svc.AddCopyToItem(ctx, item.ID, branch, "LFAAA", time.Time{})
	assert.ErrorIs(t, err, catalog.ErrDuplicateBarcode)

	_, err = svc.AddCopyToItem(ctx, uuid.New(), branch, "", time.Time{})
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
}

func TestAddCopiesFromAcquisitionRetriesCollisions(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t, sequence("DUP", "DUP", "TAKEN", "NEW1", "NEW2"))
	item, err := svc.CatalogItem(ctx, catalog.ItemInput{Title: "Carmilla"})
	require.NoError(t, err)
	_, err = svc.AddCopyToItem(ctx, item.ID, uuid.New(), "TAKEN", time.Time{})
	require.NoError(t, err)

	acquired := fixedNow.AddDate(0, 0, -2)
	copies, err := svc.AddCopiesFromAcquisition(ctx, item.ID, uuid.New(), 3, acquired)
	require.NoError(t, err)
	require.Len(t, copies, 3)

	assert.Equal(t, []string{"DUP", "NEW1", "NEW2"}, []string{copies[0].Barcode, copies[1].Barcode, copies[2].Barcode})
	for _, cp := range copies {
		assert.Equal(t, acquired, cp.AcquisitionDate)
	}
	assert.Len(t, rec.kinds, 5, "one item, one manual copy, three acquired copies")
}

func TestAddCopiesFromAcquisitionValidatesQuantity(t *testing.T) {
	svc, _ := newService(t, nil)
	_, err := svc.AddCopiesFromAcquisition(context.Background(), uuid.New(), uuid.New(), 0, fixedNow)
	assert.ErrorIs(t, err, catalog.ErrInvalidQuantity)
}

func TestBarcodeExhaustion(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, func() string { return "SAME" })
	item, err := svc.CatalogItem(ctx, catalog.ItemInput{Title: "Vathek"})
	require.NoError(t, err)

	_, err = svc.AddCopiesFromAcquisition(ctx, item.ID, uuid.New(), 2, fixedNow)
	assert.ErrorIs(t, err, catalog.ErrDuplicateBarcode)
}

func TestWithdrawAndSupersedeCopy(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, nil)
	item, err := svc.CatalogItem(ctx, catalog.ItemInput{Title: "The Monk"})
	require.NoError(t, err)
	cp, err := svc.AddCopyToItem(ctx, item.ID, uuid.New(), "", time.Time{})
	require.NoError(t, err)

	superseded, err := svc.MarkCopyOlderVersion(ctx, cp.ID)
	require.NoError(t, err)
	assert.True(t, superseded.Superseded)

	withdrawn, err := svc.WithdrawCopy(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.CopyWithdrawn, withdrawn.Status)

	stored, err := svc.GetCopy(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.CopyWithdrawn, stored.Status)
	assert.True(t, stored.Superseded)
}

func TestSerialLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, rec := newService(t, nil)
	item, err := svc.CatalogItem(ctx, catalog.ItemInput{Title: "The Strand"})
	require.NoError(t, err)

	_, err = svc.SubscribeSerial(ctx, item.ID, "", "", "hourly")
	assert.ErrorIs(t, err, catalog.ErrInvalidFrequency)
	_, err = svc.SubscribeSerial(ctx, uuid.New(), "", "", "monthly")
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)

	serial, err := svc.SubscribeSerial(ctx, item.ID, "", "0039-2111", "monthly")
	require.NoError(t, err)
	assert.Equal(t, catalog.SerialActive, serial.Status)

	_, err = svc.RenewSerialSubscription(ctx, serial.ID)
	assert.ErrorIs(t, err, catalog.ErrSerialAlreadyActive)

	serial, err = svc.UnsubscribeSerial(ctx, serial.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.SerialInactive, serial.Status)
	_, err = svc.UnsubscribeSerial(ctx, serial.ID)
	assert.ErrorIs(t, err, catalog.ErrSerialAlreadyInactive)

	_, err = svc.ReceiveSerialIssue(ctx, serial.ID, "1", nil)
	assert.ErrorIs(t, err, catalog.ErrSerialInactive)

	_, err = svc.RenewSerialSubscription(ctx, serial.ID)
	require.NoError(t, err)
	issue, err := svc.ReceiveSerialIssue(ctx, serial.ID, "1", nil)
	require.NoError(t, err)

	cp, err := svc.AddCopyToItem(ctx, item.ID, uuid.New(), "", time.Time{})
	require.NoError(t, err)
	issue, err = svc.AttachCopyToIssue(ctx, issue.ID, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.IssueCataloged, issue.Status)

	issues, err := svc.ListSerialIssues(ctx, serial.ID)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, cp.ID, *issues[0].CopyID)

	assert.Equal(t, []events.Kind{
		events.KindItemCataloged,
		events.KindSerialSubscribed,
		events.KindSerialDeactivated,
		events.KindSerialActivated,
		events.KindSerialIssueReceived,
		events.KindCopyAdded,
		events.KindSerialIssueCataloged,
	}, rec.kinds)
}
