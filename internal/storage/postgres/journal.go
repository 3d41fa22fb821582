package postgres

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/jmoiron/sqlx"

	"libraryflow/internal/events"
	"libraryflow/pkg/eventstore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Journal appends every flushed event batch to the event store, so the
// events table holds the full history of each aggregate.
type Journal struct {
	store  *eventstore.EventStore
	source string
}

// NewJournal returns a journal writing to db. source is stored in the
// metadata of every event.
func NewJournal(db *sqlx.DB, source string) *Journal {
	return &Journal{store: eventstore.NewEventStore(db.DB), source: source}
}

func (j *Journal) Store() *eventstore.EventStore { return j.store }

// Append implements events.Journal.
func (j *Journal) Append(ctx context.Context, batch []events.Event) error {
	stored := make([]eventstore.Event, 0, len(batch))
	for _, e := range batch {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode %s: %w", e.Kind(), err)
		}
		stored = append(stored, eventstore.Event{
			AggregateID:   e.AggregateID(),
			AggregateType: e.Kind().Aggregate(),
			EventType:     e.Kind().String(),
			EventData:     data,
			Metadata:      map[string]any{"source": j.source},
		})
	}
	return j.store.AppendBatch(ctx, stored)
}
