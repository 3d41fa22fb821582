// Package eventstore is an append-only Postgres log of domain events with
// per-aggregate versions.
package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrConcurrencyConflict reports that another writer took an aggregate
// version first.
var ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")

// Schema creates the events table. It is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id             BIGSERIAL PRIMARY KEY,
	aggregate_id   UUID        NOT NULL,
	aggregate_type TEXT        NOT NULL,
	event_type     TEXT        NOT NULL,
	event_data     JSONB       NOT NULL,
	metadata       JSONB,
	version        INT         NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (aggregate_id, version)
);
CREATE INDEX IF NOT EXISTS events_event_type_idx ON events (event_type);
`

// Event is one stored event with its metadata.
type Event struct {
	ID            int64               `json:"id" db:"id"`
	AggregateID   uuid.UUID           `json:"aggregate_id" db:"aggregate_id"`
	AggregateType string              `json:"aggregate_type" db:"aggregate_type"`
	EventType     string              `json:"event_type" db:"event_type"`
	EventData     jsoniter.RawMessage `json:"event_data" db:"event_data"`
	Metadata      map[string]any      `json:"metadata" db:"metadata"`
	Version       int                 `json:"version" db:"version"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}

// EventStore appends and reads events inside serializable transactions.
type EventStore struct {
	db     *sql.DB
	tracer trace.Tracer
	now    func() time.Time
}

// NewEventStore creates an event store on an open connection pool.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{
		db:     db,
		tracer: otel.Tracer("libraryflow/eventstore"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Migrate creates the schema.
func (es *EventStore) Migrate(ctx context.Context) error {
	if _, err := es.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create events schema: %w", err)
	}
	return nil
}

// AppendBatch appends events that may belong to different aggregates in one
// transaction, in slice order. Each event gets the next version of its own
// aggregate.
func (es *EventStore) AppendBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	ctx, span := es.tracer.Start(ctx, "eventstore.append_batch",
		trace.WithAttributes(attribute.Int("event.count", len(events))),
	)
	defer span.End()

	return es.inTx(ctx, func(tx *sql.Tx) error {
		versions := make(map[uuid.UUID]int)
		for _, e := range events {
			if _, ok := versions[e.AggregateID]; ok {
				continue
			}
			v, err := currentVersion(ctx, tx, e.AggregateID)
			if err != nil {
				return err
			}
			versions[e.AggregateID] = v
		}
		return es.insert(ctx, tx, span, events, versions)
	})
}

func (es *EventStore) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := es.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func currentVersion(ctx context.Context, tx *sql.Tx, aggregateID uuid.UUID) (int, error) {
	var version int
	err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE aggregate_id = $1
	`, aggregateID).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query current version: %w", err)
	}
	return version, nil
}

// insert writes events, advancing versions in place.
func (es *EventStore) insert(ctx context.Context, tx *sql.Tx, span trace.Span, events []Event, versions map[uuid.UUID]int) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	created := es.now()
	for i, e := range events {
		version := versions[e.AggregateID] + 1
		versions[e.AggregateID] = version

		var metadata sql.NullString
		if e.Metadata != nil {
			raw, err := json.MarshalToString(e.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata of event %d: %w", i, err)
			}
			metadata = sql.NullString{String: raw, Valid: true}
		}

		var id int64
		err := stmt.QueryRowContext(ctx,
			e.AggregateID,
			e.AggregateType,
			e.EventType,
			string(e.EventData),
			metadata,
			version,
			created,
		).Scan(&id)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("insert event %d: %w", i, err)
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", id),
			attribute.Int("event.version", version),
			attribute.String("event.type", e.EventType),
		))
	}
	return nil
}

const selectEvents = `
	SELECT id, aggregate_id, aggregate_type, event_type, event_data, metadata, version, created_at
	FROM events
`

// LoadEvents returns an aggregate's events from fromVersion on, up to
// toVersion when it is positive.
func (es *EventStore) LoadEvents(ctx context.Context, aggregateID uuid.UUID, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID.String()),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	query := selectEvents + ` WHERE aggregate_id = $1 AND version >= $2`
	args := []any{aggregateID, fromVersion}
	if toVersion > 0 {
		query += ` AND version <= $3`
		args = append(args, toVersion)
	}
	query += ` ORDER BY version ASC`

	events, err := es.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// StreamEvents returns up to batchSize events with an id above fromID, in
// append order. Callers page by passing the last id they saw.
func (es *EventStore) StreamEvents(ctx context.Context, fromID int64, batchSize int) ([]Event, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.stream",
		trace.WithAttributes(
			attribute.Int64("from.id", fromID),
			attribute.Int("batch.size", batchSize),
		),
	)
	defer span.End()

	events, err := es.query(ctx, selectEvents+` WHERE id > $1 ORDER BY id ASC LIMIT $2`, fromID, batchSize)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("events.streamed", len(events)))
	return events, nil
}

// LastID returns the id of the newest event, 0 when the store is empty.
func (es *EventStore) LastID(ctx context.Context) (int64, error) {
	var id int64
	if err := es.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM events`).Scan(&id); err != nil {
		return 0, fmt.Errorf("query last event id: %w", err)
	}
	return id, nil
}

func (es *EventStore) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := es.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e        Event
			data     []byte
			metadata []byte
		)
		if err := rows.Scan(
			&e.ID,
			&e.AggregateID,
			&e.AggregateType,
			&e.EventType,
			&data,
			&metadata,
			&e.Version,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.EventData = data
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of event %d: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
