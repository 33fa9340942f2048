package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/philippzhuravlev/DTUEvent/core"
	"github.com/uptrace/bun"
)

type EventStore struct {
	db   *bun.DB
	repo repository.Repository[*eventRecord]
	now  func() time.Time
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*eventRecord](db, eventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid event repository wiring: %w", err)
		}
	}
	return &EventStore{db: db, repo: repo, now: time.Now}, nil
}

// UpsertEvents writes the whole batch in one transaction. Each row is a
// single INSERT ... ON CONFLICT, so concurrent runs never race between a
// read and a write. Optional fields missing from an incoming event keep
// their stored value and created_at is only written on insert.
func (s *EventStore) UpsertEvents(ctx context.Context, events []core.Event) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	if len(events) == 0 {
		return nil
	}
	for _, event := range events {
		if strings.TrimSpace(event.ID) == "" {
			return fmt.Errorf("sqlstore: event id is required")
		}
	}
	now := s.now().UTC()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, event := range events {
			record := newEventRecord(event, now)
			if _, err := upsertEventQuery(tx, record).Exec(ctx); err != nil {
				return fmt.Errorf("sqlstore: upsert event %s: %w", record.ID, err)
			}
		}
		return nil
	})
}

func upsertEventQuery(db bun.IDB, record *eventRecord) *bun.InsertQuery {
	q := db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE")
	for _, column := range []string{"page_id", "title", "start_time", "event_url", "updated_at"} {
		q = q.Set(column + " = EXCLUDED." + column)
	}
	for _, column := range []string{"description", "end_time", "place", "cover_image_url"} {
		q = q.Set(column + " = COALESCE(EXCLUDED." + column + ", ?TableAlias." + column + ")")
	}
	return q
}

func (s *EventStore) ListByPage(ctx context.Context, pageID string) ([]core.Event, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("page_id", "=", strings.TrimSpace(pageID)),
		repository.OrderBy("start_time ASC"),
	)
	if err != nil {
		return nil, err
	}
	events := make([]core.Event, 0, len(records))
	for _, record := range records {
		events = append(events, record.toDomain())
	}
	return events, nil
}

func (s *EventStore) GetEvent(ctx context.Context, eventID string) (*core.Event, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	record, err := findEventTx(ctx, s.db, strings.TrimSpace(eventID))
	if err != nil || record == nil {
		return nil, err
	}
	event := record.toDomain()
	return &event, nil
}

func findEventTx(ctx context.Context, db bun.IDB, eventID string) (*eventRecord, error) {
	record := &eventRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}
