package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"sessionq/internal/queue"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const defaultListLimit = 100

// Record is one persisted queue event.
type Record struct {
	ID         int64
	Kind       queue.EventKind
	ItemID     string
	Key        string
	ConsumerID string
	Overwrote  bool
	At         time.Time
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	ItemID     string
	Key        string
	ConsumerID string
	Kind       queue.EventKind
	Since      time.Time
	Limit      int
}

// Append writes events in a single transaction.
func (s *Store) Append(ctx context.Context, events ...queue.Event) error {
	if len(events) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin append tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO events
			(kind, item_id, item_key, consumer_id, overwrote, occurred_at)
			VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare append: %w", err)
		}
		defer stmt.Close()

		for _, ev := range events {
			at := ev.At
			if at.IsZero() {
				at = time.Now()
			}
			if _, err := stmt.ExecContext(ctx,
				string(ev.Kind), ev.ItemID, ev.Key, ev.ConsumerID, boolToInt(ev.Overwrote), formatTime(at),
			); err != nil {
				return fmt.Errorf("insert %s event for %q: %w", ev.Kind, ev.ItemID, err)
			}
		}
		return tx.Commit()
	})
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Record, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if filter.ItemID != "" {
		clauses = append(clauses, "item_id = ?")
		args = append(args, filter.ItemID)
	}
	if filter.Key != "" {
		clauses = append(clauses, "item_key = ?")
		args = append(args, filter.Key)
	}
	if filter.ConsumerID != "" {
		clauses = append(clauses, "consumer_id = ?")
		args = append(args, filter.ConsumerID)
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, "occurred_at >= ?")
		args = append(args, formatTime(filter.Since))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := "SELECT id, kind, item_id, item_key, consumer_id, overwrote, occurred_at FROM events"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	var records []Record
	err := retryOnBusy(ctx, func() error {
		records = records[:0]
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list journal events: %w", err)
	}
	return records, nil
}

// Prune deletes records older than before and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var res sql.Result
	err := retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = s.db.ExecContext(ctx, "DELETE FROM events WHERE occurred_at < ?", formatTime(before))
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM events").Scan(&count); err != nil {
		return 0, fmt.Errorf("count journal events: %w", err)
	}
	return count, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (Record, error) {
	var (
		rec       Record
		kind      string
		overwrote int
		at        string
	)
	if err := scanner.Scan(&rec.ID, &kind, &rec.ItemID, &rec.Key, &rec.ConsumerID, &overwrote, &at); err != nil {
		return Record{}, err
	}
	parsed, err := time.Parse(timeLayout, at)
	if err != nil {
		return Record{}, fmt.Errorf("parse occurred_at %q: %w", at, err)
	}
	rec.Kind = queue.EventKind(kind)
	rec.Overwrote = overwrote != 0
	rec.At = parsed
	return rec, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
