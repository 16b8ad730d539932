package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ledgerRepo stores the failure ledger as a single row (id = 1).
type ledgerRepo struct {
	db *sql.DB
}

func (r *ledgerRepo) Load(ctx context.Context) (LedgerRecord, bool, error) {
	var (
		rec               LedgerRecord
		genStart, trStart sql.NullString
		recentAt          sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT generic_count, generic_window_start, transport_count, transport_window_start, recent_issue_at
		 FROM failure_ledger WHERE id = 1`,
	).Scan(&rec.GenericCount, &genStart, &rec.TransportCount, &trStart, &recentAt)
	if errors.Is(err, sql.ErrNoRows) {
		return LedgerRecord{}, false, nil
	}
	if err != nil {
		return LedgerRecord{}, false, fmt.Errorf("load ledger: %w", err)
	}

	rec.GenericWindowStart = parseTime(genStart)
	rec.TransportWindowStart = parseTime(trStart)
	rec.RecentIssueAt = parseTime(recentAt)
	return rec, true, nil
}

func (r *ledgerRepo) Save(ctx context.Context, rec LedgerRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO failure_ledger
			(id, generic_count, generic_window_start, transport_count, transport_window_start, recent_issue_at, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			generic_count = excluded.generic_count,
			generic_window_start = excluded.generic_window_start,
			transport_count = excluded.transport_count,
			transport_window_start = excluded.transport_window_start,
			recent_issue_at = excluded.recent_issue_at,
			updated_at = excluded.updated_at`,
		rec.GenericCount,
		formatTime(rec.GenericWindowStart),
		rec.TransportCount,
		formatTime(rec.TransportWindowStart),
		formatTime(rec.RecentIssueAt),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
