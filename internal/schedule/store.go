package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS delivery_schedule (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	warehouse TEXT NOT NULL,
	pickup_point TEXT NOT NULL DEFAULT '',
	weekday INTEGER NOT NULL,
	order_by TEXT NOT NULL,
	duration INTEGER NOT NULL,
	delivery_type TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE(warehouse, pickup_point, weekday, order_by)
);
CREATE TABLE IF NOT EXISTS schedule_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	warehouse TEXT NOT NULL,
	pickup_point TEXT NOT NULL DEFAULT '',
	weekday INTEGER NOT NULL,
	order_by TEXT NOT NULL,
	old_duration INTEGER,
	old_delivery_type TEXT,
	new_duration INTEGER NOT NULL,
	new_delivery_type TEXT NOT NULL,
	changed_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_schedule_history_pair ON schedule_history(warehouse, pickup_point);
`

// Store persists schedule windows and their change history in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// HistoryEntry is one recorded change of a window.
type HistoryEntry struct {
	ChangedAt   time.Time    `json:"changed_at"`
	Warehouse   string       `json:"warehouse"`
	PickupPoint string       `json:"pickup_point"`
	Weekday     int          `json:"weekday"`
	OrderBy     string       `json:"order_by"`
	OldDuration *int         `json:"old_duration,omitempty"`
	OldType     DeliveryType `json:"old_delivery_type,omitempty"`
	NewDuration int          `json:"new_duration"`
	NewType     DeliveryType `json:"new_delivery_type"`
}

// OpenStore opens (or creates) the schedule database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schedule database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schedule schema: %w", err)
	}

	log.Debug().Str("path", path).Msg("Schedule store opened")
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert inserts or updates a window and records the change in the history.
// Unchanged windows leave no history entry. It reports whether anything changed.
func (s *Store) Upsert(ctx context.Context, w Window) (bool, error) {
	if err := w.Validate(); err != nil {
		return false, err
	}

	wh := strings.TrimSpace(w.Warehouse)
	pv := strings.TrimSpace(w.PickupPoint)
	orderBy := w.OrderByClock()
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var oldDuration sql.NullInt64
	var oldType sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT duration, delivery_type FROM delivery_schedule
		 WHERE warehouse = ? AND pickup_point = ? AND weekday = ? AND order_by = ?`,
		wh, pv, w.Weekday, orderBy).Scan(&oldDuration, &oldType)
	existing := true
	if errors.Is(err, sql.ErrNoRows) {
		existing = false
	} else if err != nil {
		return false, fmt.Errorf("failed to read existing window: %w", err)
	}

	if existing && int(oldDuration.Int64) == w.Duration && oldType.String == string(w.DeliveryType) {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO delivery_schedule (warehouse, pickup_point, weekday, order_by, duration, delivery_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(warehouse, pickup_point, weekday, order_by) DO UPDATE SET
			duration = excluded.duration,
			delivery_type = excluded.delivery_type,
			updated_at = excluded.updated_at`,
		wh, pv, w.Weekday, orderBy, w.Duration, string(w.DeliveryType), now, now)
	if err != nil {
		return false, fmt.Errorf("failed to upsert window: %w", err)
	}

	var histDuration any
	var histType any
	if existing {
		histDuration = oldDuration.Int64
		histType = oldType.String
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO schedule_history (warehouse, pickup_point, weekday, order_by,
			old_duration, old_delivery_type, new_duration, new_delivery_type, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wh, pv, w.Weekday, orderBy, histDuration, histType, w.Duration, string(w.DeliveryType), now)
	if err != nil {
		return false, fmt.Errorf("failed to record schedule history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit window: %w", err)
	}
	return true, nil
}

// UpsertAll stores every window and returns how many changed.
func (s *Store) UpsertAll(ctx context.Context, windows []Window) (int, error) {
	changed := 0
	for _, w := range windows {
		ok, err := s.Upsert(ctx, w)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

// Windows returns stored windows matching the search term (warehouse or pickup
// point substring, empty for all) and weekdays (empty for all).
func (s *Store) Windows(ctx context.Context, search string, weekdays ...int) ([]Window, error) {
	query := `SELECT warehouse, pickup_point, weekday, order_by, duration, delivery_type
		FROM delivery_schedule WHERE 1=1`
	var args []any

	if search != "" {
		query += " AND (warehouse LIKE ? OR pickup_point LIKE ?)"
		like := "%" + search + "%"
		args = append(args, like, like)
	}
	if len(weekdays) > 0 {
		query += " AND weekday IN (?" + strings.Repeat(",?", len(weekdays)-1) + ")"
		for _, d := range weekdays {
			args = append(args, d)
		}
	}
	query += " ORDER BY warehouse, pickup_point, weekday, order_by"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}
	defer rows.Close()

	var out []Window
	for rows.Next() {
		var w Window
		var orderBy, dtype string
		if err := rows.Scan(&w.Warehouse, &w.PickupPoint, &w.Weekday, &orderBy, &w.Duration, &dtype); err != nil {
			return nil, fmt.Errorf("failed to scan window: %w", err)
		}
		if w.OrderBy, err = ParseClock(orderBy); err != nil {
			log.Warn().Err(err).Str("warehouse", w.Warehouse).Msg("Skipping stored window with invalid time")
			continue
		}
		w.DeliveryType = DeliveryType(dtype)
		out = append(out, w)
	}
	return out, rows.Err()
}

// History returns the changes recorded for a warehouse, newest first.
// An empty pickupPoint returns changes for every pickup point.
func (s *Store) History(ctx context.Context, warehouse, pickupPoint string) ([]HistoryEntry, error) {
	query := `SELECT changed_at, warehouse, pickup_point, weekday, order_by,
			old_duration, old_delivery_type, new_duration, new_delivery_type
		FROM schedule_history WHERE warehouse = ?`
	args := []any{strings.TrimSpace(warehouse)}
	if pickupPoint != "" {
		query += " AND pickup_point = ?"
		args = append(args, strings.TrimSpace(pickupPoint))
	}
	query += " ORDER BY changed_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedule history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var oldDuration sql.NullInt64
		var oldType sql.NullString
		var newType string
		if err := rows.Scan(&h.ChangedAt, &h.Warehouse, &h.PickupPoint, &h.Weekday, &h.OrderBy,
			&oldDuration, &oldType, &h.NewDuration, &newType); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if oldDuration.Valid {
			d := int(oldDuration.Int64)
			h.OldDuration = &d
		}
		h.OldType = DeliveryType(oldType.String)
		h.NewType = DeliveryType(newType)
		out = append(out, h)
	}
	return out, rows.Err()
}
