package sessionlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	core "github.com/kilianp07/chargeplan/core/sessionlog"
)

// SQLiteStore persists records to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS charge_sessions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        appliance_id TEXT NOT NULL,
        vehicle_id TEXT,
        connected_at INTEGER,
        ended_at INTEGER,
        energy_wh REAL,
        final_state TEXT
    );
    CREATE INDEX IF NOT EXISTS charge_sessions_ended ON charge_sessions (ended_at);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Append writes the record to the database.
func (s *SQLiteStore) Append(ctx context.Context, rec core.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO charge_sessions (appliance_id, vehicle_id, connected_at, ended_at, energy_wh, final_state)
         VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ApplianceID, rec.VehicleID, rec.ConnectedAt.Unix(), rec.EndedAt.Unix(), rec.EnergyWh, rec.FinalState)
	return err
}

// Query returns records matching q ordered by end time.
func (s *SQLiteStore) Query(ctx context.Context, q core.Query) ([]core.Record, error) {
	var args []any
	query := `SELECT appliance_id, vehicle_id, connected_at, ended_at, energy_wh, final_state
        FROM charge_sessions WHERE 1=1`
	if !q.Start.IsZero() {
		query += ` AND ended_at >= ?`
		args = append(args, q.Start.Unix())
	}
	if !q.End.IsZero() {
		query += ` AND ended_at <= ?`
		args = append(args, q.End.Unix())
	}
	if q.ApplianceID != "" {
		query += ` AND appliance_id = ?`
		args = append(args, q.ApplianceID)
	}
	if q.VehicleID != "" {
		query += ` AND vehicle_id = ?`
		args = append(args, q.VehicleID)
	}
	query += ` ORDER BY ended_at, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []core.Record
	for rows.Next() {
		var r core.Record
		var connected, ended int64
		if err := rows.Scan(&r.ApplianceID, &r.VehicleID, &connected, &ended, &r.EnergyWh, &r.FinalState); err != nil {
			return nil, err
		}
		r.ConnectedAt = time.Unix(connected, 0).UTC()
		r.EndedAt = time.Unix(ended, 0).UTC()
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
