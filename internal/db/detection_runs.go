package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Fantasim/tokenscout/internal/models"
)

// Detection run status constants.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// InsertDetectionRun records the start of a detection pass and returns its ID.
func (d *DB) InsertDetectionRun(wallet, network string, kind models.DetectionKind) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := d.conn.Exec(
		`INSERT INTO detection_runs (id, wallet, network, kind, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, models.NormalizeAddress(wallet), network, string(kind), RunStatusRunning, now,
	); err != nil {
		return "", fmt.Errorf("insert detection run %s/%s: %w", network, kind, err)
	}

	slog.Debug("detection run inserted", "id", id, "network", network, "kind", kind)
	return id, nil
}

// FinishDetectionRun closes a run with its candidate and added counts.
func (d *DB) FinishDetectionRun(id, status string, candidates, added int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := d.conn.Exec(
		`UPDATE detection_runs SET status = ?, candidates = ?, added = ?, finished_at = ? WHERE id = ?`,
		status, candidates, added, now, id,
	)
	if err != nil {
		return fmt.Errorf("finish detection run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish detection run %s: no such run", id)
	}

	slog.Debug("detection run finished",
		"id", id,
		"status", status,
		"candidates", candidates,
		"added", added,
	)
	return nil
}

// ListDetectionRuns returns the most recent runs for a wallet, newest first.
func (d *DB) ListDetectionRuns(wallet, network string, limit int) ([]models.DetectionRun, error) {
	rows, err := d.conn.Query(
		`SELECT id, wallet, network, kind, candidates, added, status, started_at, finished_at
		 FROM detection_runs WHERE wallet = ? AND network = ?
		 ORDER BY started_at DESC LIMIT ?`,
		models.NormalizeAddress(wallet), network, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query detection runs %s/%s: %w", network, wallet, err)
	}
	defer rows.Close()

	runs := []models.DetectionRun{}
	for rows.Next() {
		var (
			r        models.DetectionRun
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Wallet, &r.Network, &r.Kind, &r.Candidates, &r.Added,
			&r.Status, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scan detection run row: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.String
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detection run rows: %w", err)
	}

	return runs, nil
}
