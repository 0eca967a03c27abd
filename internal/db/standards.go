package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fantasim/tokenscout/internal/models"
)

// CachedStandard returns the standard previously determined for a contract.
// The second return is false when nothing is cached.
func (d *DB) CachedStandard(network, contract string) (models.TokenStandard, bool, error) {
	var standard string
	err := d.conn.QueryRow(
		`SELECT standard FROM contract_standards WHERE network = ? AND contract = ?`,
		network, models.NormalizeAddress(contract),
	).Scan(&standard)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query standard %s/%s: %w", network, contract, err)
	}
	return models.TokenStandard(standard), true, nil
}

// CacheStandard records the standard determined for a contract.
func (d *DB) CacheStandard(network, contract string, standard models.TokenStandard) error {
	now := time.Now().UTC().Format(time.RFC3339)
	contract = models.NormalizeAddress(contract)

	if _, err := d.conn.Exec(
		`INSERT INTO contract_standards (network, contract, standard, classified_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(network, contract) DO UPDATE SET standard = excluded.standard, classified_at = excluded.classified_at`,
		network, contract, string(standard), now,
	); err != nil {
		return fmt.Errorf("cache standard %s/%s: %w", network, contract, err)
	}

	slog.Debug("standard cached", "network", network, "contract", contract, "standard", standard)
	return nil
}
