package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Fantasim/tokenscout/internal/models"
)

// AssetDefinition is a cached asset definition document for a contract.
type AssetDefinition struct {
	Contract     string
	Body         []byte
	LastModified string
	FetchedAt    string
}

// GetAssetDefinition returns the cached definition, or nil if none is stored.
func (d *DB) GetAssetDefinition(contract string) (*AssetDefinition, error) {
	def := AssetDefinition{Contract: models.NormalizeAddress(contract)}
	var body string

	err := d.conn.QueryRow(
		`SELECT body, last_modified, fetched_at FROM asset_definitions WHERE contract = ?`,
		def.Contract,
	).Scan(&body, &def.LastModified, &def.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query asset definition %s: %w", contract, err)
	}

	def.Body = []byte(body)
	return &def, nil
}

// UpsertAssetDefinition stores a fetched definition body and its Last-Modified value.
func (d *DB) UpsertAssetDefinition(contract string, body []byte, lastModified string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if _, err := d.conn.Exec(
		`INSERT INTO asset_definitions (contract, body, last_modified, fetched_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(contract) DO UPDATE SET body = excluded.body, last_modified = excluded.last_modified, fetched_at = excluded.fetched_at`,
		models.NormalizeAddress(contract), string(body), lastModified, now,
	); err != nil {
		return fmt.Errorf("upsert asset definition %s: %w", contract, err)
	}
	return nil
}
