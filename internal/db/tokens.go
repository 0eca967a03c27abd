package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fantasim/tokenscout/internal/config"
	"github.com/Fantasim/tokenscout/internal/models"
)

// Contract set kinds stored in contract_sets.kind.
const (
	setDeleted  = "deleted"
	setHidden   = "hidden"
	setDelegate = "delegate"
)

// TokenStore is the token list and contract sets of one wallet on one network.
// Every method is a single statement or a single transaction.
type TokenStore struct {
	db      *DB
	wallet  string
	network string
}

// TokenStore returns the store view for wallet on network.
func (d *DB) TokenStore(wallet, network string) *TokenStore {
	return &TokenStore{
		db:      d,
		wallet:  models.NormalizeAddress(wallet),
		network: network,
	}
}

// Wallet returns the wallet address the store is scoped to.
func (s *TokenStore) Wallet() string { return s.wallet }

// Network returns the network the store is scoped to.
func (s *TokenStore) Network() string { return s.network }

// EnabledContracts returns the contracts in the token list.
func (s *TokenStore) EnabledContracts() (models.ContractSet, error) {
	rows, err := s.db.conn.Query(
		`SELECT contract FROM tokens WHERE wallet = ? AND network = ?`,
		s.wallet, s.network,
	)
	if err != nil {
		return nil, fmt.Errorf("query enabled contracts %s/%s: %w", s.network, s.wallet, err)
	}
	return scanContractSet(rows)
}

// DeletedContracts returns contracts the user deleted.
func (s *TokenStore) DeletedContracts() (models.ContractSet, error) {
	return s.contractSet(setDeleted)
}

// HiddenContracts returns contracts the user hid.
func (s *TokenStore) HiddenContracts() (models.ContractSet, error) {
	return s.contractSet(setHidden)
}

// DelegateContracts returns contracts marked as delegates.
func (s *TokenStore) DelegateContracts() (models.ContractSet, error) {
	return s.contractSet(setDelegate)
}

// KnownSets loads all four contract sets.
func (s *TokenStore) KnownSets() (models.KnownContractSets, error) {
	var (
		known models.KnownContractSets
		err   error
	)
	if known.AlreadyAdded, err = s.EnabledContracts(); err != nil {
		return known, err
	}
	if known.Deleted, err = s.DeletedContracts(); err != nil {
		return known, err
	}
	if known.Hidden, err = s.HiddenContracts(); err != nil {
		return known, err
	}
	if known.Delegate, err = s.DelegateContracts(); err != nil {
		return known, err
	}
	return known, nil
}

func (s *TokenStore) contractSet(kind string) (models.ContractSet, error) {
	rows, err := s.db.conn.Query(
		`SELECT contract FROM contract_sets WHERE wallet = ? AND network = ? AND kind = ?`,
		s.wallet, s.network, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s contracts %s/%s: %w", kind, s.network, s.wallet, err)
	}
	return scanContractSet(rows)
}

func scanContractSet(rows *sql.Rows) (models.ContractSet, error) {
	defer rows.Close()

	set := models.NewContractSet()
	for rows.Next() {
		var contract string
		if err := rows.Scan(&contract); err != nil {
			return nil, fmt.Errorf("scan contract row: %w", err)
		}
		set.Add(contract)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contract rows: %w", err)
	}
	return set, nil
}

// AddToken inserts or replaces a token in the list. The contract leaves the
// deleted and hidden sets in the same transaction.
func (s *TokenStore) AddToken(token models.Token) error {
	if !token.Standard.Valid() {
		return fmt.Errorf("%w: standard %q", config.ErrInvalidToken, token.Standard)
	}
	contract := models.NormalizeAddress(token.Contract)
	if contract == "" {
		return fmt.Errorf("%w: empty contract", config.ErrInvalidToken)
	}

	balance, err := json.Marshal(nonNilItems(token.Balance))
	if err != nil {
		return fmt.Errorf("encode balance for %s: %w", contract, err)
	}
	value := token.Value
	if value == "" {
		value = "0"
	}
	now := time.Now().UTC().Format(time.RFC3339)

	return s.inTx("add token "+contract, func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO tokens (wallet, network, contract, name, symbol, decimals, standard, value, balance, added_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(wallet, network, contract) DO UPDATE SET
			   name = excluded.name, symbol = excluded.symbol, decimals = excluded.decimals,
			   standard = excluded.standard, value = excluded.value, balance = excluded.balance`,
			s.wallet, s.network, contract, token.Name, token.Symbol, int(token.Decimals),
			string(token.Standard), value, string(balance), now,
		); err != nil {
			return err
		}
		_, err := tx.Exec(
			`DELETE FROM contract_sets WHERE wallet = ? AND network = ? AND contract = ? AND kind IN (?, ?)`,
			s.wallet, s.network, contract, setDeleted, setHidden,
		)
		return err
	})
}

// AddDelegate marks a contract as a delegate. Delegate membership does not
// affect the token list or the other sets.
func (s *TokenStore) AddDelegate(contract string) error {
	return s.insertSet(models.NormalizeAddress(contract), setDelegate)
}

// AddDeletedContract records contract as deleted, removing it from the token
// list and the hidden set.
func (s *TokenStore) AddDeletedContract(contract string) error {
	contract = models.NormalizeAddress(contract)
	return s.inTx("add deleted "+contract, func(tx *sql.Tx) error {
		return s.moveToSet(tx, contract, setDeleted, setHidden)
	})
}

// HideContract records contract as hidden, removing it from the token list and
// the deleted set.
func (s *TokenStore) HideContract(contract string) error {
	contract = models.NormalizeAddress(contract)
	return s.inTx("hide "+contract, func(tx *sql.Tx) error {
		return s.moveToSet(tx, contract, setHidden, setDeleted)
	})
}

// DeleteToken removes a token from the list and records it as deleted.
// Returns ErrTokenNotFound if the contract was not in the list.
func (s *TokenStore) DeleteToken(contract string) error {
	contract = models.NormalizeAddress(contract)
	return s.inTx("delete token "+contract, func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRow(
			`SELECT COUNT(*) FROM tokens WHERE wallet = ? AND network = ? AND contract = ?`,
			s.wallet, s.network, contract,
		).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			return config.ErrTokenNotFound
		}
		return s.moveToSet(tx, contract, setDeleted, setHidden)
	})
}

// RemoveHidden takes contract out of the hidden set.
func (s *TokenStore) RemoveHidden(contract string) error {
	contract = models.NormalizeAddress(contract)
	if _, err := s.db.conn.Exec(
		`DELETE FROM contract_sets WHERE wallet = ? AND network = ? AND contract = ? AND kind = ?`,
		s.wallet, s.network, contract, setHidden,
	); err != nil {
		return fmt.Errorf("remove hidden %s: %w", contract, err)
	}
	return nil
}

// ListTokens returns the token list ordered by insertion time.
func (s *TokenStore) ListTokens() ([]models.Token, error) {
	rows, err := s.db.conn.Query(
		`SELECT contract, network, name, symbol, decimals, standard, value, balance, added_at
		 FROM tokens WHERE wallet = ? AND network = ?
		 ORDER BY added_at, contract`,
		s.wallet, s.network,
	)
	if err != nil {
		return nil, fmt.Errorf("query tokens %s/%s: %w", s.network, s.wallet, err)
	}
	defer rows.Close()

	tokens := []models.Token{}
	for rows.Next() {
		var (
			t        models.Token
			decimals int
			balance  string
		)
		if err := rows.Scan(&t.Contract, &t.Network, &t.Name, &t.Symbol, &decimals,
			&t.Standard, &t.Value, &balance, &t.AddedAt); err != nil {
			return nil, fmt.Errorf("scan token row: %w", err)
		}
		t.Decimals = uint8(decimals)
		if err := json.Unmarshal([]byte(balance), &t.Balance); err != nil {
			return nil, fmt.Errorf("decode balance for %s: %w", t.Contract, err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate token rows: %w", err)
	}

	return tokens, nil
}

// GetToken returns one token from the list, or ErrTokenNotFound.
func (s *TokenStore) GetToken(contract string) (*models.Token, error) {
	tokens, err := s.ListTokens()
	if err != nil {
		return nil, err
	}
	contract = models.NormalizeAddress(contract)
	for i := range tokens {
		if tokens[i].Contract == contract {
			return &tokens[i], nil
		}
	}
	return nil, config.ErrTokenNotFound
}

func (s *TokenStore) insertSet(contract, kind string) error {
	if _, err := s.db.conn.Exec(
		`INSERT OR IGNORE INTO contract_sets (wallet, network, contract, kind) VALUES (?, ?, ?, ?)`,
		s.wallet, s.network, contract, kind,
	); err != nil {
		return fmt.Errorf("insert %s contract %s: %w", kind, contract, err)
	}
	slog.Debug("contract set updated", "network", s.network, "contract", contract, "kind", kind)
	return nil
}

// moveToSet drops the token row and the excluded set entry, then adds contract
// to kind.
func (s *TokenStore) moveToSet(tx *sql.Tx, contract, kind, exclusive string) error {
	if _, err := tx.Exec(
		`DELETE FROM tokens WHERE wallet = ? AND network = ? AND contract = ?`,
		s.wallet, s.network, contract,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`DELETE FROM contract_sets WHERE wallet = ? AND network = ? AND contract = ? AND kind = ?`,
		s.wallet, s.network, contract, exclusive,
	); err != nil {
		return err
	}
	_, err := tx.Exec(
		`INSERT OR IGNORE INTO contract_sets (wallet, network, contract, kind) VALUES (?, ?, ?, ?)`,
		s.wallet, s.network, contract, kind,
	)
	return err
}

func (s *TokenStore) inTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		if errors.Is(err, config.ErrTokenNotFound) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	slog.Debug("token store updated", "op", op, "network", s.network, "wallet", s.wallet)
	return nil
}

func nonNilItems(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
