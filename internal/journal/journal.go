// Package journal records search runs in a local SQLite database so past results can be listed
// and re-broadcast.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/Liam-Dow/vanity-txhash-deployer/internal/present"
	"github.com/Liam-Dow/vanity-txhash-deployer/pkg/types"
)

// ErrNotFound is returned when an entry id does not exist.
var ErrNotFound = errors.New("journal entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS searches (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at       INTEGER NOT NULL,
	status           TEXT    NOT NULL,
	chain_id         INTEGER NOT NULL,
	sender           TEXT    NOT NULL,
	nonce            INTEGER NOT NULL,
	prefix           TEXT    NOT NULL,
	hash             TEXT    NOT NULL DEFAULT '',
	hash_mode        TEXT    NOT NULL DEFAULT '',
	contract_address TEXT    NOT NULL DEFAULT '',
	base_fee         INTEGER NOT NULL DEFAULT 0,
	priority_fee     INTEGER NOT NULL DEFAULT 0,
	gas_limit        INTEGER NOT NULL,
	attempts         INTEGER NOT NULL,
	duration_ms      INTEGER NOT NULL,
	closest_hash     TEXT    NOT NULL DEFAULT '',
	closest_nibbles  INTEGER NOT NULL DEFAULT 0,
	broadcast_hash   TEXT    NOT NULL DEFAULT ''
)`

// Entry is one journaled search run.
type Entry struct {
	ID            int64          `json:"id"`
	CreatedAt     time.Time      `json:"createdAt"`
	Report        present.Report `json:"report"`
	BroadcastHash string         `json:"broadcastHash,omitempty"`
}

// Journal is a handle on the search history database.
type Journal struct {
	logger zerolog.Logger
	db     *sql.DB
	now    func() time.Time
}

// Open opens or creates the journal at path.
func Open(logger zerolog.Logger, path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{
		logger: logger.With().Str("component", "journal").Str("path", path).Logger(),
		db:     db,
		now:    time.Now,
	}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record stores a finished search and returns its id.
func (j *Journal) Record(ctx context.Context, r present.Report) (int64, error) {
	res, err := j.db.ExecContext(ctx, `
		INSERT INTO searches (
			created_at, status, chain_id, sender, nonce, prefix, hash, hash_mode,
			contract_address, base_fee, priority_fee, gas_limit, attempts, duration_ms,
			closest_hash, closest_nibbles
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.now().UnixMilli(), r.Status, int64(r.ChainID), r.Sender, int64(r.Nonce), r.Prefix, r.Hash, r.HashMode,
		r.ContractAddress, int64(r.BaseFee), int64(r.PriorityFee), int64(r.GasLimit), int64(r.Attempts),
		int64(r.DurationSeconds*1000), r.ClosestHash, r.ClosestNibbles,
	)
	if err != nil {
		return 0, fmt.Errorf("record search: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	j.logger.Debug().Int64("id", id).Str("status", r.Status).Msg("search recorded")
	return id, nil
}

// MarkBroadcast stores the hash under which entry id was sent to the network.
func (j *Journal) MarkBroadcast(ctx context.Context, id int64, txHash string) error {
	res, err := j.db.ExecContext(ctx, `UPDATE searches SET broadcast_hash = ? WHERE id = ?`, txHash, id)
	if err != nil {
		return fmt.Errorf("mark broadcast: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	j.logger.Debug().Int64("id", id).Str("tx", txHash).Msg("broadcast recorded")
	return nil
}

// List returns up to limit entries, newest first. A non-positive limit returns everything.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, created_at, status, chain_id, sender, nonce, prefix, hash, hash_mode,
			contract_address, base_fee, priority_fee, gas_limit, attempts, duration_ms,
			closest_hash, closest_nibbles, broadcast_hash
		FROM searches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list searches: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created, chainID, nonce, base, prio, gas, att, durMs int64
		r := &e.Report
		if err := rows.Scan(&e.ID, &created, &r.Status, &chainID, &r.Sender, &nonce, &r.Prefix, &r.Hash, &r.HashMode,
			&r.ContractAddress, &base, &prio, &gas, &att, &durMs,
			&r.ClosestHash, &r.ClosestNibbles, &e.BroadcastHash); err != nil {
			return nil, fmt.Errorf("scan search: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created)
		r.ChainID = uint64(chainID)
		r.Nonce = uint64(nonce)
		r.BaseFee = uint64(base)
		r.PriorityFee = uint64(prio)
		r.GasLimit = uint64(gas)
		if r.Hash != "" {
			fees := types.FeePair{BaseFeeOffer: r.BaseFee, PriorityFeeOffer: r.PriorityFee}
			r.MaxFeePerGas = fees.MaxFeePerGas()
			r.MaxCostWei = present.MaxCost(r.GasLimit, fees).String()
		}
		r.Attempts = uint64(att)
		r.DurationSeconds = float64(durMs) / 1000
		if r.DurationSeconds > 0 {
			r.Rate = float64(r.Attempts) / r.DurationSeconds
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
