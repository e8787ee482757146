package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/storage"
)

// RawAllocationStore implements storage.RawAllocationStore using PostgreSQL.
type RawAllocationStore struct {
	pool *Pool
}

// NewRawAllocationStore creates a new RawAllocationStore.
func NewRawAllocationStore(pool *Pool) *RawAllocationStore {
	return &RawAllocationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawAllocationStore = (*RawAllocationStore)(nil)

// InsertBulk adds rows atomically. Fails entire batch on any duplicate.
func (s *RawAllocationStore) InsertBulk(ctx context.Context, tokenKey string, rows []domain.RawAllocation) (err error) {
	if tokenKey == "" {
		return storage.ErrInvalidInput
	}
	if len(rows) == 0 {
		return nil
	}

	defer func(start time.Time) { observe("insert_raw_allocations", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO raw_allocations (
			allocation_id, token_key, source, label, position, percentage, amount, vesting
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	keys := storage.AllocationKeys(tokenKey, rows)
	for i, r := range rows {
		var vesting []byte
		if r.Vesting != nil {
			if vesting, err = json.Marshal(r.Vesting); err != nil {
				return fmt.Errorf("marshal vesting: %w", err)
			}
		}

		_, err = tx.Exec(ctx, query,
			keys[i].ID,
			tokenKey,
			string(r.Source),
			r.Label,
			keys[i].Position,
			r.Percentage,
			r.Amount,
			vesting,
		)
		if err != nil {
			if err = classify(err); errors.Is(err, storage.ErrDuplicateKey) {
				return err
			}
			return fmt.Errorf("insert raw allocation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByToken retrieves rows for a token grouped by source in position order.
func (s *RawAllocationStore) GetByToken(ctx context.Context, tokenKey string) (_ []domain.RawAllocation, err error) {
	defer func(start time.Time) { observe("get_raw_allocations", start, err) }(time.Now())

	query := `
		SELECT source, label, percentage, amount, vesting
		FROM raw_allocations
		WHERE token_key = $1
		ORDER BY source ASC, position ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenKey)
	if err != nil {
		return nil, fmt.Errorf("get raw allocations by token: %w", err)
	}
	defer rows.Close()

	var out []domain.RawAllocation
	for rows.Next() {
		var (
			r       domain.RawAllocation
			source  string
			vesting []byte
		)
		if err := rows.Scan(&source, &r.Label, &r.Percentage, &r.Amount, &vesting); err != nil {
			return nil, fmt.Errorf("scan raw allocation row: %w", err)
		}
		r.Source = domain.DataSource(source)
		if len(vesting) > 0 {
			r.Vesting = &domain.VestingTerms{}
			if err := json.Unmarshal(vesting, r.Vesting); err != nil {
				return nil, fmt.Errorf("unmarshal vesting: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw allocation rows: %w", err)
	}
	return out, nil
}
