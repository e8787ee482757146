package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/provider"
	"token-listing-lab/internal/storage"
)

// AnalysisStore implements storage.AnalysisStore using ClickHouse.
// The full result is kept as a JSON string next to summary columns.
type AnalysisStore struct {
	conn *Conn
}

// NewAnalysisStore creates a new AnalysisStore.
func NewAnalysisStore(conn *Conn) *AnalysisStore {
	return &AnalysisStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AnalysisStore = (*AnalysisStore)(nil)

// Insert adds a result. Returns ErrDuplicateKey if analysis_id exists.
func (s *AnalysisStore) Insert(ctx context.Context, r *domain.ListingResult) (err error) {
	if r == nil {
		return storage.ErrInvalidInput
	}
	id, err := uuid.Parse(r.AnalysisID)
	if err != nil {
		return fmt.Errorf("%w: analysis id %q", storage.ErrInvalidInput, r.AnalysisID)
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	defer func(start time.Time) { observe("insert_analysis", start, err) }(time.Now())

	// ReplacingMergeTree would replace; keep append-only semantics
	var count uint64
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM analyses WHERE analysis_id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	var (
		method, confidence string
		price, fdv, mcap   *float64
	)
	if ref := r.ReferencePrice; ref != nil {
		p := ref.Price
		method, confidence, price = string(ref.Method), string(ref.Confidence), &p
	}
	if v := r.Valuation; v != nil {
		fdv, mcap = v.InitialFDV, v.InitialMarketCap
	}
	var hasErrors uint8
	if r.HasErrors() {
		hasErrors = 1
	}

	query := `
		INSERT INTO analyses (
			analysis_id, token_key, symbol, method, reference_price, price_confidence,
			initial_fdv, initial_mcap, has_errors, analyzed_at, result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		id, provider.TokenKey(r.Token), r.Token.Symbol, method, price, confidence,
		fdv, mcap, hasErrors, r.AnalyzedAt.UTC(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// GetByID retrieves a result by analysis ID. Returns ErrNotFound if not exists.
func (s *AnalysisStore) GetByID(ctx context.Context, analysisID string) (_ *domain.ListingResult, err error) {
	id, err := uuid.Parse(analysisID)
	if err != nil {
		return nil, storage.ErrNotFound
	}

	defer func(start time.Time) { observe("get_analysis", start, err) }(time.Now())

	rows, err := s.conn.Query(ctx, `SELECT result FROM analyses FINAL WHERE analysis_id = ? LIMIT 1`, id)
	if err != nil {
		return nil, fmt.Errorf("get analysis by id: %w", err)
	}
	defer rows.Close()

	results, err := scanResults(rows)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, storage.ErrNotFound
	}
	return results[0], nil
}

// GetByToken retrieves all results for a token key, newest first.
func (s *AnalysisStore) GetByToken(ctx context.Context, tokenKey string) (_ []*domain.ListingResult, err error) {
	defer func(start time.Time) { observe("get_analyses_by_token", start, err) }(time.Now())

	query := `
		SELECT result
		FROM analyses FINAL
		WHERE token_key = ?
		ORDER BY analyzed_at DESC, analysis_id ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenKey)
	if err != nil {
		return nil, fmt.Errorf("get analyses by token: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

func scanResults(rows chRows) ([]*domain.ListingResult, error) {
	var out []*domain.ListingResult

	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		var r domain.ListingResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
		out = append(out, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis rows: %w", err)
	}
	return out, nil
}
