package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/provider"
	"token-listing-lab/internal/storage"
)

// AnalysisStore implements storage.AnalysisStore using PostgreSQL.
// Summary columns are denormalized for querying; the full result is JSONB.
type AnalysisStore struct {
	pool *Pool
}

// NewAnalysisStore creates a new AnalysisStore.
func NewAnalysisStore(pool *Pool) *AnalysisStore {
	return &AnalysisStore{pool: pool}
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

	query := `
		INSERT INTO analyses (
			analysis_id, token_key, symbol, method, reference_price, price_confidence,
			initial_fdv, initial_mcap, has_errors, analyzed_at, result
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	sum := summarize(r)
	_, err = s.pool.Exec(ctx, query,
		id,
		provider.TokenKey(r.Token),
		r.Token.Symbol,
		sum.method,
		sum.price,
		sum.confidence,
		sum.fdv,
		sum.mcap,
		r.HasErrors(),
		r.AnalyzedAt,
		payload,
	)
	if err != nil {
		if err = classify(err); errors.Is(err, storage.ErrDuplicateKey) {
			return err
		}
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

	row := s.pool.QueryRow(ctx, `SELECT result FROM analyses WHERE analysis_id = $1`, id)
	r, err := scanResult(row)
	if err != nil {
		if err = classify(err); errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get analysis by id: %w", err)
	}
	return r, nil
}

// GetByToken retrieves all results for a token key, newest first.
func (s *AnalysisStore) GetByToken(ctx context.Context, tokenKey string) (_ []*domain.ListingResult, err error) {
	defer func(start time.Time) { observe("get_analyses_by_token", start, err) }(time.Now())

	query := `
		SELECT result
		FROM analyses
		WHERE token_key = $1
		ORDER BY analyzed_at DESC, analysis_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenKey)
	if err != nil {
		return nil, fmt.Errorf("get analyses by token: %w", err)
	}
	defer rows.Close()

	var out []*domain.ListingResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analysis rows: %w", err)
	}
	return out, nil
}

func scanResult(row pgx.Row) (*domain.ListingResult, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return nil, err
	}
	var r domain.ListingResult
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &r, nil
}

type resultSummary struct {
	method     string
	price      *float64
	confidence string
	fdv        *float64
	mcap       *float64
}

func summarize(r *domain.ListingResult) resultSummary {
	var sum resultSummary
	if ref := r.ReferencePrice; ref != nil {
		p := ref.Price
		sum.method = string(ref.Method)
		sum.price = &p
		sum.confidence = string(ref.Confidence)
	}
	if v := r.Valuation; v != nil {
		sum.fdv = v.InitialFDV
		sum.mcap = v.InitialMarketCap
	}
	return sum
}
