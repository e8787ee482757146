package clickhouse

import (
	"context"
	"fmt"
	"time"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/storage"
)

// HourlyPriceStore implements storage.HourlyPriceStore using ClickHouse.
type HourlyPriceStore struct {
	conn *Conn
}

// NewHourlyPriceStore creates a new HourlyPriceStore.
func NewHourlyPriceStore(conn *Conn) *HourlyPriceStore {
	return &HourlyPriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.HourlyPriceStore = (*HourlyPriceStore)(nil)

// InsertBulk adds rows. Fails entire batch on duplicate (token, hour, venue).
// MergeTree does not enforce keys, so duplicates are checked before insert.
func (s *HourlyPriceStore) InsertBulk(ctx context.Context, tokenKey string, rows []domain.VenueHourlyPrice) (err error) {
	if tokenKey == "" {
		return storage.ErrInvalidInput
	}
	if len(rows) == 0 {
		return nil
	}

	defer func(start time.Time) { observe("insert_hourly_prices", start, err) }(time.Now())

	type key struct {
		hour  int64
		venue string
	}
	seen := make(map[key]struct{}, len(rows))
	for _, r := range rows {
		if r.Venue == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.Hour.UTC().Truncate(time.Hour).Unix(), r.Venue}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, r := range rows {
		exists, err := s.exists(ctx, tokenKey, r.Hour.UTC().Truncate(time.Hour), r.Venue)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO venue_hourly_prices (
			token_key, hour, venue, avg_price, swap_count, volume
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			tokenKey, r.Hour.UTC().Truncate(time.Hour), r.Venue,
			r.AvgPrice, uint32(r.SwapCount), r.Volume,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByToken retrieves rows for a token ordered by hour, then venue.
func (s *HourlyPriceStore) GetByToken(ctx context.Context, tokenKey string) (_ []domain.VenueHourlyPrice, err error) {
	defer func(start time.Time) { observe("get_hourly_prices", start, err) }(time.Now())

	query := `
		SELECT hour, venue, avg_price, swap_count, volume
		FROM venue_hourly_prices
		WHERE token_key = ?
		ORDER BY hour ASC, venue ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenKey)
	if err != nil {
		return nil, fmt.Errorf("query by token: %w", err)
	}
	defer rows.Close()

	return scanHourlyPrices(rows)
}

// GetByTimeRange retrieves rows with hour within [start, end] (inclusive).
func (s *HourlyPriceStore) GetByTimeRange(ctx context.Context, tokenKey string, start, end time.Time) (_ []domain.VenueHourlyPrice, err error) {
	defer func(t time.Time) { observe("get_hourly_prices_range", t, err) }(time.Now())

	query := `
		SELECT hour, venue, avg_price, swap_count, volume
		FROM venue_hourly_prices
		WHERE token_key = ? AND hour >= ? AND hour <= ?
		ORDER BY hour ASC, venue ASC
	`

	rows, err := s.conn.Query(ctx, query, tokenKey, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanHourlyPrices(rows)
}

func (s *HourlyPriceStore) exists(ctx context.Context, tokenKey string, hour time.Time, venue string) (bool, error) {
	query := `
		SELECT count(*) FROM venue_hourly_prices
		WHERE token_key = ? AND hour = ? AND venue = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, tokenKey, hour, venue).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanHourlyPrices(rows chRows) ([]domain.VenueHourlyPrice, error) {
	var out []domain.VenueHourlyPrice

	for rows.Next() {
		var r domain.VenueHourlyPrice
		var swapCount uint32

		if err := rows.Scan(&r.Hour, &r.Venue, &r.AvgPrice, &swapCount, &r.Volume); err != nil {
			return nil, fmt.Errorf("scan hourly price row: %w", err)
		}

		r.Hour = r.Hour.UTC()
		r.SwapCount = int(swapCount)
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hourly price rows: %w", err)
	}
	return out, nil
}
