package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/storage"
)

func result(id, symbol string, at time.Time) *domain.ListingResult {
	return &domain.ListingResult{
		AnalysisID: id,
		AnalyzedAt: at,
		Token:      domain.TokenInfo{Symbol: symbol},
	}
}

func TestAnalysisStore_InsertAndGetByID(t *testing.T) {
	store := NewAnalysisStore()
	ctx := context.Background()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Insert(ctx, result("a1", "JTO", at)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "a1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Token.Symbol != "JTO" || !got.AnalyzedAt.Equal(at) {
		t.Errorf("unexpected result %+v", got)
	}

	got.Token.Symbol = "mutated"
	again, _ := store.GetByID(ctx, "a1")
	if again.Token.Symbol != "JTO" {
		t.Error("store returned shared state")
	}
}

func TestAnalysisStore_Errors(t *testing.T) {
	store := NewAnalysisStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
	if err := store.Insert(ctx, result("", "JTO", time.Now())); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty id, got %v", err)
	}

	if err := store.Insert(ctx, result("a1", "JTO", time.Now())); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, result("a1", "JTO", time.Now())); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalysisStore_GetByTokenNewestFirst(t *testing.T) {
	store := NewAnalysisStore()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new", "mid"} {
		offsets := []time.Duration{0, 2 * time.Hour, time.Hour}
		if err := store.Insert(ctx, result(id, "JTO", base.Add(offsets[i]))); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}
	if err := store.Insert(ctx, result("other", "PYTH", base)); err != nil {
		t.Fatalf("Insert other: %v", err)
	}

	got, err := store.GetByToken(ctx, "jto")
	if err != nil {
		t.Fatalf("GetByToken failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for i, want := range []string{"new", "mid", "old"} {
		if got[i].AnalysisID != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].AnalysisID, want)
		}
	}

	none, err := store.GetByToken(ctx, "bonk")
	if err != nil || len(none) != 0 {
		t.Errorf("expected empty result, got %v, %v", none, err)
	}
}
