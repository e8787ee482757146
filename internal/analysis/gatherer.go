package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/provider"
)

// Gatherer fetches analysis inputs from a provider set concurrently and
// records one audit entry per call. Source failures are recorded, not
// returned; only token resolution and context errors fail a gather.
type Gatherer struct {
	sources  provider.Set
	resolver provider.TokenResolver
	settings
}

// NewGatherer creates a gatherer. resolver may be nil, in which case the
// identifier is used as the token ID.
func NewGatherer(sources provider.Set, resolver provider.TokenResolver, opts ...Option) *Gatherer {
	return &Gatherer{sources: sources, resolver: resolver, settings: newSettings("gatherer", opts)}
}

type auditLog struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func (l *auditLog) add(e domain.AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Gather resolves id and fetches every configured source.
func (g *Gatherer) Gather(ctx context.Context, id string) (*Inputs, error) {
	audit := &auditLog{}

	token := domain.TokenInfo{ID: id}
	if g.resolver != nil {
		start := g.now()
		t, err := g.resolver.Token(ctx, id)
		g.record(audit, domain.SourceManual, "resolve", start, err, "")
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", id, err)
		}
		token = t
	}

	in := &Inputs{Token: token}
	allocs := make([][]domain.RawAllocation, len(g.sources.Allocations))

	eg, ctx := errgroup.WithContext(ctx)
	if src := g.sources.Listings; src != nil {
		eg.Go(func() error {
			start := g.now()
			v, err := src.Listings(ctx, token)
			g.record(audit, src.Source(), "fetch_listings", start, err, fmt.Sprintf("%d listings", len(v)))
			in.Listings = v
			return nil
		})
	}
	if src := g.sources.Fallback; src != nil {
		eg.Go(func() error {
			start := g.now()
			v, err := src.FallbackListing(ctx, token)
			g.record(audit, src.Source(), "fetch_fallback", start, err, "")
			in.Fallback = v
			return nil
		})
	}
	if src := g.sources.Hourly; src != nil {
		eg.Go(func() error {
			start := g.now()
			v, err := src.HourlyPrices(ctx, token)
			g.record(audit, src.Source(), "fetch_hourly_prices", start, err, fmt.Sprintf("%d venue-hours", len(v)))
			in.HourlyPrices = v
			return nil
		})
	}
	if src := g.sources.Supply; src != nil {
		eg.Go(func() error {
			start := g.now()
			v, err := src.Supply(ctx, token)
			g.record(audit, src.Source(), "fetch_supply", start, err, "")
			in.Supply = v
			return nil
		})
	}
	if src := g.sources.Fundraising; src != nil {
		eg.Go(func() error {
			start := g.now()
			v, err := src.Fundraising(ctx, token)
			g.record(audit, src.Source(), "fetch_fundraising", start, err, "")
			in.Fundraising = v
			return nil
		})
	}
	for i, src := range g.sources.Allocations {
		eg.Go(func() error {
			start := g.now()
			v, err := src.Allocations(ctx, token)
			g.record(audit, src.Source(), "fetch_allocations", start, err, fmt.Sprintf("%d allocations", len(v)))
			allocs[i] = v
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, a := range allocs {
		in.Allocations = append(in.Allocations, a...)
	}

	// Goroutine completion order is not stable.
	sort.SliceStable(audit.entries, func(i, j int) bool {
		ei, ej := audit.entries[i], audit.entries[j]
		if ei.Action != ej.Action {
			return actionOrder(ei.Action) < actionOrder(ej.Action)
		}
		return ei.Source < ej.Source
	})
	in.Audit = audit.entries
	return in, nil
}

var actionOrder = func() func(string) int {
	order := map[string]int{
		"resolve":             0,
		"fetch_listings":      1,
		"fetch_fallback":      2,
		"fetch_hourly_prices": 3,
		"fetch_supply":        4,
		"fetch_fundraising":   5,
		"fetch_allocations":   6,
	}
	return func(a string) int {
		if n, ok := order[a]; ok {
			return n
		}
		return len(order)
	}
}()

func (g *Gatherer) record(audit *auditLog, src domain.DataSource, action string, start time.Time, err error, notes string) {
	elapsed := g.now().Sub(start)
	e := domain.AuditEntry{
		Timestamp:  start.UTC(),
		Source:     src,
		Action:     action,
		Success:    err == nil || errors.Is(err, provider.ErrNoData),
		DurationMs: elapsed.Milliseconds(),
	}
	switch {
	case err == nil:
		e.Notes = notes
	case errors.Is(err, provider.ErrNoData):
		e.Notes = "no data available"
	default:
		e.ErrorMessage = err.Error()
		g.log.WithFields(logrus.Fields{"source": src, "action": action}).WithError(err).Warn("source call failed")
	}
	audit.add(e)

	if errors.Is(err, provider.ErrNoData) {
		err = nil
	}
	g.metrics.RecordProviderCall(string(src), action, elapsed.Seconds(), err)
}
