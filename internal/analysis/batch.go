package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"token-listing-lab/internal/domain"
)

// BatchResult pairs one batch input with its outcome.
type BatchResult struct {
	Token  string
	Inputs *Inputs // what was analyzed; nil when gathering failed
	Result *domain.ListingResult
	Err    error
}

// AnalyzeBatch analyzes inputs with bounded concurrency. A failed input is
// reported in its BatchResult and does not stop the others. Results are in
// input order. The returned error is non-nil only when ctx is done.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, inputs []Inputs) ([]BatchResult, error) {
	results := make([]BatchResult, len(inputs))

	var eg errgroup.Group
	eg.SetLimit(a.cfg.Concurrency)
	for i := range inputs {
		eg.Go(func() error {
			in := &inputs[i]
			res, err := a.Analyze(ctx, *in)
			results[i] = BatchResult{Token: tokenLabel(in.Token), Inputs: in, Result: res, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	a.log.WithField("total", len(inputs)).WithField("failed", failed).Info("batch complete")
	return results, nil
}

// GatherAndAnalyze gathers inputs for each id and analyzes them as a batch.
// Gather failures are reported per token.
func (a *Analyzer) GatherAndAnalyze(ctx context.Context, g *Gatherer, ids []string, overrides func(*Inputs)) ([]BatchResult, error) {
	inputs := make([]Inputs, len(ids))
	gatherErrs := make([]error, len(ids))

	var eg errgroup.Group
	eg.SetLimit(a.cfg.Concurrency)
	for i, id := range ids {
		eg.Go(func() error {
			in, err := g.Gather(ctx, id)
			if err != nil {
				gatherErrs[i] = err
				inputs[i] = Inputs{Token: domain.TokenInfo{ID: id}}
				return nil
			}
			if overrides != nil {
				overrides(in)
			}
			inputs[i] = *in
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pending []Inputs
	var pendingIdx []int
	results := make([]BatchResult, len(ids))
	for i := range ids {
		if gatherErrs[i] != nil {
			results[i] = BatchResult{Token: ids[i], Err: gatherErrs[i]}
			continue
		}
		pending = append(pending, inputs[i])
		pendingIdx = append(pendingIdx, i)
	}

	analyzed, err := a.AnalyzeBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	for j, r := range analyzed {
		results[pendingIdx[j]] = r
	}
	return results, nil
}
