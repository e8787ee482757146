package allocation

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/logger"
)

// ConflictConfig controls conflict and completeness checks.
type ConflictConfig struct {
	ThresholdPct     float64             // discrepancy strictly above this is a conflict
	TotalMinPct      float64             // per-source total lower bound
	TotalMaxPct      float64             // per-source total upper bound
	PreferredSources []domain.DataSource // resolution preference, most trusted first
}

// DefaultConflictConfig returns the standard thresholds.
func DefaultConflictConfig() ConflictConfig {
	return ConflictConfig{
		ThresholdPct:     5,
		TotalMinPct:      95,
		TotalMaxPct:      105,
		PreferredSources: []domain.DataSource{domain.SourceManual, domain.SourceCryptoRank, domain.SourceCoinGecko},
	}
}

// ConflictDetector compares per-source allocation figures.
type ConflictDetector struct {
	cfg ConflictConfig
	log logrus.FieldLogger
}

// NewConflictDetector creates a detector. Zero-valued fields take defaults.
func NewConflictDetector(cfg ConflictConfig, log logrus.FieldLogger) *ConflictDetector {
	def := DefaultConflictConfig()
	if cfg.ThresholdPct <= 0 {
		cfg.ThresholdPct = def.ThresholdPct
	}
	if cfg.TotalMinPct <= 0 {
		cfg.TotalMinPct = def.TotalMinPct
	}
	if cfg.TotalMaxPct <= 0 {
		cfg.TotalMaxPct = def.TotalMaxPct
	}
	if len(cfg.PreferredSources) == 0 {
		cfg.PreferredSources = def.PreferredSources
	}
	return &ConflictDetector{cfg: cfg, log: logger.Component(log, "conflicts")}
}

// BucketResolver names the bucket a raw row reported by source lands in.
type BucketResolver func(label string, source domain.DataSource) domain.CanonicalBucket

// BucketMap resolves by trimmed label alone; unlisted labels are unknown.
func BucketMap(m map[string]domain.CanonicalBucket) BucketResolver {
	return func(label string, _ domain.DataSource) domain.CanonicalBucket {
		if b, ok := m[strings.TrimSpace(label)]; ok {
			return b
		}
		return domain.BucketUnknownOther
	}
}

// DetectConflicts sums raw percentages per (bucket, source) and reports
// buckets where two or more sources differ by more than the threshold.
// Rows resolve through resolve; pass Mapper.Bucket so source overrides
// agree with data.Mapped. A nil resolver falls back to the labels recorded
// in data.Mapped, which cannot tell sources apart.
func (d *ConflictDetector) DetectConflicts(data *domain.AllocationData, resolve BucketResolver) []domain.Conflict {
	if data == nil {
		return nil
	}
	if resolve == nil {
		resolve = BucketMap(labelBuckets(data.Mapped))
	}

	sums := make(map[domain.CanonicalBucket]map[domain.DataSource]decimal.Decimal)
	for _, r := range data.Raw {
		if r.Percentage == nil || math.IsNaN(*r.Percentage) || math.IsInf(*r.Percentage, 0) {
			continue
		}
		bucket := resolve(r.Label, r.Source)
		bySource, ok := sums[bucket]
		if !ok {
			bySource = make(map[domain.DataSource]decimal.Decimal)
			sums[bucket] = bySource
		}
		bySource[r.Source] = bySource[r.Source].Add(decimal.NewFromFloat(*r.Percentage))
	}

	var conflicts []domain.Conflict
	for _, bucket := range domain.AllBuckets() {
		bySource := sums[bucket]
		if len(bySource) < 2 {
			continue
		}

		values := make(map[domain.DataSource]float64, len(bySource))
		set := make(map[domain.DataSource]struct{}, len(bySource))
		var lo, hi decimal.Decimal
		first := true
		for src, v := range bySource {
			values[src] = v.InexactFloat64()
			set[src] = struct{}{}
			if first || v.LessThan(lo) {
				lo = v
			}
			if first || v.GreaterThan(hi) {
				hi = v
			}
			first = false
		}

		discrepancy := hi.Sub(lo).InexactFloat64()
		if discrepancy <= d.cfg.ThresholdPct {
			continue
		}

		c := domain.Conflict{
			Bucket:         bucket,
			Sources:        sortedSources(set),
			Values:         values,
			DiscrepancyPct: discrepancy,
		}
		d.log.WithFields(logrus.Fields{
			"bucket":      bucket,
			"discrepancy": discrepancy,
			"sources":     c.Sources,
		}).Warn("allocation conflict")
		conflicts = append(conflicts, c)
	}
	return conflicts
}

// DetectTotalIssues flags sources whose summed percentages fall outside the
// acceptable band.
func (d *ConflictDetector) DetectTotalIssues(data *domain.AllocationData) []string {
	if data == nil {
		return nil
	}

	totals := make(map[domain.DataSource]decimal.Decimal)
	for _, r := range data.Raw {
		if r.Percentage != nil && !math.IsNaN(*r.Percentage) && !math.IsInf(*r.Percentage, 0) {
			totals[r.Source] = totals[r.Source].Add(decimal.NewFromFloat(*r.Percentage))
		}
	}

	sources := make([]domain.DataSource, 0, len(totals))
	for s := range totals {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	var issues []string
	for _, src := range sources {
		total := totals[src].InexactFloat64()
		switch {
		case total < d.cfg.TotalMinPct:
			issues = append(issues, fmt.Sprintf(
				"[%s] Total allocation (%.1f%%) is below expected minimum (%g%%). Some allocations may be missing.",
				src, total, d.cfg.TotalMinPct))
		case total > d.cfg.TotalMaxPct:
			issues = append(issues, fmt.Sprintf(
				"[%s] Total allocation (%.1f%%) exceeds expected maximum (%g%%). Some allocations may be duplicated or incorrect.",
				src, total, d.cfg.TotalMaxPct))
		}
	}
	return issues
}

// SuggestResolution returns a copy of c naming the source to trust. The
// first preferred source involved wins; otherwise the source closest to the
// mean of all values. A nil preference list uses the configured default.
func (d *ConflictDetector) SuggestResolution(c domain.Conflict, preferred []domain.DataSource) domain.Conflict {
	if preferred == nil {
		preferred = d.cfg.PreferredSources
	}

	involved := make(map[domain.DataSource]bool, len(c.Sources))
	for _, s := range c.Sources {
		involved[s] = true
	}

	var best domain.DataSource
	for _, s := range preferred {
		if involved[s] {
			best = s
			break
		}
	}

	if best == "" && len(c.Sources) > 0 {
		var sum float64
		for _, s := range c.Sources {
			sum += c.Values[s]
		}
		mean := sum / float64(len(c.Sources))
		minDiff := math.Inf(1)
		for _, s := range c.Sources {
			if diff := math.Abs(c.Values[s] - mean); diff < minDiff {
				minDiff = diff
				best = s
			}
		}
	}

	out := c
	out.Sources = append([]domain.DataSource(nil), c.Sources...)
	out.Values = make(map[domain.DataSource]float64, len(c.Values))
	for k, v := range c.Values {
		out.Values[k] = v
	}
	if best != "" {
		out.PreferredSource = best
		out.Resolution = fmt.Sprintf("Suggested: use %s value (%.1f%%)", best, c.Values[best])
	}
	return out
}

func labelBuckets(mapped []domain.MappedAllocation) map[string]domain.CanonicalBucket {
	out := make(map[string]domain.CanonicalBucket)
	for _, m := range mapped {
		for _, l := range m.OriginalLabels {
			if _, ok := out[l]; !ok {
				out[l] = m.Bucket
			}
		}
	}
	return out
}
