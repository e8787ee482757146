package allocation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/logger"
)

// Completeness band for the summed bucket percentages.
const (
	CompleteMinPct = 95.0
	CompleteMaxPct = 105.0
)

// NoMatchRule is reported when no pattern matches a label.
const NoMatchRule = "no_match"

// Match is the outcome of mapping one label.
type Match struct {
	Bucket   domain.CanonicalBucket
	Rule     string
	Priority int
}

// Mapper resolves labels to canonical buckets.
type Mapper struct {
	rules *RuleSet
	log   logrus.FieldLogger
}

// MapperOption configures a Mapper.
type MapperOption func(*Mapper)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) MapperOption {
	return func(m *Mapper) {
		m.log = logger.Component(log, "allocation")
	}
}

// NewMapper creates a mapper. A nil rule set uses DefaultRuleSet.
func NewMapper(rules *RuleSet, opts ...MapperOption) *Mapper {
	if rules == nil {
		rules = DefaultRuleSet()
	}
	m := &Mapper{rules: rules, log: logger.Component(nil, "allocation")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MapLabel resolves label reported by source. A literal source override wins;
// otherwise the highest-priority matching pattern is used, and among equal
// priorities the rule added first.
func (m *Mapper) MapLabel(label string, source domain.DataSource) Match {
	clean := strings.TrimSpace(label)

	if bucket, ok := m.rules.override(source, clean); ok {
		return Match{Bucket: bucket, Rule: "source_override:" + string(source), Priority: OverridePriority}
	}

	var best *Rule
	for i := range m.rules.rules {
		r := &m.rules.rules[i]
		ok, err := r.re.MatchString(clean)
		if err != nil {
			m.log.WithFields(logrus.Fields{"pattern": r.Pattern, "label": clean}).WithError(err).Warn("pattern match failed")
			continue
		}
		if ok && (best == nil || r.Priority > best.Priority) {
			best = r
		}
	}
	if best == nil {
		return Match{Bucket: domain.BucketUnknownOther, Rule: NoMatchRule, Priority: 0}
	}
	return Match{Bucket: best.Bucket, Rule: best.Pattern, Priority: best.Priority}
}

type bucketGroup struct {
	labels    map[string]struct{}
	sources   map[domain.DataSource]struct{}
	rules     map[string]struct{}
	pct       decimal.Decimal
	amount    decimal.Decimal
	hasPct    bool
	hasAmount bool
	vesting   *domain.VestingTerms
}

// Bucket is MapLabel reduced to the bucket; it satisfies BucketResolver.
func (m *Mapper) Bucket(label string, source domain.DataSource) domain.CanonicalBucket {
	return m.MapLabel(label, source).Bucket
}

// MapAllocations groups raw allocations by resolved bucket. The output is
// sorted by canonical display order; labels, sources and rules are sorted so
// identical input always yields identical output.
func (m *Mapper) MapAllocations(raw []domain.RawAllocation) (*domain.AllocationData, error) {
	for i, r := range raw {
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("raw allocation %d: %w", i, err)
		}
	}

	data := &domain.AllocationData{
		Raw:    append([]domain.RawAllocation(nil), raw...),
		Mapped: []domain.MappedAllocation{},
	}
	if len(raw) == 0 {
		return data, nil
	}

	groups := make(map[domain.CanonicalBucket]*bucketGroup)
	used := make(map[domain.DataSource]struct{})

	for _, r := range raw {
		match := m.MapLabel(r.Label, r.Source)
		m.log.WithFields(logrus.Fields{
			"label":  r.Label,
			"source": r.Source,
			"bucket": match.Bucket,
			"rule":   match.Rule,
		}).Debug("mapped allocation label")

		g, ok := groups[match.Bucket]
		if !ok {
			g = &bucketGroup{
				labels:  make(map[string]struct{}),
				sources: make(map[domain.DataSource]struct{}),
				rules:   make(map[string]struct{}),
			}
			groups[match.Bucket] = g
		}
		g.labels[strings.TrimSpace(r.Label)] = struct{}{}
		g.sources[r.Source] = struct{}{}
		g.rules[match.Rule] = struct{}{}
		used[r.Source] = struct{}{}

		if r.Percentage != nil {
			g.pct = g.pct.Add(decimal.NewFromFloat(*r.Percentage))
			g.hasPct = true
		}
		if r.Amount != nil {
			g.amount = g.amount.Add(decimal.NewFromFloat(*r.Amount))
			g.hasAmount = true
		}
		if g.vesting == nil && r.Vesting != nil {
			g.vesting = cloneVesting(r.Vesting)
		}
	}

	var total decimal.Decimal
	hasTotal := false

	for _, bucket := range domain.AllBuckets() {
		g, ok := groups[bucket]
		if !ok {
			continue
		}
		sources := sortedSources(g.sources)
		confidence := domain.ConfidenceMedium
		if _, manual := g.sources[domain.SourceManual]; manual {
			confidence = domain.ConfidenceHigh
		}

		ma := domain.MappedAllocation{
			Bucket:         bucket,
			DisplayName:    bucket.DisplayName(),
			OriginalLabels: sortedKeys(g.labels),
			Sources:        sources,
			Vesting:        g.vesting,
			Confidence:     confidence,
			MappingRule:    strings.Join(sortedKeys(g.rules), " | "),
		}
		if g.hasPct {
			v := g.pct.InexactFloat64()
			ma.Percentage = &v
			total = total.Add(g.pct)
			hasTotal = true
		}
		if g.hasAmount {
			v := g.amount.InexactFloat64()
			ma.Amount = &v
		}
		data.Mapped = append(data.Mapped, ma)
	}

	if hasTotal {
		t := total.InexactFloat64()
		data.TotalPercentage = &t
		data.IsComplete = t >= CompleteMinPct && t <= CompleteMaxPct
	}
	data.SourcesUsed = sortedSources(used)

	return data, nil
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedSources(set map[domain.DataSource]struct{}) []domain.DataSource {
	out := make([]domain.DataSource, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func cloneVesting(v *domain.VestingTerms) *domain.VestingTerms {
	c := *v
	if v.TGEUnlockPct != nil {
		x := *v.TGEUnlockPct
		c.TGEUnlockPct = &x
	}
	if v.CliffMonths != nil {
		x := *v.CliffMonths
		c.CliffMonths = &x
	}
	if v.VestingMonths != nil {
		x := *v.VestingMonths
		c.VestingMonths = &x
	}
	if v.UnlockFrequency != nil {
		x := *v.UnlockFrequency
		c.UnlockFrequency = &x
	}
	return &c
}
