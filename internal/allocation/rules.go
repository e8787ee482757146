// Package allocation maps raw allocation labels onto canonical buckets and
// detects disagreement between sources.
package allocation

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"token-listing-lab/internal/domain"
	"token-listing-lab/internal/logger"
)

const (
	// OverridePriority is assigned to source-specific literal overrides.
	OverridePriority = 100

	// DefaultPatternPriority applies when a rule file omits a priority.
	DefaultPatternPriority = 5

	matchTimeout = 250 * time.Millisecond
)

var (
	ErrUnknownBucket = errors.New("unknown canonical bucket")
	ErrInvalidRules  = errors.New("invalid mapping rules")
)

// Rule is one compiled case-insensitive label pattern.
type Rule struct {
	Bucket   domain.CanonicalBucket
	Pattern  string
	Priority int

	re *regexp2.Regexp
}

// RuleSet is a flat, ordered list of rules plus per-source literal overrides.
// Rules are evaluated in the order they were added.
type RuleSet struct {
	rules     []Rule
	overrides map[domain.DataSource]map[string]domain.CanonicalBucket
}

// NewRuleSet returns an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{overrides: make(map[domain.DataSource]map[string]domain.CanonicalBucket)}
}

// Add compiles pattern and appends it.
func (rs *RuleSet) Add(bucket domain.CanonicalBucket, pattern string, priority int) error {
	if _, ok := domain.ParseBucket(string(bucket)); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
	if err != nil {
		return fmt.Errorf("compile pattern %q: %w", pattern, err)
	}
	re.MatchTimeout = matchTimeout
	rs.rules = append(rs.rules, Rule{Bucket: bucket, Pattern: pattern, Priority: priority, re: re})
	return nil
}

// AddOverride maps an exact label from source to bucket.
func (rs *RuleSet) AddOverride(source domain.DataSource, label string, bucket domain.CanonicalBucket) error {
	if _, ok := domain.ParseBucket(string(bucket)); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownBucket, bucket)
	}
	m, ok := rs.overrides[source]
	if !ok {
		m = make(map[string]domain.CanonicalBucket)
		rs.overrides[source] = m
	}
	m[strings.TrimSpace(label)] = bucket
	return nil
}

// Rules returns a copy of the rules in evaluation order.
func (rs *RuleSet) Rules() []Rule {
	out := make([]Rule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

func (rs *RuleSet) override(source domain.DataSource, label string) (domain.CanonicalBucket, bool) {
	b, ok := rs.overrides[source][label]
	return b, ok
}

type bucketRules struct {
	bucket   domain.CanonicalBucket
	priority int
	patterns []string
}

// defaultRules is the built-in table. Community and ecosystem patterns carry
// lower priority so more specific buckets win on overlap.
var defaultRules = []bucketRules{
	{domain.BucketTeamFounder, 10, []string{
		`^team$`, `^founder`, `^core.*team`, `^development.*team`, `^founding`,
		`^employee`, `^staff`, `^core.*contributor`,
	}},
	{domain.BucketAdvisorsPartners, 10, []string{
		`^advisor`, `^partner`, `^strategic.*partner`, `^consultant`,
	}},
	{domain.BucketInvestors, 10, []string{
		`^investor`, `^seed`, `^private`, `^strategic.*sale`, `^strategic.*round`,
		`^series.*[a-z]`, `^vc`, `^venture`, `^early.*investor`, `^pre.*seed`,
		`^angel`, `^launchpad`,
	}},
	{domain.BucketPublicSales, 10, []string{
		`^public`, `^ico$`, `^ido$`, `^ieo$`, `^token.*sale`, `^crowd.*sale`,
		`^community.*sale`,
	}},
	{domain.BucketAirdrop, 10, []string{
		`^airdrop`, `^air.*drop`, `^retro.*drop`, `^retroactive`,
		`^user.*distribution`, `^user.*allocation`,
	}},
	{domain.BucketCommunityRewards, 9, []string{
		`^community(?!.*sale)`, `^reward`, `^incentive`, `^mining`,
		`^staking.*reward`, `^yield`, `^emission`, `^farming`,
		`^liquidity.*mining`, `^governance.*reward`, `^contributor(?!.*core)`,
		`^grant`, `^bounty`,
	}},
	{domain.BucketListingLiquidity, 10, []string{
		`^listing`, `^liquidity(?!.*mining)`, `^market.*mak`, `^exchange`,
		`^cex`, `^dex.*liquidity`, `^trading`,
	}},
	{domain.BucketEcosystemRD, 8, []string{
		`^ecosystem`, `^development(?!.*team)`, `^r&d`, `^research`,
		`^protocol.*development`, `^network.*development`, `^growth`,
		`^adoption`, `^integration`, `^foundation`, `^dao(?!.*treasury)`,
	}},
	{domain.BucketTreasuryReserve, 10, []string{
		`^treasury`, `^reserve`, `^strategic.*reserve`, `^emergency`,
		`^insurance`, `^protocol.*owned`, `^dao.*treasury`,
	}},
}

// DefaultRuleSet returns the built-in rule table.
func DefaultRuleSet() *RuleSet {
	rs := NewRuleSet()
	for _, br := range defaultRules {
		for _, p := range br.patterns {
			if err := rs.Add(br.bucket, p, br.priority); err != nil {
				panic(fmt.Sprintf("default rule %q: %v", p, err))
			}
		}
	}
	return rs
}

// patternSpec accepts either a bare pattern string or {pattern, priority}.
type patternSpec struct {
	Pattern  string
	Priority *int
}

func (p *patternSpec) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		p.Pattern = n.Value
		return nil
	}
	var aux struct {
		Pattern  string `yaml:"pattern"`
		Priority *int   `yaml:"priority"`
	}
	if err := n.Decode(&aux); err != nil {
		return err
	}
	p.Pattern, p.Priority = aux.Pattern, aux.Priority
	return nil
}

type bucketSpec struct {
	Patterns []patternSpec `yaml:"patterns"`
	Priority *int          `yaml:"priority"`
}

// ParseRuleSet reads a YAML rule file:
//
//	canonical_buckets:
//	  team_founder:
//	    patterns: ["^team$", {pattern: "^founder", priority: 12}]
//	    priority: 10
//	source_overrides:
//	  cryptorank:
//	    "Foundation": treasury_reserve
//
// Bucket declaration order is preserved and decides equal-priority ties.
// Invalid patterns and unknown buckets are skipped with a warning.
func ParseRuleSet(data []byte, log logrus.FieldLogger) (*RuleSet, error) {
	log = logger.Component(log, "allocation")

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	rs := NewRuleSet()
	if len(doc.Content) == 0 {
		return rs, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping", ErrInvalidRules)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i].Value, root.Content[i+1]
		switch key {
		case "canonical_buckets":
			if err := rs.addBuckets(val, log); err != nil {
				return nil, err
			}
		case "source_overrides":
			if err := rs.addOverrides(val, log); err != nil {
				return nil, err
			}
		default:
			log.WithField("key", key).Warn("ignoring unknown rule file section")
		}
	}
	return rs, nil
}

func (rs *RuleSet) addBuckets(node *yaml.Node, log logrus.FieldLogger) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: canonical_buckets must be a mapping", ErrInvalidRules)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		bucket, ok := domain.ParseBucket(name)
		if !ok {
			log.WithField("bucket", name).Warn("skipping unknown bucket")
			continue
		}
		var spec bucketSpec
		if err := node.Content[i+1].Decode(&spec); err != nil {
			return fmt.Errorf("%w: bucket %s: %v", ErrInvalidRules, name, err)
		}
		priority := DefaultPatternPriority
		if spec.Priority != nil {
			priority = *spec.Priority
		}
		for _, p := range spec.Patterns {
			pr := priority
			if p.Priority != nil {
				pr = *p.Priority
			}
			if err := rs.Add(bucket, p.Pattern, pr); err != nil {
				log.WithFields(logrus.Fields{"bucket": name, "pattern": p.Pattern}).
					WithError(err).Warn("skipping invalid pattern")
			}
		}
	}
	return nil
}

func (rs *RuleSet) addOverrides(node *yaml.Node, log logrus.FieldLogger) error {
	var raw map[string]map[string]string
	if err := node.Decode(&raw); err != nil {
		return fmt.Errorf("%w: source_overrides: %v", ErrInvalidRules, err)
	}
	for source, labels := range raw {
		for label, bucket := range labels {
			if err := rs.AddOverride(domain.DataSource(source), label, domain.CanonicalBucket(bucket)); err != nil {
				log.WithFields(logrus.Fields{"source": source, "label": label}).
					WithError(err).Warn("skipping invalid override")
			}
		}
	}
	return nil
}

// LoadRuleSet reads a rule file from disk.
func LoadRuleSet(path string, log logrus.FieldLogger) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRuleSet(data, log)
}
