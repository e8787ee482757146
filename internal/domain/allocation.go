package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	// ErrInvalidPercentage is returned for a percentage outside [0, 100].
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")

	// ErrInvalidAmount is returned for a NaN or infinite token amount.
	ErrInvalidAmount = errors.New("amount must be finite")

	// ErrEmptyLabel is returned for a blank allocation label.
	ErrEmptyLabel = errors.New("allocation label is empty")
)

// VestingTerms are structured vesting conditions.
type VestingTerms struct {
	TGEUnlockPct    *float64     `json:"tge_unlock_pct,omitempty"`
	CliffMonths     *int         `json:"cliff_months,omitempty"`
	VestingMonths   *int         `json:"vesting_months,omitempty"`
	Schedule        ScheduleType `json:"schedule"`
	UnlockFrequency *string      `json:"unlock_frequency,omitempty"`
	RawDescription  string       `json:"raw_description,omitempty"`
}

// HasDetails reports whether any numeric term is set.
func (v VestingTerms) HasDetails() bool {
	return v.TGEUnlockPct != nil || v.CliffMonths != nil || v.VestingMonths != nil
}

// RawAllocation is an allocation entry as reported by one source.
type RawAllocation struct {
	Source     DataSource    `json:"source"`
	Label      string        `json:"label"`
	Percentage *float64      `json:"percentage,omitempty"`
	Amount     *float64      `json:"amount,omitempty"`
	Vesting    *VestingTerms `json:"vesting,omitempty"`
}

// NewRawAllocation builds a validated RawAllocation.
func NewRawAllocation(source DataSource, label string, pct, amount *float64, vesting *VestingTerms) (RawAllocation, error) {
	a := RawAllocation{
		Source:     source,
		Label:      strings.TrimSpace(label),
		Percentage: pct,
		Amount:     amount,
		Vesting:    vesting,
	}
	if err := a.Validate(); err != nil {
		return RawAllocation{}, err
	}
	return a, nil
}

// Validate checks the label and percentage range.
func (a RawAllocation) Validate() error {
	if strings.TrimSpace(a.Label) == "" {
		return ErrEmptyLabel
	}
	// NaN fails every comparison, so it is checked explicitly.
	if p := a.Percentage; p != nil && (math.IsNaN(*p) || *p < 0 || *p > 100) {
		return fmt.Errorf("%w: %q has %v", ErrInvalidPercentage, a.Label, *p)
	}
	if v := a.Amount; v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
		return fmt.Errorf("%w: %q has %v", ErrInvalidAmount, a.Label, *v)
	}
	return nil
}

// MappedAllocation is the per-bucket aggregate of raw allocations.
type MappedAllocation struct {
	Bucket         CanonicalBucket `json:"bucket"`
	DisplayName    string          `json:"display_name"`
	OriginalLabels []string        `json:"original_labels"`
	Percentage     *float64        `json:"percentage,omitempty"`
	Amount         *float64        `json:"amount,omitempty"`
	Sources        []DataSource    `json:"sources"`
	Vesting        *VestingTerms   `json:"vesting,omitempty"`
	Confidence     Confidence      `json:"confidence"`
	MappingRule    string          `json:"mapping_rule"`
}

// Conflict records a cross-source disagreement for one bucket.
type Conflict struct {
	Bucket          CanonicalBucket        `json:"bucket"`
	Sources         []DataSource           `json:"sources"`
	Values          map[DataSource]float64 `json:"values"`
	DiscrepancyPct  float64                `json:"discrepancy_pct"` // max - min
	Resolution      string                 `json:"resolution,omitempty"`
	PreferredSource DataSource             `json:"preferred_source,omitempty"`
}

// AllocationData is the complete mapped allocation breakdown.
type AllocationData struct {
	Raw             []RawAllocation    `json:"raw"`
	Mapped          []MappedAllocation `json:"mapped"`
	Conflicts       []Conflict         `json:"conflicts,omitempty"`
	TotalPercentage *float64           `json:"total_percentage,omitempty"`
	IsComplete      bool               `json:"is_complete"` // 95 <= total <= 105
	SourcesUsed     []DataSource       `json:"sources_used"`
}
