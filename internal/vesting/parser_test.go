package vesting

import (
	"strings"
	"testing"

	"token-listing-lab/internal/domain"
)

func intVal(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}

func floatVal(p *float64) float64 {
	if p == nil {
		return -1
	}
	return *p
}

func TestParse(t *testing.T) {
	tests := []struct {
		text     string
		tge      float64
		cliff    int
		vesting  int
		schedule domain.ScheduleType
	}{
		{"10% TGE, 6 month cliff, 24 months linear", 10, 6, 24, domain.ScheduleLinear},
		{"10% at TGE", 10, -1, -1, domain.ScheduleUnknown},
		{"15.5% initial unlock", 15.5, -1, -1, domain.ScheduleUnknown},
		{"TGE unlock of 20%", 20, -1, -1, domain.ScheduleUnknown},
		{"5% at launch, linear over 36 months", 5, -1, 36, domain.ScheduleLinear},
		{"12 month cliff", -1, 12, -1, domain.ScheduleUnknown},
		{"6-month cliff", -1, 6, -1, domain.ScheduleUnknown},
		{"cliff of 9 months", -1, 9, -1, domain.ScheduleUnknown},
		{"1 year cliff, then 3 years linear", -1, 12, 36, domain.ScheduleLinear},
		{"24 months linear vesting", -1, -1, 24, domain.ScheduleLinear},
		{"2 years vesting", -1, -1, 24, domain.ScheduleUnknown},
		{"monthly unlocks over 12 months", -1, -1, 12, domain.ScheduleStep},
		{"quarterly release for 8 quarters", -1, -1, -1, domain.ScheduleStep},
		{"12 month cliff, linear after; full release after cliff", -1, 12, -1, domain.ScheduleCliff},
		{"Allocated to the foundation", -1, -1, -1, domain.ScheduleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			terms := Parse(tt.text)
			if terms == nil {
				t.Fatal("expected terms, got nil")
			}
			if got := floatVal(terms.TGEUnlockPct); got != tt.tge {
				t.Errorf("TGEUnlockPct = %v, want %v", got, tt.tge)
			}
			if got := intVal(terms.CliffMonths); got != tt.cliff {
				t.Errorf("CliffMonths = %v, want %v", got, tt.cliff)
			}
			if got := intVal(terms.VestingMonths); got != tt.vesting {
				t.Errorf("VestingMonths = %v, want %v", got, tt.vesting)
			}
			if terms.Schedule != tt.schedule {
				t.Errorf("Schedule = %v, want %v", terms.Schedule, tt.schedule)
			}
			if terms.RawDescription != tt.text {
				t.Errorf("RawDescription = %q, want %q", terms.RawDescription, tt.text)
			}
		})
	}
}

func TestParse_Blank(t *testing.T) {
	for _, s := range []string{"", "   ", "\n\t"} {
		if Parse(s) != nil {
			t.Errorf("Parse(%q) should be nil", s)
		}
	}
}

func TestParse_Frequency(t *testing.T) {
	terms := Parse("monthly unlocks over 12 months")
	if terms.UnlockFrequency == nil || *terms.UnlockFrequency != "monthly" {
		t.Errorf("expected monthly frequency, got %v", terms.UnlockFrequency)
	}

	terms = Parse("unlocks every three months")
	if terms.UnlockFrequency == nil || *terms.UnlockFrequency != "quarterly" {
		t.Errorf("expected quarterly frequency, got %v", terms.UnlockFrequency)
	}

	if Parse("24 months linear").UnlockFrequency != nil {
		t.Error("linear text should have no frequency")
	}
}

func TestFormatSummary(t *testing.T) {
	months := func(n int) *int { return &n }
	pct := func(v float64) *float64 { return &v }
	monthly := "monthly"

	tests := []struct {
		name  string
		terms *domain.VestingTerms
		want  string
	}{
		{"nil", nil, "No vesting info"},
		{"parsed text", Parse("10% TGE, 6 month cliff, 24 months linear"), "10% TGE, 6mo cliff, 24mo linear"},
		{"step with frequency", &domain.VestingTerms{VestingMonths: months(12), Schedule: domain.ScheduleStep, UnlockFrequency: &monthly}, "12mo monthly"},
		{"step without frequency", &domain.VestingTerms{VestingMonths: months(12), Schedule: domain.ScheduleStep}, "12mo periodic"},
		{"unknown schedule", &domain.VestingTerms{TGEUnlockPct: pct(0), VestingMonths: months(48)}, "0% TGE, 48mo vesting"},
		{"zero cliff omitted", &domain.VestingTerms{CliffMonths: months(0), RawDescription: "none"}, "none"},
		{"long description", &domain.VestingTerms{RawDescription: "Tokens are released according to governance decisions made later"}, "Tokens are released according to governance dec..."},
		{"multibyte kept whole", &domain.VestingTerms{RawDescription: strings.Repeat("é", 45)}, strings.Repeat("é", 45)},
		{"multibyte truncated", &domain.VestingTerms{RawDescription: strings.Repeat("é", 60)}, strings.Repeat("é", 47) + "..."},
		{"empty", &domain.VestingTerms{}, "Vesting details available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatSummary(tt.terms); got != tt.want {
				t.Errorf("FormatSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}
