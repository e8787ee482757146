package vesting

import (
	"testing"

	"token-listing-lab/internal/domain"
)

func TestParseDict_Aliases(t *testing.T) {
	tests := []struct {
		name     string
		data     map[string]any
		tge      float64
		cliff    int
		vesting  int
		schedule domain.ScheduleType
	}{
		{
			"snake case",
			map[string]any{"tge_unlock_pct": 10.0, "cliff_months": 6, "vesting_months": 24, "schedule_type": "linear"},
			10, 6, 24, domain.ScheduleLinear,
		},
		{
			"camel case",
			map[string]any{"tgeUnlock": "15%", "cliffMonths": 12.0, "vestingMonths": "36", "scheduleType": "periodic"},
			15, 12, 36, domain.ScheduleStep,
		},
		{
			"generic synonyms",
			map[string]any{"tge": 0, "cliff": 3, "duration": 18, "type": "cliff_only"},
			0, 3, 18, domain.ScheduleCliff,
		},
		{
			"priority order",
			map[string]any{"tge_unlock_pct": 5, "tge": 50, "cliff_months": 1, "cliff": 99},
			5, 1, -1, domain.ScheduleUnknown,
		},
		{
			"unparseable alias falls through",
			map[string]any{"tge_unlock_pct": "n/a", "initial_unlock": 7.5},
			7.5, -1, -1, domain.ScheduleUnknown,
		},
		{
			"description fills gaps",
			map[string]any{"cliff_months": 6, "description": "10% TGE, 12 month cliff, 24 months linear"},
			10, 6, 24, domain.ScheduleLinear,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := ParseDict(tt.data)
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
		})
	}
}

func TestParseDict_Empty(t *testing.T) {
	if ParseDict(nil) != nil {
		t.Error("nil map should yield nil")
	}
	if ParseDict(map[string]any{"unrelated": 1}) != nil {
		t.Error("unrecognized keys should yield nil")
	}
	if ParseDict(map[string]any{"tge": nil}) != nil {
		t.Error("nil values should be ignored")
	}
}

func TestParseDict_Frequency(t *testing.T) {
	terms := ParseDict(map[string]any{"unlockFrequency": "Monthly", "vesting_months": 12, "schedule": "step"})
	if terms == nil || terms.UnlockFrequency == nil || *terms.UnlockFrequency != "monthly" {
		t.Fatalf("expected monthly frequency, got %+v", terms)
	}
	if got := FormatSummary(terms); got != "12mo monthly" {
		t.Errorf("FormatSummary() = %q", got)
	}
}
