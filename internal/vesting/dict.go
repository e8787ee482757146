package vesting

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"token-listing-lab/internal/domain"
)

// Field aliases in lookup priority order.
var (
	tgeKeys         = []string{"tge_unlock_pct", "tgeUnlock", "initial_unlock", "initialUnlock", "tge"}
	cliffKeys       = []string{"cliff_months", "cliffMonths", "cliff"}
	vestingKeys     = []string{"vesting_months", "vestingMonths", "duration", "durationMonths"}
	scheduleKeys    = []string{"schedule_type", "scheduleType", "type", "schedule"}
	frequencyKeys   = []string{"unlock_frequency", "unlockFrequency", "frequency"}
	descriptionKeys = []string{"raw_description", "description", "notes", "text"}
)

// ParseDict reads vesting terms from a loosely-typed dictionary such as a
// decoded JSON or YAML object. It returns nil when no field is recognized.
// Numeric fields absent from the dictionary are filled from the description
// text when one is present.
func ParseDict(data map[string]any) *domain.VestingTerms {
	if len(data) == 0 {
		return nil
	}

	terms := &domain.VestingTerms{Schedule: domain.ScheduleUnknown}
	found := false

	if v, ok := lookupNumber(data, tgeKeys); ok {
		terms.TGEUnlockPct = &v
		found = true
	}
	if v, ok := lookupNumber(data, cliffKeys); ok {
		n := int(math.Round(v))
		terms.CliffMonths = &n
		found = true
	}
	if v, ok := lookupNumber(data, vestingKeys); ok {
		n := int(math.Round(v))
		terms.VestingMonths = &n
		found = true
	}
	if s, ok := lookupString(data, scheduleKeys); ok {
		terms.Schedule = parseScheduleType(s)
		found = true
	}
	if s, ok := lookupString(data, frequencyKeys); ok {
		freq := strings.ToLower(s)
		terms.UnlockFrequency = &freq
		found = true
	}
	if s, ok := lookupString(data, descriptionKeys); ok {
		terms.RawDescription = s
		found = true
		fillFromText(terms, Parse(s))
	}

	if !found {
		return nil
	}
	return terms
}

func fillFromText(terms, parsed *domain.VestingTerms) {
	if parsed == nil {
		return
	}
	if terms.TGEUnlockPct == nil {
		terms.TGEUnlockPct = parsed.TGEUnlockPct
	}
	if terms.CliffMonths == nil {
		terms.CliffMonths = parsed.CliffMonths
	}
	if terms.VestingMonths == nil {
		terms.VestingMonths = parsed.VestingMonths
	}
	if terms.Schedule == domain.ScheduleUnknown {
		terms.Schedule = parsed.Schedule
	}
	if terms.UnlockFrequency == nil {
		terms.UnlockFrequency = parsed.UnlockFrequency
	}
}

func parseScheduleType(s string) domain.ScheduleType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return domain.ScheduleLinear
	case "cliff", "cliff_only":
		return domain.ScheduleCliff
	case "step", "periodic":
		return domain.ScheduleStep
	case "custom":
		return domain.ScheduleCustom
	}
	return domain.ScheduleUnknown
}

// lookupNumber returns the first alias holding a usable number.
func lookupNumber(data map[string]any, keys []string) (float64, bool) {
	for _, k := range keys {
		raw, ok := data[k]
		if !ok || raw == nil {
			continue
		}
		if v, ok := toFloat(raw); ok {
			return v, true
		}
	}
	return 0, false
}

func lookupString(data map[string]any, keys []string) (string, bool) {
	for _, k := range keys {
		raw, ok := data[k]
		if !ok || raw == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(raw))
		if s != "" {
			return s, true
		}
	}
	return "", false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(n), "%"))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
