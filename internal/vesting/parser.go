// Package vesting extracts structured vesting terms from free text and
// loosely-typed dictionaries.
package vesting

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"token-listing-lab/internal/domain"
)

// extractor pairs a pattern with the factor applied to its captured number.
type extractor struct {
	re     *regexp.Regexp
	factor int
}

var (
	tgePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%?\s*(?:at\s+)?(?:tge|launch|listing|initial|unlock)`),
		regexp.MustCompile(`(?i)(?:tge|launch|listing|initial)\s*(?:unlock)?\s*(?:of\s+)?(\d+(?:\.\d+)?)\s*%`),
	}

	cliffPatterns = []extractor{
		{regexp.MustCompile(`(?i)(\d+)\s*-?\s*(?:months?|mos?|m)\s*cliff`), 1},
		{regexp.MustCompile(`(?i)cliff\s*(?:of\s+)?(\d+)\s*(?:months?|mos?|m)\b`), 1},
		{regexp.MustCompile(`(?i)(\d+)\s*-?\s*years?\s*cliff`), 12},
		{regexp.MustCompile(`(?i)cliff\s*(?:of\s+)?(\d+)\s*years?`), 12},
	}

	vestingPatterns = []extractor{
		{regexp.MustCompile(`(?i)(?:over|for|linear)\s*(\d+)\s*(?:months?|mos?|m)\b`), 1},
		{regexp.MustCompile(`(?i)(\d+)\s*-?\s*(?:months?|mos?|m)\s*(?:linear|vesting)`), 1},
		{regexp.MustCompile(`(?i)(?:over|for|linear)\s*(\d+)\s*years?`), 12},
		{regexp.MustCompile(`(?i)(\d+)\s*-?\s*years?\s*(?:linear|vesting)`), 12},
	}

	cliffOnlyPattern = regexp.MustCompile(`(?i)cliff\s*(?:release|unlock)|(?:release|unlock)\s*after\s*cliff`)
	linearPattern    = regexp.MustCompile(`(?i)linear|straight|continuous`)
	monthlyPattern   = regexp.MustCompile(`(?i)monthly|each\s*month`)
	quarterlyPattern = regexp.MustCompile(`(?i)quarterly|every\s*(?:3|three)\s*months?`)
)

// Parse extracts vesting terms from text. It returns nil only for blank input;
// unrecognized text yields terms holding just the raw description.
func Parse(text string) *domain.VestingTerms {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	terms := &domain.VestingTerms{
		TGEUnlockPct:   extractTGE(text),
		CliffMonths:    extractMonths(text, cliffPatterns),
		VestingMonths:  extractMonths(text, vestingPatterns),
		Schedule:       detectSchedule(text),
		RawDescription: text,
	}
	if freq := detectFrequency(text); freq != "" {
		terms.UnlockFrequency = &freq
	}
	return terms
}

func extractTGE(text string) *float64 {
	for _, re := range tgePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		return &v
	}
	return nil
}

func extractMonths(text string, patterns []extractor) *int {
	for _, p := range patterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		n *= p.factor
		return &n
	}
	return nil
}

// detectSchedule: cliff-only phrasing wins over linear, then periodic.
func detectSchedule(text string) domain.ScheduleType {
	switch {
	case cliffOnlyPattern.MatchString(text):
		return domain.ScheduleCliff
	case linearPattern.MatchString(text):
		return domain.ScheduleLinear
	case monthlyPattern.MatchString(text), quarterlyPattern.MatchString(text):
		return domain.ScheduleStep
	}
	return domain.ScheduleUnknown
}

func detectFrequency(text string) string {
	switch {
	case monthlyPattern.MatchString(text):
		return "monthly"
	case quarterlyPattern.MatchString(text):
		return "quarterly"
	}
	return ""
}

// FormatSummary renders terms as a compact string such as
// "10% TGE, 6mo cliff, 24mo linear".
func FormatSummary(terms *domain.VestingTerms) string {
	if terms == nil {
		return "No vesting info"
	}

	var parts []string
	if terms.TGEUnlockPct != nil {
		parts = append(parts, fmt.Sprintf("%.0f%% TGE", *terms.TGEUnlockPct))
	}
	if terms.CliffMonths != nil && *terms.CliffMonths > 0 {
		parts = append(parts, fmt.Sprintf("%dmo cliff", *terms.CliffMonths))
	}
	if terms.VestingMonths != nil && *terms.VestingMonths > 0 {
		switch terms.Schedule {
		case domain.ScheduleLinear:
			parts = append(parts, fmt.Sprintf("%dmo linear", *terms.VestingMonths))
		case domain.ScheduleStep:
			freq := "periodic"
			if terms.UnlockFrequency != nil {
				freq = *terms.UnlockFrequency
			}
			parts = append(parts, fmt.Sprintf("%dmo %s", *terms.VestingMonths, freq))
		default:
			parts = append(parts, fmt.Sprintf("%dmo vesting", *terms.VestingMonths))
		}
	}

	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if terms.RawDescription != "" {
		if r := []rune(terms.RawDescription); len(r) > 50 {
			return string(r[:47]) + "..."
		}
		return terms.RawDescription
	}
	return "Vesting details available"
}
