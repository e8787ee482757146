package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-listing-lab/internal/domain"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LISTINGCTL_CONFIG", "")

	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = &buf
	err := app.Run(context.Background(), append([]string{"listingctl"}, args...))
	return buf.String(), err
}

func TestAnalyze_FixturesJSON(t *testing.T) {
	out, err := run(t, "analyze", "--fixtures", "--format", "json", "jito-governance-token")
	require.NoError(t, err)

	var res domain.ListingResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "JTO", res.Token.Symbol)
	assert.NotEmpty(t, res.AnalysisID)
	require.NotNil(t, res.ReferencePrice)
	assert.Equal(t, 2.08, res.ReferencePrice.Price)
}

func TestAnalyze_Markdown(t *testing.T) {
	out, err := run(t, "analyze", "--fixtures", "JTO")
	require.NoError(t, err)
	assert.Contains(t, out, "# Listing Analysis")
	assert.Contains(t, out, "## Token Allocation")
}

func TestAnalyze_BatchComparison(t *testing.T) {
	out, err := run(t, "analyze", "--fixtures", "--format", "csv", "JTO", "jito-governance-token")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "token,"), out)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "jito-governance-token,"))
	assert.True(t, strings.HasPrefix(lines[2], "jito-governance-token,"))
}

func TestAnalyze_All(t *testing.T) {
	out, err := run(t, "analyze", "--fixtures", "--all", "--format", "audit")
	require.NoError(t, err)
	assert.Contains(t, out, "AUDIT TRAIL SUMMARY")
}

func TestAnalyze_UnknownTokenFails(t *testing.T) {
	out, err := run(t, "analyze", "--fixtures", "--format", "json", "JTO", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 analyses failed")

	var entries []batchEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.NotNil(t, entries[0].Result)
	assert.Empty(t, entries[0].Error)
	assert.Nil(t, entries[1].Result)
	assert.NotEmpty(t, entries[1].Error)
}

func TestAnalyze_Validation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no tokens", []string{"analyze", "--fixtures"}, "at least one token"},
		{"bad format", []string{"analyze", "--fixtures", "--format", "xml", "JTO"}, "unknown format"},
		{"bad method", []string{"analyze", "--fixtures", "--method", "median", "JTO"}, "invalid price selection method"},
		{"no sources", []string{"analyze", "JTO"}, "no data sources"},
		{"batch overrides", []string{"analyze", "--fixtures", "--manual-price", "2", "JTO", "PYTH"}, "single token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAnalyze_ManualPrice(t *testing.T) {
	out, err := run(t, "analyze", "--fixtures", "--format", "json", "--manual-price", "3.5", "JTO")
	require.NoError(t, err)

	var res domain.ListingResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotNil(t, res.ReferencePrice)
	assert.Equal(t, 3.5, res.ReferencePrice.Price)
	assert.Equal(t, domain.MethodManual, res.ReferencePrice.Method)
}

func TestAnalyze_OutputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.md")
	out, err := run(t, "analyze", "--fixtures", "--output", path, "JTO")
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Listing Analysis")
}

func TestMapLabel(t *testing.T) {
	out, err := run(t, "map-label", "Core Contributors", "Seed Round", "Mystery Bag")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[1], "team_founder")
	assert.Contains(t, lines[2], "investors")
	assert.Contains(t, lines[3], "unknown")
}

func TestMapLabel_BadSource(t *testing.T) {
	_, err := run(t, "map-label", "--source", "binance", "Team")
	require.Error(t, err)
}

func TestParseVesting(t *testing.T) {
	out, err := run(t, "parse-vesting", "10% at TGE, 12 month cliff, then 24 months linear")
	require.NoError(t, err)
	assert.Contains(t, out, `"tge_unlock_pct": 10`)
	assert.Contains(t, out, `"cliff_months": 12`)
	assert.Contains(t, out, `"vesting_months": 24`)
	assert.Contains(t, out, "summary: ")
}

func TestParseVesting_Empty(t *testing.T) {
	_, err := run(t, "parse-vesting")
	require.Error(t, err)
}

func TestShow_NotFound(t *testing.T) {
	_, err := run(t, "show", "some-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load analysis some-id")
}

func TestMigrate_NoDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("CLICKHOUSE_DSN", "")
	_, err := run(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database DSN")
}
