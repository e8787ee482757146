package domain

import "time"

// TokenInfo identifies the analyzed token.
type TokenInfo struct {
	ID          string     `json:"id"` // aggregator identifier, e.g. "jito-governance-token"
	Symbol      string     `json:"symbol"`
	Name        string     `json:"name"`
	Chain       string     `json:"chain,omitempty"`
	Mint        string     `json:"mint,omitempty"` // contract or mint address
	Categories  []string   `json:"categories,omitempty"`
	ListingDate *time.Time `json:"listing_date,omitempty"`
}

// DataQualityFlag is a non-fatal advisory attached to a result.
type DataQualityFlag struct {
	Field      string   `json:"field"`
	Issue      string   `json:"issue"`
	Severity   Severity `json:"severity"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// AuditEntry records one collaborator call made during an analysis.
type AuditEntry struct {
	Timestamp    time.Time  `json:"timestamp"`
	Source       DataSource `json:"source"`
	Action       string     `json:"action"`
	Endpoint     string     `json:"endpoint,omitempty"`
	Success      bool       `json:"success"`
	ErrorMessage string     `json:"error_message,omitempty"`
	DurationMs   int64      `json:"duration_ms"`
	Notes        string     `json:"notes,omitempty"`
}

// ListingResult is the full output of one analysis run.
type ListingResult struct {
	AnalysisID     string               `json:"analysis_id"`
	AnalyzedAt     time.Time            `json:"analyzed_at"`
	Token          TokenInfo            `json:"token"`
	Listings       []Listing            `json:"listings,omitempty"`
	ReferencePrice *ReferencePrice      `json:"reference_price,omitempty"`
	Stabilization  *StabilizationResult `json:"stabilization,omitempty"`
	Supply         *SupplyData          `json:"supply,omitempty"`
	Fundraising    *FundraisingData     `json:"fundraising,omitempty"`
	Valuation      *ValuationMetrics    `json:"valuation,omitempty"`
	Allocations    *AllocationData      `json:"allocations,omitempty"`
	QualityFlags   []DataQualityFlag    `json:"quality_flags,omitempty"`
	AuditTrail     []AuditEntry         `json:"audit_trail,omitempty"`
}

// HasErrors reports whether any quality flag has error severity.
func (r *ListingResult) HasErrors() bool {
	for _, f := range r.QualityFlags {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
