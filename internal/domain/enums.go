package domain

// Confidence is a coarse reliability label attached to derived figures.
type Confidence string

const (
	ConfidenceHigh    Confidence = "HIGH"
	ConfidenceMedium  Confidence = "MEDIUM"
	ConfidenceLow     Confidence = "LOW"
	ConfidenceUnknown Confidence = "UNKNOWN"
)

// DataSource identifies where a piece of data came from.
type DataSource string

const (
	SourceCoinGecko  DataSource = "coingecko"
	SourceCryptoRank DataSource = "cryptorank"
	SourceDropstab   DataSource = "dropstab"
	SourceMessari    DataSource = "messari"
	SourceFlipside   DataSource = "flipside"
	SourceSolanaRPC  DataSource = "solana_rpc"
	SourceExchange   DataSource = "ccxt"
	SourceManual     DataSource = "manual"
	SourceEstimated  DataSource = "estimated"
	SourceUnknown    DataSource = "unknown"
)

// IsValid reports whether s is one of the known sources.
func (s DataSource) IsValid() bool {
	switch s {
	case SourceCoinGecko, SourceCryptoRank, SourceDropstab, SourceMessari, SourceFlipside,
		SourceSolanaRPC, SourceExchange, SourceManual, SourceEstimated, SourceUnknown:
		return true
	}
	return false
}

// PriceSelectionMethod selects which candle value becomes the reference price.
type PriceSelectionMethod string

const (
	MethodEarliestOpen  PriceSelectionMethod = "earliest_open"
	MethodEarliestClose PriceSelectionMethod = "earliest_close"
	MethodFirstHourVWAP PriceSelectionMethod = "first_hour_vwap"
	MethodFirstDayVWAP  PriceSelectionMethod = "first_day_vwap"
	MethodManual        PriceSelectionMethod = "manual"
)

// IsValid reports whether m is a known selection method.
func (m PriceSelectionMethod) IsValid() bool {
	switch m {
	case MethodEarliestOpen, MethodEarliestClose, MethodFirstHourVWAP, MethodFirstDayVWAP, MethodManual:
		return true
	}
	return false
}

// ScheduleType is the kind of vesting schedule.
type ScheduleType string

const (
	ScheduleLinear  ScheduleType = "linear"
	ScheduleCliff   ScheduleType = "cliff"
	ScheduleStep    ScheduleType = "step"
	ScheduleCustom  ScheduleType = "custom"
	ScheduleUnknown ScheduleType = "unknown"
)

// Severity of a data quality flag.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)
