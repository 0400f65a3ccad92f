package domain

import "time"

// Conventional calculation statuses. The status column is free text by
// contract so producers can introduce new statuses without a migration;
// these are the values written today.
const (
	CalculationStatusSuccess = "Success"
	CalculationStatusFailed  = "Failed"
	CalculationStatusActive  = "Active"
	CalculationStatusStale   = "Stale"
	CalculationStatusPending = "Pending recomputation"
)

// CalculationLogEntry is an audit record of one attempt to compute a derived
// series' values. The ledger is passive: it records attempts, it does not
// run them, and it does not serialize concurrent attempts for the same
// series. The "current" value of a derived series is whichever observation
// rows were written by the most recent successful entry — a convention the
// calculation producer upholds.
type CalculationLogEntry struct {
	CalculationID         int64
	DerivedSeriesID       int64
	CalculationMethod     *string
	InputSeriesIDs        []int64
	CalculationParameters map[string]any
	CalculationStatus     *string
	ErrorMessage          *string
	ExecutionTimeMs       *int64
	CalculatedAt          *time.Time
	LastCalculated        *time.Time
	CalculatedBy          *string
	CalculationPolicy     *string
}
