package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Observation is a single (series_id, timestamp) → value fact in the
// time-series store. Timestamp is date-granular. Writing the same key again
// is a logical upsert; the store implements it as insert+compaction with
// last-write-wins semantics.
type Observation struct {
	SeriesID  int64
	Timestamp time.Time // date granularity, UTC midnight
	Value     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ObservationPoint is the (timestamp, value) pair embedded in grouped query
// responses.
type ObservationPoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
}

// SeriesMetadata is the per-series block of a grouped query response:
// registry fields plus resolved lookup dimension names.
//
// A series id present in the observation store without a registry row still
// produces a block, with zero values (empty name, inactive, version 1).
type SeriesMetadata struct {
	SeriesID      int64   `json:"series_id"`
	SeriesName    string  `json:"series_name"`
	Ticker        *string `json:"ticker,omitempty"`
	IsActive      bool    `json:"is_active"`
	IsDerived     bool    `json:"is_derived"`
	VersionNumber int     `json:"version_number"`

	AssetClassName    *string `json:"asset_class_name,omitempty"`
	SubAssetClassName *string `json:"sub_asset_class_name,omitempty"`
	ProductTypeName   *string `json:"product_type_name,omitempty"`
	DataTypeName      *string `json:"data_type_name,omitempty"`
	StructureTypeName *string `json:"structure_type_name,omitempty"`
	MarketSegmentName *string `json:"market_segment_name,omitempty"`
	FieldTypeName     *string `json:"field_type_name,omitempty"`
	TickerSourceName  *string `json:"ticker_source_name,omitempty"`
}

// GroupedSeriesData pairs one series' metadata with its observation rows, in
// the order the observation scan returned them.
type GroupedSeriesData struct {
	Metadata     SeriesMetadata     `json:"metadata"`
	Observations []ObservationPoint `json:"value_data"`
}
