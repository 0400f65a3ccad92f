package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DataSource classifies where a series' values come from.
type DataSource string

const (
	SourceRaw     DataSource = "RAW"
	SourceDerived DataSource = "DERIVED"
)

// Series is one logical financial time series: a named, classified
// instrument/field combination. Observation rows reference it by SeriesID
// only; the link is by convention, not a store-enforced foreign key.
type Series struct {
	SeriesID   int64
	SeriesName string

	// Optional classification references into the lookup catalog.
	AssetClassID    *int64
	SubAssetClassID *int64
	ProductTypeID   *int64
	DataTypeID      *int64
	StructureTypeID *int64
	MarketSegmentID *int64
	FieldTypeID     *int64
	TickerSourceID  *int64

	Ticker        *string
	VersionNumber int
	IsActive      bool

	// IsDerived marks a series whose values are computed from other series.
	// A derived series is expected to have incoming dependency edges and
	// calculation log entries; neither is enforced here.
	IsDerived         bool
	CalculationMethod *string
	DataQualityScore  *decimal.Decimal
	Source            *DataSource
	ConfidenceLevel   *string

	EffectiveDate *time.Time
	AsOfDate      *time.Time
	ValidFrom     *time.Time
	ValidTo       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SeriesUpdate is a partial update applied to a series. Nil fields are left
// unchanged. Applying any update touches UpdatedAt.
type SeriesUpdate struct {
	SeriesName *string

	AssetClassID    *int64
	SubAssetClassID *int64
	ProductTypeID   *int64
	DataTypeID      *int64
	StructureTypeID *int64
	MarketSegmentID *int64
	FieldTypeID     *int64
	TickerSourceID  *int64

	Ticker            *string
	VersionNumber     *int
	IsActive          *bool
	IsDerived         *bool
	CalculationMethod *string
	DataQualityScore  *decimal.Decimal
	Source            *DataSource
	ConfidenceLevel   *string

	EffectiveDate *time.Time
	AsOfDate      *time.Time
	ValidFrom     *time.Time
	ValidTo       *time.Time
}
