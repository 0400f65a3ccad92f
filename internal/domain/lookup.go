package domain

import "time"

// Dimension identifies one classification axis for a series.
type Dimension string

// Classification dimensions. Each one maps to its own lookup table.
const (
	DimensionAssetClass    Dimension = "asset_class"
	DimensionSubAssetClass Dimension = "sub_asset_class"
	DimensionProductType   Dimension = "product_type"
	DimensionDataType      Dimension = "data_type"
	DimensionStructureType Dimension = "structure_type"
	DimensionMarketSegment Dimension = "market_segment"
	DimensionFieldType     Dimension = "field_type"
	DimensionTickerSource  Dimension = "ticker_source"
)

// Dimensions lists every classification dimension in a stable order.
var Dimensions = []Dimension{
	DimensionAssetClass,
	DimensionSubAssetClass,
	DimensionProductType,
	DimensionDataType,
	DimensionStructureType,
	DimensionMarketSegment,
	DimensionFieldType,
	DimensionTickerSource,
}

// Valid reports whether d is a known dimension.
func (d Dimension) Valid() bool {
	switch d {
	case DimensionAssetClass, DimensionSubAssetClass, DimensionProductType,
		DimensionDataType, DimensionStructureType, DimensionMarketSegment,
		DimensionFieldType, DimensionTickerSource:
		return true
	}
	return false
}

// LookupEntry is one row of a classification lookup table.
// Name is unique within its dimension. Entries referenced by a series are
// never deleted.
type LookupEntry struct {
	ID          int64
	Dimension   Dimension
	Name        string
	Description *string
	Code        *string // populated for ticker_source only
	// ParentID links a sub_asset_class entry to its asset_class.
	ParentID  *int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Default dimension values used when a lookup table is empty. The query
// engine validates filter values against a snapshot built from the database,
// falling back to these.
var DefaultDimensionValues = map[Dimension][]string{
	DimensionAssetClass: {"Commodity", "Credit", "FX"},
	DimensionSubAssetClass: {
		"Base Metals", "Energy", "Precious Metals", "OAS",
		"EM LATAM", "EM CEEMEA", "EM APAC", "G10",
	},
	DimensionProductType:   {"Spot", "Index"},
	DimensionDataType:      {"Price", "Open Interest", "Price Spread"},
	DimensionStructureType: {"Outright"},
	DimensionMarketSegment: {"Global", "DM", "EM"},
	DimensionFieldType: {
		"PX_LAST", "OPEN_INT", "PX_OPEN", "PX_HIGH", "PX_LOW", "PX_VOLUME",
	},
	DimensionTickerSource: {"Bloomberg", "Refinitiv", "Internal"},
}
