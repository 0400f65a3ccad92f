package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DependencyEdge is a directed parent→child edge recording that the child
// series' derivation depends on the parent series.
//
// The graph is not validated acyclic: cycles and self-loops are accepted.
// Any consumer that traverses the graph must detect and bound cycles itself.
type DependencyEdge struct {
	DependencyID   int64
	ParentSeriesID int64
	ChildSeriesID  int64
	DependencyType *string
	Weight         *decimal.Decimal // in [0,1] when present
	Formula        *string
	IsActive       bool
	ValidFrom      *time.Time
	ValidTo        *time.Time
	CreatedAt      time.Time
}
