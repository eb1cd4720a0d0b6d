package entities

import (
	"fmt"
)

// RelationEdge represents one row of the relations table.
// Example: 10 -[field 3, site *]-> 100
// This means: source element 10 declares, through field 3, a relation to target element 100
type RelationEdge struct {
	ID           int64
	FieldID      int64  // Forward field that owns the edge
	SourceID     int64  // Element declaring the relation
	TargetID     int64  // Element being related to
	SourceSiteID *int64 // Site the edge was saved from (nil = visible from every site)
	SortOrder    int    // User-authored position within the source's field value
}

// IsGlobal reports whether the edge is visible from every site.
func (e *RelationEdge) IsGlobal() bool {
	return e.SourceSiteID == nil
}

// VisibleFrom reports whether the edge surfaces when queried from siteID.
func (e *RelationEdge) VisibleFrom(siteID int64) bool {
	return e.IsGlobal() || *e.SourceSiteID == siteID
}

// String returns a string representation of the relation edge
// Format: source-[field@site]->target#order
func (e *RelationEdge) String() string {
	site := "*"
	if e.SourceSiteID != nil {
		site = fmt.Sprintf("%d", *e.SourceSiteID)
	}
	return fmt.Sprintf("%d-[%d@%s]->%d#%d", e.SourceID, e.FieldID, site, e.TargetID, e.SortOrder)
}

// Validate checks if the relation edge is valid
func (e *RelationEdge) Validate() error {
	if e.FieldID == 0 {
		return fmt.Errorf("field ID is required")
	}
	if e.SourceID == 0 {
		return fmt.Errorf("source ID is required")
	}
	if e.TargetID == 0 {
		return fmt.Errorf("target ID is required")
	}
	if e.SortOrder < 0 {
		return fmt.Errorf("sort order must not be negative")
	}
	return nil
}
