package entities

// Element is a row of the elements table as seen from one site.
// A derivative (draft or revision) carries the id of its canonical element;
// relations are only ever recorded against canonical ids.
type Element struct {
	ID          int64
	Kind        string // Element type tag, e.g. "user" or "entry"
	SiteID      int64
	CanonicalID int64 // 0 when the element is itself canonical
	Enabled     bool
	Deleted     bool // Soft-deleted (date_deleted is set)
}

// IsDerivative reports whether the element is a draft or revision of another element.
func (e *Element) IsDerivative() bool {
	return e.CanonicalID != 0 && e.CanonicalID != e.ID
}

// CanonicalIDOrSelf returns the id relations are recorded against.
func (e *Element) CanonicalIDOrSelf() int64 {
	if e.IsDerivative() {
		return e.CanonicalID
	}
	return e.ID
}

// IsNew reports whether the element has not been persisted yet.
func (e *Element) IsNew() bool {
	return e.ID == 0
}
