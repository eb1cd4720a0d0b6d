package entities

// EagerLoadPair links an owning element (Source) to one related element (Target).
// Which edge column ends up on which side depends on the field direction.
type EagerLoadPair struct {
	Source int64 `json:"source"`
	Target int64 `json:"target"`
}

// EagerLoadCriteria tells the hydration consumer how to materialize the targets.
type EagerLoadCriteria struct {
	SiteID *int64 `json:"siteId"`
}

// EagerLoadMap is the batch adjacency used to hydrate a relation field for many elements at once.
// Pairs keep the order in which they were read; consumers must not re-sort them.
type EagerLoadMap struct {
	ElementType string            `json:"elementType"`
	Pairs       []EagerLoadPair   `json:"map"`
	Criteria    EagerLoadCriteria `json:"criteria"`
}
