package entities

// RawValue is the unnormalized value a host hands to a relation field.
// It is one of LazyValue, IDListValue or EmptyValue.
type RawValue interface {
	rawValue()
}

// LazyValue means nothing was supplied: the value is derived from stored relations.
type LazyValue struct{}

// IDListValue is an explicit, ordered list of related element ids (e.g. posted from a form).
type IDListValue []int64

// EmptyValue means the value was explicitly cleared.
type EmptyValue struct{}

func (LazyValue) rawValue()   {}
func (IDListValue) rawValue() {}
func (EmptyValue) rawValue()  {}
