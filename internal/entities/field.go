package entities

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// AllSourcesSentinel is the stored form of an unrestricted source list
const AllSourcesSentinel = "*"

// FieldConfig represents a relation field definition
type FieldConfig struct {
	ID     int64
	UID    string
	Handle string
	Name   string
	Type   string // Runtime field type (see LookupFieldType)

	// Settings
	TargetFieldUID string       // Forward field whose edges a reverse field inverts
	InputSources   InputSources // Groups candidate sources must belong to
	TargetSiteID   *int64       // Fixed site to materialize related elements in (nil = element's site)
}

// FieldType returns the registered type of the field
func (f *FieldConfig) FieldType() (FieldType, bool) {
	return LookupFieldType(f.Type)
}

// Label returns the label used when listing fields for configuration
func (f *FieldConfig) Label() string {
	return fmt.Sprintf("%s (%s)", f.Name, f.Handle)
}

// Validate checks if the field definition is valid
func (f *FieldConfig) Validate() error {
	if f.Handle == "" {
		return fmt.Errorf("field handle is required")
	}
	if f.Name == "" {
		return fmt.Errorf("field name is required")
	}
	ft, ok := f.FieldType()
	if !ok {
		return fmt.Errorf("unknown field type %q", f.Type)
	}
	if ft.Reverse && f.TargetFieldUID == "" {
		return fmt.Errorf("reverse field %s requires a target field", f.Handle)
	}
	return nil
}

type fieldSettings struct {
	TargetFieldUID string      `json:"targetFieldUid,omitempty"`
	Sources        interface{} `json:"sources"`
	TargetSiteID   *int64      `json:"targetSiteId"`
}

// SettingsJSON serializes the field settings as stored in fields.settings
func (f *FieldConfig) SettingsJSON() (string, error) {
	s := fieldSettings{
		TargetFieldUID: f.TargetFieldUID,
		TargetSiteID:   f.TargetSiteID,
	}
	if f.InputSources.All {
		s.Sources = AllSourcesSentinel
	} else {
		specs := f.InputSources.Specifiers
		if specs == nil {
			specs = []string{}
		}
		s.Sources = specs
	}

	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode field settings: %w", err)
	}
	return string(b), nil
}

// ApplySettings loads settings stored in fields.settings into the field.
// Missing sources default to unrestricted.
func (f *FieldConfig) ApplySettings(raw string) error {
	if raw == "" {
		f.InputSources = AllSources()
		return nil
	}
	if !gjson.Valid(raw) {
		return fmt.Errorf("invalid settings for field %s", f.Handle)
	}

	f.TargetFieldUID = gjson.Get(raw, "targetFieldUid").String()

	sources, err := inputSourcesFromJSON(gjson.Get(raw, "sources"))
	if err != nil {
		return fmt.Errorf("invalid sources for field %s: %w", f.Handle, err)
	}
	f.InputSources = sources

	f.TargetSiteID = nil
	if site := gjson.Get(raw, "targetSiteId"); site.Type == gjson.Number {
		id := site.Int()
		f.TargetSiteID = &id
	}

	return nil
}

// InputSources restricts which candidate sources a field accepts.
// Either All is set, or Specifiers lists "type:uid" group references.
type InputSources struct {
	All        bool
	Specifiers []string
}

// AllSources returns the unrestricted sentinel
func AllSources() InputSources {
	return InputSources{All: true}
}

// Sources returns a restriction to the given specifiers
func Sources(specifiers ...string) InputSources {
	return InputSources{Specifiers: specifiers}
}

// String returns "*" or the comma separated specifiers
func (s InputSources) String() string {
	if s.All {
		return AllSourcesSentinel
	}
	return strings.Join(s.Specifiers, ",")
}

func inputSourcesFromJSON(res gjson.Result) (InputSources, error) {
	switch {
	case !res.Exists(), res.Type == gjson.Null:
		return AllSources(), nil
	case res.Type == gjson.String && res.String() == AllSourcesSentinel:
		return AllSources(), nil
	case res.IsArray():
		specs := make([]string, 0, len(res.Array()))
		for _, item := range res.Array() {
			if item.Type != gjson.String {
				return InputSources{}, fmt.Errorf("source specifier %s is not a string", item.Raw)
			}
			specs = append(specs, item.String())
		}
		return Sources(specs...), nil
	default:
		return InputSources{}, fmt.Errorf("sources must be %q or a list", AllSourcesSentinel)
	}
}

// SourceRestriction is an InputSources value resolved to internal group ids
type SourceRestriction struct {
	All      bool
	GroupIDs []int64 // May be empty, which matches no source
}

// Unrestricted returns a restriction that admits every source
func Unrestricted() SourceRestriction {
	return SourceRestriction{All: true}
}
