package entities

import (
	"sort"
)

// SourceKind describes one kind of candidate source element and how its
// group membership is stored. Reverse field variants differ only by kind.
type SourceKind struct {
	Name  string // Element type tag stored in elements.kind (e.g., "user")
	Table string // Content table joined to elements (e.g., "users")

	// Membership table linking a source to the groups used by input source restrictions.
	MembershipTable        string // e.g., "usergroups_users"
	MembershipSourceColumn string // Column holding the source element id
	MembershipGroupColumn  string // Column holding the group id

	GroupTable  string // Table resolving group uids to ids (e.g., "usergroups")
	GroupPrefix string // Specifier type prefix (e.g., "group" in "group:<uid>")
}

var (
	// UserKind is the kind for user elements, restricted by user group.
	UserKind = SourceKind{
		Name:                   "user",
		Table:                  "users",
		MembershipTable:        "usergroups_users",
		MembershipSourceColumn: "user_id",
		MembershipGroupColumn:  "group_id",
		GroupTable:             "usergroups",
		GroupPrefix:            "group",
	}

	// EntryKind is the kind for entry elements, restricted by section.
	EntryKind = SourceKind{
		Name:                   "entry",
		Table:                  "entries",
		MembershipTable:        "entries",
		MembershipSourceColumn: "id",
		MembershipGroupColumn:  "section_id",
		GroupTable:             "sections",
		GroupPrefix:            "section",
	}
)

// FieldType is a registered relation field type
type FieldType struct {
	Name        string     // Runtime type stored in fields.type
	Kind        SourceKind // Kind of element the field relates
	Reverse     bool       // True when the field presents the target -> source view
	DisplayName string
}

var fieldTypes = map[string]FieldType{
	"users": {
		Name:        "users",
		Kind:        UserKind,
		DisplayName: "Users",
	},
	"reverse_users": {
		Name:        "reverse_users",
		Kind:        UserKind,
		Reverse:     true,
		DisplayName: "Reverse User Relations",
	},
	"entries": {
		Name:        "entries",
		Kind:        EntryKind,
		DisplayName: "Entries",
	},
	"reverse_entries": {
		Name:        "reverse_entries",
		Kind:        EntryKind,
		Reverse:     true,
		DisplayName: "Reverse Entry Relations",
	},
}

// LookupFieldType returns the registered field type with the given name
func LookupFieldType(name string) (FieldType, bool) {
	ft, ok := fieldTypes[name]
	return ft, ok
}

// FieldTypes returns every registered field type ordered by name
func FieldTypes() []FieldType {
	types := make([]FieldType, 0, len(fieldTypes))
	for _, ft := range fieldTypes {
		types = append(types, ft)
	}
	sort.Slice(types, func(i, j int) bool {
		return types[i].Name < types[j].Name
	})
	return types
}
