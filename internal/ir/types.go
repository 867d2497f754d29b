package ir

// PortalSpec is a compiled portal declaration.
type PortalSpec struct {
	Name          string             `json:"name"`
	Table         string             `json:"table"`
	PrimaryKey    []string           `json:"primary_key"`
	Attributes    []AttributeSpec    `json:"attributes"`
	AsOf          []AsOfSpec         `json:"as_of,omitempty"`
	Relationships []RelationshipSpec `json:"relationships,omitempty"`
}

// AttributeSpec declares one column attribute.
type AttributeSpec struct {
	Name     string `json:"name"`
	Column   string `json:"column"` // defaults to Name
	Type     string `json:"type"`   // family name: "int", "string", "bigdecimal", ...
	Nullable bool   `json:"nullable"`
	Source   bool   `json:"source,omitempty"`

	MaxLength int      `json:"max_length,omitempty"` // string, bytearray
	Precision int      `json:"precision,omitempty"`  // bigdecimal
	Scale     int      `json:"scale,omitempty"`      // bigdecimal
	Values    []string `json:"values,omitempty"`     // enum
}

// AsOfSpec declares an as-of axis over two timestamp attributes of the
// portal.
type AsOfSpec struct {
	Name string `json:"name"`
	From string `json:"from"`
	To   string `json:"to"`

	ToIsInclusive           bool `json:"to_is_inclusive,omitempty"`
	InfiniteNull            bool `json:"infinite_null,omitempty"`
	FutureExpiringRowsExist bool `json:"future_expiring_rows_exist,omitempty"`
	ProcessingDate          bool `json:"processing_date,omitempty"`

	// Infinity and Default use the TimestampLayout.
	Infinity string `json:"infinity,omitempty"`
	Default  string `json:"default,omitempty"`
}

// TimestampLayout is the layout of timestamps in specs.
const TimestampLayout = "2006-01-02 15:04:05"

// RelationshipSpec declares a named hop to another portal.
type RelationshipSpec struct {
	Name   string     `json:"name"`
	Target string     `json:"target"`
	Joins  []JoinSpec `json:"joins"`
}

// JoinSpec equates an attribute of the declaring portal with one of the
// target.
type JoinSpec struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Attribute returns the attribute named name.
func (p PortalSpec) Attribute(name string) (AttributeSpec, bool) {
	for _, a := range p.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return AttributeSpec{}, false
}

// ColumnName returns Column, or Name when no column is declared.
func (a AttributeSpec) ColumnName() string {
	if a.Column != "" {
		return a.Column
	}
	return a.Name
}
