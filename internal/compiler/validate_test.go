package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chronorm/internal/ir"
)

// =============================================================================
// PortalSpec Validation Tests
// =============================================================================

func TestValidatePortalValid(t *testing.T) {
	errs := Validate(minimalSpec())
	assert.Empty(t, errs, "valid spec should have no errors")
}

func TestValidateCompiledSchemaValid(t *testing.T) {
	errs := ValidateSchema(compileOrders(t))
	assert.Empty(t, errs)
}

func TestValidatePortalErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.PortalSpec)
		code   string
		field  string
	}{
		{
			name:   "whitespace table",
			mutate: func(s *ir.PortalSpec) { s.Table = "  " },
			code:   ErrTableEmpty,
			field:  "Account.table",
		},
		{
			name:   "no attributes",
			mutate: func(s *ir.PortalSpec) { s.Attributes = nil; s.PrimaryKey = nil },
			code:   ErrNoAttributes,
			field:  "Account.attributes",
		},
		{
			name: "unknown type",
			mutate: func(s *ir.PortalSpec) {
				s.Attributes = append(s.Attributes, ir.AttributeSpec{Name: "x", Type: "uuid"})
			},
			code:  ErrUnknownType,
			field: "Account.attributes.x.type",
		},
		{
			name: "duplicate name",
			mutate: func(s *ir.PortalSpec) {
				s.Attributes = append(s.Attributes, ir.AttributeSpec{Name: "id", Type: "long", Column: "id2"})
			},
			code:  ErrDuplicateName,
			field: "Account.attributes.id",
		},
		{
			name: "duplicate column ignoring case",
			mutate: func(s *ir.PortalSpec) {
				s.Attributes = append(s.Attributes, ir.AttributeSpec{Name: "other", Type: "int", Column: "ID"})
			},
			code:  ErrDuplicateName,
			field: "Account.attributes.other",
		},
		{
			name:   "unknown primary key",
			mutate: func(s *ir.PortalSpec) { s.PrimaryKey = []string{"code"} },
			code:   ErrUnknownPrimaryKey,
			field:  "Account.primary_key",
		},
		{
			name:   "nullable primary key",
			mutate: func(s *ir.PortalSpec) { s.Attributes[0].Nullable = true },
			code:   ErrNullablePrimaryKey,
			field:  "Account.primary_key",
		},
		{
			name: "enum without values",
			mutate: func(s *ir.PortalSpec) {
				s.Attributes = append(s.Attributes, ir.AttributeSpec{Name: "state", Type: "enum"})
			},
			code:  ErrEnumNoValues,
			field: "Account.attributes.state.values",
		},
		{
			name: "scale above precision",
			mutate: func(s *ir.PortalSpec) {
				s.Attributes = append(s.Attributes, ir.AttributeSpec{Name: "amt", Type: "bigdecimal", Precision: 4, Scale: 6})
			},
			code:  ErrInvalidPrecision,
			field: "Account.attributes.amt",
		},
		{
			name: "two source attributes",
			mutate: func(s *ir.PortalSpec) {
				s.Attributes = append(s.Attributes,
					ir.AttributeSpec{Name: "a", Type: "string", Source: true},
					ir.AttributeSpec{Name: "b", Type: "string", Source: true})
			},
			code:  ErrMultipleSources,
			field: "Account.attributes",
		},
		{
			name: "relationship named like attribute",
			mutate: func(s *ir.PortalSpec) {
				s.Relationships = []ir.RelationshipSpec{{Name: "id", Target: "Account", Joins: []ir.JoinSpec{{From: "id", To: "id"}}}}
			},
			code:  ErrRelationshipClash,
			field: "Account.relationships.id",
		},
		{
			name: "join from unknown attribute",
			mutate: func(s *ir.PortalSpec) {
				s.Relationships = []ir.RelationshipSpec{{Name: "self", Target: "Account", Joins: []ir.JoinSpec{{From: "nope", To: "id"}}}}
			},
			code:  ErrUnknownJoin,
			field: "Account.relationships.self.joins[0].from",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := minimalSpec()
			tt.mutate(spec)

			errs := Validate(spec)
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func asOfSpec() *ir.PortalSpec {
	spec := minimalSpec()
	spec.Attributes = append(spec.Attributes,
		ir.AttributeSpec{Name: "from", Type: "timestamp"},
		ir.AttributeSpec{Name: "to", Type: "timestamp"},
		ir.AttributeSpec{Name: "opened", Type: "date"})
	spec.AsOf = []ir.AsOfSpec{{Name: "business", From: "from", To: "to"}}
	return spec
}

func TestValidateAsOf(t *testing.T) {
	assert.Empty(t, Validate(asOfSpec()))

	tests := []struct {
		name   string
		mutate func(*ir.AsOfSpec)
		code   string
		field  string
	}{
		{"unknown from", func(a *ir.AsOfSpec) { a.From = "start" }, ErrInvalidAsOf, "Account.as_of.business.from"},
		{"date to", func(a *ir.AsOfSpec) { a.To = "opened" }, ErrInvalidAsOf, "Account.as_of.business.to"},
		{"bad infinity", func(a *ir.AsOfSpec) { a.Infinity = "9999-12-01" }, ErrInvalidTimestamp, "Account.as_of.business.infinity"},
		{"bad default", func(a *ir.AsOfSpec) { a.Default = "yesterday" }, ErrInvalidTimestamp, "Account.as_of.business.default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := asOfSpec()
			tt.mutate(&spec.AsOf[0])

			errs := Validate(spec)
			require.Len(t, errs, 1, "errors: %v", errs)
			assert.Equal(t, tt.code, errs[0].Code)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidateAsOfSameAttribute(t *testing.T) {
	spec := asOfSpec()
	spec.AsOf[0].To = "from"

	errs := Validate(spec)
	assert.Equal(t, []string{ErrInvalidAsOf}, codes(errs))
	assert.Equal(t, "Account.as_of.business", errs[0].Field)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	spec := &ir.PortalSpec{
		Name:       "Bad",
		PrimaryKey: []string{"missing"},
	}

	errs := Validate(spec)
	assert.Equal(t, []string{ErrTableEmpty, ErrNoAttributes, ErrUnknownPrimaryKey}, codes(errs))
}

// =============================================================================
// Schema Validation Tests
// =============================================================================

func TestValidateSchemaDuplicatePortal(t *testing.T) {
	errs := ValidateSchema([]ir.PortalSpec{*minimalSpec(), *minimalSpec()})
	assert.Equal(t, []string{ErrDuplicatePortal}, codes(errs))
}

func TestValidateSchemaUnknownTarget(t *testing.T) {
	specs := compileOrders(t)
	findSpec(t, specs, "Order").Relationships[0].Target = "LineItem"

	errs := ValidateSchema(specs)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownTarget, errs[0].Code)
	assert.Equal(t, "Order.relationships.items.target", errs[0].Field)
}

func TestValidateSchemaUnknownJoinTarget(t *testing.T) {
	specs := compileOrders(t)
	findSpec(t, specs, "Order").Relationships[0].Joins[0].To = "order"

	errs := ValidateSchema(specs)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownJoin, errs[0].Code)
	assert.Equal(t, "Order.relationships.items.joins[0].to", errs[0].Field)
}

func TestValidateSchemaJoinTypeMismatch(t *testing.T) {
	specs := compileOrders(t)
	findSpec(t, specs, "Order").Relationships[0].Joins[0].To = "sku"

	errs := ValidateSchema(specs)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrJoinTypeMismatch, errs[0].Code)
	assert.Contains(t, errs[0].Message, "id is int but Item.sku is string")
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "Order.table", Message: "table is required", Code: ErrTableEmpty}
	assert.Equal(t, "[E101] Order.table: table is required", err.Error())

	err.Line = 4
	assert.Equal(t, "[E101] line 4: Order.table: table is required", err.Error())
}
