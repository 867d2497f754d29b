package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chronorm/internal/ir"
)

const ordersSchema = `
portal: Order: {
	table:       "orders"
	primary_key: ["id"]
	attributes: {
		id:     "int"
		status: {type: "enum", nullable: true, values: ["open", "closed"]}
		total:  {type: "bigdecimal", precision: 12, scale: 2, nullable: true}
	}
	relationships: items: {
		target: "Item"
		joins: [{from: "id", to: "orderId"}]
	}
}

portal: Item: {
	table:       "order_items"
	primary_key: ["id"]
	attributes: {
		id:       "int"
		orderId:  {type: "int", column: "order_id"}
		sku:      {type: "string", max_length: 12, nullable: true}
		quantity: {type: "int", nullable: true}
	}
	relationships: order: {
		target: "Order"
		joins: [{from: "orderId", to: "id"}]
	}
}

portal: Position: {
	table:       "positions"
	primary_key: ["id", "businessFrom"]
	attributes: {
		id:           "long"
		balance:      "double"
		businessFrom: {type: "timestamp", column: "from_z"}
		businessTo:   {type: "timestamp", column: "thru_z", nullable: true}
	}
	as_of: businessDate: {
		from:          "businessFrom"
		to:            "businessTo"
		infinite_null: true
		infinity:      "9999-12-01 23:59:00"
	}
}
`

func compileOrders(t *testing.T) []ir.PortalSpec {
	t.Helper()
	specs, err := CompileString("orders.cue", ordersSchema)
	require.NoError(t, err)
	require.Len(t, specs, 3)
	return specs
}

func findSpec(t *testing.T, specs []ir.PortalSpec, name string) *ir.PortalSpec {
	t.Helper()
	for i := range specs {
		if specs[i].Name == name {
			return &specs[i]
		}
	}
	t.Fatalf("portal %s not compiled", name)
	return nil
}

// minimalSpec returns a valid single-attribute portal.
func minimalSpec() *ir.PortalSpec {
	return &ir.PortalSpec{
		Name:       "Account",
		Table:      "accounts",
		PrimaryKey: []string{"id"},
		Attributes: []ir.AttributeSpec{{Name: "id", Type: "int"}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}
