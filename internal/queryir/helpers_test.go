package queryir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/compiler"
	"github.com/roach88/chronorm/internal/operation"
)

const schema = `
portal: Order: {
	table:       "orders"
	primary_key: ["id"]
	attributes: {
		id:     "int"
		status: {type: "string", nullable: true}
	}
	relationships: items: {
		target: "Item"
		joins: [{from: "id", to: "orderId"}]
	}
}

portal: Item: {
	table:       "items"
	primary_key: ["id"]
	attributes: {
		id:       "int"
		orderId:  "int"
		quantity: {type: "int", nullable: true}
	}
}

portal: Position: {
	table:       "positions"
	primary_key: ["id", "businessFrom"]
	attributes: {
		id:           "int"
		businessFrom: "timestamp"
		businessTo:   "timestamp"
	}
	as_of: businessDate: {from: "businessFrom", to: "businessTo"}
}
`

func portal(t *testing.T, name string) *attribute.Portal {
	t.Helper()
	specs, err := compiler.CompileString("schema.cue", schema)
	require.NoError(t, err)
	s, err := compiler.Build(specs, compiler.Options{})
	require.NoError(t, err)
	p, ok := s.Portal(name)
	require.True(t, ok)
	return p
}

// orders are Row owners with their items attached for in-memory matching.
func orders() []attribute.Row {
	return []attribute.Row{
		{"id": int32(1), "status": "open", "items": []any{
			attribute.Row{"id": int32(10), "orderId": int32(1), "quantity": int32(3)},
			attribute.Row{"id": int32(11), "orderId": int32(1), "quantity": int32(8)},
		}},
		{"id": int32(2), "status": "closed", "items": []any{
			attribute.Row{"id": int32(12), "orderId": int32(2)},
		}},
		{"id": int32(3)},
	}
}

// matching returns the ids of the orders op matches.
func matching(t *testing.T, op operation.Operation) []int32 {
	t.Helper()
	var ids []int32
	for _, o := range orders() {
		ok, err := operation.Matches(op, o)
		require.NoError(t, err)
		if ok {
			ids = append(ids, o["id"].(int32))
		}
	}
	return ids
}

func ts(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}
