package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Predicate
	}{
		{"empty", "", All{}},
		{"all word", "all", All{}},
		{"all map", "all: true", All{}},
		{"eq", "eq: {status: open}", Compare{Path: "status", Op: OpEq, Value: "open"}},
		{"eq null", "eq: {status: null}", Compare{Path: "status", Op: OpEq}},
		{"gt mapped", "gt: {items.quantity: 5}", Compare{Path: "items.quantity", Op: OpGt, Value: 5}},
		{"lte float", "lte: {total: 2.5}", Compare{Path: "total", Op: OpLte, Value: 2.5}},
		{"in", "in: {id: [1, 2]}", In{Path: "id", Values: []any{1, 2}}},
		{"not in", "not_in: {status: [closed]}", In{Path: "status", Values: []any{"closed"}, Negate: true}},
		{"is null", "is_null: status", Null{Path: "status"}},
		{"is not null", "is_not_null: status", Null{Path: "status", Negate: true}},
		{
			"as of at",
			`as_of: {attribute: businessDate, at: 2024-01-01 00:00:00}`,
			AsOf{Attribute: "businessDate", At: "2024-01-01 00:00:00"},
		},
		{
			"as of range",
			`as_of: {attribute: businessDate, from: "2024-01-01", to: "2024-02-01"}`,
			AsOf{Attribute: "businessDate", From: "2024-01-01", To: "2024-02-01"},
		},
		{
			"nested",
			"and:\n  - eq: {status: open}\n  - or:\n      - is_null: status\n      - gte: {id: 2}\n",
			And{Predicates: []Predicate{
				Compare{Path: "status", Op: OpEq, Value: "open"},
				Or{Predicates: []Predicate{
					Null{Path: "status"},
					Compare{Path: "id", Op: OpGte, Value: 2},
				}},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"two keys", "eq: {a: 1}\ngt: {b: 2}", "exactly one key"},
		{"unknown", "like: {a: x}", `unknown predicate "like"`},
		{"and scalar", "and: x", "and takes a list"},
		{"in scalar", "in: {id: 1}", "in takes a list of values"},
		{"eq list", "eq: {id: [1]}", "eq takes a single value"},
		{"eq two paths", "eq: {a: 1, b: 2}", "one attribute path"},
		{"all false", "all: false", "all takes the value true"},
		{"is_null map", "is_null: {a: 1}", "is_null takes an attribute path"},
		{"as_of unknown", "as_of: {attribute: x, when: now}", `unknown as_of field "when"`},
		{"bad yaml", "eq: {a: [", "parse where clause"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDecodeErrorLine(t *testing.T) {
	_, err := Decode([]byte("and:\n  - eq: {a: 1}\n  - like: {b: 2}\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestWhereUnmarshal(t *testing.T) {
	var doc struct {
		Where Where `yaml:"where"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("where:\n  in: {id: [3]}\n"), &doc))
	assert.Equal(t, In{Path: "id", Values: []any{3}}, doc.Where.Predicate)

	var empty struct {
		Where Where `yaml:"where"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("other: 1\n"), &empty))
	assert.Nil(t, empty.Where.Predicate)
}
