package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSpec() PortalSpec {
	return PortalSpec{
		Name:       "Order",
		Table:      "orders",
		PrimaryKey: []string{"id"},
		Attributes: []AttributeSpec{
			{Name: "id", Type: "int"},
			{Name: "status", Type: "string", Nullable: true, MaxLength: 20},
		},
	}
}

func TestFingerprint_Stable(t *testing.T) {
	fp1, err := Fingerprint(sampleSpec())
	require.NoError(t, err)
	fp2, err := Fingerprint(sampleSpec())
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64)
}

func TestFingerprint_ChangesWithContent(t *testing.T) {
	base := MustFingerprint(sampleSpec())

	tests := []struct {
		name   string
		mutate func(*PortalSpec)
	}{
		{"table", func(p *PortalSpec) { p.Table = "order_t" }},
		{"nullable", func(p *PortalSpec) { p.Attributes[0].Nullable = true }},
		{"max length", func(p *PortalSpec) { p.Attributes[1].MaxLength = 30 }},
		{"primary key", func(p *PortalSpec) { p.PrimaryKey = []string{"status"} }},
		{"relationship", func(p *PortalSpec) {
			p.Relationships = []RelationshipSpec{{Name: "items", Target: "Item", Joins: []JoinSpec{{From: "id", To: "orderId"}}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := sampleSpec()
			tt.mutate(&p)
			assert.NotEqual(t, base, MustFingerprint(p))
		})
	}
}

func TestFingerprint_NormalizesStrings(t *testing.T) {
	a := sampleSpec()
	a.Table = "cafe\u0301"
	b := sampleSpec()
	b.Table = "caf\u00e9"

	assert.Equal(t, MustFingerprint(a), MustFingerprint(b))
}

func TestHashWithDomain_Separates(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, hashWithDomain("a", data), hashWithDomain("b", data))
	assert.NotEqual(t, hashWithDomain("ab", []byte("c")), hashWithDomain("a", []byte("bc")))
}
