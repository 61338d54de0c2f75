package sqltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCaseFolding(t *testing.T) {
	// Differently cased unquoted references resolve to the same identifier.
	a := Normalize("orders")
	b := Normalize("ORDERS")
	c := Normalize("Orders")

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(c))
	assert.Equal(t, "ORDERS", a.Name())
	assert.False(t, a.Quoted())
}

func TestNormalizeQuotedIsByteExact(t *testing.T) {
	a := Normalize(`"Orders"`)
	b := Normalize(`"orders"`)

	assert.False(t, a.Equal(b), "differently-cased quoted identifiers must not match")
	assert.True(t, a.Quoted())
	assert.Equal(t, "Orders", a.Name())
}

func TestNormalizeQuotedNeverMatchesUnquoted(t *testing.T) {
	quoted := Normalize(`"ORDERS"`)
	bare := Normalize("orders")

	// Same canonical bytes, different classification.
	assert.Equal(t, quoted.Name(), bare.Name())
	assert.False(t, quoted.Equal(bare))
}

func TestNormalizeUnescapesEmbeddedQuotes(t *testing.T) {
	id := Normalize(`"my""column"`)
	assert.Equal(t, `my"column`, id.Name())
	assert.Equal(t, `"my""column"`, id.SQL())
}

func TestSQLRendering(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "bare lowercase folds up", raw: "orders", expected: "ORDERS"},
		{name: "bare mixed folds up", raw: "OrDeRs", expected: "ORDERS"},
		{name: "quoted keeps case", raw: `"Orders"`, expected: `"Orders"`},
		{name: "quoted with spaces", raw: `"order lines"`, expected: `"order lines"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.raw).SQL())
		})
	}
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "ANALYTICS.RETAIL.FCT_ORDERS", QualifiedName("analytics", "retail", "fct_orders"))
	assert.Equal(t, "RETAIL.FCT_ORDERS", QualifiedName("", "retail", "fct_orders"))
	assert.Equal(t, `ANALYTICS."Fct Orders"`, QualifiedName("analytics", "", `"Fct Orders"`))
}
