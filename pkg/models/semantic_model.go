package models

import (
	"github.com/strata-bi/strata-engine/pkg/sqltext"
)

// ============================================================================
// Semantic Types
// ============================================================================

// SemanticType classifies a dimension or fact expression.
type SemanticType string

const (
	TypeNumber    SemanticType = "number"
	TypeText      SemanticType = "text"
	TypeBoolean   SemanticType = "boolean"
	TypeTimestamp SemanticType = "timestamp"
	TypeVariant   SemanticType = "variant"
	TypeArray     SemanticType = "array"
)

// ValidSemanticTypes contains all valid semantic type values.
var ValidSemanticTypes = []SemanticType{
	TypeNumber,
	TypeText,
	TypeBoolean,
	TypeTimestamp,
	TypeVariant,
	TypeArray,
}

// IsValidSemanticType checks if the given type is valid.
func IsValidSemanticType(t SemanticType) bool {
	for _, v := range ValidSemanticTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ============================================================================
// Aggregations
// ============================================================================

// Aggregation is a default aggregation function declared on a fact.
type Aggregation string

const (
	AggSum   Aggregation = "sum"
	AggAvg   Aggregation = "avg"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
	AggCount Aggregation = "count"
)

// ValidAggregations contains all valid aggregation values.
var ValidAggregations = []Aggregation{AggSum, AggAvg, AggMin, AggMax, AggCount}

// IsValidAggregation checks if the given aggregation is valid.
func IsValidAggregation(a Aggregation) bool {
	for _, v := range ValidAggregations {
		if v == a {
			return true
		}
	}
	return false
}

// AggregationCompatible reports whether an aggregation may be applied to a
// semantic type: sum/avg require numbers, min/max require an orderable type,
// count accepts anything.
func AggregationCompatible(a Aggregation, t SemanticType) bool {
	switch a {
	case AggSum, AggAvg:
		return t == TypeNumber
	case AggMin, AggMax:
		return t == TypeNumber || t == TypeText || t == TypeTimestamp
	case AggCount:
		return true
	default:
		return false
	}
}

// ============================================================================
// Table Members
// ============================================================================

// Dimension is a named typed projection used for grouping and filtering.
type Dimension struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Expr        string       `yaml:"expr" json:"expr"`
	Type        SemanticType `yaml:"data_type" json:"data_type"`
	Synonyms    []string     `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	Unique      bool         `yaml:"unique,omitempty" json:"unique,omitempty"`
}

// Fact is a numeric (or otherwise aggregable) projection with an optional
// declared default aggregation. A fact referenced outside an explicit
// aggregation context without a default aggregation cannot be resolved.
type Fact struct {
	Name               string       `yaml:"name" json:"name"`
	Description        string       `yaml:"description,omitempty" json:"description,omitempty"`
	Expr               string       `yaml:"expr" json:"expr"`
	Type               SemanticType `yaml:"data_type" json:"data_type"`
	DefaultAggregation Aggregation  `yaml:"default_aggregation,omitempty" json:"default_aggregation,omitempty"`
	Synonyms           []string     `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
}

// NamedFilter is a reusable boolean predicate scoped to one table.
type NamedFilter struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Expr        string   `yaml:"expr" json:"expr"`
	Synonyms    []string `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
}

// BaseTable identifies the physical warehouse object behind a semantic table.
type BaseTable struct {
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
	Schema   string `yaml:"schema,omitempty" json:"schema,omitempty"`
	Table    string `yaml:"table" json:"table"`
}

// QualifiedName renders the physical name with identifier quoting rules applied.
func (b BaseTable) QualifiedName() string {
	return sqltext.QualifiedName(b.Database, b.Schema, b.Table)
}

// ============================================================================
// Semantic Table
// ============================================================================

// SemanticTable is a named queryable abstraction over one physical object.
// Immutable once loaded.
type SemanticTable struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Synonyms    []string       `yaml:"synonyms,omitempty" json:"synonyms,omitempty"`
	BaseTable   BaseTable      `yaml:"base_table" json:"base_table"`
	PrimaryKey  []string       `yaml:"primary_key" json:"primary_key"`
	Dimensions  []*Dimension   `yaml:"dimensions,omitempty" json:"dimensions,omitempty"`
	Facts       []*Fact        `yaml:"facts,omitempty" json:"facts,omitempty"`
	Filters     []*NamedFilter `yaml:"filters,omitempty" json:"filters,omitempty"`
}

// DimensionByName returns the declared dimension matching raw under identifier
// rules, or nil.
func (t *SemanticTable) DimensionByName(raw string) *Dimension {
	want := sqltext.Normalize(raw)
	for _, d := range t.Dimensions {
		if want.EqualRaw(d.Name) {
			return d
		}
	}
	return nil
}

// FactByName returns the declared fact matching raw, or nil.
func (t *SemanticTable) FactByName(raw string) *Fact {
	want := sqltext.Normalize(raw)
	for _, f := range t.Facts {
		if want.EqualRaw(f.Name) {
			return f
		}
	}
	return nil
}

// FilterByName returns the declared named filter matching raw, or nil.
func (t *SemanticTable) FilterByName(raw string) *NamedFilter {
	want := sqltext.Normalize(raw)
	for _, f := range t.Filters {
		if want.EqualRaw(f.Name) {
			return f
		}
	}
	return nil
}

// ColumnType returns the semantic type of the named dimension or fact and
// whether it was found.
func (t *SemanticTable) ColumnType(raw string) (SemanticType, bool) {
	if d := t.DimensionByName(raw); d != nil {
		return d.Type, true
	}
	if f := t.FactByName(raw); f != nil {
		return f.Type, true
	}
	return "", false
}

// TimeDimension returns the first timestamp-typed dimension, or nil. Used as
// the default target for time-range filters.
func (t *SemanticTable) TimeDimension() *Dimension {
	for _, d := range t.Dimensions {
		if d.Type == TypeTimestamp {
			return d
		}
	}
	return nil
}

// ============================================================================
// Semantic Model
// ============================================================================

// SemanticModel is the loaded, validated catalog. It is read-only after
// loading and shared across concurrent requests without locking.
type SemanticModel struct {
	Name            string           `yaml:"name" json:"name"`
	Description     string           `yaml:"description,omitempty" json:"description,omitempty"`
	Tables          []*SemanticTable `yaml:"tables" json:"tables"`
	Relationships   []*Relationship  `yaml:"relationships,omitempty" json:"relationships,omitempty"`
	VerifiedQueries []*VerifiedQuery `yaml:"verified_queries,omitempty" json:"verified_queries,omitempty"`
}

// TableByName resolves a table reference under identifier rules: unquoted
// references are case-insensitive, quoted references match byte-exact.
func (m *SemanticModel) TableByName(raw string) *SemanticTable {
	want := sqltext.Normalize(raw)
	for _, t := range m.Tables {
		if want.EqualRaw(t.Name) {
			return t
		}
	}
	return nil
}

// TableBySynonym resolves a table by name or any declared synonym.
func (m *SemanticModel) TableBySynonym(raw string) *SemanticTable {
	if t := m.TableByName(raw); t != nil {
		return t
	}
	want := sqltext.Normalize(raw)
	for _, t := range m.Tables {
		for _, s := range t.Synonyms {
			if want.EqualRaw(s) {
				return t
			}
		}
	}
	return nil
}
