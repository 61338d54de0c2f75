package models

// Join types.
const (
	JoinTypeInner     = "inner"
	JoinTypeLeftOuter = "left_outer"
)

// ValidJoinTypes contains all valid join type values.
var ValidJoinTypes = []string{JoinTypeInner, JoinTypeLeftOuter}

// Relationship cardinality values. The resolver prefers many_to_one edges
// over one_to_many when paths of equal length exist, keeping join fan-out
// conservative by default.
const (
	CardinalityManyToOne = "many_to_one"
	CardinalityOneToMany = "one_to_many"
	CardinalityOneToOne  = "one_to_one"
)

// ValidCardinalities contains all valid relationship cardinality values.
var ValidCardinalities = []string{
	CardinalityManyToOne,
	CardinalityOneToMany,
	CardinalityOneToOne,
}

// IsValidJoinType checks if the given join type is valid.
func IsValidJoinType(jt string) bool {
	for _, v := range ValidJoinTypes {
		if v == jt {
			return true
		}
	}
	return false
}

// IsValidCardinality checks if the given cardinality is valid.
func IsValidCardinality(c string) bool {
	for _, v := range ValidCardinalities {
		if v == c {
			return true
		}
	}
	return false
}

// ReverseCardinality returns the cardinality for traversing a relationship in
// the right-to-left direction. many_to_one becomes one_to_many and vice
// versa; one_to_one is symmetric.
func ReverseCardinality(c string) string {
	switch c {
	case CardinalityManyToOne:
		return CardinalityOneToMany
	case CardinalityOneToMany:
		return CardinalityManyToOne
	default:
		return c
	}
}

// ColumnPair is one ordered equality condition in a relationship.
type ColumnPair struct {
	LeftColumn  string `yaml:"left_column" json:"left_column"`
	RightColumn string `yaml:"right_column" json:"right_column"`
}

// Relationship is a directed edge between two semantic tables. The resolver
// treats edges as usable in either direction; left/right only fixes which
// side each column list belongs to and which side the cardinality reads from.
type Relationship struct {
	Name        string       `yaml:"name" json:"name"`
	LeftTable   string       `yaml:"left_table" json:"left_table"`
	RightTable  string       `yaml:"right_table" json:"right_table"`
	ColumnPairs []ColumnPair `yaml:"relationship_columns" json:"relationship_columns"`
	JoinType    string       `yaml:"join_type" json:"join_type"`
	Cardinality string       `yaml:"relationship_type" json:"relationship_type"`
}

// ============================================================================
// Join Plans
// ============================================================================

// JoinCondition is one substituted equality in a join step, oriented so that
// LeftTable is always the side already present in the plan.
type JoinCondition struct {
	LeftTable   string `json:"left_table"`
	LeftColumn  string `json:"left_column"`
	RightColumn string `json:"right_column"`
}

// JoinStep adds one table to a join plan.
type JoinStep struct {
	Table      string          `json:"table"`
	JoinType   string          `json:"join_type"`
	Conditions []JoinCondition `json:"conditions"`
}

// JoinPlan is an ordered sequence of tables and join conditions sufficient to
// satisfy a request spanning multiple semantic tables. Each table appears at
// most once.
type JoinPlan struct {
	Base  string     `json:"base"`
	Steps []JoinStep `json:"steps"`
}

// Tables returns every table in the plan, base first, in join order.
func (p *JoinPlan) Tables() []string {
	out := make([]string, 0, len(p.Steps)+1)
	out = append(out, p.Base)
	for _, s := range p.Steps {
		out = append(out, s.Table)
	}
	return out
}
