package sqltext

import (
	"fmt"
	"strings"
)

// Projection is one SELECT-list entry.
type Projection struct {
	Expr      string // fully substituted expression, e.g. SUM(orders.o_totalprice)
	Alias     string // output column name; empty means no alias
	Aggregate bool   // true when Expr applies an aggregate function
}

// TableRef pairs a physical relation with its logical alias.
type TableRef struct {
	Relation string // qualified physical name
	Alias    string // logical table name used to qualify expressions
}

// JoinClause is one join in resolver order.
type JoinClause struct {
	Table TableRef
	Type  string // rendered join keyword, e.g. "INNER JOIN"
	On    string // fully substituted join condition
}

// SelectStatement carries everything the emitter needs. Callers never supply
// a GROUP BY; grouping is derived from the projection list.
type SelectStatement struct {
	Projections []Projection
	From        TableRef
	Joins       []JoinClause
	Where       []string // conjoined with AND
	Limit       int      // 0 means no LIMIT clause
}

// Emit assembles the final query text: projection list, base table, joins in
// resolver order, filter conjunctions, grouping, limit.
//
// When the projection list mixes aggregate and non-aggregate entries, every
// non-aggregate projection is added to the GROUP BY. A projection list that
// is entirely aggregate or entirely non-aggregate emits no GROUP BY. The
// emitter therefore never produces an invalid mixed projection list.
func Emit(stmt SelectStatement) string {
	var b strings.Builder

	selectParts := make([]string, 0, len(stmt.Projections))
	groupParts := make([]string, 0, len(stmt.Projections))
	hasAggregate := false
	for _, p := range stmt.Projections {
		if p.Aggregate {
			hasAggregate = true
		}
	}
	for _, p := range stmt.Projections {
		part := p.Expr
		if p.Alias != "" {
			part = fmt.Sprintf("%s AS %s", p.Expr, Normalize(p.Alias).SQL())
		}
		selectParts = append(selectParts, part)
		if hasAggregate && !p.Aggregate {
			groupParts = append(groupParts, p.Expr)
		}
	}

	b.WriteString("SELECT ")
	b.WriteString(strings.Join(selectParts, ", "))
	b.WriteString(" FROM ")
	b.WriteString(stmt.From.Relation)
	if stmt.From.Alias != "" {
		b.WriteString(" AS ")
		b.WriteString(Normalize(stmt.From.Alias).SQL())
	}

	for _, j := range stmt.Joins {
		b.WriteString(" ")
		b.WriteString(j.Type)
		b.WriteString(" ")
		b.WriteString(j.Table.Relation)
		if j.Table.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(Normalize(j.Table.Alias).SQL())
		}
		b.WriteString(" ON ")
		b.WriteString(j.On)
	}

	if len(stmt.Where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(stmt.Where, " AND "))
	}

	if len(groupParts) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groupParts, ", "))
	}

	if stmt.Limit > 0 {
		b.WriteString(fmt.Sprintf(" LIMIT %d", stmt.Limit))
	}

	return b.String()
}

// JoinKeyword maps a declared join type to its SQL keyword. Unknown types
// fall back to INNER JOIN, the most restrictive choice.
func JoinKeyword(joinType string) string {
	switch strings.ToLower(strings.TrimSpace(joinType)) {
	case "left_outer":
		return "LEFT OUTER JOIN"
	case "inner", "":
		return "INNER JOIN"
	default:
		return "INNER JOIN"
	}
}
