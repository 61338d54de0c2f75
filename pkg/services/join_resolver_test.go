package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/apperrors"
	"github.com/strata-bi/strata-engine/pkg/models"
)

func TestResolveSingleTable(t *testing.T) {
	model := loadTestModel(t)
	resolver := NewJoinResolver(zap.NewNop())

	plan, err := resolver.Resolve(model, []string{"orders"})
	require.NoError(t, err)
	assert.Equal(t, "orders", plan.Base)
	assert.Empty(t, plan.Steps)
}

func TestResolveDirectJoin(t *testing.T) {
	model := loadTestModel(t)
	resolver := NewJoinResolver(zap.NewNop())

	plan, err := resolver.Resolve(model, []string{"orders", "customers"})
	require.NoError(t, err)
	assert.Equal(t, "orders", plan.Base)
	require.Len(t, plan.Steps, 1)

	step := plan.Steps[0]
	assert.Equal(t, "customers", step.Table)
	assert.Equal(t, models.JoinTypeInner, step.JoinType)
	require.Len(t, step.Conditions, 1)
	assert.Equal(t, "orders", step.Conditions[0].LeftTable)
	assert.Equal(t, "customer_id", step.Conditions[0].LeftColumn)
	assert.Equal(t, "customer_id", step.Conditions[0].RightColumn)
}

func TestResolvePullsInIntermediateTable(t *testing.T) {
	model := loadTestModel(t)
	resolver := NewJoinResolver(zap.NewNop())

	// orders and nation only connect through customers.
	plan, err := resolver.Resolve(model, []string{"orders", "nation"})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "customers", "nation"}, plan.Tables())
}

func TestResolveDedupesAndFoldsCase(t *testing.T) {
	model := loadTestModel(t)
	resolver := NewJoinResolver(zap.NewNop())

	plan, err := resolver.Resolve(model, []string{"orders", "ORDERS", "Customers"})
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "customers"}, plan.Tables())
}

func TestResolveUnreachableTable(t *testing.T) {
	model := loadTestModel(t)
	resolver := NewJoinResolver(zap.NewNop())

	_, err := resolver.Resolve(model, []string{"orders", "inventory"})
	require.ErrorIs(t, err, apperrors.ErrUnreachable)
	assert.Contains(t, err.Error(), "inventory")
}

func TestResolveUnknownTable(t *testing.T) {
	model := loadTestModel(t)
	resolver := NewJoinResolver(zap.NewNop())

	_, err := resolver.Resolve(model, []string{"orders", "shipments"})
	assert.ErrorIs(t, err, apperrors.ErrUnknownEntity)
}

func TestResolveEmptyInput(t *testing.T) {
	model := loadTestModel(t)
	resolver := NewJoinResolver(zap.NewNop())

	_, err := resolver.Resolve(model, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestResolvePrefersManyToOnePath(t *testing.T) {
	// Two equal-length paths from a to d: through x (one_to_many) and through
	// y (many_to_one). The conservative path through y must win.
	table := func(name string) *models.SemanticTable {
		return &models.SemanticTable{Name: name, PrimaryKey: []string{"id"}}
	}
	rel := func(name, left, right, cardinality string) *models.Relationship {
		return &models.Relationship{
			Name:        name,
			LeftTable:   left,
			RightTable:  right,
			ColumnPairs: []models.ColumnPair{{LeftColumn: "id", RightColumn: "id"}},
			JoinType:    models.JoinTypeInner,
			Cardinality: cardinality,
		}
	}
	model := &models.SemanticModel{
		Name:   "tie",
		Tables: []*models.SemanticTable{table("a"), table("x"), table("y"), table("d")},
		Relationships: []*models.Relationship{
			rel("a_to_x", "a", "x", models.CardinalityOneToMany),
			rel("a_to_y", "a", "y", models.CardinalityManyToOne),
			rel("x_to_d", "x", "d", models.CardinalityManyToOne),
			rel("y_to_d", "y", "d", models.CardinalityManyToOne),
		},
	}

	plan, err := NewJoinResolver(zap.NewNop()).Resolve(model, []string{"a", "d"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "y", "d"}, plan.Tables())
}
