package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/models"
)

// testModelDoc is a small retail model shared across service tests: two joined
// tables, a second hop to nation, and a deliberately disconnected inventory
// table.
const testModelDoc = `
name: retail
description: Retail analytics test model
tables:
  - name: orders
    synonyms: [sales]
    base_table:
      database: analytics
      schema: retail
      table: fct_orders
    primary_key: [order_id]
    dimensions:
      - name: order_id
        expr: o_orderkey
        data_type: number
        unique: true
      - name: customer_id
        expr: o_custkey
        data_type: number
      - name: order_status
        expr: o_orderstatus
        data_type: text
      - name: ordered_at
        expr: o_orderdate
        data_type: timestamp
    facts:
      - name: order_total
        expr: o_totalprice
        data_type: number
        default_aggregation: sum
        synonyms: [revenue]
      - name: raw_margin
        expr: o_margin
        data_type: number
        synonyms: [margin]
    filters:
      - name: open_orders
        expr: o_orderstatus = 'O'
  - name: customers
    base_table:
      database: analytics
      schema: retail
      table: dim_customers
    primary_key: [customer_id]
    dimensions:
      - name: customer_id
        expr: c_custkey
        data_type: number
        unique: true
      - name: customer_name
        expr: c_name
        data_type: text
      - name: market_segment
        expr: c_mktsegment
        data_type: text
        synonyms: [segment]
      - name: nation_id
        expr: c_nationkey
        data_type: number
  - name: nation
    base_table:
      database: analytics
      schema: retail
      table: dim_nation
    primary_key: [nation_id]
    dimensions:
      - name: nation_id
        expr: n_nationkey
        data_type: number
        unique: true
      - name: nation_name
        expr: n_name
        data_type: text
        synonyms: [country]
  - name: inventory
    base_table:
      database: analytics
      schema: retail
      table: fct_inventory
    primary_key: [item_id]
    dimensions:
      - name: item_id
        expr: i_itemkey
        data_type: number
        unique: true
      - name: warehouse
        expr: i_warehouse
        data_type: text
relationships:
  - name: orders_to_customers
    left_table: orders
    right_table: customers
    relationship_columns:
      - left_column: customer_id
        right_column: customer_id
    join_type: inner
    relationship_type: many_to_one
  - name: customers_to_nation
    left_table: customers
    right_table: nation
    relationship_columns:
      - left_column: nation_id
        right_column: nation_id
    join_type: inner
    relationship_type: many_to_one
verified_queries:
  - name: revenue_by_segment
    question: What is the total revenue by market segment?
    paraphrases:
      - revenue per segment
    verified_by: analyst
    verified_at: 2026-05-01T00:00:00Z
    sql: >-
      SELECT c.c_mktsegment AS market_segment, SUM(o.o_totalprice) AS revenue
      FROM {{ orders }} AS o
      JOIN {{ customers }} AS c ON o.o_custkey = c.c_custkey
      WHERE o.o_orderdate >= {{ start_date }} AND o.o_orderdate < {{ end_date }}
      GROUP BY c.c_mktsegment
      LIMIT {{ limit }}
`

func loadTestModel(t *testing.T) *models.SemanticModel {
	t.Helper()
	model, err := NewModelLoader(zap.NewNop()).Load([]byte(testModelDoc))
	require.NoError(t, err)
	return model
}
