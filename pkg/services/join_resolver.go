package services

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/apperrors"
	"github.com/strata-bi/strata-engine/pkg/models"
	"github.com/strata-bi/strata-engine/pkg/sqltext"
)

// JoinResolver finds a minimal connecting join plan for a set of required
// tables using the model's declared relationships.
type JoinResolver struct {
	logger *zap.Logger
}

// NewJoinResolver creates a new JoinResolver.
func NewJoinResolver(logger *zap.Logger) *JoinResolver {
	return &JoinResolver{logger: logger.Named("join-resolver")}
}

// graphEdge is one traversable direction of a relationship. Relationships are
// declared with a nominal left/right side but usable in either direction.
type graphEdge struct {
	toKey   string
	toName  string
	rel     *models.Relationship
	forward bool // true when traversing left -> right
}

// cardinality returns the cardinality as seen in the traversal direction.
func (e graphEdge) cardinality() string {
	c := e.rel.Cardinality
	if c == "" {
		c = models.CardinalityManyToOne
	}
	if e.forward {
		return c
	}
	return models.ReverseCardinality(c)
}

// Resolve grows a minimal connecting subgraph covering all required tables
// with the fewest intermediate tables, breadth-first from the tables already
// connected. On equal-length paths, many_to_one edges are preferred over
// one_to_many so default join fan-out stays conservative.
//
// If any required table cannot be reached, Resolve fails with
// apperrors.ErrUnreachable naming the pair; it never fabricates a cross join.
func (r *JoinResolver) Resolve(model *models.SemanticModel, requiredTables []string) (*models.JoinPlan, error) {
	if len(requiredTables) == 0 {
		return nil, fmt.Errorf("%w: no tables to resolve", apperrors.ErrInvalidRequest)
	}

	// Resolve and dedupe required tables, preserving request order.
	var ordered []*models.SemanticTable
	seen := map[string]bool{}
	for _, raw := range requiredTables {
		t := model.TableByName(raw)
		if t == nil {
			return nil, fmt.Errorf("%w: table %q", apperrors.ErrUnknownEntity, raw)
		}
		key := sqltext.Normalize(t.Name).Key()
		if !seen[key] {
			seen[key] = true
			ordered = append(ordered, t)
		}
	}

	plan := &models.JoinPlan{Base: ordered[0].Name}
	if len(ordered) == 1 {
		return plan, nil
	}

	adjacency := buildAdjacency(model)
	connected := map[string]bool{sqltext.Normalize(plan.Base).Key(): true}
	// connectedOrder doubles as the multi-source BFS seed list, in the order
	// tables entered the plan, which keeps resolution deterministic.
	connectedOrder := []string{sqltext.Normalize(plan.Base).Key()}
	displayName := map[string]string{sqltext.Normalize(plan.Base).Key(): plan.Base}

	for _, target := range ordered[1:] {
		targetKey := sqltext.Normalize(target.Name).Key()
		if connected[targetKey] {
			continue
		}

		path, found := shortestConnection(adjacency, connectedOrder, connected, targetKey)
		if !found {
			return nil, fmt.Errorf("%w: no join path between %q and %q",
				apperrors.ErrUnreachable, plan.Base, target.Name)
		}

		for _, edge := range path {
			if connected[edge.toKey] {
				continue
			}
			plan.Steps = append(plan.Steps, joinStepFor(edge, displayName))
			connected[edge.toKey] = true
			connectedOrder = append(connectedOrder, edge.toKey)
			displayName[edge.toKey] = edge.toName
		}
	}

	r.logger.Debug("Join plan resolved",
		zap.String("base", plan.Base),
		zap.Int("steps", len(plan.Steps)),
		zap.Strings("tables", plan.Tables()))
	return plan, nil
}

// pathEdge is a traversal step annotated with the table it was entered from.
type pathEdge struct {
	graphEdge
	fromKey string
}

// shortestConnection runs a multi-source BFS from every connected table to
// the target and returns the edges of the shortest path, nearest connected
// table first.
func shortestConnection(adjacency map[string][]graphEdge, sources []string, connected map[string]bool, targetKey string) ([]pathEdge, bool) {
	parent := map[string]pathEdge{}
	visited := map[string]bool{}
	queue := make([]string, 0, len(sources))
	for _, s := range sources {
		visited[s] = true
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, edge := range adjacency[cur] {
			if visited[edge.toKey] {
				continue
			}
			visited[edge.toKey] = true
			parent[edge.toKey] = pathEdge{graphEdge: edge, fromKey: cur}
			if edge.toKey == targetKey {
				return reconstruct(parent, connected, targetKey), true
			}
			queue = append(queue, edge.toKey)
		}
	}

	return nil, false
}

// reconstruct walks parents back from the target until it hits an
// already-connected table, then reverses the edges into plan order.
func reconstruct(parent map[string]pathEdge, connected map[string]bool, targetKey string) []pathEdge {
	var reversed []pathEdge
	cur := targetKey
	for !connected[cur] {
		e := parent[cur]
		reversed = append(reversed, e)
		cur = e.fromKey
	}
	path := make([]pathEdge, 0, len(reversed))
	for i := len(reversed) - 1; i >= 0; i-- {
		path = append(path, reversed[i])
	}
	return path
}

// buildAdjacency indexes relationships as an undirected graph. Each adjacency
// list is sorted so many_to_one traversal directions come first (the BFS then
// claims parents through conservative edges on equal-length paths), with
// relationship name and neighbor as deterministic tie-breaks.
func buildAdjacency(model *models.SemanticModel) map[string][]graphEdge {
	adjacency := map[string][]graphEdge{}
	for _, rel := range model.Relationships {
		left := model.TableByName(rel.LeftTable)
		right := model.TableByName(rel.RightTable)
		if left == nil || right == nil {
			continue // load-time validation already rejects these
		}
		leftKey := sqltext.Normalize(left.Name).Key()
		rightKey := sqltext.Normalize(right.Name).Key()
		adjacency[leftKey] = append(adjacency[leftKey],
			graphEdge{toKey: rightKey, toName: right.Name, rel: rel, forward: true})
		adjacency[rightKey] = append(adjacency[rightKey],
			graphEdge{toKey: leftKey, toName: left.Name, rel: rel, forward: false})
	}

	for key := range adjacency {
		edges := adjacency[key]
		sort.SliceStable(edges, func(i, j int) bool {
			pi, pj := cardinalityRank(edges[i].cardinality()), cardinalityRank(edges[j].cardinality())
			if pi != pj {
				return pi < pj
			}
			if edges[i].rel.Name != edges[j].rel.Name {
				return edges[i].rel.Name < edges[j].rel.Name
			}
			return edges[i].toKey < edges[j].toKey
		})
	}
	return adjacency
}

func cardinalityRank(c string) int {
	switch c {
	case models.CardinalityManyToOne:
		return 0
	case models.CardinalityOneToOne:
		return 1
	default: // one_to_many
		return 2
	}
}

// joinStepFor orients a traversed edge into a join step whose conditions
// always read already-joined-side column first.
func joinStepFor(edge pathEdge, displayName map[string]string) models.JoinStep {
	joinType := edge.rel.JoinType
	if joinType == "" {
		joinType = models.JoinTypeInner
	}

	fromName := displayName[edge.fromKey]
	conditions := make([]models.JoinCondition, 0, len(edge.rel.ColumnPairs))
	for _, pair := range edge.rel.ColumnPairs {
		if edge.forward {
			conditions = append(conditions, models.JoinCondition{
				LeftTable:   fromName,
				LeftColumn:  pair.LeftColumn,
				RightColumn: pair.RightColumn,
			})
		} else {
			conditions = append(conditions, models.JoinCondition{
				LeftTable:   fromName,
				LeftColumn:  pair.RightColumn,
				RightColumn: pair.LeftColumn,
			})
		}
	}

	return models.JoinStep{
		Table:      edge.toName,
		JoinType:   joinType,
		Conditions: conditions,
	}
}
