package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/apperrors"
	"github.com/strata-bi/strata-engine/pkg/models"
	"github.com/strata-bi/strata-engine/pkg/sqltext"
)

var bareIdentifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// Substitutor expands named expressions and binds request literals into
// query text. It owns the default lookback window applied when a request is
// silent about time scope.
type Substitutor struct {
	lookbackDays    int
	defaultRowLimit int
	logger          *zap.Logger
}

// NewSubstitutor creates a new Substitutor.
func NewSubstitutor(lookbackDays, defaultRowLimit int, logger *zap.Logger) *Substitutor {
	return &Substitutor{
		lookbackDays:    lookbackDays,
		defaultRowLimit: defaultRowLimit,
		logger:          logger.Named("substitutor"),
	}
}

// ScreenRequest refuses requests whose free-form string fields carry SQL
// injection patterns. Entity names are model lookups, never emitted verbatim,
// but hostile input is rejected up front rather than carried through the
// pipeline.
func (s *Substitutor) ScreenRequest(req *models.ResolutionRequest) error {
	for _, raw := range req.ReferencedEntities {
		if result := sqltext.CheckLiteralForInjection("referenced_entities", raw); result != nil {
			s.logger.Warn("Rejected request literal",
				zap.String("binding", result.Name),
				zap.String("fingerprint", result.Fingerprint))
			return fmt.Errorf("%w: entity %q", apperrors.ErrUnsafeLiteral, raw)
		}
	}
	return nil
}

// ExpandTemplate fills a verified query's placeholders: table placeholders
// become qualified physical names, and the reserved date/limit placeholders
// bind request literals or fall back to the configured defaults.
func (s *Substitutor) ExpandTemplate(model *models.SemanticModel, vq *models.VerifiedQuery, req *models.ResolutionRequest) (string, error) {
	text := vq.SQLTemplate

	for _, placeholder := range vq.TablePlaceholders() {
		table := model.TableByName(placeholder)
		if table == nil {
			// Load-time validation guarantees this; a miss here means the
			// template and model snapshot disagree.
			return "", fmt.Errorf("%w: table %q", apperrors.ErrUnknownEntity, placeholder)
		}
		text = models.ReplacePlaceholder(text, placeholder, table.BaseTable.QualifiedName())
	}

	text = models.ReplacePlaceholder(text, models.PlaceholderStartDate, s.startDateLiteral(req))
	text = models.ReplacePlaceholder(text, models.PlaceholderEndDate, s.endDateLiteral(req))
	text = models.ReplacePlaceholder(text, models.PlaceholderLimit, strconv.Itoa(s.rowLimit(req)))

	return text, nil
}

// DimensionProjection substitutes a dimension into a projection entry.
func (s *Substitutor) DimensionProjection(table *models.SemanticTable, dim *models.Dimension) sqltext.Projection {
	return sqltext.Projection{
		Expr:  qualifyExpr(table.Name, dim.Expr),
		Alias: dim.Name,
	}
}

// FactProjection substitutes a fact into an aggregate projection entry using
// its declared default aggregation. A fact without one fails with
// apperrors.ErrAmbiguousAggregation; the engine never silently picks an
// aggregation function.
func (s *Substitutor) FactProjection(table *models.SemanticTable, fact *models.Fact) (sqltext.Projection, error) {
	if fact.DefaultAggregation == "" {
		return sqltext.Projection{}, fmt.Errorf("%w: fact %q has no default aggregation",
			apperrors.ErrAmbiguousAggregation, fact.Name)
	}
	return sqltext.Projection{
		Expr: fmt.Sprintf("%s(%s)",
			strings.ToUpper(string(fact.DefaultAggregation)),
			qualifyExpr(table.Name, fact.Expr)),
		Alias:     fact.Name,
		Aggregate: true,
	}, nil
}

// FilterPredicate substitutes a named filter's predicate with the table alias
// bound.
func (s *Substitutor) FilterPredicate(table *models.SemanticTable, filter *models.NamedFilter) string {
	return "(" + qualifyExpr(table.Name, filter.Expr) + ")"
}

// TimePredicate builds the time-scope filter for the base table. When the
// request carries an explicit range it binds literal dates; otherwise the
// configured lookback window applies. Tables without a timestamp dimension
// get no time filter.
func (s *Substitutor) TimePredicate(table *models.SemanticTable, req *models.ResolutionRequest) string {
	timeDim := table.TimeDimension()
	if timeDim == nil {
		return ""
	}
	col := qualifyExpr(table.Name, timeDim.Expr)
	return fmt.Sprintf("%s >= %s AND %s < %s", col, s.startDateLiteral(req), col, s.endDateLiteral(req))
}

// JoinCondition renders a join step's column equalities. Conditions name
// declared dimensions/facts; each side substitutes the member's backing
// expression qualified by its table alias.
func (s *Substitutor) JoinCondition(model *models.SemanticModel, step models.JoinStep) string {
	parts := make([]string, 0, len(step.Conditions))
	for _, c := range step.Conditions {
		parts = append(parts, fmt.Sprintf("%s = %s",
			s.columnExpr(model, c.LeftTable, c.LeftColumn),
			s.columnExpr(model, step.Table, c.RightColumn)))
	}
	return strings.Join(parts, " AND ")
}

// columnExpr resolves a declared column name to its qualified backing
// expression. Load-time validation guarantees relationship columns resolve;
// the name itself is the fallback.
func (s *Substitutor) columnExpr(model *models.SemanticModel, tableName, column string) string {
	t := model.TableByName(tableName)
	if t == nil {
		return qualifyExpr(tableName, column)
	}
	if d := t.DimensionByName(column); d != nil {
		return qualifyExpr(t.Name, d.Expr)
	}
	if f := t.FactByName(column); f != nil {
		return qualifyExpr(t.Name, f.Expr)
	}
	return qualifyExpr(t.Name, column)
}

func (s *Substitutor) startDateLiteral(req *models.ResolutionRequest) string {
	if req.TimeRange != nil {
		return fmt.Sprintf("DATE '%s'", req.TimeRange.Start.Format("2006-01-02"))
	}
	return fmt.Sprintf("DATEADD('day', -%d, CURRENT_DATE)", s.lookbackDays)
}

func (s *Substitutor) endDateLiteral(req *models.ResolutionRequest) string {
	if req.TimeRange != nil {
		return fmt.Sprintf("DATE '%s'", req.TimeRange.End.Format("2006-01-02"))
	}
	return "CURRENT_DATE"
}

func (s *Substitutor) rowLimit(req *models.ResolutionRequest) int {
	if req.Limit > 0 {
		return req.Limit
	}
	return s.defaultRowLimit
}

// qualifyExpr prefixes a bare column expression with its table alias.
// Compound expressions are emitted as written; the model author qualifies
// columns inside those explicitly.
func qualifyExpr(tableName, expr string) string {
	trimmed := strings.TrimSpace(expr)
	if bareIdentifierPattern.MatchString(trimmed) {
		return sqltext.Normalize(tableName).SQL() + "." + sqltext.Normalize(trimmed).SQL()
	}
	return trimmed
}
