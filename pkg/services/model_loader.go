package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/strata-bi/strata-engine/pkg/apperrors"
	"github.com/strata-bi/strata-engine/pkg/models"
	"github.com/strata-bi/strata-engine/pkg/sqltext"
)

// ModelValidationError carries every problem found in a semantic-model
// document. Validation is exhaustive, not fail-fast, so a model author sees
// all defects in one pass.
type ModelValidationError struct {
	Problems []string
}

func (e *ModelValidationError) Error() string {
	return fmt.Sprintf("%s: %d problem(s): %s",
		apperrors.ErrModelInvalid.Error(), len(e.Problems), strings.Join(e.Problems, "; "))
}

// Unwrap lets callers test with errors.Is(err, apperrors.ErrModelInvalid).
func (e *ModelValidationError) Unwrap() error { return apperrors.ErrModelInvalid }

// ModelLoader parses and validates semantic-model documents.
type ModelLoader struct {
	logger *zap.Logger
}

// NewModelLoader creates a new ModelLoader.
func NewModelLoader(logger *zap.Logger) *ModelLoader {
	return &ModelLoader{logger: logger.Named("model-loader")}
}

// Load parses a YAML semantic-model definition into validated in-memory
// structures. The returned model is immutable and safe for unsynchronized
// concurrent reads.
func (l *ModelLoader) Load(definition []byte) (*models.SemanticModel, error) {
	var model models.SemanticModel
	if err := yaml.Unmarshal(definition, &model); err != nil {
		return nil, fmt.Errorf("%w: parse: %v", apperrors.ErrModelInvalid, err)
	}

	problems := l.validate(&model)
	if len(problems) > 0 {
		l.logger.Warn("Semantic model rejected",
			zap.String("model", model.Name),
			zap.Int("problems", len(problems)))
		return nil, &ModelValidationError{Problems: problems}
	}

	l.logger.Info("Semantic model loaded",
		zap.String("model", model.Name),
		zap.Int("tables", len(model.Tables)),
		zap.Int("relationships", len(model.Relationships)),
		zap.Int("verified_queries", len(model.VerifiedQueries)))
	return &model, nil
}

func (l *ModelLoader) validate(model *models.SemanticModel) []string {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(model.Name) == "" {
		add("model name is required")
	}
	if len(model.Tables) == 0 {
		add("model declares no tables")
	}

	seenTables := map[string]string{}
	for _, t := range model.Tables {
		key := sqltext.Normalize(t.Name).Key()
		if prev, dup := seenTables[key]; dup {
			add("table %q collides with table %q under identifier rules", t.Name, prev)
		}
		seenTables[key] = t.Name
		l.validateTable(t, add)
	}

	for _, rel := range model.Relationships {
		l.validateRelationship(model, rel, add)
	}

	seenQueries := map[string]bool{}
	for _, vq := range model.VerifiedQueries {
		if seenQueries[vq.Name] {
			add("verified query %q declared more than once", vq.Name)
		}
		seenQueries[vq.Name] = true
		l.validateVerifiedQuery(model, vq, add)
	}

	return problems
}

func (l *ModelLoader) validateTable(t *models.SemanticTable, add func(string, ...any)) {
	if strings.TrimSpace(t.Name) == "" {
		add("table with base %q has no name", t.BaseTable.Table)
		return
	}
	if strings.TrimSpace(t.BaseTable.Table) == "" {
		add("table %q has no physical base table", t.Name)
	}
	if len(t.PrimaryKey) == 0 {
		add("table %q has an empty primary key", t.Name)
	}
	for _, pk := range t.PrimaryKey {
		if t.DimensionByName(pk) == nil {
			add("table %q primary key column %q is not a declared dimension", t.Name, pk)
		}
	}

	for _, d := range t.Dimensions {
		if !models.IsValidSemanticType(d.Type) {
			add("table %q dimension %q has invalid type %q", t.Name, d.Name, d.Type)
		}
	}
	for _, f := range t.Facts {
		if !models.IsValidSemanticType(f.Type) {
			add("table %q fact %q has invalid type %q", t.Name, f.Name, f.Type)
		}
		if f.DefaultAggregation == "" {
			continue
		}
		if !models.IsValidAggregation(f.DefaultAggregation) {
			add("table %q fact %q has invalid default aggregation %q", t.Name, f.Name, f.DefaultAggregation)
		} else if !models.AggregationCompatible(f.DefaultAggregation, f.Type) {
			add("table %q fact %q default aggregation %q is incompatible with type %q",
				t.Name, f.Name, f.DefaultAggregation, f.Type)
		}
	}
}

func (l *ModelLoader) validateRelationship(model *models.SemanticModel, rel *models.Relationship, add func(string, ...any)) {
	left := model.TableByName(rel.LeftTable)
	right := model.TableByName(rel.RightTable)
	if left == nil {
		add("relationship %q references unknown left table %q", rel.Name, rel.LeftTable)
	}
	if right == nil {
		add("relationship %q references unknown right table %q", rel.Name, rel.RightTable)
	}
	if rel.JoinType != "" && !models.IsValidJoinType(rel.JoinType) {
		add("relationship %q has invalid join type %q", rel.Name, rel.JoinType)
	}
	if rel.Cardinality != "" && !models.IsValidCardinality(rel.Cardinality) {
		add("relationship %q has invalid relationship type %q", rel.Name, rel.Cardinality)
	}
	if len(rel.ColumnPairs) == 0 {
		add("relationship %q declares no column pairs", rel.Name)
	}
	if left == nil || right == nil {
		return
	}

	for _, pair := range rel.ColumnPairs {
		leftType, leftOK := left.ColumnType(pair.LeftColumn)
		if !leftOK {
			add("relationship %q column %q is not a declared dimension or fact of table %q",
				rel.Name, pair.LeftColumn, left.Name)
		}
		rightType, rightOK := right.ColumnType(pair.RightColumn)
		if !rightOK {
			add("relationship %q column %q is not a declared dimension or fact of table %q",
				rel.Name, pair.RightColumn, right.Name)
		}
		if leftOK && rightOK && leftType != rightType {
			add("relationship %q joins %s.%s (%s) to %s.%s (%s) with incompatible types",
				rel.Name, left.Name, pair.LeftColumn, leftType, right.Name, pair.RightColumn, rightType)
		}
	}
}

func (l *ModelLoader) validateVerifiedQuery(model *models.SemanticModel, vq *models.VerifiedQuery, add func(string, ...any)) {
	if strings.TrimSpace(vq.Question) == "" {
		add("verified query %q has no question text", vq.Name)
	}
	normalized, err := sqltext.ValidateTemplate(vq.SQLTemplate)
	if err != nil {
		add("verified query %q template rejected: %v", vq.Name, err)
		return
	}
	vq.SQLTemplate = normalized

	for _, placeholder := range vq.TablePlaceholders() {
		if model.TableByName(placeholder) == nil {
			add("verified query %q placeholder %q does not name a known table", vq.Name, placeholder)
		}
	}
}
