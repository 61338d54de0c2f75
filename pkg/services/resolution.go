package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/apperrors"
	"github.com/strata-bi/strata-engine/pkg/models"
	"github.com/strata-bi/strata-engine/pkg/sqltext"
)

// DocumentSource supplies the raw semantic-model document for (re)loading.
type DocumentSource func() ([]byte, error)

// ResolutionError is a terminal failure carrying the diagnostic trail. An
// incorrect query silently returned to a business user is the failure mode
// this engine exists to prevent, so failures explain themselves too.
type ResolutionError struct {
	Stage       string
	Err         error
	Diagnostics []models.Diagnostic
	Candidates  []models.VerifiedCandidate
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution failed at %s: %v", e.Stage, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ResolutionService sequences matching, join resolution, substitution, and
// emission for each request.
type ResolutionService interface {
	// Resolve turns a structured request into emitted query text. It is a
	// pure function of (model snapshot, request): resolving the same request
	// twice against the same snapshot yields byte-identical output.
	Resolve(ctx context.Context, req *models.ResolutionRequest) (*models.ResolvedQuery, error)
	// Reload atomically swaps in a freshly loaded model. In-flight requests
	// continue against the snapshot they started with; a document that fails
	// validation leaves the prior snapshot serving.
	Reload(ctx context.Context) error
	// Model returns the current model snapshot.
	Model() *models.SemanticModel
}

type resolutionService struct {
	model       atomic.Pointer[models.SemanticModel]
	source      DocumentSource
	loader      *ModelLoader
	matcher     *VerifiedMatcher
	resolver    *JoinResolver
	substitutor *Substitutor
	history     ResolutionHistoryService // optional, may be nil
	logger      *zap.Logger
}

// NewResolutionService creates the orchestrator around an initial model
// snapshot. history may be nil when resolution recording is disabled.
func NewResolutionService(
	initial *models.SemanticModel,
	source DocumentSource,
	loader *ModelLoader,
	matcher *VerifiedMatcher,
	resolver *JoinResolver,
	substitutor *Substitutor,
	history ResolutionHistoryService,
	logger *zap.Logger,
) ResolutionService {
	s := &resolutionService{
		source:      source,
		loader:      loader,
		matcher:     matcher,
		resolver:    resolver,
		substitutor: substitutor,
		history:     history,
		logger:      logger.Named("resolution"),
	}
	s.model.Store(initial)
	return s
}

var _ ResolutionService = (*resolutionService)(nil)

func (s *resolutionService) Model() *models.SemanticModel {
	return s.model.Load()
}

func (s *resolutionService) Reload(ctx context.Context) error {
	definition, err := s.source()
	if err != nil {
		return fmt.Errorf("read model document: %w", err)
	}
	model, err := s.loader.Load(definition)
	if err != nil {
		s.logger.Warn("Model reload rejected, prior snapshot keeps serving", zap.Error(err))
		return err
	}
	s.model.Store(model)
	s.logger.Info("Model snapshot swapped", zap.String("model", model.Name))
	return nil
}

func (s *resolutionService) Resolve(ctx context.Context, req *models.ResolutionRequest) (*models.ResolvedQuery, error) {
	model := s.model.Load()
	requestID := uuid.New()

	var diagnostics []models.Diagnostic
	trace := func(stage, format string, args ...any) {
		diagnostics = append(diagnostics, models.Diagnostic{
			Stage:   stage,
			Message: fmt.Sprintf(format, args...),
		})
	}
	fail := func(stage string, candidates []models.VerifiedCandidate, err error) (*models.ResolvedQuery, error) {
		trace(stage, "failed: %v", err)
		resErr := &ResolutionError{Stage: stage, Err: err, Diagnostics: diagnostics, Candidates: candidates}
		s.recordOutcome(ctx, requestID, req, nil, resErr)
		return nil, resErr
	}

	trace(models.StageReceived, "request %s against model %q", requestID, model.Name)

	if err := s.substitutor.ScreenRequest(req); err != nil {
		return fail(models.StageReceived, nil, err)
	}

	entities, err := resolveEntities(model, req)
	if err != nil {
		return fail(models.StageReceived, nil, err)
	}

	// Verified matching always runs first; a sufficiently close template
	// bypasses graph resolution entirely.
	vq, confidence, candidates := s.matcher.Match(model, req)
	if len(candidates) > 0 {
		trace(models.StageMatchingVerified, "best candidate %q scored %.2f", candidates[0].Name, candidates[0].Score)
	} else {
		trace(models.StageMatchingVerified, "no verified queries in model")
	}

	if vq != nil {
		trace(models.StageSubstituting, "expanding verified query %q", vq.Name)
		text, err := s.substitutor.ExpandTemplate(model, vq, req)
		if err != nil {
			return fail(models.StageSubstituting, candidates, err)
		}
		trace(models.StageDone, "resolved from verified query %q", vq.Name)
		result := &models.ResolvedQuery{
			RequestID:   requestID,
			QueryText:   text,
			Source:      models.SourceVerified,
			Confidence:  confidence,
			Candidates:  candidates,
			Diagnostics: diagnostics,
		}
		s.recordOutcome(ctx, requestID, req, result, nil)
		return result, nil
	}

	if len(entities.tables) == 0 {
		return fail(models.StageMatchingVerified, candidates,
			fmt.Errorf("%w: request references no resolvable tables", apperrors.ErrNoMatchAndUnresolvable))
	}

	tableNames := make([]string, 0, len(entities.tables))
	for _, t := range entities.tables {
		tableNames = append(tableNames, t.Name)
	}
	plan, err := s.resolver.Resolve(model, tableNames)
	if err != nil {
		return fail(models.StageResolvingJoins, candidates, err)
	}
	trace(models.StageResolvingJoins, "join plan: %s", strings.Join(plan.Tables(), " -> "))

	stmt, err := s.buildStatement(model, plan, entities, req)
	if err != nil {
		return fail(models.StageProjecting, candidates, err)
	}
	trace(models.StageProjecting, "%d projection(s), %d filter(s)", len(stmt.Projections), len(stmt.Where))

	text := sqltext.Emit(stmt)
	trace(models.StageEmitting, "emitted %d bytes", len(text))
	trace(models.StageDone, "resolved by generation")

	result := &models.ResolvedQuery{
		RequestID:   requestID,
		QueryText:   text,
		Source:      models.SourceGenerated,
		Confidence:  generatedConfidence(plan, len(entities.tables)),
		Candidates:  candidates,
		JoinPlan:    plan,
		Diagnostics: diagnostics,
	}
	s.recordOutcome(ctx, requestID, req, result, nil)
	return result, nil
}

// buildStatement substitutes projections and filters for the generated path.
func (s *resolutionService) buildStatement(model *models.SemanticModel, plan *models.JoinPlan, entities *resolvedEntities, req *models.ResolutionRequest) (sqltext.SelectStatement, error) {
	var stmt sqltext.SelectStatement

	for _, d := range entities.dimensions {
		stmt.Projections = append(stmt.Projections, s.substitutor.DimensionProjection(d.table, d.dim))
	}
	for _, f := range entities.facts {
		proj, err := s.substitutor.FactProjection(f.table, f.fact)
		if err != nil {
			return stmt, err
		}
		stmt.Projections = append(stmt.Projections, proj)
	}

	// A request naming only tables still gets a usable projection list: every
	// dimension of each required table, in declaration order.
	if len(stmt.Projections) == 0 {
		for _, t := range entities.tables {
			for _, d := range t.Dimensions {
				stmt.Projections = append(stmt.Projections, s.substitutor.DimensionProjection(t, d))
			}
		}
	}

	base := model.TableByName(plan.Base)
	stmt.From = sqltext.TableRef{Relation: base.BaseTable.QualifiedName(), Alias: base.Name}

	for _, step := range plan.Steps {
		joined := model.TableByName(step.Table)
		stmt.Joins = append(stmt.Joins, sqltext.JoinClause{
			Table: sqltext.TableRef{Relation: joined.BaseTable.QualifiedName(), Alias: joined.Name},
			Type:  sqltext.JoinKeyword(step.JoinType),
			On:    s.substitutor.JoinCondition(model, step),
		})
	}

	for _, f := range entities.filters {
		stmt.Where = append(stmt.Where, s.substitutor.FilterPredicate(f.table, f.filter))
	}
	if pred := s.substitutor.TimePredicate(base, req); pred != "" {
		stmt.Where = append(stmt.Where, pred)
	}

	stmt.Limit = req.Limit
	return stmt, nil
}

// generatedConfidence discounts the generated path for every intermediate
// table the resolver had to pull in: the more inferred structure, the less
// certain the result. Verified matches always score at or above this.
func generatedConfidence(plan *models.JoinPlan, requiredTables int) float64 {
	intermediates := len(plan.Steps) - (requiredTables - 1)
	if intermediates < 0 {
		intermediates = 0
	}
	confidence := 0.9 - 0.05*float64(intermediates)
	if confidence < 0.5 {
		confidence = 0.5
	}
	return confidence
}

func (s *resolutionService) recordOutcome(ctx context.Context, requestID uuid.UUID, req *models.ResolutionRequest, result *models.ResolvedQuery, resErr error) {
	if s.history == nil {
		return
	}
	s.history.Record(ctx, requestID, req, result, resErr)
}

// ============================================================================
// Entity Resolution
// ============================================================================

type dimensionRef struct {
	table *models.SemanticTable
	dim   *models.Dimension
}

type factRef struct {
	table *models.SemanticTable
	fact  *models.Fact
}

type filterRef struct {
	table  *models.SemanticTable
	filter *models.NamedFilter
}

type resolvedEntities struct {
	tables     []*models.SemanticTable
	dimensions []dimensionRef
	facts      []factRef
	filters    []filterRef
}

func (e *resolvedEntities) addTable(t *models.SemanticTable) {
	key := sqltext.Normalize(t.Name).Key()
	for _, existing := range e.tables {
		if sqltext.Normalize(existing.Name).Key() == key {
			return
		}
	}
	e.tables = append(e.tables, t)
}

// resolveEntities maps request references onto model entities. Every
// explicitly referenced entity must resolve or the request is invalid;
// intent-text mentions are matched best-effort.
func resolveEntities(model *models.SemanticModel, req *models.ResolutionRequest) (*resolvedEntities, error) {
	entities := &resolvedEntities{}

	for _, raw := range req.ReferencedEntities {
		if !entities.resolveOne(model, raw) {
			return nil, fmt.Errorf("%w: unknown entity %q", apperrors.ErrInvalidRequest, raw)
		}
	}

	entities.scanIntent(model, req.IntentText)
	return entities, nil
}

// resolveOne resolves a single explicit reference: table first, then
// dimension, fact, or named filter across all tables in declaration order.
func (e *resolvedEntities) resolveOne(model *models.SemanticModel, raw string) bool {
	if t := model.TableBySynonym(raw); t != nil {
		e.addTable(t)
		return true
	}
	for _, t := range model.Tables {
		if d := t.DimensionByName(raw); d != nil {
			e.addTable(t)
			e.dimensions = append(e.dimensions, dimensionRef{table: t, dim: d})
			return true
		}
		if f := t.FactByName(raw); f != nil {
			e.addTable(t)
			e.facts = append(e.facts, factRef{table: t, fact: f})
			return true
		}
		if fl := t.FilterByName(raw); fl != nil {
			e.addTable(t)
			e.filters = append(e.filters, filterRef{table: t, filter: fl})
			return true
		}
	}
	return false
}

// scanIntent matches intent tokens against entity names and synonyms in
// model declaration order, keeping resolution deterministic.
func (e *resolvedEntities) scanIntent(model *models.SemanticModel, intent string) {
	reqTokens := tokenize(intent)
	if len(reqTokens) == 0 {
		return
	}

	for _, t := range model.Tables {
		if anyNameMentioned(reqTokens, t.Name, t.Synonyms) {
			e.addTable(t)
		}
		for _, d := range t.Dimensions {
			if anyNameMentioned(reqTokens, d.Name, d.Synonyms) && !e.hasDimension(t, d) {
				e.addTable(t)
				e.dimensions = append(e.dimensions, dimensionRef{table: t, dim: d})
			}
		}
		for _, f := range t.Facts {
			if anyNameMentioned(reqTokens, f.Name, f.Synonyms) && !e.hasFact(t, f) {
				e.addTable(t)
				e.facts = append(e.facts, factRef{table: t, fact: f})
			}
		}
		for _, fl := range t.Filters {
			if anyNameMentioned(reqTokens, fl.Name, fl.Synonyms) && !e.hasFilter(t, fl) {
				e.addTable(t)
				e.filters = append(e.filters, filterRef{table: t, filter: fl})
			}
		}
	}
}

func (e *resolvedEntities) hasDimension(t *models.SemanticTable, d *models.Dimension) bool {
	for _, existing := range e.dimensions {
		if existing.table == t && existing.dim == d {
			return true
		}
	}
	return false
}

func (e *resolvedEntities) hasFact(t *models.SemanticTable, f *models.Fact) bool {
	for _, existing := range e.facts {
		if existing.table == t && existing.fact == f {
			return true
		}
	}
	return false
}

func (e *resolvedEntities) hasFilter(t *models.SemanticTable, fl *models.NamedFilter) bool {
	for _, existing := range e.filters {
		if existing.table == t && existing.filter == fl {
			return true
		}
	}
	return false
}

func anyNameMentioned(reqTokens map[string]bool, name string, synonyms []string) bool {
	if tokensMentioned(reqTokens, name) {
		return true
	}
	for _, s := range synonyms {
		if tokensMentioned(reqTokens, s) {
			return true
		}
	}
	return false
}
