package services

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/strata-bi/strata-engine/pkg/models"
)

// Scoring weights. Lexical overlap dominates; entity and structural overlap
// break apart templates that share vocabulary but answer different questions.
const (
	lexicalWeight    = 0.60
	entityWeight     = 0.25
	structuralWeight = 0.15
)

// matcherStopwords are tokens carrying no matching signal.
var matcherStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "of": true, "in": true, "on": true,
	"for": true, "to": true, "and": true, "or": true, "is": true, "are": true,
	"was": true, "were": true, "what": true, "which": true, "who": true,
	"show": true, "me": true, "list": true, "give": true, "all": true,
	"our": true, "my": true, "do": true, "does": true, "did": true,
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

var aggregateKeywordPattern = regexp.MustCompile(`(?i)\b(sum|total|average|avg|count|how many|number of|max|maximum|min|minimum)\b`)

var aggregateFunctionPattern = regexp.MustCompile(`(?i)\b(sum|avg|count|min|max)\s*\(`)

var groupingKeywordPattern = regexp.MustCompile(`(?i)\b(by|per|each|breakdown)\b`)

// VerifiedMatcher ranks the verified-query library against an incoming
// request. It returns the single highest-scoring template only when its score
// clears the acceptance threshold; a low-confidence verified query presented
// as authoritative is worse than falling through to generation.
type VerifiedMatcher struct {
	threshold float64
	logger    *zap.Logger
}

// NewVerifiedMatcher creates a new VerifiedMatcher with the given acceptance
// threshold.
func NewVerifiedMatcher(threshold float64, logger *zap.Logger) *VerifiedMatcher {
	return &VerifiedMatcher{threshold: threshold, logger: logger.Named("verified-matcher")}
}

// Match scores every verified query against the request. The returned
// candidate list covers all scored templates (highest first) for the
// diagnostic trail regardless of whether a winner was accepted.
//
// A request whose intent text exactly reproduces a canonical question always
// matches with confidence 1.0.
func (m *VerifiedMatcher) Match(model *models.SemanticModel, req *models.ResolutionRequest) (*models.VerifiedQuery, float64, []models.VerifiedCandidate) {
	if len(model.VerifiedQueries) == 0 {
		return nil, 0, nil
	}

	reqTokens := tokenize(req.IntentText)
	reqTables := requestTableNames(model, req)
	reqAgg := aggregateKeywordPattern.MatchString(req.IntentText)
	reqGroup := groupingKeywordPattern.MatchString(req.IntentText)

	candidates := make([]models.VerifiedCandidate, 0, len(model.VerifiedQueries))
	scores := map[string]float64{}
	for _, vq := range model.VerifiedQueries {
		score := m.score(vq, req, reqTokens, reqTables, reqAgg, reqGroup)
		scores[vq.Name] = score
		candidates = append(candidates, models.VerifiedCandidate{Name: vq.Name, Score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Name < candidates[j].Name
	})

	best := candidates[0]
	if best.Score < m.threshold {
		m.logger.Debug("No verified query accepted",
			zap.String("best", best.Name),
			zap.Float64("score", best.Score),
			zap.Float64("threshold", m.threshold))
		return nil, 0, candidates
	}

	for _, vq := range model.VerifiedQueries {
		if vq.Name == best.Name {
			m.logger.Debug("Verified query accepted",
				zap.String("name", vq.Name),
				zap.Float64("score", best.Score))
			return vq, best.Score, candidates
		}
	}
	return nil, 0, candidates
}

func (m *VerifiedMatcher) score(vq *models.VerifiedQuery, req *models.ResolutionRequest, reqTokens map[string]bool, reqTables map[string]bool, reqAgg, reqGroup bool) float64 {
	if canonicalText(req.IntentText) == canonicalText(vq.Question) {
		return 1.0
	}

	lexical := jaccard(reqTokens, tokenize(vq.Question))
	for _, p := range vq.Paraphrases {
		if s := jaccard(reqTokens, tokenize(p)); s > lexical {
			lexical = s
		}
	}

	entity := entityOverlap(reqTables, vq.TablePlaceholders())

	structural := 0.0
	if reqAgg == aggregateFunctionPattern.MatchString(vq.SQLTemplate) {
		structural += 0.5
	}
	if reqGroup == strings.Contains(strings.ToUpper(vq.SQLTemplate), "GROUP BY") {
		structural += 0.5
	}

	return lexicalWeight*lexical + entityWeight*entity + structuralWeight*structural
}

// canonicalText collapses whitespace and case so trivially reformatted
// question text still counts as exact.
func canonicalText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// tokenize lowercases, splits, drops stopwords, and singularizes so "orders"
// and "order" land on the same token.
func tokenize(s string) map[string]bool {
	tokens := map[string]bool{}
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(s), -1) {
		if matcherStopwords[tok] {
			continue
		}
		tokens[inflection.Singular(tok)] = true
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// requestTableNames collects the tables a request plausibly touches: explicit
// referenced entities that resolve to tables, plus tables whose name or
// synonym tokens all appear in the intent text.
func requestTableNames(model *models.SemanticModel, req *models.ResolutionRequest) map[string]bool {
	tables := map[string]bool{}
	for _, raw := range req.ReferencedEntities {
		if t := model.TableBySynonym(raw); t != nil {
			tables[strings.ToUpper(t.Name)] = true
		}
	}
	reqTokens := tokenize(req.IntentText)
	for _, t := range model.Tables {
		names := append([]string{t.Name}, t.Synonyms...)
		for _, name := range names {
			if tokensMentioned(reqTokens, name) {
				tables[strings.ToUpper(t.Name)] = true
				break
			}
		}
	}
	return tables
}

// tokensMentioned reports whether every token of name appears in the request
// token set. Multi-word synonyms require all their words.
func tokensMentioned(reqTokens map[string]bool, name string) bool {
	nameTokens := tokenize(name)
	if len(nameTokens) == 0 {
		return false
	}
	for tok := range nameTokens {
		if !reqTokens[tok] {
			return false
		}
	}
	return true
}

// entityOverlap compares request tables with template table placeholders.
// When either side is empty there is no signal, which scores neutral rather
// than punishing the template.
func entityOverlap(reqTables map[string]bool, placeholders []string) float64 {
	if len(reqTables) == 0 || len(placeholders) == 0 {
		return 0.5
	}
	tmplTables := map[string]bool{}
	for _, p := range placeholders {
		tmplTables[strings.ToUpper(p)] = true
	}
	return jaccard(reqTables, tmplTables)
}
