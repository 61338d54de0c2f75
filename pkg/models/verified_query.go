package models

import (
	"regexp"
	"time"
)

// Reserved literal placeholders resolved from the request at emission time.
// Any other placeholder must name a table declared in the model.
const (
	PlaceholderStartDate = "start_date"
	PlaceholderEndDate   = "end_date"
	PlaceholderLimit     = "limit"
)

// IsReservedPlaceholder checks if the given placeholder is a literal
// placeholder rather than a table reference.
func IsReservedPlaceholder(name string) bool {
	switch name {
	case PlaceholderStartDate, PlaceholderEndDate, PlaceholderLimit:
		return true
	}
	return false
}

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// VerifiedQuery is an immutable pre-validated question-to-query template.
// When a sufficiently close match exists it always takes precedence over
// generated joins, since verified queries are presented downstream as
// trustworthy.
type VerifiedQuery struct {
	Name        string     `yaml:"name" json:"name"`
	Question    string     `yaml:"question" json:"question"`
	Paraphrases []string   `yaml:"paraphrases,omitempty" json:"paraphrases,omitempty"`
	SQLTemplate string     `yaml:"sql" json:"sql"`
	VerifiedBy  string     `yaml:"verified_by,omitempty" json:"verified_by,omitempty"`
	VerifiedAt  *time.Time `yaml:"verified_at,omitempty" json:"verified_at,omitempty"`
}

// Placeholders returns the distinct placeholder names in the template, in
// first-appearance order.
func (q *VerifiedQuery) Placeholders() []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(q.SQLTemplate, -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// TablePlaceholders returns only the placeholders that reference tables.
func (q *VerifiedQuery) TablePlaceholders() []string {
	var out []string
	for _, name := range q.Placeholders() {
		if !IsReservedPlaceholder(name) {
			out = append(out, name)
		}
	}
	return out
}

// ReplacePlaceholder substitutes every occurrence of the named placeholder in
// the template, tolerating interior whitespace ({{orders}} and {{ orders }}).
func ReplacePlaceholder(template, name, value string) string {
	re := regexp.MustCompile(`\{\{\s*` + regexp.QuoteMeta(name) + `\s*\}\}`)
	return re.ReplaceAllLiteralString(template, value)
}
