// Package sqltext provides identifier normalization, statement screening,
// and SELECT-statement assembly for the resolution engine.
//
// Every object or column name entering a comparison or the emitted text must
// pass through Normalize. Unquoted names fold to upper case; quoted names are
// byte-exact. Mixing the two conventions is the classic way to produce an
// empty result set instead of an error, so nothing in the engine compares raw
// strings directly.
package sqltext

import "strings"

// Identifier is a normalized object or column name.
type Identifier struct {
	value  string
	quoted bool
}

// Normalize classifies a raw identifier as quoted or unquoted and
// canonicalizes it.
//
// A raw value wrapped in double quotes is treated as a delimited identifier:
// the delimiters are stripped, doubled quote characters are unescaped, and
// the remaining bytes are preserved exactly. Anything else is an unquoted
// identifier and folds to upper case.
func Normalize(raw string) Identifier {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		inner := trimmed[1 : len(trimmed)-1]
		return Identifier{
			value:  strings.ReplaceAll(inner, `""`, `"`),
			quoted: true,
		}
	}
	return Identifier{value: strings.ToUpper(trimmed)}
}

// Quoted reports whether the identifier was explicitly delimited by the caller.
func (id Identifier) Quoted() bool { return id.quoted }

// Name returns the canonical name without delimiters.
func (id Identifier) Name() string { return id.value }

// Key returns a comparison key. Quoted and unquoted identifiers never share a
// key, so "Orders" (quoted) and Orders (bare) are distinct.
func (id Identifier) Key() string {
	if id.quoted {
		return "q:" + id.value
	}
	return "u:" + id.value
}

// Equal reports whether two identifiers refer to the same object under the
// quoting rules.
func (id Identifier) Equal(other Identifier) bool {
	return id.Key() == other.Key()
}

// EqualRaw is shorthand for comparing against an un-normalized name.
func (id Identifier) EqualRaw(raw string) bool {
	return id.Equal(Normalize(raw))
}

// SQL renders the identifier for emission. Quoted identifiers are delimited
// with embedded quote characters doubled; unquoted identifiers emit their
// upper-case canonical form.
func (id Identifier) SQL() string {
	if id.quoted {
		return `"` + strings.ReplaceAll(id.value, `"`, `""`) + `"`
	}
	return id.value
}

// QualifiedName joins identifier parts with dots, rendering each part.
// Empty parts are skipped so two-part names (schema.table) work unchanged.
func QualifiedName(parts ...string) string {
	rendered := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		rendered = append(rendered, Normalize(p).SQL())
	}
	return strings.Join(rendered, ".")
}
