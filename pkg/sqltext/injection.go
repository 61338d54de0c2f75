package sqltext

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a literal that failed the injection screen.
type InjectionCheckResult struct {
	Fingerprint string // libinjection fingerprint of the detected pattern
	Name        string // name of the binding that failed the check
	Value       string // the value that was checked
}

// CheckLiteralForInjection screens a request-supplied string before it is
// substituted into emitted query text. Returns nil when the value is clean.
//
// Non-string bindings (dates formatted by the engine, integer limits) never
// reach this check; only free-form strings from the request do.
func CheckLiteralForInjection(name, value string) *InjectionCheckResult {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		Fingerprint: string(fingerprint),
		Name:        name,
		Value:       value,
	}
}
