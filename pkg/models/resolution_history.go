package models

import (
	"time"

	"github.com/google/uuid"
)

// Error codes recorded with failed resolutions.
const (
	ErrorCodeInvalidRequest         = "invalid_request"
	ErrorCodeUnknownEntity          = "unknown_entity"
	ErrorCodeUnreachable            = "unreachable"
	ErrorCodeAmbiguousAggregation   = "ambiguous_aggregation"
	ErrorCodeNoMatchAndUnresolvable = "no_match_and_unresolvable"
	ErrorCodeUnsafeLiteral          = "unsafe_literal"
	ErrorCodeInternal               = "internal"
)

// ResolutionHistoryEntry records one resolution outcome for audit and
// template curation. Stored in engine_resolution_history.
type ResolutionHistoryEntry struct {
	ID         uuid.UUID `json:"id"`
	RequestID  uuid.UUID `json:"request_id"`
	IntentText string    `json:"intent_text"`
	QueryText  string    `json:"query_text,omitempty"`
	Source     string    `json:"source,omitempty"`
	Confidence float64   `json:"confidence"`
	ErrorCode  *string   `json:"error_code,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Succeeded reports whether the resolution produced query text.
func (e *ResolutionHistoryEntry) Succeeded() bool {
	return e.ErrorCode == nil
}
