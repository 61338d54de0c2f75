package models

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Resolution Request
// ============================================================================

// TimeRange bounds a request to a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ResolutionRequest is the structured request produced by an upstream
// request-shaping component. The engine never sees free-form natural language
// beyond IntentText, which it only tokenizes for matching.
type ResolutionRequest struct {
	IntentText         string     `json:"intent_text"`
	ReferencedEntities []string   `json:"referenced_entities,omitempty"`
	TimeRange          *TimeRange `json:"time_range,omitempty"`
	Limit              int        `json:"limit,omitempty"`
}

// ============================================================================
// Resolution Result
// ============================================================================

// Query sources.
const (
	SourceVerified  = "verified"
	SourceGenerated = "generated"
)

// Resolution stages, recorded in the diagnostic trail.
const (
	StageReceived         = "received"
	StageMatchingVerified = "matching_verified"
	StageSubstituting     = "substituting"
	StageResolvingJoins   = "resolving_joins"
	StageProjecting       = "projecting"
	StageEmitting         = "emitting"
	StageDone             = "done"
)

// Diagnostic is one entry in the trail explaining how a result (or failure)
// was produced. An incorrect query silently returned to a business user is
// the primary failure mode the trail exists to prevent.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// VerifiedCandidate records one verified query considered during matching.
type VerifiedCandidate struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ResolvedQuery is the per-request output. Instances are owned exclusively by
// the request that created them.
type ResolvedQuery struct {
	RequestID   uuid.UUID           `json:"request_id"`
	QueryText   string              `json:"query_text"`
	Source      string              `json:"source"`
	Confidence  float64             `json:"confidence"`
	Candidates  []VerifiedCandidate `json:"candidates,omitempty"`
	JoinPlan    *JoinPlan           `json:"join_plan,omitempty"`
	Diagnostics []Diagnostic        `json:"diagnostics"`
}
