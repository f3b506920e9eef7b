package models

import (
	"time"
)

// CitesEdge represents a directed citation from one case to another.
// Self-citations are rejected before the edge reaches the store, and the
// target must resolve to a known case.
type CitesEdge struct {
	SourceCaseID string    `json:"source_case_id"`
	TargetCaseID string    `json:"target_case_id"`
	Relation     string    `json:"relation"` // "followed", "distinguished", or "cited" when untyped
	CreatedAt    time.Time `json:"created_at"`
}

// RelationCited is the untyped default when the extraction does not say
// how the citing case treated the precedent
const RelationCited = "cited"

// UnresolvedCitation records a citation mention that could not be resolved
// to a known case. These are retried after every batch, since the cited
// case may be ingested later.
type UnresolvedCitation struct {
	ID           int64     `json:"id"`
	SourceCaseID string    `json:"source_case_id"`
	RawMention   string    `json:"raw_mention"`
	NormalizedID string    `json:"normalized_id"` // best-effort parse, may still not exist
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}
