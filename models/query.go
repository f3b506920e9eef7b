package models

// CaseRole distinguishes how a case entered the result set
type CaseRole string

const (
	// RoleAnchor marks a case retrieved by vector similarity to the query
	RoleAnchor CaseRole = "anchor"
	// RolePrecedent marks a case reached by citation traversal from an anchor
	RolePrecedent CaseRole = "precedent"
)

// RetrievalStatus flags describe how a retrieval degraded, if it did
type RetrievalStatus string

const (
	StatusOK                 RetrievalStatus = "ok"
	StatusNoAnchors          RetrievalStatus = "no_anchors"
	StatusTraversalTruncated RetrievalStatus = "traversal_truncated"
)

// SearchTier identifies which tier of the fallback cascade produced the
// results: filtered hybrid, unfiltered hybrid, or vector-only
type SearchTier string

const (
	TierFilteredHybrid   SearchTier = "filtered_hybrid"
	TierUnfilteredHybrid SearchTier = "unfiltered_hybrid"
	TierVectorOnly       SearchTier = "vector_only"
)

// QueryContext carries one retrieval request. It is transient and never
// persisted.
type QueryContext struct {
	FactPattern    string    `json:"fact_pattern"`
	DesiredOutcome *Decision `json:"desired_outcome,omitempty"`
	Depth          int       `json:"depth"`           // citation hops from anchors; 0 = vector-only ablation
	AnchorCount    int       `json:"anchor_count"`    // top-N anchors from vector search
	Limit          int       `json:"limit"`           // max ranked results returned
	MinSimilarity  float64   `json:"min_similarity"`  // anchors below this are discarded
	VisitBudget    int       `json:"visit_budget"`    // max nodes visited during traversal
}

// DefaultQueryContext returns a QueryContext with the standard limits
// applied; the zero value is not usable directly.
func DefaultQueryContext(factPattern string) QueryContext {
	return QueryContext{
		FactPattern:   factPattern,
		Depth:         2,
		AnchorCount:   5,
		Limit:         10,
		MinSimilarity: 0.0,
		VisitBudget:   2000,
	}
}

// AnchorHit is one nearest-neighbor result from the similarity index
type AnchorHit struct {
	CaseID     string  `json:"case_id"`
	Similarity float64 `json:"similarity"`
}

// RankedCase is one entry of the merged, scored retrieval output. A case
// appears at most once; if it is both an anchor and a reachable precedent
// the anchor role wins but both provenances are kept.
type RankedCase struct {
	Case       *CaseNode `json:"case"`
	Role       CaseRole  `json:"role"`
	Score      float64   `json:"score"`
	Similarity float64   `json:"similarity"`            // anchor similarity, or max similarity of reaching anchors
	Depth      int       `json:"depth"`                 // minimum hops from any anchor; 0 for anchors
	ViaAnchors []string  `json:"via_anchors,omitempty"` // anchor case ids that reached this precedent
	CoCitation int       `json:"co_citation"`           // number of distinct anchors that reached it
}

// ExcludedCase is a precedent dropped by the outcome filter. It is kept so
// callers can see what was filtered and why.
type ExcludedCase struct {
	Case   *CaseNode `json:"case"`
	Reason string    `json:"reason"`
}

// RetrievalResult is the full output of one hybrid retrieval
type RetrievalResult struct {
	Ranked    []RankedCase      `json:"ranked"`
	Excluded  []ExcludedCase    `json:"excluded"`
	Statuses  []RetrievalStatus `json:"statuses"`
	Tier      SearchTier        `json:"tier"`
	QueryUsed QueryContext      `json:"query_used"`
}

// HasStatus reports whether the result carries the given status flag
func (r *RetrievalResult) HasStatus(s RetrievalStatus) bool {
	for _, st := range r.Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// EvidenceEntry is one case shaped for the external generator
type EvidenceEntry struct {
	CaseID    string   `json:"case_id"`
	Name      string   `json:"name"`
	Role      CaseRole `json:"role"`
	Score     float64  `json:"score"`
	Decision  Decision `json:"decision"`
	Excerpt   string   `json:"excerpt"`
	Rationale string   `json:"rationale"` // which anchor/depth produced this entry
}

// EvidenceBundle is the ordered, size-bounded context handed to the
// generator. Order is the retriever's ranking, never re-ranked.
type EvidenceBundle struct {
	Entries   []EvidenceEntry   `json:"entries"`
	Truncated bool              `json:"truncated"` // budget cut the ranking short
	Statuses  []RetrievalStatus `json:"statuses"`
	Tier      SearchTier        `json:"tier"`
}
