package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"legalgraph-backend/models"
)

var (
	// ErrEmbeddingVersionMismatch means the stored index and the live
	// embedding function disagree. Vectors from different embedding
	// functions must never be compared, so this is fatal for the query.
	ErrEmbeddingVersionMismatch = errors.New("stored embedding version does not match live embedder")

	ErrStoreUnavailable = errors.New("graph store unavailable")
	ErrRetrievalFailed  = errors.New("failed to retrieve precedents")
)

// Scoring weights. A precedent's composite score is
//
//	maxAnchorSim * depthDecay^depth + coCiteWeight * (coCitations - 1)
//
// which keeps a depth-1 precedent strictly above an otherwise-identical
// depth-2 one, and a more co-cited precedent strictly above a less
// co-cited one at equal depth and similarity.
const (
	defaultDepthDecay   = 0.75
	defaultCoCiteWeight = 0.05
)

// RetrievalService is the hybrid retriever: vector search selects anchor
// cases, bounded-depth citation traversal from the anchors collects
// precedents, and the merged set is scored, outcome-filtered and ranked.
// It is read-only against the store and safe for concurrent queries.
type RetrievalService struct {
	cases        CaseStore
	citations    CitationStore
	embedder     Embedder
	depthDecay   float64
	coCiteWeight float64
}

// RetrievalServiceOption is a functional option for RetrievalService
type RetrievalServiceOption func(*RetrievalService)

// RetrievalWithCaseStore sets the case store
func RetrievalWithCaseStore(store CaseStore) RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.cases = store
	}
}

// RetrievalWithCitationStore sets the citation store
func RetrievalWithCitationStore(store CitationStore) RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.citations = store
	}
}

// RetrievalWithEmbedder sets the embedder
func RetrievalWithEmbedder(embedder Embedder) RetrievalServiceOption {
	return func(s *RetrievalService) {
		s.embedder = embedder
	}
}

// NewRetrievalService creates a new retrieval service
func NewRetrievalService(opts ...RetrievalServiceOption) *RetrievalService {
	s := &RetrievalService{
		depthDecay:   defaultDepthDecay,
		coCiteWeight: defaultCoCiteWeight,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// reachedNode accumulates traversal provenance for one discovered case
type reachedNode struct {
	minDepth   int
	anchors    map[string]bool // anchor ids that reached it
	maxSim     float64         // strongest reaching anchor's similarity
	similarity float64         // own anchor similarity, if it is an anchor
	isAnchor   bool
}

// Retrieve runs one hybrid retrieval. Zero anchors is not an error: the
// result carries the "no_anchors" status and empty lists. A truncated
// traversal likewise degrades gracefully with its own status flag.
func (s *RetrievalService) Retrieve(ctx context.Context, q models.QueryContext) (*models.RetrievalResult, error) {
	if s.cases == nil || s.citations == nil {
		return nil, errors.New("case and citation stores not set")
	}
	if s.embedder == nil {
		return nil, errors.New("embedder not set")
	}

	q = applyQueryDefaults(q)

	// Embedding-space compatibility is a hard precondition: reject a
	// mismatched index instead of silently comparing incompatible
	// vector spaces.
	if err := s.checkEmbeddingVersion(ctx); err != nil {
		return nil, err
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, q.FactPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.cases.SearchByNarrative(ctx, queryVec, s.embedder.Version(), q.AnchorCount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
	}

	var anchors []models.AnchorHit
	for _, hit := range hits {
		if hit.Similarity >= q.MinSimilarity {
			anchors = append(anchors, hit)
		}
	}

	result := &models.RetrievalResult{QueryUsed: q, Tier: models.TierFilteredHybrid}
	if q.DesiredOutcome == nil {
		result.Tier = models.TierUnfilteredHybrid
	}
	if q.Depth == 0 {
		result.Tier = models.TierVectorOnly
	}

	if len(anchors) == 0 {
		result.Statuses = append(result.Statuses, models.StatusNoAnchors)
		return result, nil
	}

	reached, truncated, err := s.traverse(ctx, anchors, q.Depth, q.VisitBudget)
	if err != nil {
		return nil, err
	}
	if truncated {
		result.Statuses = append(result.Statuses, models.StatusTraversalTruncated)
	}

	if err := s.assemble(ctx, q, reached, result); err != nil {
		return nil, err
	}

	if len(result.Statuses) == 0 {
		result.Statuses = append(result.Statuses, models.StatusOK)
	}
	return result, nil
}

// RetrieveWithFallback runs the cascade: outcome-filtered hybrid search
// first, then unfiltered hybrid if no precedent survived the filter,
// then pure vector search if the graph contributed nothing. The caller
// sees which tier produced the results.
func (s *RetrievalService) RetrieveWithFallback(ctx context.Context, q models.QueryContext) (*models.RetrievalResult, error) {
	result, err := s.Retrieve(ctx, q)
	if err != nil {
		return nil, err
	}
	if countPrecedents(result) > 0 || q.DesiredOutcome == nil {
		return result, nil
	}

	unfiltered := q
	unfiltered.DesiredOutcome = nil
	result, err = s.Retrieve(ctx, unfiltered)
	if err != nil {
		return nil, err
	}
	result.Tier = models.TierUnfilteredHybrid
	if countPrecedents(result) > 0 {
		return result, nil
	}

	vectorOnly := q
	vectorOnly.DesiredOutcome = nil
	vectorOnly.Depth = 0
	result, err = s.Retrieve(ctx, vectorOnly)
	if err != nil {
		return nil, err
	}
	result.Tier = models.TierVectorOnly
	return result, nil
}

func countPrecedents(result *models.RetrievalResult) int {
	n := 0
	for _, rc := range result.Ranked {
		if rc.Role == models.RolePrecedent {
			n++
		}
	}
	return n
}

// checkEmbeddingVersion verifies the stored index was built by the live
// embedding function
func (s *RetrievalService) checkEmbeddingVersion(ctx context.Context) error {
	versions, err := s.cases.EmbeddingVersions(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for _, v := range versions {
		if v != s.embedder.Version() {
			return fmt.Errorf("%w: index has %q, embedder is %q",
				ErrEmbeddingVersionMismatch, v, s.embedder.Version())
		}
	}
	return nil
}

// traverse runs a breadth-first walk of outgoing citation edges from
// every anchor, up to maxDepth hops. Each anchor keeps its own visited
// set, so co-citation counts how many anchors independently reach a
// precedent, while the per-anchor sets guarantee termination on cycles:
// no anchor expands the same case twice. A shared visit budget bounds
// the walk; exceeding it truncates with a flag instead of running
// unbounded.
func (s *RetrievalService) traverse(ctx context.Context, anchors []models.AnchorHit, maxDepth, visitBudget int) (map[string]*reachedNode, bool, error) {
	reached := make(map[string]*reachedNode, len(anchors))
	for _, a := range anchors {
		reached[a.CaseID] = &reachedNode{
			minDepth:   0,
			anchors:    make(map[string]bool),
			similarity: a.Similarity,
			isAnchor:   true,
		}
	}

	visits := 0
	truncated := false

	for _, anchor := range anchors {
		if truncated {
			break
		}

		visited := map[string]bool{anchor.CaseID: true}
		frontier := []string{anchor.CaseID}

		for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
			targetsBySource, err := s.citations.OutgoingTargets(ctx, frontier)
			if err != nil {
				return nil, false, fmt.Errorf("%w: %v", ErrRetrievalFailed, err)
			}

			var next []string
			for _, source := range frontier {
				for _, target := range targetsBySource[source] {
					if visited[target] {
						continue
					}
					visited[target] = true

					visits++
					if visits > visitBudget {
						log.Printf("Warning: traversal visit budget %d exceeded at depth %d", visitBudget, depth)
						truncated = true
						break
					}

					node, ok := reached[target]
					if !ok {
						node = &reachedNode{minDepth: depth, anchors: make(map[string]bool)}
						reached[target] = node
					}
					if depth < node.minDepth && !node.isAnchor {
						node.minDepth = depth
					}
					node.anchors[anchor.CaseID] = true
					if anchor.Similarity > node.maxSim {
						node.maxSim = anchor.Similarity
					}

					next = append(next, target)
				}
				if truncated {
					break
				}
			}
			if truncated {
				break
			}
			frontier = next
		}
	}

	return reached, truncated, nil
}

// score computes the composite relevance of a reached case
func (s *RetrievalService) score(n *reachedNode) float64 {
	similarity := n.maxSim
	depth := n.minDepth
	if n.isAnchor {
		similarity = math.Max(n.similarity, n.maxSim)
		depth = 0
	}

	score := similarity * math.Pow(s.depthDecay, float64(depth))
	if c := len(n.anchors); c > 1 {
		score += s.coCiteWeight * float64(c-1)
	}
	return score
}

// assemble applies the outcome filter, deduplicates roles, ranks, and
// truncates to the result limit
func (s *RetrievalService) assemble(ctx context.Context, q models.QueryContext, reached map[string]*reachedNode, result *models.RetrievalResult) error {
	ids := make([]string, 0, len(reached))
	for id := range reached {
		ids = append(ids, id)
	}

	nodes, err := s.cases.GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var ranked []models.RankedCase
	for id, info := range reached {
		node, ok := nodes[id]
		if !ok {
			// Edge target vanished between traversal and load; skip
			log.Printf("Warning: case %s reached by traversal but missing from store", id)
			continue
		}

		// A case that is both an anchor and a reached precedent appears
		// once: the anchor role wins, both provenances are kept.
		role := models.RolePrecedent
		if info.isAnchor {
			role = models.RoleAnchor
		}

		// Outcome filtering applies to precedents; anchors are
		// similarity evidence, not authority, and stay regardless.
		if role == models.RolePrecedent && q.DesiredOutcome != nil && node.Decision != *q.DesiredOutcome {
			result.Excluded = append(result.Excluded, models.ExcludedCase{
				Case: node,
				Reason: fmt.Sprintf("decision %q does not match requested outcome %q",
					node.Decision, *q.DesiredOutcome),
			})
			continue
		}

		viaAnchors := make([]string, 0, len(info.anchors))
		for a := range info.anchors {
			viaAnchors = append(viaAnchors, a)
		}
		sort.Strings(viaAnchors)

		similarity := info.maxSim
		if info.isAnchor {
			similarity = math.Max(info.similarity, info.maxSim)
		}

		ranked = append(ranked, models.RankedCase{
			Case:       node,
			Role:       role,
			Score:      s.score(info),
			Similarity: similarity,
			Depth:      info.minDepth,
			ViaAnchors: viaAnchors,
			CoCitation: len(info.anchors),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Case.CaseID < ranked[j].Case.CaseID
	})

	sort.Slice(result.Excluded, func(i, j int) bool {
		return result.Excluded[i].Case.CaseID < result.Excluded[j].Case.CaseID
	})

	if len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}
	result.Ranked = ranked
	return nil
}

func applyQueryDefaults(q models.QueryContext) models.QueryContext {
	defaults := models.DefaultQueryContext(q.FactPattern)
	if q.Depth < 0 {
		q.Depth = defaults.Depth
	}
	if q.AnchorCount <= 0 {
		q.AnchorCount = defaults.AnchorCount
	}
	if q.Limit <= 0 {
		q.Limit = defaults.Limit
	}
	if q.VisitBudget <= 0 {
		q.VisitBudget = defaults.VisitBudget
	}
	if q.MinSimilarity < 0 {
		q.MinSimilarity = 0
	}
	return q
}
