package service

import (
	"context"
	"errors"
	"sort"

	"legalgraph-backend/models"
)

// fakeCaseStore is an in-memory CaseStore with the same upsert guard as
// the Postgres repository: a repaired extraction never overwrites a
// clean row.
type fakeCaseStore struct {
	nodes      map[string]*models.CaseNode
	searchHits []models.AnchorHit
	searchErr  error
	versionErr error
}

func newFakeCaseStore() *fakeCaseStore {
	return &fakeCaseStore{nodes: make(map[string]*models.CaseNode)}
}

func (f *fakeCaseStore) Upsert(ctx context.Context, node *models.CaseNode) (bool, error) {
	existing, ok := f.nodes[node.CaseID]
	if !ok {
		clone := *node
		f.nodes[node.CaseID] = &clone
		return true, nil
	}
	if node.Confidence.HigherThan(existing.Confidence) {
		clone := *node
		f.nodes[node.CaseID] = &clone
	}
	return false, nil
}

func (f *fakeCaseStore) GetByID(ctx context.Context, caseID string) (*models.CaseNode, error) {
	node, ok := f.nodes[caseID]
	if !ok {
		return nil, errors.New("case not found")
	}
	return node, nil
}

func (f *fakeCaseStore) GetByIDs(ctx context.Context, caseIDs []string) (map[string]*models.CaseNode, error) {
	result := make(map[string]*models.CaseNode, len(caseIDs))
	for _, id := range caseIDs {
		if node, ok := f.nodes[id]; ok {
			result[id] = node
		}
	}
	return result, nil
}

func (f *fakeCaseStore) ExistingIDs(ctx context.Context, caseIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(caseIDs))
	for _, id := range caseIDs {
		if _, ok := f.nodes[id]; ok {
			result[id] = true
		}
	}
	return result, nil
}

func (f *fakeCaseStore) SearchByNarrative(ctx context.Context, embedding []float64, version string, k int) ([]models.AnchorHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	hits := f.searchHits
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (f *fakeCaseStore) EmbeddingVersions(ctx context.Context) ([]string, error) {
	if f.versionErr != nil {
		return nil, f.versionErr
	}
	seen := make(map[string]bool)
	var versions []string
	for _, node := range f.nodes {
		if node.EmbeddingVersion != "" && !seen[node.EmbeddingVersion] {
			seen[node.EmbeddingVersion] = true
			versions = append(versions, node.EmbeddingVersion)
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// fakeCitationStore is an in-memory CitationStore
type fakeCitationStore struct {
	edges      map[string]map[string]bool
	unresolved []models.UnresolvedCitation
	nextID     int64
}

func newFakeCitationStore() *fakeCitationStore {
	return &fakeCitationStore{edges: make(map[string]map[string]bool)}
}

func (f *fakeCitationStore) addEdge(source, target string) {
	if f.edges[source] == nil {
		f.edges[source] = make(map[string]bool)
	}
	f.edges[source][target] = true
}

func (f *fakeCitationStore) edgeCount() int {
	n := 0
	for _, targets := range f.edges {
		n += len(targets)
	}
	return n
}

func (f *fakeCitationStore) UpsertEdges(ctx context.Context, edges []models.CitesEdge) (int, error) {
	created := 0
	for _, e := range edges {
		if !f.edges[e.SourceCaseID][e.TargetCaseID] {
			f.addEdge(e.SourceCaseID, e.TargetCaseID)
			created++
		}
	}
	return created, nil
}

func (f *fakeCitationStore) OutgoingTargets(ctx context.Context, sourceIDs []string) (map[string][]string, error) {
	result := make(map[string][]string)
	for _, source := range sourceIDs {
		targets := make([]string, 0, len(f.edges[source]))
		for target := range f.edges[source] {
			targets = append(targets, target)
		}
		sort.Strings(targets)
		if len(targets) > 0 {
			result[source] = targets
		}
	}
	return result, nil
}

func (f *fakeCitationStore) RecordUnresolved(ctx context.Context, sourceCaseID, rawMention, normalizedID string) error {
	for i := range f.unresolved {
		if f.unresolved[i].SourceCaseID == sourceCaseID && f.unresolved[i].RawMention == rawMention {
			return nil
		}
	}
	f.nextID++
	f.unresolved = append(f.unresolved, models.UnresolvedCitation{
		ID:           f.nextID,
		SourceCaseID: sourceCaseID,
		RawMention:   rawMention,
		NormalizedID: normalizedID,
	})
	return nil
}

func (f *fakeCitationStore) ListUnresolved(ctx context.Context) ([]models.UnresolvedCitation, error) {
	return append([]models.UnresolvedCitation(nil), f.unresolved...), nil
}

func (f *fakeCitationStore) DeleteUnresolved(ctx context.Context, ids []int64) error {
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.unresolved[:0]
	for _, m := range f.unresolved {
		if !drop[m.ID] {
			kept = append(kept, m)
		}
	}
	f.unresolved = kept
	return nil
}

// fakeEmbedder returns a fixed vector for every text
type fakeEmbedder struct {
	version string
	vec     []float64
	err     error
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{version: EmbeddingVersion, vec: []float64{1, 0, 0}}
}

func (f *fakeEmbedder) EmbedDocument(ctx context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) Version() string {
	return f.version
}
