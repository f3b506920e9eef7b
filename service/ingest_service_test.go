package service

import (
	"context"
	"testing"

	"legalgraph-backend/models"
)

func testIngester(cases *fakeCaseStore, citations *fakeCitationStore) *IngestService {
	return NewIngestService(
		IngestWithCaseStore(cases),
		IngestWithCitationStore(citations),
		IngestWithEmbedder(newFakeEmbedder()),
		IngestWithParallelism(2),
	)
}

func caseRecord(caseID string, citations ...string) models.RawCaseRecord {
	mentions := make([]interface{}, len(citations))
	for i, c := range citations {
		mentions[i] = c
	}
	return models.RawCaseRecord{Fields: map[string]interface{}{
		"case_id":        caseID,
		"name":           "In re " + caseID,
		"offense":        "burglary",
		"decision":       "reversed",
		"fact_narrative": "facts of " + caseID,
		"citations":      mentions,
	}}
}

func TestIngestBatchBuildsGraph(t *testing.T) {
	cases := newFakeCaseStore()
	citations := newFakeCitationStore()

	batch := []models.RawCaseRecord{
		caseRecord("123 S.W.2d 456", "45 Tex. Crim. 120"),
		caseRecord("45 Tex. Crim. 120"),
	}

	report, err := testIngester(cases, citations).IngestBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}

	if report.NodesCreated != 2 || report.NodesUpdated != 0 {
		t.Errorf("nodes: created=%d updated=%d, want 2/0", report.NodesCreated, report.NodesUpdated)
	}
	if report.EdgesCreated != 1 {
		t.Errorf("edges created: got %d, want 1", report.EdgesCreated)
	}
	if report.UnresolvedCitations != 0 {
		t.Errorf("unresolved: got %d, want 0", report.UnresolvedCitations)
	}
	if !citations.edges["123 s.w.2d 456"]["45 tex. crim. 120"] {
		t.Error("citation edge missing from store")
	}

	node := cases.nodes["123 s.w.2d 456"]
	if node == nil {
		t.Fatal("node missing")
	}
	if node.EmbeddingVersion != EmbeddingVersion {
		t.Errorf("embedding version: got %q", node.EmbeddingVersion)
	}
}

// Citation targets may appear later in the same batch; resolution runs
// after all nodes are committed, so order must not matter.
func TestIngestBatchOrderIndependent(t *testing.T) {
	batch := []models.RawCaseRecord{
		caseRecord("45 Tex. Crim. 120"),
		caseRecord("123 S.W.2d 456", "45 Tex. Crim. 120"),
	}

	citations := newFakeCitationStore()
	report, err := testIngester(newFakeCaseStore(), citations).IngestBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if report.EdgesCreated != 1 || report.UnresolvedCitations != 0 {
		t.Errorf("edges=%d unresolved=%d, want 1/0", report.EdgesCreated, report.UnresolvedCitations)
	}
}

func TestIngestIdempotence(t *testing.T) {
	cases := newFakeCaseStore()
	citations := newFakeCitationStore()
	ingester := testIngester(cases, citations)

	batch := []models.RawCaseRecord{
		caseRecord("123 S.W.2d 456", "45 Tex. Crim. 120"),
		caseRecord("45 Tex. Crim. 120"),
	}

	if _, err := ingester.IngestBatch(context.Background(), batch); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	nodesAfterFirst := len(cases.nodes)
	edgesAfterFirst := citations.edgeCount()

	report, err := ingester.IngestBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if report.NodesCreated != 0 {
		t.Errorf("second ingest created %d nodes, want 0", report.NodesCreated)
	}
	if report.EdgesCreated != 0 {
		t.Errorf("second ingest created %d edges, want 0", report.EdgesCreated)
	}
	if len(cases.nodes) != nodesAfterFirst || citations.edgeCount() != edgesAfterFirst {
		t.Errorf("graph grew on re-ingest: nodes %d->%d edges %d->%d",
			nodesAfterFirst, len(cases.nodes), edgesAfterFirst, citations.edgeCount())
	}
}

func TestIngestConfidenceMonotonic(t *testing.T) {
	cases := newFakeCaseStore()
	ingester := testIngester(cases, newFakeCitationStore())
	ctx := context.Background()

	repaired := caseRecord("123 S.W.2d 456")
	repaired.Fields["decision"] = "rev'd" // synonym repair
	repaired.Fields["name"] = "repaired name"

	clean := caseRecord("123 S.W.2d 456")
	clean.Fields["name"] = "clean name"

	// repaired first, then clean: clean wins
	if _, err := ingester.IngestBatch(ctx, []models.RawCaseRecord{repaired}); err != nil {
		t.Fatalf("ingest repaired: %v", err)
	}
	if got := cases.nodes["123 s.w.2d 456"].Confidence; got != models.ConfidenceRepaired {
		t.Fatalf("confidence after repaired ingest: got %q", got)
	}
	if _, err := ingester.IngestBatch(ctx, []models.RawCaseRecord{clean}); err != nil {
		t.Fatalf("ingest clean: %v", err)
	}
	node := cases.nodes["123 s.w.2d 456"]
	if node.Confidence != models.ConfidenceClean || node.Name != "clean name" {
		t.Errorf("clean ingest should replace repaired node, got %q/%q", node.Confidence, node.Name)
	}

	// repaired again: the clean node is preserved
	if _, err := ingester.IngestBatch(ctx, []models.RawCaseRecord{repaired}); err != nil {
		t.Fatalf("re-ingest repaired: %v", err)
	}
	node = cases.nodes["123 s.w.2d 456"]
	if node.Confidence != models.ConfidenceClean || node.Name != "clean name" {
		t.Errorf("repaired ingest must not overwrite clean node, got %q/%q", node.Confidence, node.Name)
	}
}

func TestIngestDanglingCitationReconciles(t *testing.T) {
	cases := newFakeCaseStore()
	citations := newFakeCitationStore()
	ingester := testIngester(cases, citations)
	ctx := context.Background()

	report, err := ingester.IngestBatch(ctx, []models.RawCaseRecord{
		caseRecord("123 S.W.2d 456", "45 Tex. Crim. 120"),
	})
	if err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if report.EdgesCreated != 0 {
		t.Errorf("dangling citation produced %d edges", report.EdgesCreated)
	}
	if report.UnresolvedCitations != 1 || len(citations.unresolved) != 1 {
		t.Fatalf("unresolved: report=%d stored=%d, want 1/1",
			report.UnresolvedCitations, len(citations.unresolved))
	}

	// Second batch brings the cited case; the backlog reconciles
	report, err = ingester.IngestBatch(ctx, []models.RawCaseRecord{
		caseRecord("45 Tex. Crim. 120"),
	})
	if err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if report.EdgesCreated != 1 {
		t.Errorf("reconciliation created %d edges, want 1", report.EdgesCreated)
	}
	if len(citations.unresolved) != 0 {
		t.Errorf("backlog not cleared: %+v", citations.unresolved)
	}
	if !citations.edges["123 s.w.2d 456"]["45 tex. crim. 120"] {
		t.Error("reconciled edge missing")
	}
}

func TestIngestSelfCitationDropped(t *testing.T) {
	citations := newFakeCitationStore()
	report, err := testIngester(newFakeCaseStore(), citations).IngestBatch(context.Background(),
		[]models.RawCaseRecord{caseRecord("123 S.W.2d 456", "123 S.W.2d 456")})
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if report.EdgesCreated != 0 || citations.edgeCount() != 0 {
		t.Errorf("self-citation created an edge: report=%d stored=%d",
			report.EdgesCreated, citations.edgeCount())
	}
	if report.UnresolvedCitations != 0 {
		t.Errorf("self-citation counted as unresolved: %d", report.UnresolvedCitations)
	}
}

func TestIngestRejectedExtractionSkipsDocument(t *testing.T) {
	cases := newFakeCaseStore()

	bad := models.RawCaseRecord{Fields: map[string]interface{}{
		"name": "no case id here",
	}}
	report, err := testIngester(cases, newFakeCitationStore()).IngestBatch(context.Background(),
		[]models.RawCaseRecord{bad, caseRecord("123 S.W.2d 456")})
	if err != nil {
		t.Fatalf("a bad document must not abort the batch: %v", err)
	}

	if report.RejectedExtractions != 1 {
		t.Errorf("rejected: got %d, want 1", report.RejectedExtractions)
	}
	if report.NodesCreated != 1 || len(cases.nodes) != 1 {
		t.Errorf("good document not committed: created=%d stored=%d",
			report.NodesCreated, len(cases.nodes))
	}
}

func TestIngestUnparseableMentionRecorded(t *testing.T) {
	citations := newFakeCitationStore()
	report, err := testIngester(newFakeCaseStore(), citations).IngestBatch(context.Background(),
		[]models.RawCaseRecord{caseRecord("123 S.W.2d 456", "the unnamed authority")})
	if err != nil {
		t.Fatalf("IngestBatch: %v", err)
	}
	if report.UnresolvedCitations != 1 {
		t.Errorf("unresolved: got %d, want 1", report.UnresolvedCitations)
	}
	if len(citations.unresolved) != 1 || citations.unresolved[0].RawMention != "the unnamed authority" {
		t.Fatalf("raw mention not preserved: %+v", citations.unresolved)
	}
	if citations.unresolved[0].NormalizedID != "" {
		t.Errorf("unparseable mention should carry no normalized id, got %q",
			citations.unresolved[0].NormalizedID)
	}
}
