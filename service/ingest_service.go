package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"legalgraph-backend/models"
	"legalgraph-backend/repository"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// IngestService runs the batch ingestion pipeline: extraction
// normalization, embedding, node commit, then citation resolution.
// Documents are processed independently in phase one; citation edges are
// only resolved in phase two, after every node of the batch is visible,
// since cited cases may appear later in the same batch.
type IngestService struct {
	cases       CaseStore
	citations   CitationStore
	jobRepo     *repository.IngestionJobRepository
	embedder    Embedder
	schema      *ExtractionSchema
	parallelism int
}

// IngestServiceOption is a functional option for IngestService
type IngestServiceOption func(*IngestService)

// IngestWithCaseStore sets the case store
func IngestWithCaseStore(store CaseStore) IngestServiceOption {
	return func(s *IngestService) {
		s.cases = store
	}
}

// IngestWithCitationStore sets the citation store
func IngestWithCitationStore(store CitationStore) IngestServiceOption {
	return func(s *IngestService) {
		s.citations = store
	}
}

// IngestWithJobRepository sets the ingestion job repository
func IngestWithJobRepository(repo *repository.IngestionJobRepository) IngestServiceOption {
	return func(s *IngestService) {
		s.jobRepo = repo
	}
}

// IngestWithEmbedder sets the embedder
func IngestWithEmbedder(embedder Embedder) IngestServiceOption {
	return func(s *IngestService) {
		s.embedder = embedder
	}
}

// IngestWithSchema sets the extraction schema
func IngestWithSchema(schema *ExtractionSchema) IngestServiceOption {
	return func(s *IngestService) {
		s.schema = schema
	}
}

// IngestWithParallelism caps concurrent document processing in phase one
func IngestWithParallelism(n int) IngestServiceOption {
	return func(s *IngestService) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// NewIngestService creates a new ingest service
func NewIngestService(opts ...IngestServiceOption) *IngestService {
	s := &IngestService{
		schema:      DefaultExtractionSchema(),
		parallelism: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	ErrIngestJobCreationFailed = errors.New("failed to create ingestion job")
	ErrIngestJobNotFound       = errors.New("ingestion job not found")
)

// preparedCase is a phase-one result: a normalized candidate with its
// embedding computed, ready to commit
type preparedCase struct {
	candidate *models.CandidateCase
	embedding []float64
}

// StartBatch creates an ingestion job and returns immediately; the batch
// is processed in the background. Mirrors the async job pattern used for
// any work that takes longer than an HTTP request should.
func (s *IngestService) StartBatch(ctx context.Context, batch []models.RawCaseRecord) (uuid.UUID, error) {
	if s.jobRepo == nil {
		return uuid.Nil, errors.New("ingestion job repository not set")
	}

	job := &models.IngestionJob{
		Status: models.JobStatusPending,
		Steps: models.IngestionSteps{
			{Name: "Normalizing & Embedding", Status: "pending"},
			{Name: "Committing Nodes", Status: "pending"},
			{Name: "Resolving Citations", Status: "pending"},
		},
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return uuid.Nil, ErrIngestJobCreationFailed
	}

	return job.ID, nil
}

// GetJobStatus retrieves the status of an ingestion job
func (s *IngestService) GetJobStatus(ctx context.Context, jobID uuid.UUID) (*models.IngestionJob, error) {
	if s.jobRepo == nil {
		return nil, errors.New("ingestion job repository not set")
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, ErrIngestJobNotFound
	}
	return job, nil
}

// ProcessBatch performs the actual ingestion work for a job in the
// background, updating step progress as the phases complete
func (s *IngestService) ProcessBatch(ctx context.Context, jobID uuid.UUID, batch []models.RawCaseRecord) error {
	if s.jobRepo == nil {
		return errors.New("ingestion job repository not set")
	}

	if err := s.jobRepo.UpdateStatus(ctx, jobID, models.JobStatusInProgress); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	report, err := s.ingestBatchWithProgress(ctx, jobID, batch)
	if err != nil {
		s.markJobFailed(ctx, jobID, err.Error())
		return err
	}

	if err := s.jobRepo.Complete(ctx, jobID, report); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

func (s *IngestService) ingestBatchWithProgress(ctx context.Context, jobID uuid.UUID, batch []models.RawCaseRecord) (*models.IngestReport, error) {
	report := &models.IngestReport{}

	s.updateStepStatus(ctx, jobID, "Normalizing & Embedding", "in_progress")
	prepared := s.prepareBatch(ctx, batch, report)
	s.updateStepStatus(ctx, jobID, "Normalizing & Embedding", "completed")

	s.updateStepStatus(ctx, jobID, "Committing Nodes", "in_progress")
	mentions, err := s.commitNodes(ctx, prepared, report)
	if err != nil {
		return nil, err
	}
	s.updateStepStatus(ctx, jobID, "Committing Nodes", "completed")

	s.updateStepStatus(ctx, jobID, "Resolving Citations", "in_progress")
	if err := s.resolveCitations(ctx, mentions, report); err != nil {
		return nil, err
	}
	s.updateStepStatus(ctx, jobID, "Resolving Citations", "completed")

	return report, nil
}

// IngestBatch runs the full two-phase pipeline synchronously and returns
// the counts of what the batch did to the graph. Ingesting the same
// batch twice yields an identical graph state.
func (s *IngestService) IngestBatch(ctx context.Context, batch []models.RawCaseRecord) (*models.IngestReport, error) {
	if s.cases == nil || s.citations == nil {
		return nil, errors.New("case and citation stores not set")
	}
	if s.embedder == nil {
		return nil, errors.New("embedder not set")
	}

	report := &models.IngestReport{}

	prepared := s.prepareBatch(ctx, batch, report)

	mentions, err := s.commitNodes(ctx, prepared, report)
	if err != nil {
		return nil, err
	}

	if err := s.resolveCitations(ctx, mentions, report); err != nil {
		return nil, err
	}

	return report, nil
}

// prepareBatch normalizes and embeds every document of the batch.
// Documents are independent, so this phase is parallel; failures are
// per-document and never abort the batch.
func (s *IngestService) prepareBatch(ctx context.Context, batch []models.RawCaseRecord, report *models.IngestReport) []preparedCase {
	results := make([]*preparedCase, len(batch))

	var mu sync.Mutex
	rejected := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for i, record := range batch {
		g.Go(func() error {
			candidate, extErr := Normalize(record, s.schema)
			if extErr != nil {
				log.Printf("Warning: extraction rejected: %v", extErr)
				mu.Lock()
				rejected++
				mu.Unlock()
				return nil
			}

			embedding, err := s.embedder.EmbedDocument(gctx, candidate.FactNarrative)
			if err != nil {
				log.Printf("Warning: embedding failed for %s, skipping document: %v", candidate.CaseID, err)
				mu.Lock()
				rejected++
				mu.Unlock()
				return nil
			}

			results[i] = &preparedCase{candidate: candidate, embedding: embedding}
			return nil
		})
	}

	// Workers only record per-document failures, so the only error here
	// is context cancellation; partial results still commit cleanly.
	if err := g.Wait(); err != nil {
		log.Printf("Warning: batch preparation interrupted: %v", err)
	}

	report.RejectedExtractions += rejected

	prepared := make([]preparedCase, 0, len(batch))
	for _, r := range results {
		if r != nil {
			prepared = append(prepared, *r)
		}
	}
	return prepared
}

// commitNodes upserts every prepared node. The upsert is atomic per
// document: a crash mid-batch leaves some whole documents committed,
// never a half-written node. Returns the citation mentions keyed by
// source case id for phase two.
func (s *IngestService) commitNodes(ctx context.Context, prepared []preparedCase, report *models.IngestReport) (map[string][]string, error) {
	mentions := make(map[string][]string)

	for _, p := range prepared {
		node := &models.CaseNode{
			CaseID:           p.candidate.CaseID,
			Name:             p.candidate.Name,
			Court:            p.candidate.Court,
			DecisionYear:     p.candidate.DecisionYear,
			Offense:          p.candidate.Offense,
			Punishment:       p.candidate.Punishment,
			Decision:         p.candidate.Decision,
			Conviction:       p.candidate.Conviction,
			FactNarrative:    p.candidate.FactNarrative,
			FullText:         p.candidate.FullText,
			Embedding:        p.embedding,
			EmbeddingVersion: s.embedder.Version(),
			Confidence:       p.candidate.Confidence,
		}

		created, err := s.cases.Upsert(ctx, node)
		if err != nil {
			return nil, fmt.Errorf("failed to commit case %s: %w", node.CaseID, err)
		}
		if created {
			report.NodesCreated++
		} else {
			report.NodesUpdated++
		}

		if len(p.candidate.CitationMentions) > 0 {
			mentions[node.CaseID] = p.candidate.CitationMentions
		}
	}

	return mentions, nil
}

// resolveCitations is phase two: parse every citation mention, commit
// edges whose target exists, record the rest as unresolved, and retry
// the unresolved backlog now that this batch's cases are visible
func (s *IngestService) resolveCitations(ctx context.Context, mentions map[string][]string, report *models.IngestReport) error {
	type pendingEdge struct {
		edge       models.CitesEdge
		rawMention string
	}

	var pending []pendingEdge
	targetSet := make(map[string]bool)

	for sourceID, raws := range mentions {
		for _, raw := range raws {
			parsed, ok := ParseMention(raw)
			if !ok {
				log.Printf("Warning: unparseable citation mention from %s: %q", sourceID, raw)
				if err := s.citations.RecordUnresolved(ctx, sourceID, raw, ""); err != nil {
					return err
				}
				report.UnresolvedCitations++
				continue
			}

			// No self-citation edges
			if parsed.NormalizedID == sourceID {
				continue
			}

			pending = append(pending, pendingEdge{
				edge: models.CitesEdge{
					SourceCaseID: sourceID,
					TargetCaseID: parsed.NormalizedID,
					Relation:     parsed.Relation,
				},
				rawMention: raw,
			})
			targetSet[parsed.NormalizedID] = true
		}
	}

	targets := make([]string, 0, len(targetSet))
	for t := range targetSet {
		targets = append(targets, t)
	}
	existing, err := s.cases.ExistingIDs(ctx, targets)
	if err != nil {
		return fmt.Errorf("failed to check citation targets: %w", err)
	}

	var edges []models.CitesEdge
	for _, p := range pending {
		if existing[p.edge.TargetCaseID] {
			edges = append(edges, p.edge)
			continue
		}
		// Dangling citation: logged and recorded, never stored as an
		// edge to a nonexistent node
		log.Printf("Warning: unresolved citation %s -> %q", p.edge.SourceCaseID, p.edge.TargetCaseID)
		if err := s.citations.RecordUnresolved(ctx, p.edge.SourceCaseID, p.rawMention, p.edge.TargetCaseID); err != nil {
			return err
		}
		report.UnresolvedCitations++
	}

	created, err := s.citations.UpsertEdges(ctx, edges)
	if err != nil {
		return fmt.Errorf("failed to commit citation edges: %w", err)
	}
	report.EdgesCreated += created

	return s.reconcileBacklog(ctx, report)
}

// reconcileBacklog retries previously unresolved mentions against the
// now-larger graph
func (s *IngestService) reconcileBacklog(ctx context.Context, report *models.IngestReport) error {
	backlog, err := s.citations.ListUnresolved(ctx)
	if err != nil {
		return fmt.Errorf("failed to list unresolved citations: %w", err)
	}
	if len(backlog) == 0 {
		return nil
	}

	var targets []string
	for _, m := range backlog {
		if m.NormalizedID != "" {
			targets = append(targets, m.NormalizedID)
		}
	}
	existing, err := s.cases.ExistingIDs(ctx, targets)
	if err != nil {
		return fmt.Errorf("failed to check backlog targets: %w", err)
	}

	var edges []models.CitesEdge
	var resolved []int64
	for _, m := range backlog {
		if m.NormalizedID == "" || !existing[m.NormalizedID] {
			continue
		}
		edges = append(edges, models.CitesEdge{
			SourceCaseID: m.SourceCaseID,
			TargetCaseID: m.NormalizedID,
			Relation:     models.RelationCited,
		})
		resolved = append(resolved, m.ID)
	}

	if len(edges) > 0 {
		created, err := s.citations.UpsertEdges(ctx, edges)
		if err != nil {
			return fmt.Errorf("failed to commit reconciled edges: %w", err)
		}
		report.EdgesCreated += created
		log.Printf("Reconciled %d previously unresolved citations", len(resolved))
	}

	return s.citations.DeleteUnresolved(ctx, resolved)
}

// updateStepStatus updates the status of a pipeline step on the job
func (s *IngestService) updateStepStatus(ctx context.Context, jobID uuid.UUID, stepName, status string) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		log.Printf("Warning: failed to load job for step update: %v", err)
		return
	}

	steps := job.Steps
	var currentStep string
	if job.CurrentStep != nil {
		currentStep = *job.CurrentStep
	}

	for i := range steps {
		if steps[i].Name == stepName {
			steps[i].Status = status
			if status == "in_progress" {
				currentStep = stepName
			}
			break
		}
	}

	if err := s.jobRepo.UpdateProgress(ctx, jobID, currentStep, steps); err != nil {
		log.Printf("Warning: failed to update job progress: %v", err)
	}
}

// markJobFailed marks a job as failed with an error message
func (s *IngestService) markJobFailed(ctx context.Context, jobID uuid.UUID, errorMessage string) {
	if err := s.jobRepo.Fail(ctx, jobID, errorMessage); err != nil {
		log.Printf("Warning: failed to mark job %s failed: %v", jobID, err)
	}
}
