package service

import (
	"context"

	"legalgraph-backend/models"
)

// CaseStore is the node side of the graph store. Satisfied by
// repository.CaseRepository; tests substitute an in-memory fake.
type CaseStore interface {
	Upsert(ctx context.Context, node *models.CaseNode) (created bool, err error)
	GetByID(ctx context.Context, caseID string) (*models.CaseNode, error)
	GetByIDs(ctx context.Context, caseIDs []string) (map[string]*models.CaseNode, error)
	ExistingIDs(ctx context.Context, caseIDs []string) (map[string]bool, error)
	SearchByNarrative(ctx context.Context, embedding []float64, version string, k int) ([]models.AnchorHit, error)
	EmbeddingVersions(ctx context.Context) ([]string, error)
}

// CitationStore is the edge side of the graph store. Satisfied by
// repository.CitationRepository.
type CitationStore interface {
	UpsertEdges(ctx context.Context, edges []models.CitesEdge) (created int, err error)
	OutgoingTargets(ctx context.Context, sourceIDs []string) (map[string][]string, error)
	RecordUnresolved(ctx context.Context, sourceCaseID, rawMention, normalizedID string) error
	ListUnresolved(ctx context.Context) ([]models.UnresolvedCitation, error)
	DeleteUnresolved(ctx context.Context, ids []int64) error
}
