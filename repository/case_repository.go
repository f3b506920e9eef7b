package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"legalgraph-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CaseRepository handles database operations for case nodes, including
// the pgvector similarity index over fact narratives
type CaseRepository struct {
	db *pgxpool.Pool
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{db: db}
}

// formatVector formats an embedding vector as a string for pgx
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	var parts []string
	for _, v := range embedding {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// Upsert commits a case node. Node identity is the normalized case id.
// Re-ingesting an existing id preserves the stored extracted fields
// unless the incoming extraction confidence is strictly higher, so a
// worse pass never overwrites a better one. The narrative and its
// embedding are written together, keeping the stored vector consistent
// with the stored narrative.
//
// Returns created=true when a new node row was inserted. When the
// conflict guard preserves the existing row, created is false and the
// row is untouched.
func (r *CaseRepository) Upsert(ctx context.Context, node *models.CaseNode) (bool, error) {
	query := `
		INSERT INTO cases (
			case_id, name, court, decision_year, offense, punishment,
			decision, conviction, fact_narrative, full_text, text_ref,
			embedding, embedding_version, extraction_confidence
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::vector, $13, $14
		)
		ON CONFLICT (case_id) DO UPDATE SET
			name = EXCLUDED.name,
			court = EXCLUDED.court,
			decision_year = EXCLUDED.decision_year,
			offense = EXCLUDED.offense,
			punishment = EXCLUDED.punishment,
			decision = EXCLUDED.decision,
			conviction = EXCLUDED.conviction,
			fact_narrative = EXCLUDED.fact_narrative,
			full_text = EXCLUDED.full_text,
			text_ref = COALESCE(EXCLUDED.text_ref, cases.text_ref),
			embedding = EXCLUDED.embedding,
			embedding_version = EXCLUDED.embedding_version,
			extraction_confidence = EXCLUDED.extraction_confidence,
			updated_at = NOW()
		WHERE cases.extraction_confidence = 'repaired'
			AND EXCLUDED.extraction_confidence = 'clean'
		RETURNING (xmax = 0) AS inserted`

	var inserted bool
	err := r.db.QueryRow(
		ctx, query,
		node.CaseID,
		node.Name,
		node.Court,
		node.DecisionYear,
		node.Offense,
		node.Punishment,
		node.Decision,
		node.Conviction,
		node.FactNarrative,
		node.FullText,
		node.TextRef,
		formatVector(node.Embedding),
		node.EmbeddingVersion,
		node.Confidence,
	).Scan(&inserted)

	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict with the guard false: existing row preserved
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to upsert case %s: %w", node.CaseID, err)
	}

	return inserted, nil
}

// GetByID retrieves a case node by its normalized case id
func (r *CaseRepository) GetByID(ctx context.Context, caseID string) (*models.CaseNode, error) {
	node := &models.CaseNode{}
	query := `
		SELECT case_id, name, court, decision_year, offense, punishment,
			decision, conviction, fact_narrative, full_text, text_ref,
			COALESCE(embedding_version, ''), extraction_confidence,
			created_at, updated_at
		FROM cases
		WHERE case_id = $1`

	err := r.db.QueryRow(ctx, query, caseID).Scan(
		&node.CaseID,
		&node.Name,
		&node.Court,
		&node.DecisionYear,
		&node.Offense,
		&node.Punishment,
		&node.Decision,
		&node.Conviction,
		&node.FactNarrative,
		&node.FullText,
		&node.TextRef,
		&node.EmbeddingVersion,
		&node.Confidence,
		&node.CreatedAt,
		&node.UpdatedAt,
	)

	if err != nil {
		return nil, err
	}

	return node, nil
}

// GetByIDs retrieves a set of case nodes keyed by case id. Missing ids
// are simply absent from the map.
func (r *CaseRepository) GetByIDs(ctx context.Context, caseIDs []string) (map[string]*models.CaseNode, error) {
	result := make(map[string]*models.CaseNode, len(caseIDs))
	if len(caseIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT case_id, name, court, decision_year, offense, punishment,
			decision, conviction, fact_narrative, full_text, text_ref,
			COALESCE(embedding_version, ''), extraction_confidence,
			created_at, updated_at
		FROM cases
		WHERE case_id = ANY($1)`

	rows, err := r.db.Query(ctx, query, caseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		node := &models.CaseNode{}
		err := rows.Scan(
			&node.CaseID,
			&node.Name,
			&node.Court,
			&node.DecisionYear,
			&node.Offense,
			&node.Punishment,
			&node.Decision,
			&node.Conviction,
			&node.FactNarrative,
			&node.FullText,
			&node.TextRef,
			&node.EmbeddingVersion,
			&node.Confidence,
			&node.CreatedAt,
			&node.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		result[node.CaseID] = node
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cases: %w", err)
	}

	return result, nil
}

// ExistingIDs reports which of the given case ids are present in the
// store. Used by citation resolution to drop dangling edges.
func (r *CaseRepository) ExistingIDs(ctx context.Context, caseIDs []string) (map[string]bool, error) {
	result := make(map[string]bool, len(caseIDs))
	if len(caseIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, "SELECT case_id FROM cases WHERE case_id = ANY($1)", caseIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query case ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		result[id] = true
	}

	return result, rows.Err()
}

// SearchByNarrative performs a cosine nearest-neighbor search over fact
// narrative embeddings.
// embedding: Query embedding vector (768 dimensions)
// version: embedding function identifier the query vector came from
// k: number of anchors to return
//
// Only rows whose stored embedding_version matches are candidates; ties
// in similarity break toward the lower case id so results are
// deterministic.
func (r *CaseRepository) SearchByNarrative(
	ctx context.Context,
	embedding []float64,
	version string,
	k int,
) ([]models.AnchorHit, error) {
	if len(embedding) != 768 {
		return nil, fmt.Errorf("embedding must be 768 dimensions, got %d", len(embedding))
	}

	vectorStr := formatVector(embedding)

	query := `
		SELECT
			case_id,
			1 - (embedding <=> $1::vector) AS similarity
		FROM cases
		WHERE embedding IS NOT NULL
			AND embedding_version = $2
		ORDER BY
			embedding <=> $1::vector,
			case_id ASC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, vectorStr, version, k)
	if err != nil {
		return nil, fmt.Errorf("failed to query case embeddings: %w", err)
	}
	defer rows.Close()

	var hits []models.AnchorHit
	for rows.Next() {
		var hit models.AnchorHit
		if err := rows.Scan(&hit.CaseID, &hit.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan anchor hit: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating anchor hits: %w", err)
	}

	return hits, nil
}

// EmbeddingVersions returns the distinct embedding function identifiers
// present in the index. More than one, or one that differs from the live
// embedder, means the index needs recomputation before it can be queried.
func (r *CaseRepository) EmbeddingVersions(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		"SELECT DISTINCT embedding_version FROM cases WHERE embedding IS NOT NULL ORDER BY embedding_version")
	if err != nil {
		return nil, fmt.Errorf("failed to query embedding versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}

	return versions, rows.Err()
}
