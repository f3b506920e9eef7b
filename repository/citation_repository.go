package repository

import (
	"context"
	"fmt"

	"legalgraph-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CitationRepository handles database operations for citation edges and
// the unresolved-mention backlog
type CitationRepository struct {
	db *pgxpool.Pool
}

// NewCitationRepository creates a new citation repository
func NewCitationRepository(db *pgxpool.Pool) *CitationRepository {
	return &CitationRepository{db: db}
}

// UpsertEdges commits citation edges. Duplicate edges are ignored, so
// re-ingesting a batch never doubles the edge set. Returns the number of
// edges actually created.
func (r *CitationRepository) UpsertEdges(ctx context.Context, edges []models.CitesEdge) (int, error) {
	created := 0
	for _, edge := range edges {
		tag, err := r.db.Exec(ctx, `
			INSERT INTO citations (source_case_id, target_case_id, relation)
			VALUES ($1, $2, $3)
			ON CONFLICT (source_case_id, target_case_id) DO NOTHING`,
			edge.SourceCaseID, edge.TargetCaseID, edge.Relation,
		)
		if err != nil {
			return created, fmt.Errorf("failed to upsert edge %s -> %s: %w",
				edge.SourceCaseID, edge.TargetCaseID, err)
		}
		created += int(tag.RowsAffected())
	}
	return created, nil
}

// OutgoingTargets returns, for each of the given source case ids, the
// case ids it cites. Targets come back sorted so traversal order is
// deterministic.
func (r *CitationRepository) OutgoingTargets(ctx context.Context, sourceIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT source_case_id, target_case_id
		FROM citations
		WHERE source_case_id = ANY($1)
		ORDER BY source_case_id, target_case_id`

	rows, err := r.db.Query(ctx, query, sourceIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query citations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var source, target string
		if err := rows.Scan(&source, &target); err != nil {
			return nil, fmt.Errorf("failed to scan citation: %w", err)
		}
		result[source] = append(result[source], target)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating citations: %w", err)
	}

	return result, nil
}

// RecordUnresolved stores a citation mention that did not resolve to a
// known case, for reconciliation on later batches. Seeing the same
// mention again only bumps last_seen.
func (r *CitationRepository) RecordUnresolved(ctx context.Context, sourceCaseID, rawMention, normalizedID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO unresolved_citations (source_case_id, raw_mention, normalized_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_case_id, raw_mention) DO UPDATE SET
			last_seen = NOW()`,
		sourceCaseID, rawMention, normalizedID,
	)
	if err != nil {
		return fmt.Errorf("failed to record unresolved citation: %w", err)
	}
	return nil
}

// ListUnresolved returns the full unresolved-mention backlog
func (r *CitationRepository) ListUnresolved(ctx context.Context) ([]models.UnresolvedCitation, error) {
	query := `
		SELECT id, source_case_id, raw_mention, normalized_id, first_seen, last_seen
		FROM unresolved_citations
		ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved citations: %w", err)
	}
	defer rows.Close()

	var mentions []models.UnresolvedCitation
	for rows.Next() {
		var m models.UnresolvedCitation
		err := rows.Scan(&m.ID, &m.SourceCaseID, &m.RawMention, &m.NormalizedID, &m.FirstSeen, &m.LastSeen)
		if err != nil {
			return nil, fmt.Errorf("failed to scan unresolved citation: %w", err)
		}
		mentions = append(mentions, m)
	}

	return mentions, rows.Err()
}

// DeleteUnresolved removes mentions that have since been resolved
func (r *CitationRepository) DeleteUnresolved(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.db.Exec(ctx, "DELETE FROM unresolved_citations WHERE id = ANY($1)", ids)
	if err != nil {
		return fmt.Errorf("failed to delete unresolved citations: %w", err)
	}
	return nil
}
