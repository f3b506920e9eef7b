package repository

import (
	"context"

	"legalgraph-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles database operations for raw case documents
type DocumentRepository struct {
	db *pgxpool.Pool
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create creates a new document record. The caller's id is kept so the
// row id matches the id embedded in the storage path.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.CaseDocument) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	query := `
		INSERT INTO case_documents (
			id, case_id, filename, mime_type, size, storage_path
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.QueryRow(
		ctx, query,
		doc.ID,
		doc.CaseID,
		doc.Filename,
		doc.MimeType,
		doc.Size,
		doc.StoragePath,
	).Scan(&doc.CreatedAt)

	return err
}

// GetByID retrieves a document by ID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.CaseDocument, error) {
	doc := &models.CaseDocument{}
	query := `
		SELECT id, case_id, filename, mime_type, size, storage_path, created_at
		FROM case_documents
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.CaseID,
		&doc.Filename,
		&doc.MimeType,
		&doc.Size,
		&doc.StoragePath,
		&doc.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	return doc, nil
}

// AttachCase links a document to the case it was ingested as
func (r *DocumentRepository) AttachCase(ctx context.Context, id uuid.UUID, caseID string) error {
	_, err := r.db.Exec(ctx,
		"UPDATE case_documents SET case_id = $2 WHERE id = $1", id, caseID)
	return err
}

// ListUningested retrieves documents that have not been attached to a case yet
func (r *DocumentRepository) ListUningested(ctx context.Context) ([]*models.CaseDocument, error) {
	query := `
		SELECT id, case_id, filename, mime_type, size, storage_path, created_at
		FROM case_documents
		WHERE case_id IS NULL
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.CaseDocument
	for rows.Next() {
		doc := &models.CaseDocument{}
		err := rows.Scan(
			&doc.ID,
			&doc.CaseID,
			&doc.Filename,
			&doc.MimeType,
			&doc.Size,
			&doc.StoragePath,
			&doc.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}
