package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"legalgraph-backend/models"
	"legalgraph-backend/service"
	"legalgraph-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IngestHandler handles HTTP requests for batch case ingestion
type IngestHandler struct {
	ingestService *service.IngestService
	docRepo       DocumentStore
	storage       storage.Storage
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(ingestService *service.IngestService, docRepo DocumentStore, storage storage.Storage) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		docRepo:       docRepo,
		storage:       storage,
	}
}

// IngestRequest represents the request body for a batch ingestion. Cases
// may be supplied inline, by document id from a previous upload, or both.
type IngestRequest struct {
	Cases       []models.RawCaseRecord `json:"cases"`
	DocumentIDs []uuid.UUID            `json:"document_ids"`
}

// loadDocumentRecords resolves uploaded document ids into raw records.
// A document may hold a single record or an array of them.
func (h *IngestHandler) loadDocumentRecords(ctx context.Context, ids []uuid.UUID) ([]models.RawCaseRecord, error) {
	var batch []models.RawCaseRecord
	for _, id := range ids {
		doc, err := h.docRepo.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("document %s not found", id)
		}

		reader, err := h.storage.Download(ctx, doc.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read document %s: %w", id, err)
		}
		content, err := io.ReadAll(reader)
		reader.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read document %s: %w", id, err)
		}

		var records []models.RawCaseRecord
		if err := json.Unmarshal(content, &records); err != nil {
			var single models.RawCaseRecord
			if err := json.Unmarshal(content, &single); err != nil {
				return nil, fmt.Errorf("document %s is not valid case JSON", id)
			}
			records = []models.RawCaseRecord{single}
		}
		batch = append(batch, records...)
	}
	return batch, nil
}

// Ingest handles POST /api/ingest. The batch is validated and a job is
// created synchronously; normalization, embedding and graph writes run
// in the background and are observable via GET /api/jobs/:id.
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	batch := req.Cases
	if len(req.DocumentIDs) > 0 {
		fromDocs, err := h.loadDocumentRecords(c.Request.Context(), req.DocumentIDs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_DOCUMENT",
					"message": err.Error(),
				},
			})
			return
		}
		batch = append(batch, fromDocs...)
	}

	if len(batch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "EMPTY_BATCH",
				"message": "at least one case record or document id is required",
			},
		})
		return
	}

	jobID, err := h.ingestService.StartBatch(c.Request.Context(), batch)
	if err != nil {
		log.Printf("Failed to create ingestion job: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "JOB_CREATION_FAILED",
				"message": "Failed to create ingestion job",
			},
		})
		return
	}

	// Detach from the request context; the batch outlives the request
	go h.ingestService.ProcessBatch(context.Background(), jobID, batch)

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"job_id": jobID,
			"status": models.JobStatusPending,
		},
	})
}

// GetJobStatus handles GET /api/jobs/:id
func (h *IngestHandler) GetJobStatus(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_JOB_ID",
				"message": "Invalid job ID format",
			},
		})
		return
	}

	job, err := h.ingestService.GetJobStatus(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrIngestJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "JOB_NOT_FOUND",
					"message": "Ingestion job not found",
				},
			})
			return
		}
		log.Printf("Failed to fetch ingestion job %s: %v", jobID, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "JOB_FETCH_FAILED",
				"message": "Failed to fetch ingestion job",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    job,
	})
}
