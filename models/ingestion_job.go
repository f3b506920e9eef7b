package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IngestionJobStatus represents the status of an ingestion job
type IngestionJobStatus string

const (
	JobStatusPending    IngestionJobStatus = "pending"
	JobStatusInProgress IngestionJobStatus = "in_progress"
	JobStatusCompleted  IngestionJobStatus = "completed"
	JobStatusFailed     IngestionJobStatus = "failed"
)

// IngestionStep represents a phase of the ingestion pipeline
type IngestionStep struct {
	Name        string `json:"name"`
	Status      string `json:"status"` // "pending", "in_progress", "completed", "failed"
	Description string `json:"description,omitempty"`
}

// IngestionSteps represents the ordered phases of an ingestion job
type IngestionSteps []IngestionStep

// Value implements driver.Valuer for JSONB
func (s IngestionSteps) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *IngestionSteps) Scan(value interface{}) error {
	if value == nil {
		*s = make(IngestionSteps, 0)
		return nil
	}

	// Handle different types that pgx might return for JSONB
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*s = make(IngestionSteps, 0)
		return nil
	}

	if len(bytes) == 0 {
		*s = make(IngestionSteps, 0)
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// IngestReport counts what a batch did to the graph
type IngestReport struct {
	NodesCreated        int `json:"nodes_created"`
	NodesUpdated        int `json:"nodes_updated"`
	EdgesCreated        int `json:"edges_created"`
	UnresolvedCitations int `json:"unresolved_citations"`
	RejectedExtractions int `json:"rejected_extractions"`
}

// Value implements driver.Valuer for JSONB
func (r IngestReport) Value() (driver.Value, error) {
	return json.Marshal(r)
}

// Scan implements sql.Scanner for JSONB
func (r *IngestReport) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, r)
}

// IngestionJob represents one batch ingestion run
type IngestionJob struct {
	ID           uuid.UUID          `json:"id"`
	Status       IngestionJobStatus `json:"status"`
	CurrentStep  *string            `json:"current_step,omitempty"`
	Steps        IngestionSteps     `json:"steps"`
	Report       *IngestReport      `json:"report,omitempty"`
	ErrorMessage *string            `json:"error_message,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	CompletedAt  *time.Time         `json:"completed_at,omitempty"`
}
