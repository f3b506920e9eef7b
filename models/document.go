package models

import (
	"time"

	"github.com/google/uuid"
)

// CaseDocument represents a raw case document uploaded for ingestion.
// The bytes live in storage; the row only tracks where they are and
// which case they ended up attached to once ingested.
type CaseDocument struct {
	ID          uuid.UUID `json:"id"`
	CaseID      *string   `json:"case_id,omitempty"` // set once the document is ingested
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}
