package models

import (
	"encoding/json"
	"time"
)

// Decision represents the outcome of an appellate decision
type Decision string

const (
	DecisionAffirmed Decision = "affirmed"
	DecisionReversed Decision = "reversed"
	DecisionRemanded Decision = "remanded"
	DecisionOther    Decision = "other"
	DecisionUnknown  Decision = "unknown"
)

// Conviction is a tri-state conviction flag. Extraction output is not
// reliable enough for a plain bool, so absence is explicit.
type Conviction string

const (
	ConvictionTrue    Conviction = "true"
	ConvictionFalse   Conviction = "false"
	ConvictionUnknown Conviction = "unknown"
)

// ExtractionConfidence marks whether a case's structured metadata passed
// schema validation cleanly or needed canonicalization repair
type ExtractionConfidence string

const (
	ConfidenceClean    ExtractionConfidence = "clean"
	ConfidenceRepaired ExtractionConfidence = "repaired"
)

// HigherThan reports whether c is strictly preferred over other when
// deciding which extraction pass wins an upsert.
func (c ExtractionConfidence) HigherThan(other ExtractionConfidence) bool {
	return c == ConfidenceClean && other == ConfidenceRepaired
}

// UnknownSentinel is stored for optional fields the extraction did not
// produce, so downstream code never has to distinguish "" from absent
const UnknownSentinel = "unknown"

// CaseNode represents one legal decision in the citation graph
type CaseNode struct {
	CaseID           string               `json:"case_id"` // normalized citation or docket id, primary key
	Name             string               `json:"name"`
	Court            string               `json:"court"`
	DecisionYear     int                  `json:"decision_year"`
	Offense          string               `json:"offense"`
	Punishment       string               `json:"punishment"`
	Decision         Decision             `json:"decision"`
	Conviction       Conviction           `json:"conviction"`
	FactNarrative    string               `json:"fact_narrative"`
	FullText         string               `json:"full_text,omitempty"`
	TextRef          *string              `json:"text_ref,omitempty"` // storage path of the raw opinion, if uploaded
	Embedding        []float64            `json:"-"`
	EmbeddingVersion string               `json:"embedding_version,omitempty"`
	Confidence       ExtractionConfidence `json:"extraction_confidence"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// CandidateCase is the transient output of the extraction normalizer,
// before the ingestor resolves citations and commits it to the store
type CandidateCase struct {
	CaseID           string
	Name             string
	Court            string
	DecisionYear     int
	Offense          string
	Punishment       string
	Decision         Decision
	Conviction       Conviction
	FactNarrative    string
	FullText         string
	CitationMentions []string // raw citation strings, resolved by the ingestor
	Confidence       ExtractionConfidence
}

// RawCaseRecord is one document of a raw ingestion batch: the loosely
// typed extraction output from the external LLM call. On the wire the
// record is the bare field map.
type RawCaseRecord struct {
	Fields map[string]interface{}
}

func (r RawCaseRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Fields)
}

func (r *RawCaseRecord) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.Fields)
}
