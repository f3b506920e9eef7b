package service

import (
	"os"
	"path/filepath"
	"testing"

	"legalgraph-backend/models"

	"github.com/google/go-cmp/cmp"
)

func rawRecord(fields map[string]interface{}) models.RawCaseRecord {
	return models.RawCaseRecord{Fields: fields}
}

func validFields() map[string]interface{} {
	return map[string]interface{}{
		"case_id":        "123 S.W.2d 456",
		"name":           "Smith v. State",
		"court":          "Tex. Crim. App.",
		"decision_year":  1998,
		"offense":        "burglary",
		"punishment":     "10 years",
		"decision":       "affirmed",
		"conviction":     "true",
		"fact_narrative": "Defendant entered a habitation at night without consent.",
		"citations":      []interface{}{"45 Tex. Crim. 120", "Jones v. State"},
	}
}

func TestNormalizeCleanRecord(t *testing.T) {
	candidate, extErr := Normalize(rawRecord(validFields()), DefaultExtractionSchema())
	if extErr != nil {
		t.Fatalf("unexpected rejection: %v", extErr)
	}

	want := &models.CandidateCase{
		CaseID:           "123 s.w.2d 456",
		Name:             "Smith v. State",
		Court:            "Tex. Crim. App.",
		DecisionYear:     1998,
		Offense:          "burglary",
		Punishment:       "10 years",
		Decision:         models.DecisionAffirmed,
		Conviction:       models.ConvictionTrue,
		FactNarrative:    "Defendant entered a habitation at night without consent.",
		CitationMentions: []string{"45 Tex. Crim. 120", "Jones v. State"},
		Confidence:       models.ConfidenceClean,
	}
	if diff := cmp.Diff(want, candidate); diff != "" {
		t.Errorf("candidate mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	fields := validFields()
	fields["decision"] = "conviction reversed and remanded for new trial"

	first, extErr := Normalize(rawRecord(fields), DefaultExtractionSchema())
	if extErr != nil {
		t.Fatalf("unexpected rejection: %v", extErr)
	}
	for i := 0; i < 10; i++ {
		again, extErr := Normalize(rawRecord(fields), DefaultExtractionSchema())
		if extErr != nil {
			t.Fatalf("unexpected rejection on run %d: %v", i, extErr)
		}
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestNormalizeEnumRepair(t *testing.T) {
	tests := []struct {
		name     string
		decision string
		want     models.Decision
		repaired bool
	}{
		{"exact", "affirmed", models.DecisionAffirmed, false},
		{"case insensitive", "Affirmed", models.DecisionAffirmed, true},
		{"synonym", "rev'd", models.DecisionReversed, true},
		{"acquittal maps to reversal", "acquitted", models.DecisionReversed, true},
		{"new trial maps to remand", "new trial", models.DecisionRemanded, true},
		{"substring over enum", "conviction reversed and remanded", models.DecisionReversed, true},
		{"dismissal maps to other", "dismissed", models.DecisionOther, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			fields["decision"] = tt.decision

			candidate, extErr := Normalize(rawRecord(fields), DefaultExtractionSchema())
			if extErr != nil {
				t.Fatalf("unexpected rejection: %v", extErr)
			}
			if candidate.Decision != tt.want {
				t.Errorf("decision: got %q, want %q", candidate.Decision, tt.want)
			}
			wantConf := models.ConfidenceClean
			if tt.repaired {
				wantConf = models.ConfidenceRepaired
			}
			if candidate.Confidence != wantConf {
				t.Errorf("confidence: got %q, want %q", candidate.Confidence, wantConf)
			}
		})
	}
}

func TestNormalizeConvictionSynonyms(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Conviction
	}{
		{"guilty", models.ConvictionTrue},
		{"not guilty", models.ConvictionFalse},
		// "not guilty" must win over the embedded "guilty"
		{"found not guilty by the jury", models.ConvictionFalse},
		{"convicted", models.ConvictionTrue},
	}

	for _, tt := range tests {
		fields := validFields()
		fields["conviction"] = tt.raw

		candidate, extErr := Normalize(rawRecord(fields), DefaultExtractionSchema())
		if extErr != nil {
			t.Fatalf("%q: unexpected rejection: %v", tt.raw, extErr)
		}
		if candidate.Conviction != tt.want {
			t.Errorf("%q: conviction got %q, want %q", tt.raw, candidate.Conviction, tt.want)
		}
	}
}

func TestNormalizeMissingIdentityRejects(t *testing.T) {
	for _, field := range []string{"case_id", "fact_narrative"} {
		fields := validFields()
		delete(fields, field)

		candidate, extErr := Normalize(rawRecord(fields), DefaultExtractionSchema())
		if extErr == nil {
			t.Fatalf("missing %s: expected rejection, got candidate %+v", field, candidate)
		}
		found := false
		for _, fe := range extErr.Fields {
			if fe.Field == field {
				found = true
			}
		}
		if !found {
			t.Errorf("missing %s: field detail absent from %v", field, extErr.Fields)
		}
	}
}

func TestNormalizeMissingOptionalFillsSentinel(t *testing.T) {
	fields := validFields()
	delete(fields, "court")
	delete(fields, "punishment")

	candidate, extErr := Normalize(rawRecord(fields), DefaultExtractionSchema())
	if extErr != nil {
		t.Fatalf("unexpected rejection: %v", extErr)
	}
	if candidate.Court != models.UnknownSentinel {
		t.Errorf("court: got %q, want sentinel", candidate.Court)
	}
	if candidate.Punishment != models.UnknownSentinel {
		t.Errorf("punishment: got %q, want sentinel", candidate.Punishment)
	}
	// Missing optionals are unambiguous; the record is still clean
	if candidate.Confidence != models.ConfidenceClean {
		t.Errorf("confidence: got %q, want clean", candidate.Confidence)
	}
}

func TestNormalizeRejectThreshold(t *testing.T) {
	// Five required fields; two failures is under the 0.5 threshold,
	// three is over it.
	fields := validFields()
	delete(fields, "offense")
	fields["decision"] = "inscrutable"

	candidate, extErr := Normalize(rawRecord(fields), DefaultExtractionSchema())
	if extErr != nil {
		t.Fatalf("two failed required fields should repair, not reject: %v", extErr)
	}
	if candidate.Confidence != models.ConfidenceRepaired {
		t.Errorf("confidence: got %q, want repaired", candidate.Confidence)
	}
	if candidate.Offense != models.UnknownSentinel {
		t.Errorf("offense: got %q, want sentinel", candidate.Offense)
	}
	if candidate.Decision != models.DecisionUnknown {
		t.Errorf("decision: got %q, want unknown", candidate.Decision)
	}

	delete(fields, "name")
	if _, extErr := Normalize(rawRecord(fields), DefaultExtractionSchema()); extErr == nil {
		t.Error("three failed required fields should reject the record")
	}
}

func TestNormalizeTypeCoercion(t *testing.T) {
	fields := validFields()
	fields["decision_year"] = "1987" // JSON numbers also arrive as strings
	fields["citations"] = []string{"No. 05-10-01234-CR"}

	candidate, extErr := Normalize(rawRecord(fields), DefaultExtractionSchema())
	if extErr != nil {
		t.Fatalf("unexpected rejection: %v", extErr)
	}
	if candidate.DecisionYear != 1987 {
		t.Errorf("decision_year: got %d, want 1987", candidate.DecisionYear)
	}
	if len(candidate.CitationMentions) != 1 {
		t.Errorf("citations: got %v", candidate.CitationMentions)
	}
}

func TestLoadExtractionSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	yamlDoc := `
reject_threshold: 0.25
fields:
  - name: case_id
    type: string
    required: true
    identity: true
  - name: fact_narrative
    type: string
    required: true
    identity: true
  - name: decision
    type: enum
    required: true
    enum: [affirmed, reversed]
    synonyms:
      upheld: affirmed
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	schema, err := LoadExtractionSchema(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.RejectThreshold != 0.25 {
		t.Errorf("reject_threshold: got %v, want 0.25", schema.RejectThreshold)
	}
	if len(schema.Fields) != 3 {
		t.Fatalf("fields: got %d, want 3", len(schema.Fields))
	}

	// The override's synonym table drives repair, not the compiled-in one.
	candidate, extErr := Normalize(rawRecord(map[string]interface{}{
		"case_id":        "123 S.W.2d 456",
		"fact_narrative": "Conviction upheld on appeal.",
		"decision":       "upheld",
	}), schema)
	if extErr != nil {
		t.Fatalf("unexpected rejection: %v", extErr)
	}
	if candidate.Decision != models.DecisionAffirmed {
		t.Errorf("decision: got %q, want affirmed", candidate.Decision)
	}
	if candidate.Confidence != models.ConfidenceRepaired {
		t.Errorf("confidence: got %q, want repaired", candidate.Confidence)
	}
}

func TestLoadExtractionSchemaDefaultsAndErrors(t *testing.T) {
	if _, err := LoadExtractionSchema(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should error")
	}

	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("fields: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadExtractionSchema(path); err == nil {
		t.Error("schema without fields should error")
	}

	path = filepath.Join(t.TempDir(), "nothreshold.yaml")
	doc := "fields:\n  - {name: case_id, type: string, required: true, identity: true}\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	schema, err := LoadExtractionSchema(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema.RejectThreshold != 0.5 {
		t.Errorf("reject_threshold default: got %v, want 0.5", schema.RejectThreshold)
	}
}
