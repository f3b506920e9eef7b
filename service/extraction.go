package service

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"legalgraph-backend/models"

	"gopkg.in/yaml.v3"
)

// FieldType describes how a schema field is validated
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeInt    FieldType = "int"
	FieldTypeEnum   FieldType = "enum"
	FieldTypeList   FieldType = "list" // list of strings
)

// FieldSpec describes one field of the extraction schema
type FieldSpec struct {
	Name     string            `yaml:"name"`
	Type     FieldType         `yaml:"type"`
	Required bool              `yaml:"required"`
	Identity bool              `yaml:"identity"` // a node cannot be built without it
	Enum     []string          `yaml:"enum,omitempty"`
	Synonyms map[string]string `yaml:"synonyms,omitempty"`
}

// ExtractionSchema describes the target shape of LLM extraction output.
// A compiled-in default matches the case schema; deployments can override
// enums and synonym tables from a YAML file.
type ExtractionSchema struct {
	Fields []FieldSpec `yaml:"fields"`
	// RejectThreshold is the fraction of required fields that may fail
	// validation before the whole record is rejected
	RejectThreshold float64 `yaml:"reject_threshold"`
}

// FieldError describes one field that failed validation
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ExtractionError is the structured failure for a rejected record. It is
// non-fatal for a batch: the record is skipped and logged with the
// field-level detail.
type ExtractionError struct {
	CaseID string       `json:"case_id,omitempty"`
	Fields []FieldError `json:"fields"`
}

// Error implements the error interface
func (e *ExtractionError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("extraction rejected for %q: invalid fields [%s]",
		e.CaseID, strings.Join(names, ", "))
}

// DefaultExtractionSchema returns the compiled-in case schema
func DefaultExtractionSchema() *ExtractionSchema {
	return &ExtractionSchema{
		RejectThreshold: 0.5,
		Fields: []FieldSpec{
			{Name: "case_id", Type: FieldTypeString, Required: true, Identity: true},
			{Name: "name", Type: FieldTypeString, Required: true},
			{Name: "court", Type: FieldTypeString},
			{Name: "decision_year", Type: FieldTypeInt},
			{Name: "offense", Type: FieldTypeString, Required: true},
			{Name: "punishment", Type: FieldTypeString},
			{
				Name:     "decision",
				Type:     FieldTypeEnum,
				Required: true,
				Enum:     []string{"affirmed", "reversed", "remanded", "other"},
				Synonyms: map[string]string{
					"aff'd":     "affirmed",
					"affirm":    "affirmed",
					"rev'd":     "reversed",
					"reverse":   "reversed",
					"acquit":    "reversed",
					"acquitted": "reversed",
					"remand":    "remanded",
					"new trial": "remanded",
					"dismissed": "other",
					"modified":  "other",
				},
			},
			{
				Name: "conviction",
				Type: FieldTypeEnum,
				Enum: []string{"true", "false"},
				Synonyms: map[string]string{
					"convicted":  "true",
					"guilty":     "true",
					"acquitted":  "false",
					"not guilty": "false",
				},
			},
			{Name: "fact_narrative", Type: FieldTypeString, Required: true, Identity: true},
			{Name: "full_text", Type: FieldTypeString},
			{Name: "citations", Type: FieldTypeList},
		},
	}
}

// LoadExtractionSchema reads a schema override from a YAML file
func LoadExtractionSchema(path string) (*ExtractionSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read extraction schema: %w", err)
	}

	schema := &ExtractionSchema{}
	if err := yaml.Unmarshal(data, schema); err != nil {
		return nil, fmt.Errorf("failed to parse extraction schema: %w", err)
	}
	if schema.RejectThreshold <= 0 {
		schema.RejectThreshold = 0.5
	}
	if len(schema.Fields) == 0 {
		return nil, fmt.Errorf("extraction schema %s defines no fields", path)
	}

	return schema, nil
}

// Normalize validates raw LLM extraction output against the schema and
// builds a candidate node, or returns a structured failure. It is pure:
// no side effects, no partial commits.
//
// Enum values outside the allowed set go through a bounded repair
// (case-insensitive match, then the synonym table); any repair flips the
// candidate's confidence to "repaired". Missing optional fields get the
// explicit unknown sentinel. If identity fields are missing, or more
// than the schema's threshold fraction of required fields fail, the
// whole record is rejected.
func Normalize(raw models.RawCaseRecord, schema *ExtractionSchema) (*models.CandidateCase, *ExtractionError) {
	values := make(map[string]string)
	lists := make(map[string][]string)
	confidence := models.ConfidenceClean

	var fieldErrors []FieldError
	requiredCount := 0
	requiredFailed := 0
	identityFailed := false

	for _, spec := range schema.Fields {
		if spec.Required {
			requiredCount++
		}

		rawValue, present := raw.Fields[spec.Name]
		if !present || rawValue == nil {
			if spec.Required {
				requiredFailed++
				fieldErrors = append(fieldErrors, FieldError{Field: spec.Name, Reason: "missing"})
				if spec.Identity {
					identityFailed = true
				}
			}
			// Missing-but-optional is never ambiguous: store the sentinel
			values[spec.Name] = models.UnknownSentinel
			continue
		}

		switch spec.Type {
		case FieldTypeString:
			s, ok := asString(rawValue)
			if !ok || strings.TrimSpace(s) == "" {
				if spec.Required {
					requiredFailed++
					fieldErrors = append(fieldErrors, FieldError{Field: spec.Name, Reason: "not a string"})
					if spec.Identity {
						identityFailed = true
					}
				}
				values[spec.Name] = models.UnknownSentinel
				continue
			}
			values[spec.Name] = strings.TrimSpace(s)

		case FieldTypeInt:
			n, ok := asInt(rawValue)
			if !ok {
				if spec.Required {
					requiredFailed++
					fieldErrors = append(fieldErrors, FieldError{Field: spec.Name, Reason: "not an integer"})
				}
				values[spec.Name] = models.UnknownSentinel
				continue
			}
			values[spec.Name] = strconv.Itoa(n)

		case FieldTypeEnum:
			s, ok := asString(rawValue)
			if !ok {
				if spec.Required {
					requiredFailed++
					fieldErrors = append(fieldErrors, FieldError{Field: spec.Name, Reason: "not a string"})
				}
				values[spec.Name] = models.UnknownSentinel
				continue
			}
			canonical, repaired, ok := canonicalizeEnum(s, spec)
			if !ok {
				if spec.Required {
					requiredFailed++
					fieldErrors = append(fieldErrors, FieldError{
						Field:  spec.Name,
						Reason: fmt.Sprintf("%q not in enum %v", s, spec.Enum),
					})
				}
				values[spec.Name] = models.UnknownSentinel
				continue
			}
			if repaired {
				confidence = models.ConfidenceRepaired
			}
			values[spec.Name] = canonical

		case FieldTypeList:
			items, ok := asStringList(rawValue)
			if !ok {
				if spec.Required {
					requiredFailed++
					fieldErrors = append(fieldErrors, FieldError{Field: spec.Name, Reason: "not a list of strings"})
				}
				continue
			}
			lists[spec.Name] = items
		}
	}

	caseID := values["case_id"]

	// Identity failures and threshold breaches reject the record outright:
	// a half-populated node never reaches the graph.
	if identityFailed ||
		(requiredCount > 0 && float64(requiredFailed)/float64(requiredCount) > schema.RejectThreshold) {
		return nil, &ExtractionError{CaseID: caseID, Fields: fieldErrors}
	}

	// Any surviving required-field failure means the record was repaired
	// with sentinels rather than validated clean
	if requiredFailed > 0 {
		confidence = models.ConfidenceRepaired
	}

	year := 0
	if y, err := strconv.Atoi(values["decision_year"]); err == nil {
		year = y
	}

	candidate := &models.CandidateCase{
		CaseID:           NormalizeCaseID(caseID),
		Name:             values["name"],
		Court:            values["court"],
		DecisionYear:     year,
		Offense:          values["offense"],
		Punishment:       values["punishment"],
		Decision:         models.Decision(valueOrUnknown(values["decision"])),
		Conviction:       models.Conviction(valueOrUnknown(values["conviction"])),
		FactNarrative:    values["fact_narrative"],
		FullText:         values["full_text"],
		CitationMentions: lists["citations"],
		Confidence:       confidence,
	}
	if candidate.FullText == models.UnknownSentinel {
		candidate.FullText = ""
	}

	return candidate, nil
}

// canonicalizeEnum maps a raw value into the enum via a bounded set of
// repair rules. Returns the canonical value, whether repair was needed,
// and whether any rule matched at all.
func canonicalizeEnum(s string, spec FieldSpec) (string, bool, bool) {
	trimmed := strings.TrimSpace(s)

	// Exact match needs no repair
	for _, allowed := range spec.Enum {
		if trimmed == allowed {
			return allowed, false, true
		}
	}

	// Case-insensitive match
	lower := strings.ToLower(trimmed)
	for _, allowed := range spec.Enum {
		if lower == allowed {
			return allowed, true, true
		}
	}

	// Synonym table
	if canonical, ok := spec.Synonyms[lower]; ok {
		return canonical, true, true
	}

	// Substring hits for verbose extractions like "conviction reversed
	// and remanded": enum values first, then synonyms longest-first so
	// "not guilty" wins over "guilty"
	for _, allowed := range spec.Enum {
		if strings.Contains(lower, allowed) {
			return allowed, true, true
		}
	}
	keys := make([]string, 0, len(spec.Synonyms))
	for k := range spec.Synonyms {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if strings.Contains(lower, k) {
			return spec.Synonyms[k], true, true
		}
	}

	return "", false, false
}

func valueOrUnknown(s string) string {
	if s == "" {
		return models.UnknownSentinel
	}
	return s
}

func asString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func asStringList(v interface{}) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []interface{}:
		items := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			items = append(items, s)
		}
		return items, true
	default:
		return nil, false
	}
}
