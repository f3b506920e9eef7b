package service

import (
	"testing"

	"legalgraph-backend/models"
)

func TestNormalizeCaseID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Smith v. State", "smith v. state"},
		{"Smith vs. State", "smith v. state"},
		{"Smith vs State", "smith v. state"},
		{"  123   S.W.2d   456  ", "123 s.w.2d 456"},
		{"Jones v. State,", "jones v. state"},
		{"No. 05-10-01234-CR;", "no. 05-10-01234-cr"},
	}

	for _, tt := range tests {
		if got := NormalizeCaseID(tt.in); got != tt.want {
			t.Errorf("NormalizeCaseID(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMention(t *testing.T) {
	tests := []struct {
		name         string
		mention      string
		wantID       string
		wantRelation string
	}{
		{"reporter citation", "123 S.W.2d 456", "123 s.w.2d 456", models.RelationCited},
		{"reporter with reporter name spaces", "45 Tex. Crim. 120", "45 tex. crim. 120", models.RelationCited},
		{"reporter inside prose", "see Smith v. State, 123 S.W.2d 456 (Tex. Crim. App. 1998)", "123 s.w.2d 456", models.RelationCited},
		{"docket number", "No. 05-10-01234-CR", "no. 05-10-01234-cr", models.RelationCited},
		{"docket with prefix", "Docket No. 1234", "no. 1234", models.RelationCited},
		{"party names", "Smith v. State", "smith v. state", models.RelationCited},
		{"party names with vs", "Smith vs. State", "smith v. state", models.RelationCited},
		{"relation suffix", "Jones v. State (followed)", "jones v. state", "followed"},
		{"distinguished suffix", "Jones v. State (distinguished)", "jones v. state", "distinguished"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := ParseMention(tt.mention)
			if !ok {
				t.Fatalf("ParseMention(%q): no pattern matched", tt.mention)
			}
			if parsed.NormalizedID != tt.wantID {
				t.Errorf("id: got %q, want %q", parsed.NormalizedID, tt.wantID)
			}
			if parsed.Relation != tt.wantRelation {
				t.Errorf("relation: got %q, want %q", parsed.Relation, tt.wantRelation)
			}
		})
	}
}

func TestParseMentionUnparseable(t *testing.T) {
	for _, mention := range []string{"", "the cited authority", "???"} {
		if parsed, ok := ParseMention(mention); ok {
			t.Errorf("ParseMention(%q): expected no match, got %+v", mention, parsed)
		}
	}
}

// A mention and the case_id it refers to must normalize to the same key,
// or two-phase citation resolution cannot link them.
func TestParseMentionAgreesWithCaseIDNormalization(t *testing.T) {
	caseID := NormalizeCaseID("123 S.W.2d 456")
	parsed, ok := ParseMention("Smith v. State, 123 S.W.2d 456")
	if !ok {
		t.Fatal("mention did not parse")
	}
	if parsed.NormalizedID != caseID {
		t.Errorf("mention resolved to %q, case id normalized to %q", parsed.NormalizedID, caseID)
	}
}
