package service

import (
	"regexp"
	"strings"

	"legalgraph-backend/models"
)

// The parser turns free-text citation mentions into normalized case
// identifiers using a deterministic pattern set. The same normalization
// runs over extracted case ids at ingest time, so a mention and the case
// it refers to land on the same key.

var (
	// "123 S.W.2d 456", "45 Tex. Crim. 120"
	reporterPattern = regexp.MustCompile(`\b(\d{1,4})\s+([A-Za-z][A-Za-z0-9.]*(?:\s[A-Za-z][A-Za-z0-9.]*)?)\s+(\d{1,5})\b`)

	// "No. 05-10-01234-CR", "Docket No. 1234"
	docketPattern = regexp.MustCompile(`(?i)\b(?:docket\s+)?no\.\s*([A-Za-z0-9][A-Za-z0-9-]*)`)

	// "Smith v. State", "Ex parte Jones v. Texas"
	partyPattern = regexp.MustCompile(`\b([A-Z][A-Za-z'.]*(?:\s+[A-Z][A-Za-z'.]*)*)\s+vs?\.?\s+([A-Z][A-Za-z'.]*(?:\s+[A-Za-z'.]+)*)`)

	// "(followed)", "(distinguished)" suffixes on a mention
	relationPattern = regexp.MustCompile(`(?i)\((followed|distinguished)\)`)

	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeCaseID canonicalizes a case identifier: lowercased, single
// spaces, "vs." unified to "v.", trailing punctuation stripped
func NormalizeCaseID(id string) string {
	s := strings.ToLower(strings.TrimSpace(id))
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, " vs. ", " v. ")
	s = strings.ReplaceAll(s, " vs ", " v. ")
	s = strings.TrimRight(s, ".,;")
	return s
}

// ParsedMention is the result of resolving one citation-mention string
type ParsedMention struct {
	NormalizedID string
	Relation     string // "followed", "distinguished", or "cited"
}

// ParseMention parses a citation-mention string into a normalized
// identifier. Patterns are tried in a fixed order (reporter citation,
// docket number, party names) so resolution is deterministic. Returns
// ok=false when no pattern matches; the caller records the mention as
// unresolved rather than dropping it.
func ParseMention(mention string) (ParsedMention, bool) {
	parsed := ParsedMention{Relation: models.RelationCited}

	if m := relationPattern.FindStringSubmatch(mention); m != nil {
		parsed.Relation = strings.ToLower(m[1])
	}

	if m := reporterPattern.FindStringSubmatch(mention); m != nil {
		parsed.NormalizedID = NormalizeCaseID(m[1] + " " + m[2] + " " + m[3])
		return parsed, true
	}

	if m := docketPattern.FindStringSubmatch(mention); m != nil {
		parsed.NormalizedID = NormalizeCaseID("no. " + m[1])
		return parsed, true
	}

	if m := partyPattern.FindStringSubmatch(mention); m != nil {
		parsed.NormalizedID = NormalizeCaseID(m[1] + " v. " + m[2])
		return parsed, true
	}

	return ParsedMention{}, false
}
