package service

import (
	"fmt"
	"strings"

	"legalgraph-backend/models"
)

const (
	// DefaultBundleBudget is the character budget for an evidence bundle
	DefaultBundleBudget = 6000

	// excerptLength bounds each case's excerpt in the bundle
	excerptLength = 400
)

// AssembleBundle shapes a retrieval result into the ordered evidence
// bundle handed to the external generator. It selects a prefix of the
// ranking under the character budget, never splitting a single case's
// text mid-record, and never re-ranks: the retriever's order is the
// bundle's order.
func AssembleBundle(result *models.RetrievalResult, budget int) *models.EvidenceBundle {
	if budget <= 0 {
		budget = DefaultBundleBudget
	}

	bundle := &models.EvidenceBundle{
		Statuses: result.Statuses,
		Tier:     result.Tier,
	}

	used := 0
	for _, rc := range result.Ranked {
		entry := models.EvidenceEntry{
			CaseID:    rc.Case.CaseID,
			Name:      rc.Case.Name,
			Role:      rc.Role,
			Score:     rc.Score,
			Decision:  rc.Case.Decision,
			Excerpt:   excerpt(rc.Case),
			Rationale: rationale(rc),
		}

		cost := len(entry.Name) + len(entry.Excerpt) + len(entry.Rationale)
		if used+cost > budget {
			// The whole record doesn't fit; stop rather than split it
			bundle.Truncated = true
			break
		}
		used += cost
		bundle.Entries = append(bundle.Entries, entry)
	}

	return bundle
}

// excerpt returns the leading slice of a case's opinion text, falling
// back to the fact narrative when no full text is stored
func excerpt(node *models.CaseNode) string {
	text := node.FullText
	if text == "" {
		text = node.FactNarrative
	}
	if len(text) > excerptLength {
		text = text[:excerptLength] + "..."
	}
	return text
}

// rationale explains which anchor/depth produced an entry
func rationale(rc models.RankedCase) string {
	if rc.Role == models.RoleAnchor {
		return fmt.Sprintf("matched the fact pattern with similarity %.2f", rc.Similarity)
	}

	via := "unknown"
	if len(rc.ViaAnchors) > 0 {
		via = rc.ViaAnchors[0]
		if extra := len(rc.ViaAnchors) - 1; extra > 0 {
			via = fmt.Sprintf("%s (+%d more)", via, extra)
		}
	}

	hops := "hop"
	if rc.Depth != 1 {
		hops = "hops"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "cited %d %s from anchor %s", rc.Depth, hops, via)
	if rc.CoCitation > 1 {
		fmt.Fprintf(&b, ", cited by %d anchors", rc.CoCitation)
	}
	return b.String()
}
