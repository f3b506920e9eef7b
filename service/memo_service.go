package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"legalgraph-backend/models"

	"github.com/google/generative-ai-go/genai"
)

// Strategy is the litigation perspective a memo is written from
type Strategy string

const (
	StrategyDefense     Strategy = "defense"
	StrategyProsecution Strategy = "prosecution"
)

const memoModel = "gemini-2.0-flash"

var ErrGenerationFailed = errors.New("failed to generate memo")

// MemoService is the boundary to the external memo generator. The
// retrieval engine hands it a finished evidence bundle; what the
// generator does with the bundle is its own business, and nothing in the
// engine depends on this call succeeding.
type MemoService struct {
	geminiClient *genai.Client
}

// NewMemoService creates a new memo service
func NewMemoService(client *genai.Client) *MemoService {
	return &MemoService{geminiClient: client}
}

// GenerateMemo writes a strategic memo grounded in the evidence bundle
func (s *MemoService) GenerateMemo(
	ctx context.Context,
	caseFacts string,
	strategy Strategy,
	bundle *models.EvidenceBundle,
) (string, error) {
	if s.geminiClient == nil {
		return "", errors.New("gemini client not set")
	}
	if len(bundle.Entries) == 0 {
		return "No relevant precedents found.", nil
	}

	var contextStr strings.Builder
	for i, entry := range bundle.Entries {
		fmt.Fprintf(&contextStr, "[PRECEDENT #%d] %s (%s)\nRetrieved because: %s\nExcerpt: %s\n\n",
			i+1, entry.Name, entry.Decision, entry.Rationale, entry.Excerpt)
	}

	perspective := "DEFENSE ATTORNEY"
	goal := "securing an acquittal"
	if strategy == StrategyProsecution {
		perspective = "PROSECUTOR"
		goal = "securing a conviction"
	}

	caveat := ""
	if bundle.Tier == models.TierVectorOnly {
		caveat = "Note: Direct precedents matching the strategy were scarce. These cases were selected based on factual similarity."
	}

	prompt := fmt.Sprintf(`You are a senior Texas %s. Goal: %s.
CRITICAL: NEVER use placeholders like [Name]. Use generic terms like "The Defendant".
Write a concise strategic memo based on these precedents. %s

PRECEDENTS:
%s
CASE FACTS: %s

Format neatly with Markdown. Start directly with the text.
`, perspective, goal, caveat, contextStr.String(), caseFacts)

	model := s.geminiClient.GenerativeModel(memoModel)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrGenerationFailed
	}

	var memo strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			memo.WriteString(string(text))
		}
	}
	return memo.String(), nil
}
