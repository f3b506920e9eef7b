package handlers

import (
	"errors"
	"log"
	"net/http"

	"legalgraph-backend/models"
	"legalgraph-backend/service"

	"github.com/gin-gonic/gin"
)

// RetrievalHandler handles HTTP requests for precedent retrieval
type RetrievalHandler struct {
	retrievalService *service.RetrievalService
	memoService      *service.MemoService
}

// NewRetrievalHandler creates a new retrieval handler
func NewRetrievalHandler(retrievalService *service.RetrievalService, memoService *service.MemoService) *RetrievalHandler {
	return &RetrievalHandler{
		retrievalService: retrievalService,
		memoService:      memoService,
	}
}

// RetrieveRequest represents the request body for a retrieval
type RetrieveRequest struct {
	FactPattern    string   `json:"fact_pattern" binding:"required"`
	DesiredOutcome *string  `json:"desired_outcome,omitempty"`
	Depth          *int     `json:"depth,omitempty"`
	AnchorCount    *int     `json:"anchor_count,omitempty"`
	Limit          *int     `json:"limit,omitempty"`
	MinSimilarity  *float64 `json:"min_similarity,omitempty"`
}

// toQueryContext applies the request's overrides on top of the defaults
func (r *RetrieveRequest) toQueryContext() (models.QueryContext, error) {
	q := models.DefaultQueryContext(r.FactPattern)

	if r.DesiredOutcome != nil {
		outcome := models.Decision(*r.DesiredOutcome)
		switch outcome {
		case models.DecisionAffirmed, models.DecisionReversed, models.DecisionRemanded, models.DecisionOther:
			q.DesiredOutcome = &outcome
		default:
			return q, errors.New("desired_outcome must be one of affirmed, reversed, remanded, other")
		}
	}
	if r.Depth != nil {
		if *r.Depth < 0 {
			return q, errors.New("depth must be >= 0")
		}
		q.Depth = *r.Depth
	}
	if r.AnchorCount != nil {
		q.AnchorCount = *r.AnchorCount
	}
	if r.Limit != nil {
		q.Limit = *r.Limit
	}
	if r.MinSimilarity != nil {
		q.MinSimilarity = *r.MinSimilarity
	}

	return q, nil
}

// Retrieve handles POST /api/retrieve
func (h *RetrievalHandler) Retrieve(c *gin.Context) {
	var req RetrieveRequest
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

	query, err := req.toQueryContext()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_QUERY",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.retrievalService.Retrieve(c.Request.Context(), query)
	if err != nil {
		status, code := retrievalErrorResponse(err)
		c.JSON(status, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// AnalyzeRequest represents the request body for a full analysis: the
// retrieval cascade plus memo generation over the assembled bundle
type AnalyzeRequest struct {
	RetrieveRequest
	Strategy     string `json:"strategy"` // "defense" (default) or "prosecution"
	BundleBudget int    `json:"bundle_budget,omitempty"`
}

// Analyze handles POST /api/analyze
func (h *RetrievalHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
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

	strategy := service.StrategyDefense
	if req.Strategy == string(service.StrategyProsecution) {
		strategy = service.StrategyProsecution
	}

	// The strategy implies an outcome preference when none was given:
	// the defense wants reversals, the prosecution wants affirmances
	if req.DesiredOutcome == nil {
		outcome := string(models.DecisionReversed)
		if strategy == service.StrategyProsecution {
			outcome = string(models.DecisionAffirmed)
		}
		req.DesiredOutcome = &outcome
	}

	query, err := req.toQueryContext()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_QUERY",
				"message": err.Error(),
			},
		})
		return
	}

	result, err := h.retrievalService.RetrieveWithFallback(c.Request.Context(), query)
	if err != nil {
		status, code := retrievalErrorResponse(err)
		c.JSON(status, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": err.Error(),
			},
		})
		return
	}

	bundle := service.AssembleBundle(result, req.BundleBudget)

	memo := ""
	if h.memoService != nil && len(bundle.Entries) > 0 {
		memo, err = h.memoService.GenerateMemo(c.Request.Context(), req.FactPattern, strategy, bundle)
		if err != nil {
			// The memo is a collaborator's product; retrieval output is
			// still worth returning without it
			log.Printf("Warning: memo generation failed: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"bundle":    bundle,
			"memo":      memo,
			"retrieval": result,
		},
	})
}

// retrievalErrorResponse maps retrieval failures to HTTP responses.
// Version mismatches and store outages surface immediately; they are
// never silently degraded.
func retrievalErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrEmbeddingVersionMismatch):
		return http.StatusConflict, "EMBEDDING_VERSION_MISMATCH"
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "RETRIEVAL_FAILED"
	}
}
