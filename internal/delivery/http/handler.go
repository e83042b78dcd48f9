package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/meatlens/backend/internal/domain"
	"github.com/meatlens/backend/internal/infrastructure/feed"
	"github.com/meatlens/backend/internal/usecase"
)

const maxBatchSize = 5000

// Classifier classifies listings against the live reference tables
type Classifier interface {
	Classify(ctx context.Context, product domain.RawProduct) domain.ClassificationResult
	ClassifyBatch(ctx context.Context, products []domain.RawProduct) ([]domain.ClassifiedProduct, error)
	Reference() *domain.ReferenceTables
}

// Learner exposes the auto-learner's state and admin actions
type Learner interface {
	ProcessResults(ctx context.Context, batch []domain.ClassifiedProduct, site string) domain.LearningReport
	Stats() domain.LearningStats
	ReviewQueue() []domain.ReviewItem
	DiscoveredPatterns() []domain.DiscoveredPattern
	Reports(ctx context.Context, site string, limit int) ([]domain.LearningReport, error)
	Approve(ctx context.Context, approval domain.PatternApproval) error
	ApproveGradeKeyword(ctx context.Context, word, grade string) error
	DismissReview(ctx context.Context, id string) error
}

// Unifier merges classified listings across retailers
type Unifier interface {
	Unify(products []domain.ClassifiedProduct) []domain.UnifiedProduct
}

// Filter screens listings for meat-domain relevance
type Filter interface {
	EvaluateBatch(products []domain.RawProduct) usecase.FilterBatchResult
}

// Services are the collaborators of the handler. Any of them may be nil; the
// endpoints that need a missing one answer 503.
type Services struct {
	Classifier Classifier
	Learner    Learner
	Unifier    Unifier
	Filter     Filter
	Sink       domain.UnifiedSink
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	services Services
	logger   zerolog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(services Services, logger zerolog.Logger) *Handler {
	return &Handler{
		services: services,
		logger:   logger.With().Str("component", "http").Logger(),
	}
}

// BatchRequest is the body of the batch endpoints. Products are decoded with the
// feed mapper's field tolerance, so one bad price or timestamp never rejects the batch.
type BatchRequest struct {
	Site     string              `json:"site"`
	Products []domain.RawProduct `json:"products"`
}

// BatchResponse is returned by POST /classify/batch
type BatchResponse struct {
	Results []domain.ClassifiedProduct `json:"results"`
	Report  *domain.LearningReport     `json:"report,omitempty"`
}

// UnifyResponse is returned by POST /unify
type UnifyResponse struct {
	CycleID   string                  `json:"cycleId"`
	Unified   []domain.UnifiedProduct `json:"unified"`
	Count     int                     `json:"count"`
	Persisted bool                    `json:"persisted"`
}

// GradeKeywordRequest is the body of POST /learning/grade-keyword
type GradeKeywordRequest struct {
	Keyword string `json:"keyword" binding:"required"`
	Grade   string `json:"grade" binding:"required"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	response := gin.H{
		"status":  "healthy",
		"service": "meatlens-backend",
		"version": "1.0.0",
	}
	if h.services.Classifier != nil {
		response["referenceVersion"] = h.services.Classifier.Reference().Version
	}
	c.JSON(http.StatusOK, response)
}

// Classify classifies a single listing
func (h *Handler) Classify(c *gin.Context) {
	if h.services.Classifier == nil {
		notConfigured(c, "classification")
		return
	}

	data, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return
	}
	product, err := feed.MapListing(data, "")
	if err != nil {
		badRequest(c, err)
		return
	}

	c.JSON(http.StatusOK, h.services.Classifier.Classify(c.Request.Context(), product))
}

// ClassifyBatch classifies a site's scan and feeds it to the learner
func (h *Handler) ClassifyBatch(c *gin.Context) {
	if h.services.Classifier == nil {
		notConfigured(c, "classification")
		return
	}

	req, ok := bindBatch(c)
	if !ok {
		return
	}

	results, err := h.services.Classifier.ClassifyBatch(c.Request.Context(), req.Products)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := BatchResponse{Results: results}
	if h.services.Learner != nil {
		report := h.services.Learner.ProcessResults(c.Request.Context(), results, req.Site)
		response.Report = &report
	}
	c.JSON(http.StatusOK, response)
}

// Unify classifies a scan, merges it across retailers and stores the rows when a sink is wired
func (h *Handler) Unify(c *gin.Context) {
	if h.services.Classifier == nil || h.services.Unifier == nil {
		notConfigured(c, "unification")
		return
	}

	req, ok := bindBatch(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	results, err := h.services.Classifier.ClassifyBatch(ctx, req.Products)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if h.services.Learner != nil {
		h.services.Learner.ProcessResults(ctx, results, req.Site)
	}

	unified := h.services.Unifier.Unify(results)
	response := UnifyResponse{
		CycleID: uuid.NewString(),
		Unified: unified,
		Count:   len(unified),
	}

	if h.services.Sink != nil {
		if err := h.services.Sink.SaveUnified(ctx, response.CycleID, unified); err != nil {
			h.logger.Error().Err(err).Str("cycle", response.CycleID).Msg("failed to store unified products")
		} else {
			response.Persisted = true
		}
	}

	c.JSON(http.StatusOK, response)
}

// FilterProducts returns keep/review/remove verdicts
func (h *Handler) FilterProducts(c *gin.Context) {
	if h.services.Filter == nil {
		notConfigured(c, "domain filter")
		return
	}

	req, ok := bindBatch(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, h.services.Filter.EvaluateBatch(req.Products))
}

// LearningStats returns the learner's running counters
func (h *Handler) LearningStats(c *gin.Context) {
	if h.services.Learner == nil {
		notConfigured(c, "learning")
		return
	}
	c.JSON(http.StatusOK, h.services.Learner.Stats())
}

// ReviewQueue lists classifications awaiting a human decision
func (h *Handler) ReviewQueue(c *gin.Context) {
	if h.services.Learner == nil {
		notConfigured(c, "learning")
		return
	}
	queue := h.services.Learner.ReviewQueue()
	c.JSON(http.StatusOK, gin.H{"items": queue, "count": len(queue)})
}

// DismissReview drops a review entry without changing the tables
func (h *Handler) DismissReview(c *gin.Context) {
	if h.services.Learner == nil {
		notConfigured(c, "learning")
		return
	}
	if err := h.services.Learner.DismissReview(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DiscoveredPatterns lists promoted unknown words
func (h *Handler) DiscoveredPatterns(c *gin.Context) {
	if h.services.Learner == nil {
		notConfigured(c, "learning")
		return
	}
	patterns := h.services.Learner.DiscoveredPatterns()
	c.JSON(http.StatusOK, gin.H{"patterns": patterns, "count": len(patterns)})
}

// LearningReports lists archived learning reports, newest first.
// Query: site (optional), limit (optional, positive).
func (h *Handler) LearningReports(c *gin.Context) {
	if h.services.Learner == nil {
		notConfigured(c, "learning")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: limit must be a positive integer"})
			return
		}
		limit = n
	}

	reports, err := h.services.Learner.Reports(c.Request.Context(), c.Query("site"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// ApprovePattern adds an approved name to the cut tables
func (h *Handler) ApprovePattern(c *gin.Context) {
	if h.services.Learner == nil {
		notConfigured(c, "learning")
		return
	}

	var approval domain.PatternApproval
	if err := c.ShouldBindJSON(&approval); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.services.Learner.Approve(c.Request.Context(), approval); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved", "referenceVersion": h.referenceVersion()})
}

// ApproveGradeKeyword adds a secondary keyword to a grade
func (h *Handler) ApproveGradeKeyword(c *gin.Context) {
	if h.services.Learner == nil {
		notConfigured(c, "learning")
		return
	}

	var req GradeKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.services.Learner.ApproveGradeKeyword(c.Request.Context(), req.Keyword, req.Grade); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "approved", "referenceVersion": h.referenceVersion()})
}

// Reference returns the live reference tables
func (h *Handler) Reference(c *gin.Context) {
	if h.services.Classifier == nil {
		notConfigured(c, "classification")
		return
	}
	c.JSON(http.StatusOK, h.services.Classifier.Reference())
}

func (h *Handler) referenceVersion() int {
	if h.services.Classifier == nil {
		return 0
	}
	return h.services.Classifier.Reference().Version
}

func bindBatch(c *gin.Context) (BatchRequest, bool) {
	var req BatchRequest
	data, err := c.GetRawData()
	if err != nil {
		badRequest(c, err)
		return req, false
	}
	req.Products, err = feed.MapListings(data, "products", "")
	if err != nil {
		badRequest(c, err)
		return req, false
	}
	req.Site = gjson.GetBytes(data, "site").String()
	if len(req.Products) > maxBatchSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "too many products in one request"})
		return req, false
	}
	return req, true
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnknownGrade):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrReviewItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrServiceNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidReferenceData):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "request cancelled"})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
}

func notConfigured(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " service not configured"})
}
