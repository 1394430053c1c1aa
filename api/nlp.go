package api

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pulse/analytics"
	"pulse/insights"
	"pulse/nlp"
)

// NLPHandler exposes the enrichment pipeline without touching storage.
type NLPHandler struct {
	annotator   *nlp.ModelAnnotator
	clusterer   *nlp.Clusterer
	insight     *insights.Generator
	concurrency int
	log         zerolog.Logger
}

func NewNLPHandler(svc *Services, log zerolog.Logger) *NLPHandler {
	return &NLPHandler{
		annotator:   svc.Annotator,
		clusterer:   svc.Clusterer,
		insight:     svc.Insight,
		concurrency: svc.Concurrency,
		log:         log,
	}
}

type processRequest struct {
	Text string `json:"feedback_text"`
}

type itemsRequest struct {
	Items []nlp.Item `json:"feedback_items"`
}

type clusterResult struct {
	Name        string `json:"cluster_name"`
	Description string `json:"description"`
	FeedbackIDs []uint `json:"feedback_ids"`
	Count       int    `json:"count"`
}

type insightsRequest struct {
	Summary *analytics.Digest `json:"summary"`
}

func (h *NLPHandler) Process(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		badRequest(c, "missing or invalid feedback_text")
		return
	}
	if utf8.RuneCountInString(req.Text) < nlp.MinTextLength {
		badRequest(c, fmt.Sprintf("feedback text must be at least %d characters long", nlp.MinTextLength))
		return
	}

	analysis, err := h.annotator.Annotate(c.Request.Context(), req.Text)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, analysis)
}

// BatchProcess annotates up to MaxBatchSize items. With strict=true model
// failures are reported per item instead of falling back to rules.
func (h *NLPHandler) BatchProcess(c *gin.Context) {
	var req itemsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		badRequest(c, "feedback_items must be a non-empty array")
		return
	}
	if len(req.Items) > nlp.MaxBatchSize {
		badRequest(c, fmt.Sprintf("maximum %d feedback items can be processed at once", nlp.MaxBatchSize))
		return
	}

	var annotator nlp.Annotator = h.annotator
	if c.Query("strict") == "true" {
		annotator = h.annotator.WithStrict()
	}
	report := nlp.NewBatch(annotator, h.concurrency, h.log).Run(c.Request.Context(), req.Items)

	c.JSON(200, gin.H{
		"data":    report.Results,
		"summary": report.Summary,
		"run_id":  report.RunID,
	})
}

func (h *NLPHandler) Cluster(c *gin.Context) {
	var req itemsRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Items) == 0 {
		badRequest(c, "feedback_items must be a non-empty array with id and text fields")
		return
	}
	if len(req.Items) > nlp.MaxClusterItems {
		badRequest(c, fmt.Sprintf("maximum %d feedback items can be clustered at once", nlp.MaxClusterItems))
		return
	}

	groups := h.clusterer.Groups(c.Request.Context(), req.Items)
	out := make([]clusterResult, len(groups))
	for i, g := range groups {
		out[i] = clusterResult{Name: g.Name, Description: g.Description, FeedbackIDs: g.FeedbackIDs, Count: len(g.FeedbackIDs)}
	}

	c.JSON(200, gin.H{
		"data": out,
		"summary": gin.H{
			"total_feedback":   len(req.Items),
			"clusters_created": len(out),
		},
	})
}

func (h *NLPHandler) Insights(c *gin.Context) {
	var req insightsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Summary == nil {
		badRequest(c, "missing or invalid summary object")
		return
	}
	s := req.Summary
	if s.Total <= 0 || s.TopTopics == nil || s.TopFeatures == nil {
		badRequest(c, "summary must include: total, sentiment, topTopics, topFeatures, urgentCount")
		return
	}

	candidates := h.insight.Generate(c.Request.Context(), *s)
	c.JSON(200, gin.H{"data": candidates, "count": len(candidates)})
}
