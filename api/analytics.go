package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pulse/analytics"
	"pulse/clusters"
	"pulse/db"
	"pulse/insights"
	"pulse/models"
)

type AnalyticsHandler struct {
	feedback db.FeedbackStore
	log      zerolog.Logger
}

func NewAnalyticsHandler(svc *Services, log zerolog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{feedback: svc.Stores.Feedback, log: log}
}

func (h *AnalyticsHandler) Metrics(c *gin.Context) {
	days, valid := queryInt(c, "days", analytics.DefaultDays)
	if !valid {
		return
	}
	if days < 1 {
		badRequest(c, "days must be positive")
		return
	}

	report, _, err := analytics.Metrics(c.Request.Context(), h.feedback, analytics.Window{
		Days:      days,
		ProductID: c.Query("product_id"),
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, report)
}

type ClusterHandler struct {
	clusters *clusters.ClusterService
	log      zerolog.Logger
}

func NewClusterHandler(svc *Services, log zerolog.Logger) *ClusterHandler {
	return &ClusterHandler{clusters: svc.Clusters, log: log}
}

func (h *ClusterHandler) List(c *gin.Context) {
	out, err := h.clusters.List(c.Request.Context(), c.Query("include_details") == "true")
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, out)
}

func (h *ClusterHandler) Run(c *gin.Context) {
	var req clusters.RunInput
	if !bindOptional(c, &req) {
		return
	}
	out, err := h.clusters.Run(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	created(c, out)
}

type InsightHandler struct {
	insights *insights.InsightsService
	log      zerolog.Logger
}

func NewInsightHandler(svc *Services, log zerolog.Logger) *InsightHandler {
	return &InsightHandler{insights: svc.Insights, log: log}
}

type generateRequest struct {
	Days      int    `json:"days"`
	ProductID string `json:"product_id"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *InsightHandler) List(c *gin.Context) {
	out, err := h.insights.List(c.Request.Context(), db.InsightFilter{
		Status: models.InsightStatus(c.Query("status")),
		Type:   models.InsightType(c.Query("type")),
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, insights.NewInsightResponses(out))
}

// Generate aggregates the requested window and stores the proposed insights.
func (h *InsightHandler) Generate(c *gin.Context) {
	var req generateRequest
	if !bindOptional(c, &req) {
		return
	}
	if req.Days < 0 {
		badRequest(c, "days must be positive")
		return
	}

	out, err := h.insights.Generate(c.Request.Context(), analytics.Window{Days: req.Days, ProductID: req.ProductID})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(201, gin.H{"data": insights.NewInsightResponses(out), "count": len(out)})
}

func (h *InsightHandler) UpdateStatus(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		badRequest(c, "missing required field: status")
		return
	}

	out, err := h.insights.UpdateStatus(c.Request.Context(), id, models.InsightStatus(req.Status))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, insights.NewInsightResponse(*out))
}
