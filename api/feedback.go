package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pulse/enrich"
	"pulse/feed"
	"pulse/similarity"
)

type FeedbackHandler struct {
	feed         *feed.FeedService
	worker       *enrich.Worker
	index        *similarity.Index
	autoAnnotate bool
	log          zerolog.Logger
}

func NewFeedbackHandler(svc *Services, log zerolog.Logger) *FeedbackHandler {
	return &FeedbackHandler{
		feed:         svc.Feed,
		worker:       svc.Worker,
		index:        svc.Similarity,
		autoAnnotate: svc.AutoAnnotate,
		log:          log,
	}
}

func (h *FeedbackHandler) List(c *gin.Context) {
	limit, valid := queryInt(c, "limit", 0)
	if !valid {
		return
	}
	offset, valid := queryInt(c, "offset", 0)
	if !valid {
		return
	}

	page, err := h.feed.List(c.Request.Context(), feed.Filter{
		ProductID: c.Query("product_id"),
		Source:    c.Query("source"),
		Sentiment: c.Query("sentiment"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	c.JSON(200, page)
}

func (h *FeedbackHandler) Get(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	resp, err := h.feed.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, resp)
}

// Submit stores new feedback. With auto-annotation on, the item is annotated
// before the response is written; an annotation failure leaves it pending.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req feed.Input
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warn().Err(err).Msg("invalid request body")
		badRequest(c, err.Error())
		return
	}

	resp, err := h.feed.Submit(ctx, req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	if h.autoAnnotate {
		if _, err := h.worker.ProcessOne(ctx, resp.ID); err != nil {
			h.log.Warn().Err(err).Uint("feedback_id", resp.ID).Msg("auto annotation failed")
		} else if annotated, err := h.feed.Get(ctx, resp.ID); err == nil {
			resp = annotated
		}
	}

	created(c, resp)
}

func (h *FeedbackHandler) Similar(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	k, valid := queryInt(c, "k", similarity.DefaultK)
	if !valid {
		return
	}
	matches, err := h.index.Similar(c.Request.Context(), id, k)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, matches)
}
