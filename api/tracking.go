package api

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pulse/experiments"
	"pulse/requirements"
)

type RequirementHandler struct {
	requirements *requirements.RequirementService
	log          zerolog.Logger
}

func NewRequirementHandler(svc *Services, log zerolog.Logger) *RequirementHandler {
	return &RequirementHandler{requirements: svc.Requirements, log: log}
}

func (h *RequirementHandler) List(c *gin.Context) {
	out, err := h.requirements.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, out)
}

func (h *RequirementHandler) Create(c *gin.Context) {
	var req requirements.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	out, err := h.requirements.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	created(c, out)
}

func (h *RequirementHandler) Get(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	out, err := h.requirements.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, out)
}

func (h *RequirementHandler) Update(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req requirements.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	out, err := h.requirements.Update(c.Request.Context(), id, req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, out)
}

func (h *RequirementHandler) Delete(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	if err := h.requirements.Delete(c.Request.Context(), id); err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, gin.H{"id": id, "deleted": true})
}

func (h *RequirementHandler) Link(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req requirements.LinkInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.requirements.Link(c.Request.Context(), id, req); err != nil {
		fail(c, h.log, err)
		return
	}
	created(c, gin.H{"requirement_id": id, "feedback_id": req.FeedbackID})
}

type ExperimentHandler struct {
	experiments *experiments.ExperimentService
	log         zerolog.Logger
}

func NewExperimentHandler(svc *Services, log zerolog.Logger) *ExperimentHandler {
	return &ExperimentHandler{experiments: svc.Experiments, log: log}
}

func (h *ExperimentHandler) List(c *gin.Context) {
	out, err := h.experiments.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, out)
}

func (h *ExperimentHandler) Create(c *gin.Context) {
	var req experiments.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	out, err := h.experiments.Create(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	created(c, out)
}

func (h *ExperimentHandler) Get(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	out, err := h.experiments.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, out)
}

func (h *ExperimentHandler) UpdateStatus(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		badRequest(c, "missing required field: status")
		return
	}
	out, err := h.experiments.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	ok(c, out)
}

func (h *ExperimentHandler) Assign(c *gin.Context) {
	id, valid := pathID(c)
	if !valid {
		return
	}
	var req experiments.AssignInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.experiments.Assign(c.Request.Context(), id, req); err != nil {
		fail(c, h.log, err)
		return
	}
	created(c, gin.H{"test_id": id, "feedback_id": req.FeedbackID})
}
