package session

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/careloop/draft-api/internal/handler"
	"github.com/careloop/draft-api/internal/model"
	"github.com/careloop/draft-api/internal/session"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 -]{5,14}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(fl.Field().String())
		})
	}
}

type Handler struct {
	registry *session.Registry
}

func NewHandler(registry *session.Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/sessions")
	{
		sessions.POST("", h.InitializeSession)
		sessions.POST("/:id/changes", h.RecordChange)
		sessions.POST("/:id/commit-basic", h.CommitBasicSection)
		sessions.POST("/:id/sections/:section/saved", h.MarkSectionSaved)
		sessions.DELETE("/:id", h.TeardownSession)
	}
}

func (h *Handler) InitializeSession(c *gin.Context) {
	var req model.InitializeSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	s := h.registry.Create(session.Options{
		PatientID:      req.PatientID,
		Prefill:        req.Prefill,
		AllowEphemeral: req.AllowEphemeral,
	})
	resp := s.Initialize(c.Request.Context())

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(resp))
}

func (h *Handler) RecordChange(c *gin.Context) {
	s := h.registry.Get(c.Param("id"))
	if s == nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("session not found"))
		return
	}

	var req model.RecordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	if err := s.RecordChange(&req.Update); err != nil {
		c.JSON(http.StatusConflict, handler.NewErrorResponse(err.Error()))
		return
	}

	// the write itself is deferred to the autosave pipeline
	c.JSON(http.StatusAccepted, handler.NewSuccessResponse(gin.H{"identity": s.Identity()}))
}

func (h *Handler) CommitBasicSection(c *gin.Context) {
	s := h.registry.Get(c.Param("id"))
	if s == nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("session not found"))
		return
	}

	var req model.CommitBasicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	ident, err := s.CommitBasicSection(c.Request.Context(), &req)
	if err != nil {
		// remote commit failures are the one error class users see
		c.JSON(http.StatusBadGateway, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(&model.CommitBasicResponse{Identity: ident}))
}

func (h *Handler) MarkSectionSaved(c *gin.Context) {
	s := h.registry.Get(c.Param("id"))
	if s == nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("session not found"))
		return
	}

	section := c.Param("section")
	switch section {
	case model.SectionBasic, model.SectionClinical, model.SectionMedications, model.SectionDiagnosis, model.SectionReports:
	default:
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("unknown section"))
		return
	}

	s.MarkSectionSaved(c.Request.Context(), section)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"section": section}))
}

func (h *Handler) TeardownSession(c *gin.Context) {
	h.registry.Remove(c.Param("id"))
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}
