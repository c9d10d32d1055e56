// Package draft exposes the draft admin surface used by support tooling.
package draft

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/careloop/draft-api/internal/draftstore"
	"github.com/careloop/draft-api/internal/handler"
)

type Handler struct {
	store draftstore.Store
}

func NewHandler(store draftstore.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	drafts := r.Group("/drafts")
	{
		drafts.GET("", h.ListDrafts)
		drafts.GET("/:ownerId", h.GetDraft)
		drafts.DELETE("/:ownerId", h.DeleteDraft)
		drafts.POST("/cleanup", h.Cleanup)
	}
}

func (h *Handler) ListDrafts(c *gin.Context) {
	drafts := h.store.ListDrafts(c.Request.Context())
	c.JSON(http.StatusOK, handler.NewSuccessResponse(drafts))
}

func (h *Handler) GetDraft(c *gin.Context) {
	draft := h.store.GetDraft(c.Request.Context(), c.Param("ownerId"))
	if draft == nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("draft not found"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(draft))
}

func (h *Handler) DeleteDraft(c *gin.Context) {
	if ok := h.store.DeleteDraft(c.Request.Context(), c.Param("ownerId")); !ok {
		c.JSON(http.StatusInternalServerError, handler.NewErrorResponse("draft delete failed"))
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(nil))
}

func (h *Handler) Cleanup(c *gin.Context) {
	maxAgeDays := draftstore.DefaultMaxAgeDays
	if raw := c.Query("max_age_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid max_age_days"))
			return
		}
		maxAgeDays = parsed
	}

	deleted := h.store.Cleanup(c.Request.Context(), maxAgeDays)
	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deleted": deleted}))
}
