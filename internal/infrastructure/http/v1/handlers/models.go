package handlers

import (
	"github.com/gin-gonic/gin"

	"autoinc/internal/core/apperror"
	"autoinc/internal/infrastructure/http/v1/dto"
	"autoinc/internal/metadata"
)

// ModelHandler lists the registered models and their counters.
type ModelHandler struct {
	*BaseHandler
	registry *metadata.Registry
}

// NewModelHandler creates a new model handler.
func NewModelHandler(base *BaseHandler, registry *metadata.Registry) *ModelHandler {
	return &ModelHandler{BaseHandler: base, registry: registry}
}

// List returns every model definition.
// GET /api/v1/models
func (h *ModelHandler) List(c *gin.Context) {
	h.OK(c, dto.NewListResponse(h.registry.List()))
}

// Get returns one model definition.
// GET /api/v1/models/:name
func (h *ModelHandler) Get(c *gin.Context) {
	def, ok := h.registry.Get(c.Param("name"))
	if !ok {
		h.Error(c, apperror.NewNotFound("model", c.Param("name")))
		return
	}
	h.OK(c, def)
}
