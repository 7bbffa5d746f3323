package handlers

import (
	"github.com/gin-gonic/gin"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/entity"
	"autoinc/internal/core/id"
	"autoinc/internal/domain"
	"autoinc/internal/infrastructure/http/v1/dto"
	"autoinc/internal/metadata"
)

// EntityHandler saves documents of the registered models.
type EntityHandler struct {
	*BaseHandler
	service *domain.EntityService
	models  *metadata.Registry
}

// NewEntityHandler creates a new entity handler.
func NewEntityHandler(base *BaseHandler, service *domain.EntityService, models *metadata.Registry) *EntityHandler {
	return &EntityHandler{BaseHandler: base, service: service, models: models}
}

// Create stores a new document; bound counters fill their fields.
// POST /api/v1/entities/:model
func (h *EntityHandler) Create(c *gin.Context) {
	schema, err := schemaOf(h.models, c.Param("model"))
	if err != nil {
		h.Error(c, err)
		return
	}

	var req dto.CreateEntityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := entity.NewMapDocument(schema, req.Fields)
	if err != nil {
		h.Error(c, err)
		return
	}
	if err := h.service.Create(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromEntity(doc))
}

// Get returns a stored document.
// GET /api/v1/entities/:model/:key
func (h *EntityHandler) Get(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}
	h.OK(c, dto.FromEntity(doc))
}

// Update changes fields of a stored document. Counters are not advanced and
// read-only fields, counter fields included, cannot be written.
// PUT /api/v1/entities/:model/:key
func (h *EntityHandler) Update(c *gin.Context) {
	var req dto.UpdateEntityRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, ok := h.load(c)
	if !ok {
		return
	}
	if doc.Version() != req.Version {
		h.Error(c, apperror.NewConcurrentModification(doc.Model(), doc.Key().String()).
			WithDetail("expected_version", req.Version).
			WithDetail("actual_version", doc.Version()))
		return
	}
	def, _ := h.models.Get(doc.Model())
	for name, value := range req.Fields {
		if def.IsReadOnly(name) {
			h.Error(c, apperror.NewValidation("field is read-only").
				WithDetail("model", doc.Model()).
				WithDetail("field", name))
			return
		}
		if err := doc.Set(name, value); err != nil {
			h.Error(c, err)
			return
		}
	}

	if err := h.service.Update(c.Request.Context(), doc); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromEntity(doc))
}

// SetNext allocates the next value of a counter into a stored document.
// POST /api/v1/entities/:model/:key/next/:counter
func (h *EntityHandler) SetNext(c *gin.Context) {
	doc, ok := h.load(c)
	if !ok {
		return
	}

	out, err := h.service.SetNext(c.Request.Context(), doc, c.Param("counter"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromEntity(out))
}

// Key derives the counter id a document with the given fields would use.
// POST /api/v1/keys/:model/:counter
func (h *EntityHandler) Key(c *gin.Context) {
	schema, err := schemaOf(h.models, c.Param("model"))
	if err != nil {
		h.Error(c, err)
		return
	}

	var req dto.KeyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	counters := h.service.Counters()
	if counters == nil {
		h.Error(c, apperror.NewConfiguration("no counters are registered"))
		return
	}
	binder, err := counters.Lookup(schema.Model, c.Param("counter"))
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := entity.NewMapDocument(schema, req.Fields)
	if err != nil {
		h.Error(c, err)
		return
	}
	key, err := binder.Key(doc)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.KeyResponse{
		Model:     schema.Model,
		Counter:   binder.CounterName(),
		CounterID: key,
	})
}

func (h *EntityHandler) load(c *gin.Context) (*entity.MapDocument, bool) {
	schema, err := schemaOf(h.models, c.Param("model"))
	if err != nil {
		h.Error(c, err)
		return nil, false
	}

	key, err := id.Parse(c.Param("key"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid document key").WithDetail("key", c.Param("key")))
		return nil, false
	}

	doc, err := h.service.Get(c.Request.Context(), schema, key)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	return doc, true
}
