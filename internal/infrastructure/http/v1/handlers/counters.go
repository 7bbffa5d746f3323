package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/sequence"
	"autoinc/internal/domain/counter"
	"autoinc/internal/infrastructure/http/v1/dto"
)

// CounterHandler exposes counter inspection and administration.
type CounterHandler struct {
	*BaseHandler
	store     sequence.Inspector
	allocator *counter.Allocator
}

// NewCounterHandler creates a new counter handler.
func NewCounterHandler(base *BaseHandler, store sequence.Inspector, allocator *counter.Allocator) *CounterHandler {
	return &CounterHandler{BaseHandler: base, store: store, allocator: allocator}
}

// List returns counters whose id starts with a prefix.
// GET /api/v1/counters?prefix=&limit=
func (h *CounterHandler) List(c *gin.Context) {
	var q dto.ListCountersQuery
	if !h.BindQuery(c, &q) {
		return
	}

	records, err := h.store.List(c.Request.Context(), q.Prefix, q.Limit)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.CounterResponse, 0, len(records))
	for _, r := range records {
		items = append(items, dto.FromRecord(r))
	}
	h.OK(c, dto.NewListResponse(items))
}

// Get returns the current value of a counter without advancing it.
// GET /api/v1/counters/*id
func (h *CounterHandler) Get(c *gin.Context) {
	counterID := strings.TrimPrefix(c.Param("id"), "/")
	if counterID == "" {
		h.Error(c, apperror.NewValidation("counter id is required"))
		return
	}

	record, err := h.store.Get(c.Request.Context(), counterID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromRecord(record))
}

// Next allocates the next value of a counter.
// POST /api/v1/counters/next
func (h *CounterHandler) Next(c *gin.Context) {
	var req dto.NextCounterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	value, err := h.allocator.Next(c.Request.Context(), req.CounterID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CounterResponse{CounterID: req.CounterID, Value: value})
}

// Raise moves a counter forward so the next allocation exceeds value.
// POST /api/v1/counters/raise
func (h *CounterHandler) Raise(c *gin.Context) {
	var req dto.RaiseCounterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	value, err := h.store.Raise(c.Request.Context(), req.CounterID, *req.Value)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CounterResponse{CounterID: req.CounterID, Value: value})
}
