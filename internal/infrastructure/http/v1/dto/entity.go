package dto

import (
	"autoinc/internal/core/entity"
)

// CreateEntityRequest for creating documents.
type CreateEntityRequest struct {
	Fields map[string]any `json:"fields"`
}

// UpdateEntityRequest for updating documents. Only listed fields change.
type UpdateEntityRequest struct {
	Fields  map[string]any `json:"fields"`
	Version int            `json:"version" binding:"required,min=1"`
}

// EntityResponse contains document fields.
type EntityResponse struct {
	Key     string        `json:"key"`
	Model   string        `json:"model"`
	Version int           `json:"version"`
	Fields  entity.Fields `json:"fields"`
}

// FromEntity creates EntityResponse from a persisted document.
func FromEntity(doc entity.Persistent) EntityResponse {
	return EntityResponse{
		Key:     doc.Key().String(),
		Model:   doc.Model(),
		Version: doc.Version(),
		Fields:  doc.Values(),
	}
}
