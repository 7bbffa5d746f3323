package dto

import (
	"autoinc/internal/core/sequence"
)

// CounterResponse is the state of one counter.
type CounterResponse struct {
	CounterID string `json:"counterId"`
	Value     int64  `json:"value"`
}

// FromRecord creates CounterResponse from a store record.
func FromRecord(r sequence.Record) CounterResponse {
	return CounterResponse{CounterID: r.CounterID, Value: r.SequenceValue}
}

// ListCountersQuery filters the counter listing.
type ListCountersQuery struct {
	Prefix string `form:"prefix"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// NextCounterRequest allocates the next value of a counter.
type NextCounterRequest struct {
	CounterID string `json:"counterId" binding:"required"`
}

// RaiseCounterRequest moves a counter forward to at least Value.
type RaiseCounterRequest struct {
	CounterID string `json:"counterId" binding:"required"`
	Value     *int64 `json:"value" binding:"required,min=0"`
}

// KeyRequest carries the field snapshot a counter id is derived from.
type KeyRequest struct {
	Fields map[string]any `json:"fields"`
}

// KeyResponse is a derived counter id.
type KeyResponse struct {
	Model     string `json:"model"`
	Counter   string `json:"counter"`
	CounterID string `json:"counterId"`
}
