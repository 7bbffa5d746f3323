// Package counter implements sequence allocation and the policy binding it
// to the document lifecycle.
package counter

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"autoinc/internal/core/apperror"
	"autoinc/internal/core/sequence"
	"autoinc/pkg/logger"
)

var tracer = otel.Tracer("autoinc/counter")

// Allocation outcomes reported to the Recorder.
const (
	OutcomeOK                 = "ok"
	OutcomeUnavailable        = "unavailable"
	OutcomeInvariantViolation = "invariant_violation"
)

// Recorder receives allocation telemetry.
type Recorder interface {
	ObserveAllocation(outcome string, elapsed time.Duration)
	ObserveAssignment(model, counter, mode string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAllocation(string, time.Duration)  {}
func (nopRecorder) ObserveAssignment(string, string, string) {}

// Allocator hands out the next value of a counter.
//
// It keeps no state between calls: every allocation is one atomic round trip
// to the store, so allocators in different processes can share a store.
type Allocator struct {
	store    sequence.Store
	recorder Recorder
	log      *logger.Logger
	timeout  time.Duration
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithRecorder sets the telemetry sink.
func WithRecorder(r Recorder) AllocatorOption {
	return func(a *Allocator) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *logger.Logger) AllocatorOption {
	return func(a *Allocator) {
		if l != nil {
			a.log = l
		}
	}
}

// WithTimeout bounds each store round trip. Zero means no bound beyond the
// caller's context.
func WithTimeout(d time.Duration) AllocatorOption {
	return func(a *Allocator) {
		a.timeout = d
	}
}

// NewAllocator creates an allocator over store.
func NewAllocator(store sequence.Store, opts ...AllocatorOption) *Allocator {
	a := &Allocator{
		store:    store,
		recorder: nopRecorder{},
		log:      logger.Default().WithComponent("allocator"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Next atomically advances counterID and returns the new value.
//
// The first call for an unknown counter returns 1. Errors are
// STORAGE_UNAVAILABLE (the store could not complete; the increment may or may
// not have been committed) or STORAGE_INVARIANT_VIOLATION (the store returned
// a value that cannot follow a valid previous one). Nothing is retried here.
func (a *Allocator) Next(ctx context.Context, counterID string) (int64, error) {
	if a == nil || a.store == nil {
		return 0, apperror.NewInternal(fmt.Errorf("allocator is not initialized"))
	}

	ctx, span := tracer.Start(ctx, "sequence.next",
		trace.WithAttributes(attribute.String("counter.id", counterID)))
	defer span.End()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	value, err := a.store.FindAndIncrement(ctx, counterID)
	if err == nil && value < 1 {
		// An increment result below 1 means the stored value was negative.
		err = apperror.NewStorageInvariantViolation(counterID, "counter store returned a non-positive value").
			WithDetail("value", value)
	}
	if err != nil {
		err = classify(counterID, err)
		outcome := OutcomeUnavailable
		if apperror.IsStorageInvariantViolation(err) {
			outcome = OutcomeInvariantViolation
			a.log.WithContext(ctx).Errorw("counter invariant violated", "counter_id", counterID, "error", err)
		} else {
			a.log.WithContext(ctx).Warnw("counter allocation failed", "counter_id", counterID, "error", err)
		}
		a.recorder.ObserveAllocation(outcome, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return 0, err
	}

	a.recorder.ObserveAllocation(OutcomeOK, time.Since(start))
	span.SetAttributes(attribute.Int64("counter.value", value))
	return value, nil
}

// classify maps store errors onto the allocation error taxonomy.
// Anything the store did not classify itself is treated as unavailability.
func classify(counterID string, err error) error {
	if apperror.IsStorageInvariantViolation(err) || apperror.IsStorageUnavailable(err) {
		return err
	}
	return apperror.NewStorageUnavailable(counterID, err)
}
