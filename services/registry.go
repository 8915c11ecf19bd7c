package services

import (
	"sync/atomic"

	"property-valuation/models"
)

// ModelSnapshot pairs a trained model with the report of the run that
// produced it.
type ModelSnapshot struct {
	Model  *TrainedModel
	Report *models.FitReport
}

// ModelRegistry publishes the most recent snapshot to concurrent readers.
// Snapshots are replaced whole and never modified, so readers need no lock.
type ModelRegistry struct {
	current atomic.Pointer[ModelSnapshot]
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{}
}

// Swap publishes a new snapshot and returns the previous one, if any.
func (r *ModelRegistry) Swap(tm *TrainedModel, report *models.FitReport) *ModelSnapshot {
	return r.current.Swap(&ModelSnapshot{Model: tm, Report: report})
}

// Current returns the latest snapshot, or nil before the first training run.
func (r *ModelRegistry) Current() *ModelSnapshot {
	return r.current.Load()
}

// Model returns the latest trained model, or nil.
func (r *ModelRegistry) Model() *TrainedModel {
	if s := r.current.Load(); s != nil {
		return s.Model
	}
	return nil
}
