package services

import (
	"context"
	"fmt"

	"property-valuation/models"
	"property-valuation/storage"
	"property-valuation/utils"
)

// ValuationService connects the property store to the valuation core and
// publishes each successful fit to the registry.
type ValuationService struct {
	store      storage.PropertyStore
	normalizer *Normalizer
	trainer    *Trainer
	registry   *ModelRegistry
	logger     *utils.Logger
}

func NewValuationService(store storage.PropertyStore, trainer *Trainer, registry *ModelRegistry, logger *utils.Logger) *ValuationService {
	return &ValuationService{
		store:      store,
		normalizer: NewNormalizer(logger),
		trainer:    trainer,
		registry:   registry,
		logger:     logger,
	}
}

func (s *ValuationService) Registry() *ModelRegistry { return s.registry }

// LoadRecords fetches and normalizes every stored property.
func (s *ValuationService) LoadRecords(ctx context.Context) ([]*models.FeatureRecord, error) {
	raw, err := s.store.FetchRawProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("valuation: load records: %w", err)
	}
	return s.normalizer.NormalizeAll(raw), nil
}

// LoadRecord fetches and normalizes one property. The record is nil, with a
// nil error, when the property exists but has no usable square footage.
func (s *ValuationService) LoadRecord(ctx context.Context, id string) (*models.FeatureRecord, error) {
	raw, err := s.store.FetchRawProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Normalize(raw), nil
}

// Train fits modelType on all stored properties, publishes the snapshot and
// saves its report. Fitting runs on its own goroutine so ctx bounds the wait;
// a fit that finishes after ctx is done is discarded.
func (s *ValuationService) Train(ctx context.Context, modelType models.ModelType, minProperties int) (*ModelSnapshot, []*models.FeatureRecord, error) {
	if !modelType.IsValid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownModelType, modelType)
	}

	records, err := s.LoadRecords(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(records) < minProperties {
		return nil, records, fmt.Errorf("%w: %d usable properties, need %d", ErrInsufficientData, len(records), minProperties)
	}

	type result struct {
		tm     *TrainedModel
		report *models.FitReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		tm, report, err := s.trainer.Train(records, modelType)
		done <- result{tm, report, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		s.logger.Warn("[valuation] Training %s abandoned: %v", modelType, ctx.Err())
		return nil, records, fmt.Errorf("valuation: train: %w", ctx.Err())
	}
	if res.err != nil {
		return nil, records, res.err
	}

	s.registry.Swap(res.tm, res.report)
	if err := s.store.SaveFitReport(ctx, res.report); err != nil {
		s.logger.Error("[valuation] Could not save fit report %s: %v", res.report.RunID, err)
	}
	return &ModelSnapshot{Model: res.tm, Report: res.report}, records, nil
}

// LatestReport returns the in-memory report, falling back to the last one
// stored.
func (s *ValuationService) LatestReport(ctx context.Context) (*models.FitReport, error) {
	if snap := s.registry.Current(); snap != nil {
		return snap.Report, nil
	}
	return s.store.LatestFitReport(ctx)
}
