package storage

import (
	"context"
	"errors"

	"property-valuation/models"
)

var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrNoFitReport      = errors.New("no fit report stored")
)

// PropertyStore is the interface any property backend must satisfy.
type PropertyStore interface {
	// FetchRawProperties returns every property that finished extraction.
	// Records that fail to decode are skipped, not returned as errors.
	FetchRawProperties(ctx context.Context) ([]*models.RawProperty, error)
	FetchRawProperty(ctx context.Context, id string) (*models.RawProperty, error)
	SaveFitReport(ctx context.Context, report *models.FitReport) error
	LatestFitReport(ctx context.Context) (*models.FitReport, error)
	Close() error
}

// ComparableWriter persists scraped comparable sales.
type ComparableWriter interface {
	WriteComparables(ctx context.Context, comps []*models.ScrapedComparable) error
	FetchCompsTargets(ctx context.Context) ([]models.CompsTarget, error)
}

// RawComparableWriter is the interface for persisting unprocessed scraped data.
type RawComparableWriter interface {
	WriteRaw(comps []*models.ScrapedComparable) error
	Close() error
}
