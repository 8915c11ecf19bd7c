package models

import (
	"math"
	"time"
)

// ModelType names a regression algorithm the trainer can fit.
type ModelType string

const (
	ModelLinear       ModelType = "linear"
	ModelRidge        ModelType = "ridge"
	ModelRandomForest ModelType = "random_forest"
)

// ModelTypes lists the supported algorithms in display order.
var ModelTypes = []ModelType{ModelRidge, ModelLinear, ModelRandomForest}

// IsValid reports whether t is a supported algorithm.
func (t ModelType) IsValid() bool {
	for _, v := range ModelTypes {
		if t == v {
			return true
		}
	}
	return false
}

// IsLinear reports whether the model exposes coefficients.
func (t ModelType) IsLinear() bool {
	return t == ModelLinear || t == ModelRidge
}

// FeatureRecord is one property flattened into the fixed numeric shape the
// regression consumes. Records are value objects and are never modified after
// normalization.
type FeatureRecord struct {
	PropertyID string `json:"property_id"`

	Bedrooms  int     `json:"bedrooms"`
	Bathrooms float64 `json:"bathrooms"`
	TotalSqft int     `json:"total_sqft"`

	RoomCount        int     `json:"room_count"`
	AvgRoomSqft      float64 `json:"avg_room_sqft"`
	LargestRoomSqft  float64 `json:"largest_room_sqft"`
	SmallestRoomSqft float64 `json:"smallest_room_sqft"`

	HasGarage    bool `json:"has_garage"`
	HasFireplace bool `json:"has_fireplace"`
	HasBalcony   bool `json:"has_balcony"`
	HasClosets   bool `json:"has_closets"`
	NumDoors     int  `json:"num_doors"`
	NumWindows   int  `json:"num_windows"`

	// SalePrice is a known or proxy price; nil for inference-only records.
	SalePrice *float64 `json:"sale_price"`

	QualityScore int     `json:"quality_score"`
	Confidence   float64 `json:"confidence"`
}

// HasPrice reports whether the record carries a usable training target.
func (r *FeatureRecord) HasPrice() bool {
	return r.SalePrice != nil && *r.SalePrice > 0
}

// FitReport summarizes one training run.
type FitReport struct {
	RunID     string    `json:"run_id"`
	ModelType ModelType `json:"model_type"`

	R2       float64   `json:"r2_score"`
	MAE      float64   `json:"mae"`
	RMSE     float64   `json:"rmse"`
	CVScores []float64 `json:"cross_val_scores"`

	// FeatureImportance sums to 1.
	FeatureImportance map[string]float64 `json:"feature_importance"`

	// Coefficients and Intercept are in standardized feature space and are
	// only present for linear and ridge models.
	Coefficients map[string]float64 `json:"coefficients,omitempty"`
	Intercept    *float64           `json:"intercept,omitempty"`

	Predictions map[string]float64 `json:"predictions"`

	NumRecords int       `json:"num_records"`
	NumPriced  int       `json:"num_priced"`
	TrainedAt  time.Time `json:"trained_at"`
}

// MeanCVScore averages the cross-validation R² scores.
func (r *FitReport) MeanCVScore() float64 {
	if len(r.CVScores) == 0 {
		return 0
	}
	var total float64
	for _, s := range r.CVScores {
		total += s
	}
	return total / float64(len(r.CVScores))
}

// Summary is the rounded view handed to API clients.
func (r *FitReport) Summary() map[string]any {
	importance := make(map[string]float64, len(r.FeatureImportance))
	for k, v := range r.FeatureImportance {
		importance[k] = roundTo(v, 4)
	}
	coefficients := make(map[string]float64, len(r.Coefficients))
	for k, v := range r.Coefficients {
		coefficients[k] = roundTo(v, 2)
	}
	var intercept float64
	if r.Intercept != nil {
		intercept = roundTo(*r.Intercept, 2)
	}

	return map[string]any{
		"run_id":             r.RunID,
		"model_type":         r.ModelType,
		"r2_score":           roundTo(r.R2, 4),
		"mae":                roundTo(r.MAE, 2),
		"rmse":               roundTo(r.RMSE, 2),
		"mean_cv_score":      roundTo(r.MeanCVScore(), 4),
		"feature_importance": importance,
		"coefficients":       coefficients,
		"intercept":          intercept,
		"num_predictions":    len(r.Predictions),
		"num_properties":     r.NumRecords,
		"trained_at":         r.TrainedAt,
	}
}

// ComparisonReport explains the predicted price gap between two properties.
//
// The four impacts are fixed-weight heuristics computed independently of the
// model, so they do not in general add up to PredictedPriceDiff.
// AttributionReconciled is always false to make that explicit to callers.
type ComparisonReport struct {
	PropertyAID string `json:"property_a_id"`
	PropertyBID string `json:"property_b_id"`

	BedroomDiff  int     `json:"bedroom_diff"`
	BathroomDiff float64 `json:"bathroom_diff"`
	SqftDiff     int     `json:"sqft_diff"`

	PredictedPriceDiff float64 `json:"predicted_price_diff"`
	PricePerSqftDiff   float64 `json:"price_per_sqft_diff"`

	SqftImpact     float64 `json:"sqft_impact"`
	BedroomImpact  float64 `json:"bedroom_impact"`
	BathroomImpact float64 `json:"bathroom_impact"`
	AmenityImpact  float64 `json:"amenity_impact"`

	AttributionReconciled bool `json:"attribution_reconciled"`

	Summary        string `json:"comparison_summary"`
	Recommendation string `json:"recommendation"`
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
