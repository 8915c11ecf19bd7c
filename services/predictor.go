package services

import (
	"math"

	"property-valuation/models"
	"property-valuation/regression"
)

// PredictPrice estimates the price of rec with tm. It reports false when
// either is missing; an untrained state is expected, not an error.
func PredictPrice(tm *TrainedModel, rec *models.FeatureRecord) (float64, bool) {
	if tm == nil || rec == nil {
		return 0, false
	}
	x := tm.scaler.TransformRow(tm.featureVector(rec))
	p := tm.estimator.Predict(x)
	if math.IsNaN(p) {
		return 0, false
	}
	return math.Max(0, p), true
}

// CalculateSqftImpact returns the predicted dollars per additional square
// foot. The total_sqft coefficient is fitted on standardized features, so it
// is divided by that column's standard deviation. Tree models have no
// coefficient and report false.
func CalculateSqftImpact(tm *TrainedModel) (float64, bool) {
	if tm == nil || !tm.modelType.IsLinear() {
		return 0, false
	}
	cm, ok := tm.estimator.(regression.CoefficientModel)
	if !ok {
		return 0, false
	}

	i := tm.featureIndex("total_sqft")
	if i < 0 {
		return 0, false
	}
	return cm.Coefficients()[i] / tm.scaler.Scale()[i], true
}

// ConfidenceBucket maps a measurement confidence to high, medium or low.
func ConfidenceBucket(confidence float64) string {
	switch {
	case confidence >= 0.9:
		return "high"
	case confidence >= 0.7:
		return "medium"
	default:
		return "low"
	}
}

// PricePerSqft is 0 when sqft is not positive.
func PricePerSqft(price float64, sqft int) float64 {
	if sqft <= 0 {
		return 0
	}
	return price / float64(sqft)
}

// Round2 rounds to cents, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
