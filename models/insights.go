package models

// FeatureWeight is one feature's share of the model's importance.
type FeatureWeight struct {
	Name   string
	Weight float64
}

// ValuationInsights holds the computed analytics over a normalized batch and
// the model trained on it.
type ValuationInsights struct {
	TotalProperties      int
	PricedProperties     int
	AveragePrice         float64
	MinPrice             float64
	MaxPrice             float64
	AveragePricePerSqft  float64
	MostExpensive        *FeatureRecord
	TopFeatures          []FeatureWeight
	PropertiesByBedrooms map[int]int

	// Fit and SqftImpact are nil when no model was trained.
	Fit        *FitReport
	SqftImpact *float64
}
