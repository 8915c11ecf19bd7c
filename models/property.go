package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedRecord marks upstream data that does not fit the raw schema.
var ErrMalformedRecord = errors.New("malformed property record")

// RawProperty is one property as assembled from storage: the AI-extracted
// listing data, the floor plan measurements and any comparable sales.
type RawProperty struct {
	PropertyID                string           `json:"property_id"`
	ExtractedData             ExtractedData    `json:"extracted_data"`
	TotalSquareFeet           Flex             `json:"total_square_feet"`
	QualityScore              Flex             `json:"quality_score"`
	TotalSquareFeetConfidence Flex             `json:"total_square_feet_confidence"`
	Rooms                     []MeasuredRoom   `json:"rooms"`
	DetectedFeatures          DetectedFeatures `json:"detected_features"`
	Comparables               []Comparable     `json:"comparables"`
}

// ExtractedData is the listing summary produced by the extraction agents.
type ExtractedData struct {
	Bedrooms        Flex            `json:"bedrooms"`
	Bathrooms       Flex            `json:"bathrooms"`
	Rooms           []ExtractedRoom `json:"rooms"`
	TotalSquareFeet Flex            `json:"total_square_feet"`
	SquareFootage   Flex            `json:"square_footage"`
	SquareFeet      Flex            `json:"square_feet"`
	MarketInsights  *MarketInsights `json:"market_insights,omitempty"`
}

type MarketInsights struct {
	ComparableProperties []Comparable  `json:"comparable_properties"`
	PriceEstimate        *PriceEstimate `json:"price_estimate,omitempty"`
}

// PriceEstimate is an AVM value supplied by an external provider.
type PriceEstimate struct {
	EstimatedValue Flex `json:"estimated_value"`
}

// Comparable is one recent sale used as a price reference. Providers disagree
// on the price key, so all three are kept.
type Comparable struct {
	SalePrice     Flex   `json:"sale_price"`
	LastSalePrice Flex   `json:"last_sale_price"`
	Price         Flex   `json:"price"`
	Address       string `json:"address,omitempty"`
	URL           string `json:"url,omitempty"`
}

type ExtractedRoom struct {
	Type     string   `json:"type"`
	Features []string `json:"features"`
}

// MeasuredRoom is a room from the floor plan measurement pass.
type MeasuredRoom struct {
	Name string `json:"name"`
	Sqft Flex   `json:"sqft"`
}

type DetectedFeatures struct {
	Totals FeatureTotals `json:"totals"`
}

type FeatureTotals struct {
	Doors   Flex `json:"doors"`
	Windows Flex `json:"windows"`
	Closets Flex `json:"closets"`
}

// DecodeRawProperty decodes one raw record. It is the single boundary where
// wrongly-shaped upstream JSON is rejected.
func DecodeRawProperty(data []byte) (*RawProperty, error) {
	var raw RawProperty
	if err := json.Unmarshal(data, &raw); err != nil {
		if errors.Is(err, ErrMalformedRecord) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return &raw, nil
}

// CompsTarget is a property whose comparable sales should be scraped from a
// search results page.
type CompsTarget struct {
	PropertyID string
	SearchURL  string
}

// ScrapedComparable holds one unprocessed comparable sale straight from the
// browser. The price stays a raw string until normalization.
type ScrapedComparable struct {
	PropertyID string
	Address    string
	RawPrice   string
	SoldDate   string
	URL        string
	ScrapedAt  time.Time
}
