package services

import (
	"sort"
	"strings"

	"property-valuation/models"
	"property-valuation/utils"
)

var amenityTokens = struct {
	garage, fireplace, balcony string
}{"garage", "fireplace", "balcony"}

// Normalizer flattens RawProperty records into FeatureRecords.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// NormalizeAll normalizes every record and drops the unusable ones.
func (n *Normalizer) NormalizeAll(raw []*models.RawProperty) []*models.FeatureRecord {
	result := make([]*models.FeatureRecord, 0, len(raw))
	priced := 0

	for _, r := range raw {
		rec := n.Normalize(r)
		if rec == nil {
			continue
		}
		if rec.HasPrice() {
			priced++
		}
		result = append(result, rec)
	}

	n.logger.Info("[normalizer] Normalized %d → %d records (dropped %d, %d priced)",
		len(raw), len(result), len(raw)-len(result), priced)
	return result
}

// Normalize returns nil when the record has no usable square footage.
func (n *Normalizer) Normalize(raw *models.RawProperty) *models.FeatureRecord {
	if raw == nil {
		return nil
	}

	sqft := resolveSqft(raw)
	if sqft <= 0 {
		n.logger.Warn("[normalizer] Dropping %s: no usable total square footage", raw.PropertyID)
		return nil
	}

	ed := raw.ExtractedData
	rec := &models.FeatureRecord{
		PropertyID:   raw.PropertyID,
		Bedrooms:     ed.Bedrooms.Int(),
		Bathrooms:    ed.Bathrooms.FloatOr(0),
		TotalSqft:    sqft,
		HasClosets:   raw.DetectedFeatures.Totals.Closets.Int() > 0,
		NumDoors:     raw.DetectedFeatures.Totals.Doors.Int(),
		NumWindows:   raw.DetectedFeatures.Totals.Windows.Int(),
		QualityScore: raw.QualityScore.Int(),
		Confidence:   raw.TotalSquareFeetConfidence.FloatOr(0),
	}

	sizes := roomSizes(raw.Rooms)
	rec.RoomCount = len(sizes)
	if len(sizes) > 0 {
		var total float64
		for _, s := range sizes {
			total += s
		}
		rec.AvgRoomSqft = total / float64(len(sizes))
		rec.SmallestRoomSqft = sizes[0]
		rec.LargestRoomSqft = sizes[len(sizes)-1]
	}

	for _, room := range ed.Rooms {
		rec.HasGarage = rec.HasGarage || roomMentions(room, amenityTokens.garage)
		rec.HasFireplace = rec.HasFireplace || roomMentions(room, amenityTokens.fireplace)
		rec.HasBalcony = rec.HasBalcony || roomMentions(room, amenityTokens.balcony)
	}

	if price, ok := resolvePrice(raw); ok {
		rec.SalePrice = &price
	} else {
		n.logger.Debug("[normalizer] %s has no price; inference only", raw.PropertyID)
	}

	return rec
}

// resolveSqft walks the square footage fallbacks and returns the first
// positive value.
func resolveSqft(raw *models.RawProperty) int {
	candidates := []models.Flex{
		raw.TotalSquareFeet,
		raw.ExtractedData.TotalSquareFeet,
		raw.ExtractedData.SquareFootage,
		raw.ExtractedData.SquareFeet,
	}
	for _, c := range candidates {
		if v := c.Int(); v > 0 {
			return v
		}
	}
	return 0
}

// roomSizes returns the positive measured room areas in ascending order.
func roomSizes(rooms []models.MeasuredRoom) []float64 {
	sizes := make([]float64, 0, len(rooms))
	for _, r := range rooms {
		if v, ok := r.Sqft.Float(); ok && v > 0 {
			sizes = append(sizes, v)
		}
	}
	sort.Float64s(sizes)
	return sizes
}

func roomMentions(room models.ExtractedRoom, token string) bool {
	if strings.Contains(strings.ToLower(room.Type), token) {
		return true
	}
	for _, f := range room.Features {
		if strings.Contains(strings.ToLower(f), token) {
			return true
		}
	}
	return false
}

// resolvePrice prefers the median of comparable sales, then the AVM estimate.
func resolvePrice(raw *models.RawProperty) (float64, bool) {
	comps := raw.Comparables
	mi := raw.ExtractedData.MarketInsights
	if len(comps) == 0 && mi != nil {
		comps = mi.ComparableProperties
	}

	prices := make([]float64, 0, len(comps))
	for _, c := range comps {
		if p, ok := comparablePrice(c); ok {
			prices = append(prices, p)
		}
	}
	if len(prices) > 0 {
		return median(prices), true
	}

	if mi != nil && mi.PriceEstimate != nil {
		if v, ok := mi.PriceEstimate.EstimatedValue.Money(); ok && v > 0 {
			return v, true
		}
	}
	return 0, false
}

// comparablePrice takes the first present key of sale_price, last_sale_price
// and price. A present but unparseable or non-positive value discards the comp.
func comparablePrice(c models.Comparable) (float64, bool) {
	for _, f := range []models.Flex{c.SalePrice, c.LastSalePrice, c.Price} {
		if !f.IsSet() {
			continue
		}
		v, ok := f.Money()
		return v, ok && v > 0
	}
	return 0, false
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
