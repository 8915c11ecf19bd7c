package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"property-valuation/models"
)

// Heuristic dollar weights for the comparison breakdown. They are applied
// independently of the trained model.
const (
	bedroomWeight   = 15000.0
	bathroomWeight  = 10000.0
	garageWeight    = 20000.0
	fireplaceWeight = 5000.0
	balconyWeight   = 3000.0

	similarPriceThreshold   = 10000.0
	pricePerSqftThreshold   = 20.0
	similarPropertiesPhrase = "Properties are similar in size and features"
)

// Compare explains the predicted price gap between a and b. It never fails:
// a property that cannot be predicted counts as 0.
func Compare(tm *TrainedModel, a, b *models.FeatureRecord) *models.ComparisonReport {
	if a == nil {
		a = &models.FeatureRecord{}
	}
	if b == nil {
		b = &models.FeatureRecord{}
	}
	priceA, _ := PredictPrice(tm, a)
	priceB, _ := PredictPrice(tm, b)
	priceDiff := priceA - priceB

	r := &models.ComparisonReport{
		PropertyAID:        a.PropertyID,
		PropertyBID:        b.PropertyID,
		BedroomDiff:        a.Bedrooms - b.Bedrooms,
		BathroomDiff:       a.Bathrooms - b.Bathrooms,
		SqftDiff:           a.TotalSqft - b.TotalSqft,
		PredictedPriceDiff: priceDiff,
		PricePerSqftDiff:   PricePerSqft(priceA, a.TotalSqft) - PricePerSqft(priceB, b.TotalSqft),
	}

	perSqft, _ := CalculateSqftImpact(tm)
	r.SqftImpact = float64(r.SqftDiff) * perSqft
	r.BedroomImpact = float64(r.BedroomDiff) * bedroomWeight
	r.BathroomImpact = r.BathroomDiff * bathroomWeight
	r.AmenityImpact = flagDiff(a.HasGarage, b.HasGarage)*garageWeight +
		flagDiff(a.HasFireplace, b.HasFireplace)*fireplaceWeight +
		flagDiff(a.HasBalcony, b.HasBalcony)*balconyWeight

	r.Summary = comparisonSummary(r)
	r.Recommendation = recommendation(r.PredictedPriceDiff, r.PricePerSqftDiff)
	return r
}

func flagDiff(a, b bool) float64 {
	return boolFeature(a) - boolFeature(b)
}

func comparisonSummary(r *models.ComparisonReport) string {
	var parts []string
	if r.BedroomDiff != 0 {
		parts = append(parts, moreOrFewer(float64(r.BedroomDiff))+" "+plural("bedroom", math.Abs(float64(r.BedroomDiff))))
	}
	if r.BathroomDiff != 0 {
		parts = append(parts, moreOrFewer(r.BathroomDiff)+" "+plural("bathroom", math.Abs(r.BathroomDiff)))
	}
	if r.SqftDiff != 0 {
		parts = append(parts, fmt.Sprintf("%s %s sqft",
			groupThousands(int64(abs(r.SqftDiff))), moreOrFewer(float64(r.SqftDiff))))
	}
	if len(parts) == 0 {
		return similarPropertiesPhrase
	}

	direction := "lower"
	if r.PredictedPriceDiff > 0 {
		direction = "higher"
	}
	return fmt.Sprintf("Property A has %s, resulting in a $%s %s estimated value.",
		strings.Join(parts, ", "), formatDollars(math.Abs(r.PredictedPriceDiff)), direction)
}

func recommendation(priceDiff, perSqftDiff float64) string {
	switch {
	case math.Abs(priceDiff) < similarPriceThreshold:
		return "Properties are similarly valued. Consider other factors like location and condition."
	case perSqftDiff > pricePerSqftThreshold:
		return "Property A offers better value per square foot. Recommended if budget allows."
	case perSqftDiff < -pricePerSqftThreshold:
		return "Property B offers better value per square foot. More cost-effective option."
	default:
		return "Both properties offer similar value per square foot. Decision should be based on specific needs."
	}
}

// FormatComparisonReport renders r as a plain-text report.
func FormatComparisonReport(r *models.ComparisonReport) string {
	var b strings.Builder
	rule := strings.Repeat("=", 70)

	fmt.Fprintf(&b, "\nPROPERTY COMPARISON REPORT\n%s\n\n", rule)

	b.WriteString("Differences:\n")
	fmt.Fprintf(&b, "- Bedrooms: %+d\n", r.BedroomDiff)
	fmt.Fprintf(&b, "- Bathrooms: %+.1f\n", r.BathroomDiff)
	fmt.Fprintf(&b, "- Square Footage: %s sqft\n\n", signed(groupThousands(int64(r.SqftDiff)), r.SqftDiff >= 0))

	b.WriteString("Price Impact Breakdown:\n")
	fmt.Fprintf(&b, "- Square Footage Impact: $%s\n", signedDollars(r.SqftImpact))
	fmt.Fprintf(&b, "- Bedroom Impact: $%s\n", signedDollars(r.BedroomImpact))
	fmt.Fprintf(&b, "- Bathroom Impact: $%s\n", signedDollars(r.BathroomImpact))
	fmt.Fprintf(&b, "- Amenity Impact: $%s\n\n", signedDollars(r.AmenityImpact))

	fmt.Fprintf(&b, "Total Price Difference: $%s\n", signedDollars(r.PredictedPriceDiff))
	fmt.Fprintf(&b, "Price per Sqft Difference: $%+.2f/sqft\n\n", r.PricePerSqftDiff)

	fmt.Fprintf(&b, "Summary:\n%s\n\n", r.Summary)
	fmt.Fprintf(&b, "Recommendation:\n%s\n", r.Recommendation)
	return b.String()
}

func moreOrFewer(diff float64) string {
	if diff > 0 {
		return "more"
	}
	return "fewer"
}

func plural(word string, n float64) string {
	if n > 1 {
		return word + "s"
	}
	return word
}

// formatDollars rounds to whole dollars with thousands separators.
func formatDollars(v float64) string {
	return groupThousands(int64(math.Round(v)))
}

func signedDollars(v float64) string {
	rounded := int64(math.Round(v))
	return signed(groupThousands(rounded), rounded >= 0)
}

func signed(s string, nonNegative bool) string {
	if nonNegative {
		return "+" + s
	}
	return s
}

// groupThousands formats n with comma separators, e.g. -1234567 → "-1,234,567".
func groupThousands(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
