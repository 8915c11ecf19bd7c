package services

import (
	"fmt"
	"sort"
	"strings"

	"property-valuation/models"
	"property-valuation/utils"
)

const topFeatureCount = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarizes the priced records and, when tm is non-nil, the fit
// that was trained on them.
func (s *InsightService) Generate(records []*models.FeatureRecord, tm *TrainedModel, fit *models.FitReport) *models.ValuationInsights {
	report := &models.ValuationInsights{
		PropertiesByBedrooms: make(map[int]int),
		Fit:                  fit,
	}

	if impact, ok := CalculateSqftImpact(tm); ok {
		report.SqftImpact = &impact
	}
	if fit != nil {
		report.TopFeatures = topFeatures(fit.FeatureImportance, topFeatureCount)
	}

	if len(records) == 0 {
		return report
	}
	report.TotalProperties = len(records)

	var total, totalPerSqft float64
	for _, r := range records {
		report.PropertiesByBedrooms[r.Bedrooms]++
		if !r.HasPrice() {
			continue
		}

		price := *r.SalePrice
		if report.PricedProperties == 0 || price < report.MinPrice {
			report.MinPrice = price
		}
		if report.PricedProperties == 0 || price > report.MaxPrice {
			report.MaxPrice = price
			report.MostExpensive = r
		}
		report.PricedProperties++
		total += price
		totalPerSqft += PricePerSqft(price, r.TotalSqft)
	}

	if report.PricedProperties > 0 {
		n := float64(report.PricedProperties)
		report.AveragePrice = Round2(total / n)
		report.AveragePricePerSqft = Round2(totalPerSqft / n)
		report.MinPrice = Round2(report.MinPrice)
		report.MaxPrice = Round2(report.MaxPrice)
	}
	return report
}

func topFeatures(importance map[string]float64, n int) []models.FeatureWeight {
	weights := make([]models.FeatureWeight, 0, len(importance))
	for name, w := range importance {
		weights = append(weights, models.FeatureWeight{Name: name, Weight: w})
	}
	sort.Slice(weights, func(i, j int) bool {
		if weights[i].Weight != weights[j].Weight {
			return weights[i].Weight > weights[j].Weight
		}
		return weights[i].Name < weights[j].Name
	})
	if len(weights) > n {
		weights = weights[:n]
	}
	return weights
}

func (s *InsightService) Print(r *models.ValuationInsights) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 PROPERTY VALUATION INSIGHTS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Usable properties      : \033[1m%d\033[0m\n", r.TotalProperties)
	fmt.Printf("  With a known price     : \033[1m%d\033[0m\n", r.PricedProperties)
	fmt.Println()

	fmt.Printf("\033[1;33m  Price Statistics\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.PricedProperties > 0 {
		fmt.Printf("  Average price : \033[1;32m$%s\033[0m\n", formatDollars(r.AveragePrice))
		fmt.Printf("  Minimum price : \033[1;32m$%s\033[0m\n", formatDollars(r.MinPrice))
		fmt.Printf("  Maximum price : \033[1;32m$%s\033[0m\n", formatDollars(r.MaxPrice))
		fmt.Printf("  Avg $/sqft    : \033[1;32m$%.2f\033[0m\n", r.AveragePricePerSqft)
	} else {
		fmt.Printf("  No price data available\n")
	}
	fmt.Println()

	if r.MostExpensive != nil {
		fmt.Printf("\033[1;33m  Most Expensive Property\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s\n", truncate(r.MostExpensive.PropertyID, 50))
		fmt.Printf("  Layout : %d bd / %.1f ba / %s sqft\n",
			r.MostExpensive.Bedrooms, r.MostExpensive.Bathrooms, groupThousands(int64(r.MostExpensive.TotalSqft)))
		fmt.Printf("  Price  : \033[1;31m$%s\033[0m\n", formatDollars(*r.MostExpensive.SalePrice))
		fmt.Println()
	}

	fmt.Printf("\033[1;33m  Model Fit\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.Fit == nil {
		fmt.Printf("  No model trained\n")
	} else {
		fmt.Printf("  Model        : \033[1m%s\033[0m (run %s)\n", r.Fit.ModelType, r.Fit.RunID)
		fmt.Printf("  R²           : \033[1;32m%.4f\033[0m\n", r.Fit.R2)
		fmt.Printf("  MAE / RMSE   : $%s / $%s\n", formatDollars(r.Fit.MAE), formatDollars(r.Fit.RMSE))
		fmt.Printf("  CV R² (mean) : %.4f over %d folds\n", r.Fit.MeanCVScore(), len(r.Fit.CVScores))
		if r.SqftImpact != nil {
			fmt.Printf("  $ per sqft   : \033[1;32m$%.2f\033[0m\n", *r.SqftImpact)
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Top %d Features by Importance\033[0m\n", topFeatureCount)
	fmt.Printf("  %s\n", thin)
	if len(r.TopFeatures) == 0 {
		fmt.Printf("  No importances available\n")
	} else {
		for i, f := range r.TopFeatures {
			fmt.Printf("  \033[1m%d.\033[0m %-24s \033[1;32m%6.2f%%\033[0m\n", i+1, f.Name, f.Weight*100)
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Properties by Bedrooms\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.PropertiesByBedrooms) == 0 {
		fmt.Printf("  No bedroom data\n")
	} else {
		beds := make([]int, 0, len(r.PropertiesByBedrooms))
		for b := range r.PropertiesByBedrooms {
			beds = append(beds, b)
		}
		sort.Ints(beds)
		for _, b := range beds {
			count := r.PropertiesByBedrooms[b]
			bar := strings.Repeat("█", count)
			fmt.Printf("  %-10s %s (%d)\n", fmt.Sprintf("%d bd", b), bar, count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
