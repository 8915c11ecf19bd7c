package services

import (
	"testing"

	"property-valuation/models"
	"property-valuation/utils"
)

func newTestLogger() *utils.Logger { return utils.NewDiscardLogger() }

const sampleRecordJSON = `{
	"property_id": "prop-1",
	"extracted_data": {
		"bedrooms": "3",
		"bathrooms": 2.5,
		"square_footage": "1,450 sq ft",
		"rooms": [
			{"type": "Living Room", "features": ["Gas Fireplace", "bay window"]},
			{"type": "Attached GARAGE", "features": []},
			{"type": "Bedroom", "features": null}
		]
	},
	"rooms": [
		{"name": "living", "sqft": 320},
		{"name": "bed", "sqft": "180"},
		{"name": "closet", "sqft": 0},
		{"name": "garage", "sqft": 400}
	],
	"detected_features": {"totals": {"doors": 9, "windows": "14", "closets": 2}},
	"comparables": [
		{"sale_price": "$450,000"},
		{"sale_price": null, "last_sale_price": 500000},
		{"price": "n/a"},
		{"sale_price": -10}
	],
	"quality_score": 87,
	"total_square_feet_confidence": 0.92
}`

func TestNormalizeDecodedRecord(t *testing.T) {
	raw, err := models.DecodeRawProperty([]byte(sampleRecordJSON))
	if err != nil {
		t.Fatalf("DecodeRawProperty: %v", err)
	}

	rec := NewNormalizer(newTestLogger()).Normalize(raw)
	if rec == nil {
		t.Fatal("expected a usable record")
	}

	if rec.TotalSqft != 1450 {
		t.Errorf("TotalSqft = %d; want 1450", rec.TotalSqft)
	}
	if rec.Bedrooms != 3 || rec.Bathrooms != 2.5 {
		t.Errorf("layout = %d bd / %.1f ba; want 3 / 2.5", rec.Bedrooms, rec.Bathrooms)
	}
	if rec.RoomCount != 3 {
		t.Errorf("RoomCount = %d; want 3", rec.RoomCount)
	}
	if rec.AvgRoomSqft != 300 || rec.LargestRoomSqft != 400 || rec.SmallestRoomSqft != 180 {
		t.Errorf("room stats = %.1f/%.1f/%.1f; want 300/400/180",
			rec.AvgRoomSqft, rec.LargestRoomSqft, rec.SmallestRoomSqft)
	}
	if !rec.HasGarage || !rec.HasFireplace || rec.HasBalcony {
		t.Errorf("amenities garage=%v fireplace=%v balcony=%v; want true/true/false",
			rec.HasGarage, rec.HasFireplace, rec.HasBalcony)
	}
	if !rec.HasClosets || rec.NumDoors != 9 || rec.NumWindows != 14 {
		t.Errorf("detected features closets=%v doors=%d windows=%d", rec.HasClosets, rec.NumDoors, rec.NumWindows)
	}
	if rec.SalePrice == nil || *rec.SalePrice != 475000 {
		t.Errorf("SalePrice = %v; want median 475000", rec.SalePrice)
	}
	if rec.QualityScore != 87 || rec.Confidence != 0.92 {
		t.Errorf("quality = %d / %.2f; want 87 / 0.92", rec.QualityScore, rec.Confidence)
	}
}

func TestNormalizeRejectsMissingSqft(t *testing.T) {
	n := NewNormalizer(newTestLogger())

	tests := []struct {
		name string
		raw  *models.RawProperty
	}{
		{"absent", &models.RawProperty{PropertyID: "a"}},
		{"zero", &models.RawProperty{PropertyID: "b", TotalSquareFeet: models.FlexNumber(0)}},
		{"no digits", &models.RawProperty{PropertyID: "c", ExtractedData: models.ExtractedData{
			SquareFeet: models.FlexString("unknown"),
		}}},
		{"nil", nil},
	}

	for _, tt := range tests {
		if rec := n.Normalize(tt.raw); rec != nil {
			t.Errorf("%s: expected nil record, got %+v", tt.name, rec)
		}
	}
}

func TestResolveSqftFallbackOrder(t *testing.T) {
	tests := []struct {
		raw  models.RawProperty
		want int
	}{
		{models.RawProperty{
			TotalSquareFeet: models.FlexNumber(1200),
			ExtractedData:   models.ExtractedData{TotalSquareFeet: models.FlexNumber(900)},
		}, 1200},
		{models.RawProperty{
			TotalSquareFeet: models.FlexNumber(0),
			ExtractedData:   models.ExtractedData{TotalSquareFeet: models.FlexString("2,100")},
		}, 2100},
		{models.RawProperty{
			ExtractedData: models.ExtractedData{SquareFootage: models.FlexString(""), SquareFeet: models.FlexNumber(875.9)},
		}, 875},
	}

	for i, tt := range tests {
		if got := resolveSqft(&tt.raw); got != tt.want {
			t.Errorf("case %d: resolveSqft = %d; want %d", i, got, tt.want)
		}
	}
}

func TestResolvePrice(t *testing.T) {
	estimate := &models.MarketInsights{PriceEstimate: &models.PriceEstimate{EstimatedValue: models.FlexString("$612,500")}}

	tests := []struct {
		name   string
		raw    models.RawProperty
		want   float64
		wantOK bool
	}{
		{
			name: "top-level comparables win over market insights",
			raw: models.RawProperty{
				Comparables: []models.Comparable{{Price: models.FlexNumber(300000)}},
				ExtractedData: models.ExtractedData{MarketInsights: &models.MarketInsights{
					ComparableProperties: []models.Comparable{{Price: models.FlexNumber(999999)}},
				}},
			},
			want: 300000, wantOK: true,
		},
		{
			name: "market insights comparables, odd count median",
			raw: models.RawProperty{ExtractedData: models.ExtractedData{MarketInsights: &models.MarketInsights{
				ComparableProperties: []models.Comparable{
					{SalePrice: models.FlexNumber(410000)},
					{SalePrice: models.FlexString("USD 390,000")},
					{SalePrice: models.FlexNumber(700000)},
				},
			}}},
			want: 410000, wantOK: true,
		},
		{
			name: "no usable comps falls back to estimate",
			raw: models.RawProperty{
				Comparables:   []models.Comparable{{SalePrice: models.FlexNumber(0)}},
				ExtractedData: models.ExtractedData{MarketInsights: estimate},
			},
			want: 612500, wantOK: true,
		},
		{
			name: "nothing",
			raw:  models.RawProperty{},
		},
	}

	for _, tt := range tests {
		got, ok := resolvePrice(&tt.raw)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("%s: resolvePrice = (%.2f, %v); want (%.2f, %v)", tt.name, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeAllDropsUnusable(t *testing.T) {
	n := NewNormalizer(newTestLogger())
	raw := []*models.RawProperty{
		{PropertyID: "ok", TotalSquareFeet: models.FlexNumber(1000)},
		{PropertyID: "bad"},
		{PropertyID: "ok-2", ExtractedData: models.ExtractedData{SquareFeet: models.FlexString("1500")}},
	}

	recs := n.NormalizeAll(raw)
	if len(recs) != 2 {
		t.Fatalf("expected 2 usable records, got %d", len(recs))
	}
	if recs[1].SalePrice != nil {
		t.Errorf("record without price data should have nil SalePrice")
	}
}
