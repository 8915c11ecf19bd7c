package services

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"property-valuation/models"
)

func price(v float64) *float64 { return &v }

// monotonicRecords is five 2bd/1ba homes whose price rises $40k per 200 sqft.
func monotonicRecords() []*models.FeatureRecord {
	var recs []*models.FeatureRecord
	for i := 0; i < 5; i++ {
		sqft := 1000 + 200*i
		recs = append(recs, &models.FeatureRecord{
			PropertyID: fmt.Sprintf("home-%d", sqft),
			Bedrooms:   2,
			Bathrooms:  1,
			TotalSqft:  sqft,
			SalePrice:  price(300000 + 40000*float64(i)),
		})
	}
	return recs
}

func newTestTrainer() *Trainer {
	return NewTrainer(DefaultTrainerConfig(), newTestLogger())
}

func TestTrainInsufficientData(t *testing.T) {
	tr := newTestTrainer()

	four := monotonicRecords()[:4]
	if tm, rep, err := tr.Train(four, models.ModelRidge); !errors.Is(err, ErrInsufficientData) || tm != nil || rep != nil {
		t.Errorf("4 records: got (%v, %v, %v); want ErrInsufficientData", tm, rep, err)
	}

	twoPriced := monotonicRecords()
	for _, r := range twoPriced[2:] {
		r.SalePrice = nil
	}
	_, _, err := tr.Train(twoPriced, models.ModelRidge)
	if !errors.Is(err, ErrInsufficientPrices) || !errors.Is(err, ErrInsufficientData) {
		t.Errorf("5 records with 2 priced: got %v; want ErrInsufficientPrices", err)
	}

	threePriced := monotonicRecords()
	threePriced[0].SalePrice = nil
	threePriced[4].SalePrice = price(0)
	for _, mt := range models.ModelTypes {
		tm, rep, err := tr.Train(threePriced, mt)
		if err != nil || tm == nil || rep == nil {
			t.Errorf("%s with 3 priced: unexpected failure %v", mt, err)
			continue
		}
		if rep.NumPriced != 3 || len(rep.Predictions) != 3 {
			t.Errorf("%s: NumPriced=%d predictions=%d; want 3/3", mt, rep.NumPriced, len(rep.Predictions))
		}
	}
}

func TestTrainUnknownModelType(t *testing.T) {
	_, _, err := newTestTrainer().Train(monotonicRecords(), "gradient_boosting")
	if !errors.Is(err, ErrUnknownModelType) {
		t.Errorf("expected ErrUnknownModelType, got %v", err)
	}
}

func TestTrainFeatureImportanceSumsToOne(t *testing.T) {
	tr := newTestTrainer()

	constant := monotonicRecords()
	for _, r := range constant {
		r.SalePrice = price(350000)
	}

	for _, recs := range [][]*models.FeatureRecord{monotonicRecords(), constant} {
		for _, mt := range models.ModelTypes {
			_, rep, err := tr.Train(recs, mt)
			if err != nil {
				t.Fatalf("%s: %v", mt, err)
			}
			var total float64
			for _, v := range rep.FeatureImportance {
				total += v
			}
			if math.Abs(total-1) > 1e-6 {
				t.Errorf("%s: importance sum = %.8f; want 1", mt, total)
			}
			if len(rep.FeatureImportance) != len(featureColumns) {
				t.Errorf("%s: %d importances; want %d", mt, len(rep.FeatureImportance), len(featureColumns))
			}
		}
	}
}

func TestTrainReportShape(t *testing.T) {
	tr := newTestTrainer()

	tm, rep, err := tr.Train(monotonicRecords(), models.ModelRidge)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if rep.RunID == "" {
		t.Error("RunID should be set")
	}
	if rep.Coefficients == nil || rep.Intercept == nil {
		t.Error("ridge report should carry coefficients and intercept")
	}
	// 4 training rows → 4 folds
	if len(rep.CVScores) != 4 {
		t.Errorf("CVScores len = %d; want 4", len(rep.CVScores))
	}
	if got := tm.FeatureNames(); got[0] != "total_sqft" || len(got) != 12 {
		t.Errorf("FeatureNames = %v", got)
	}

	_, forestRep, err := tr.Train(monotonicRecords(), models.ModelRandomForest)
	if err != nil {
		t.Fatalf("Train forest: %v", err)
	}
	if forestRep.Coefficients != nil || forestRep.Intercept != nil {
		t.Error("forest report should not carry coefficients")
	}
	if forestRep.FeatureImportance["total_sqft"] < 0.99 {
		t.Errorf("sqft importance = %.4f; want ~1 when only sqft varies", forestRep.FeatureImportance["total_sqft"])
	}
}

func TestPredictMonotonicInSqft(t *testing.T) {
	tr := newTestTrainer()
	small := &models.FeatureRecord{PropertyID: "s", Bedrooms: 2, Bathrooms: 1, TotalSqft: 1000}
	large := &models.FeatureRecord{PropertyID: "l", Bedrooms: 2, Bathrooms: 1, TotalSqft: 2000}

	for _, mt := range []models.ModelType{models.ModelLinear, models.ModelRidge} {
		tm, _, err := tr.Train(monotonicRecords(), mt)
		if err != nil {
			t.Fatalf("%s: %v", mt, err)
		}
		ps, _ := PredictPrice(tm, small)
		pl, _ := PredictPrice(tm, large)
		if pl <= ps {
			t.Errorf("%s: predict(2000)=%.0f should exceed predict(1000)=%.0f", mt, pl, ps)
		}
	}
}

func TestSqftImpact(t *testing.T) {
	tr := newTestTrainer()

	tm, _, _ := tr.Train(monotonicRecords(), models.ModelLinear)
	if impact, ok := CalculateSqftImpact(tm); !ok || math.Abs(impact-200) > 1e-6 {
		t.Errorf("linear sqft impact = (%.6f, %v); want (200, true)", impact, ok)
	}

	tm, _, _ = tr.Train(monotonicRecords(), models.ModelRidge)
	if impact, ok := CalculateSqftImpact(tm); !ok || impact <= 0 || impact >= 200 {
		t.Errorf("ridge sqft impact = (%.2f, %v); want shrunk positive value", impact, ok)
	}

	tm, _, _ = tr.Train(monotonicRecords(), models.ModelRandomForest)
	if _, ok := CalculateSqftImpact(tm); ok {
		t.Error("forest should not report a sqft impact")
	}

	if _, ok := CalculateSqftImpact(nil); ok {
		t.Error("untrained state should not report a sqft impact")
	}
}

func TestPredictUntrained(t *testing.T) {
	if _, ok := PredictPrice(nil, monotonicRecords()[0]); ok {
		t.Error("PredictPrice without a model should report false")
	}
}

func TestRidgeEndToEnd(t *testing.T) {
	recs := monotonicRecords()
	tm, rep, err := newTestTrainer().Train(recs, models.ModelRidge)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if rep.R2 < 0 {
		t.Errorf("R2 = %.4f; want >= 0", rep.R2)
	}

	holdout := &models.FeatureRecord{PropertyID: "new", Bedrooms: 2, Bathrooms: 1, TotalSqft: 1300}
	p, ok := PredictPrice(tm, holdout)
	if !ok || p < 300000 || p > 460000 {
		t.Errorf("predict(1300) = (%.0f, %v); want within [300000, 460000]", p, ok)
	}

	cmp := Compare(tm, recs[4], recs[0])
	if cmp.SqftDiff != 800 {
		t.Errorf("SqftDiff = %d; want 800", cmp.SqftDiff)
	}
	if cmp.PredictedPriceDiff <= 0 {
		t.Errorf("PredictedPriceDiff = %.0f; want > 0", cmp.PredictedPriceDiff)
	}
}

func TestTrainedModelsAreIndependent(t *testing.T) {
	tr := newTestTrainer()
	first, _, _ := tr.Train(monotonicRecords(), models.ModelRidge)
	rec := &models.FeatureRecord{TotalSqft: 1500, Bedrooms: 2, Bathrooms: 1}
	before, _ := PredictPrice(first, rec)

	doubled := monotonicRecords()
	for _, r := range doubled {
		*r.SalePrice *= 2
	}
	second, _, _ := tr.Train(doubled, models.ModelRidge)

	after, _ := PredictPrice(first, rec)
	if before != after {
		t.Errorf("retraining changed an existing model's prediction: %.2f → %.2f", before, after)
	}
	if p, _ := PredictPrice(second, rec); p <= after {
		t.Errorf("second model should price higher, got %.2f vs %.2f", p, after)
	}
}

// rawBatch is five monotonic homes as upstream JSON, with bathrooms taken
// verbatim from the argument for the third one.
func rawBatch(t *testing.T, thirdBathrooms string) []*models.RawProperty {
	t.Helper()
	var batch []*models.RawProperty
	for i := 0; i < 5; i++ {
		bathrooms := "1"
		if i == 2 {
			bathrooms = thirdBathrooms
		}
		doc := fmt.Sprintf(`{
			"property_id": "home-%d",
			"extracted_data": {"bedrooms": 2, "bathrooms": %s},
			"total_square_feet": %d,
			"total_square_feet_confidence": "NaN",
			"rooms": [{"name": "living", "sqft": "Infinity"}, {"name": "bed", "sqft": 200}],
			"comparables": [{"sale_price": "$%d"}]
		}`, i, bathrooms, 1000+200*i, 300000+40000*i)
		raw, err := models.DecodeRawProperty([]byte(doc))
		if err != nil {
			t.Fatalf("DecodeRawProperty: %v", err)
		}
		batch = append(batch, raw)
	}
	return batch
}

func TestTrainIgnoresNonFiniteText(t *testing.T) {
	for _, bathrooms := range []string{`"NaN"`, `"Inf"`, `"-Infinity"`} {
		records := NewNormalizer(newTestLogger()).NormalizeAll(rawBatch(t, bathrooms))
		if len(records) != 5 {
			t.Fatalf("%s: normalized %d records; want 5", bathrooms, len(records))
		}
		for _, r := range records {
			for name, v := range map[string]float64{
				"bathrooms": r.Bathrooms, "confidence": r.Confidence,
				"avg_room_sqft": r.AvgRoomSqft, "largest_room_sqft": r.LargestRoomSqft,
			} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Errorf("%s: %s %s = %v; want finite", bathrooms, r.PropertyID, name, v)
				}
			}
		}

		for _, mt := range models.ModelTypes {
			tm, rep, err := newTestTrainer().Train(records, mt)
			if err != nil {
				t.Errorf("%s %s: Train: %v", bathrooms, mt, err)
				continue
			}
			if p, ok := PredictPrice(tm, records[2]); !ok || math.IsNaN(p) {
				t.Errorf("%s %s: prediction = %v, %t", bathrooms, mt, p, ok)
			}
			if len(rep.Predictions) != 5 {
				t.Errorf("%s %s: %d predictions; want 5", bathrooms, mt, len(rep.Predictions))
			}
		}
	}
}

func TestTrainedModelOwnsColumns(t *testing.T) {
	tm, _, err := newTestTrainer().Train(monotonicRecords(), models.ModelLinear)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	rec := &models.FeatureRecord{TotalSqft: 1300, Bedrooms: 2, Bathrooms: 1}
	before, _ := PredictPrice(tm, rec)

	saved := featureColumns[0]
	featureColumns[0] = featureColumn{saved.Name, func(*models.FeatureRecord) float64 { return 0 }}
	defer func() { featureColumns[0] = saved }()

	if after, _ := PredictPrice(tm, rec); after != before {
		t.Errorf("prediction changed from %.2f to %.2f after editing the column table", before, after)
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{12.346, 12.35},
		{-12.346, -12.35},
		{-2.5, -2.5},
		{-0.004, 0},
		{433333.3333, 433333.33},
		{1e17, 1e17},
	}

	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v; want %v", tt.in, got, tt.want)
		}
	}
}
