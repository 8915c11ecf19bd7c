package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"property-valuation/models"
	"property-valuation/regression"
	"property-valuation/utils"
)

const (
	minTrainingRecords = 5
	minPricedRecords   = 3
)

var (
	ErrInsufficientData   = errors.New("insufficient data for training")
	ErrInsufficientPrices = fmt.Errorf("%w: too few records with a known price", ErrInsufficientData)
	ErrUnknownModelType   = errors.New("unknown model type")
)

// featureColumn is one named column of the design matrix.
type featureColumn struct {
	Name  string
	Value func(*models.FeatureRecord) float64
}

// featureColumns is the fixed column order every model is trained and
// applied with.
var featureColumns = []featureColumn{
	{"total_sqft", func(r *models.FeatureRecord) float64 { return float64(r.TotalSqft) }},
	{"bedrooms", func(r *models.FeatureRecord) float64 { return float64(r.Bedrooms) }},
	{"bathrooms", func(r *models.FeatureRecord) float64 { return r.Bathrooms }},
	{"room_count", func(r *models.FeatureRecord) float64 { return float64(r.RoomCount) }},
	{"avg_room_sqft", func(r *models.FeatureRecord) float64 { return r.AvgRoomSqft }},
	{"largest_room_sqft", func(r *models.FeatureRecord) float64 { return r.LargestRoomSqft }},
	{"has_garage", func(r *models.FeatureRecord) float64 { return boolFeature(r.HasGarage) }},
	{"has_fireplace", func(r *models.FeatureRecord) float64 { return boolFeature(r.HasFireplace) }},
	{"has_balcony", func(r *models.FeatureRecord) float64 { return boolFeature(r.HasBalcony) }},
	{"has_closets", func(r *models.FeatureRecord) float64 { return boolFeature(r.HasClosets) }},
	{"num_doors", func(r *models.FeatureRecord) float64 { return float64(r.NumDoors) }},
	{"num_windows", func(r *models.FeatureRecord) float64 { return float64(r.NumWindows) }},
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// TrainerConfig holds the fitting parameters.
type TrainerConfig struct {
	TestFraction float64
	Seed         int64
	RidgeAlpha   float64
	ForestTrees  int
	MaxCVFolds   int
}

func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		TestFraction: 0.2,
		Seed:         42,
		RidgeAlpha:   1.0,
		ForestTrees:  100,
		MaxCVFolds:   5,
	}
}

// TrainedModel is the output of one training run: the fitted estimator, the
// scaler fitted alongside it and the column order both expect. It is never
// modified after Train returns.
type TrainedModel struct {
	estimator    regression.Regressor
	scaler       *regression.StandardScaler
	featureNames []string
	columns      []featureColumn
	modelType    models.ModelType
	trainedAt    time.Time
}

func (m *TrainedModel) ModelType() models.ModelType { return m.modelType }
func (m *TrainedModel) TrainedAt() time.Time        { return m.trainedAt }

// FeatureNames returns the column order the model was fitted with.
func (m *TrainedModel) FeatureNames() []string {
	return append([]string(nil), m.featureNames...)
}

// featureVector builds an unscaled row in the model's own column order.
func (m *TrainedModel) featureVector(rec *models.FeatureRecord) []float64 {
	x := make([]float64, len(m.columns))
	for j, c := range m.columns {
		x[j] = c.Value(rec)
	}
	return x
}

func (m *TrainedModel) featureIndex(name string) int {
	for i, n := range m.featureNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Trainer fits valuation models over normalized records.
type Trainer struct {
	cfg    TrainerConfig
	logger *utils.Logger
}

func NewTrainer(cfg TrainerConfig, logger *utils.Logger) *Trainer {
	return &Trainer{cfg: cfg, logger: logger}
}

// Train fits modelType on the priced records and evaluates it on a held-out
// split. Both return values are nil when err is non-nil.
func (t *Trainer) Train(records []*models.FeatureRecord, modelType models.ModelType) (*TrainedModel, *models.FitReport, error) {
	if !modelType.IsValid() {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownModelType, modelType)
	}
	if len(records) < minTrainingRecords {
		t.logger.Warn("[trainer] Need at least %d properties, got %d", minTrainingRecords, len(records))
		return nil, nil, fmt.Errorf("%w: %d records, need %d", ErrInsufficientData, len(records), minTrainingRecords)
	}

	priced := make([]*models.FeatureRecord, 0, len(records))
	for _, r := range records {
		if r != nil && r.HasPrice() {
			priced = append(priced, r)
		}
	}
	if len(priced) < minPricedRecords {
		t.logger.Warn("[trainer] Need at least %d priced properties, got %d", minPricedRecords, len(priced))
		return nil, nil, fmt.Errorf("%w: %d priced, need %d", ErrInsufficientPrices, len(priced), minPricedRecords)
	}

	t.logger.Info("[trainer] Training %s model on %d priced properties", modelType, len(priced))

	X, y := buildMatrix(priced)
	trainIdx, testIdx := regression.TrainTestSplit(len(priced), t.cfg.TestFraction, t.cfg.Seed)
	xTrain, yTrain := regression.SelectRows(X, trainIdx), regression.SelectValues(y, trainIdx)
	xTest, yTest := regression.SelectRows(X, testIdx), regression.SelectValues(y, testIdx)

	scaler, err := regression.FitStandardScaler(xTrain)
	if err != nil {
		return nil, nil, fmt.Errorf("trainer: fit scaler: %w", err)
	}
	xTrainScaled := scaler.Transform(xTrain)

	newModel := t.factory(modelType)
	estimator := newModel()
	if err := estimator.Fit(xTrainScaled, yTrain); err != nil {
		return nil, nil, fmt.Errorf("trainer: fit %s: %w", modelType, err)
	}

	tm := &TrainedModel{
		estimator:    estimator,
		scaler:       scaler,
		featureNames: featureNames(),
		columns:      append([]featureColumn(nil), featureColumns...),
		modelType:    modelType,
		trainedAt:    time.Now().UTC(),
	}

	report := &models.FitReport{
		RunID:      uuid.NewString(),
		ModelType:  modelType,
		NumRecords: len(records),
		NumPriced:  len(priced),
		TrainedAt:  tm.trainedAt,
	}

	if len(yTest) > 0 {
		yPred := regression.PredictAll(estimator, scaler.Transform(xTest))
		report.R2 = regression.R2Score(yTest, yPred)
		report.MAE = regression.MeanAbsoluteError(yTest, yPred)
		report.RMSE = regression.RootMeanSquaredError(yTest, yPred)
	}

	if k := min(t.cfg.MaxCVFolds, len(trainIdx)); k >= 2 {
		scores, err := regression.CrossValScore(newModel, xTrainScaled, yTrain, k)
		if err != nil {
			t.logger.Warn("[trainer] Cross-validation failed: %v", err)
		}
		report.CVScores = scores
	}

	report.FeatureImportance = importanceMap(tm)
	if cm, ok := estimator.(regression.CoefficientModel); ok && modelType.IsLinear() {
		report.Coefficients = make(map[string]float64, len(tm.featureNames))
		for i, c := range cm.Coefficients() {
			report.Coefficients[tm.featureNames[i]] = c
		}
		intercept := cm.Intercept()
		report.Intercept = &intercept
	}

	report.Predictions = make(map[string]float64, len(priced))
	for _, r := range priced {
		if p, ok := PredictPrice(tm, r); ok {
			report.Predictions[r.PropertyID] = p
		}
	}

	t.logger.Info("[trainer] %s: R²=%.4f MAE=$%.0f RMSE=$%.0f CV=%.4f (%d folds)",
		modelType, report.R2, report.MAE, report.RMSE, report.MeanCVScore(), len(report.CVScores))
	return tm, report, nil
}

func (t *Trainer) factory(modelType models.ModelType) regression.Factory {
	switch modelType {
	case models.ModelLinear:
		return func() regression.Regressor { return regression.NewLinearRegression() }
	case models.ModelRandomForest:
		cfg := regression.DefaultForestConfig()
		cfg.NumTrees = t.cfg.ForestTrees
		cfg.Seed = t.cfg.Seed
		return func() regression.Regressor { return regression.NewRandomForest(cfg) }
	default:
		alpha := t.cfg.RidgeAlpha
		return func() regression.Regressor { return regression.NewRidge(alpha) }
	}
}

func buildMatrix(records []*models.FeatureRecord) (*mat.Dense, []float64) {
	X := mat.NewDense(len(records), len(featureColumns), nil)
	y := make([]float64, len(records))
	for i, r := range records {
		for j, c := range featureColumns {
			X.Set(i, j, c.Value(r))
		}
		y[i] = *r.SalePrice
	}
	return X, y
}

func featureNames() []string {
	names := make([]string, len(featureColumns))
	for i, c := range featureColumns {
		names[i] = c.Name
	}
	return names
}

// importanceMap normalizes native importances (forest) or |coef| (linear)
// to sum to 1. An all-zero vector, e.g. a constant target, becomes uniform.
func importanceMap(tm *TrainedModel) map[string]float64 {
	var raw []float64
	switch m := tm.estimator.(type) {
	case regression.ImportanceModel:
		raw = m.FeatureImportances()
	case regression.CoefficientModel:
		raw = m.Coefficients()
		for i, v := range raw {
			raw[i] = math.Abs(v)
		}
	}
	if len(raw) != len(tm.featureNames) {
		raw = make([]float64, len(tm.featureNames))
	}

	if total := floats.Sum(raw); total > 0 {
		floats.Scale(1/total, raw)
	} else {
		for i := range raw {
			raw[i] = 1 / float64(len(raw))
		}
	}

	out := make(map[string]float64, len(raw))
	for i, v := range raw {
		out[tm.featureNames[i]] = v
	}
	return out
}
