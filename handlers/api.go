package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"property-valuation/models"
	"property-valuation/services"
	"property-valuation/storage"
	"property-valuation/utils"
)

// autoTrainMinProperties is the floor used when a request asks to train
// before predicting.
const autoTrainMinProperties = 5

// APIHandler handles all analytics API requests
type APIHandler struct {
	valuation        *services.ValuationService
	logger           *utils.Logger
	defaultModelType models.ModelType
	minProperties    int
	trainTimeout     time.Duration
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(valuation *services.ValuationService, logger *utils.Logger, defaultModelType models.ModelType, minProperties int, trainTimeout time.Duration) *APIHandler {
	return &APIHandler{
		valuation:        valuation,
		logger:           logger,
		defaultModelType: defaultModelType,
		minProperties:    minProperties,
		trainTimeout:     trainTimeout,
	}
}

// SetupRoutes configures all API routes
func (h *APIHandler) SetupRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	api := router.Group("/api/analytics")
	{
		api.POST("/model/train", h.TrainModel)
		api.GET("/model", h.GetModel)
		api.GET("/predict/:id", h.PredictPrice)
		api.POST("/compare", h.CompareProperties)
		api.GET("/sqft-impact", h.GetSqftImpact)
	}
}

func (h *APIHandler) Health(c *gin.Context) {
	resp := gin.H{"status": "ok", "model_trained": false}
	if snap := h.valuation.Registry().Current(); snap != nil {
		resp["model_trained"] = true
		resp["model_type"] = snap.Report.ModelType
		resp["trained_at"] = snap.Model.TrainedAt()
	}
	c.JSON(http.StatusOK, resp)
}

type trainRequest struct {
	ModelType     string `json:"model_type"`
	MinProperties int    `json:"min_properties"`
}

// TrainModel handles requests to fit a new model on all stored properties
func (h *APIHandler) TrainModel(c *gin.Context) {
	var req trainRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "message": err.Error()})
			return
		}
	}

	modelType := h.defaultModelType
	if req.ModelType != "" {
		modelType = models.ModelType(req.ModelType)
	}
	minProperties := h.minProperties
	if req.MinProperties > 0 {
		minProperties = req.MinProperties
	}

	snap, err := h.train(c.Request.Context(), modelType, minProperties)
	if err != nil {
		h.writeTrainError(c, err, minProperties)
		return
	}

	resp := snap.Report.Summary()
	resp["success"] = true
	c.JSON(http.StatusOK, resp)
}

// GetModel handles requests for the latest fit summary
func (h *APIHandler) GetModel(c *gin.Context) {
	report, err := h.valuation.LatestReport(c.Request.Context())
	if errors.Is(err, storage.ErrNoFitReport) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No model trained", "message": "POST /api/analytics/model/train first"})
		return
	}
	if err != nil {
		h.logger.Error("[api] Error loading fit report: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load model"})
		return
	}
	c.JSON(http.StatusOK, report.Summary())
}

// PredictPrice handles requests for a single property's price estimate
func (h *APIHandler) PredictPrice(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	rec, ok := h.loadRecord(c, id)
	if !ok {
		return
	}

	h.maybeTrain(ctx, c.Query("train_model"))
	tm := h.valuation.Registry().Model()

	predicted, ok := services.PredictPrice(tm, rec)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Prediction failed",
			"message": "Model not trained. Set train_model=true to train first",
		})
		return
	}

	var sqftImpact any
	if impact, ok := services.CalculateSqftImpact(tm); ok {
		sqftImpact = services.Round2(impact)
	}

	c.JSON(http.StatusOK, gin.H{
		"property_id":     id,
		"predicted_price": services.Round2(predicted),
		"price_per_sqft":  services.Round2(services.PricePerSqft(predicted, rec.TotalSqft)),
		"confidence":      services.ConfidenceBucket(rec.Confidence),
		"features": gin.H{
			"bedrooms":      rec.Bedrooms,
			"bathrooms":     rec.Bathrooms,
			"total_sqft":    rec.TotalSqft,
			"room_count":    rec.RoomCount,
			"has_garage":    rec.HasGarage,
			"has_fireplace": rec.HasFireplace,
			"has_balcony":   rec.HasBalcony,
			"num_doors":     rec.NumDoors,
			"num_windows":   rec.NumWindows,
		},
		"sqft_impact":   sqftImpact,
		"quality_score": rec.QualityScore,
		"model_type":    tm.ModelType(),
	})
}

type compareRequest struct {
	PropertyAID string `json:"property_a_id" binding:"required"`
	PropertyBID string `json:"property_b_id" binding:"required"`
	TrainModel  bool   `json:"train_model"`
}

// CompareProperties handles side-by-side comparison of two properties
func (h *APIHandler) CompareProperties(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Missing required fields",
			"required": []string{"property_a_id", "property_b_id"},
		})
		return
	}

	a, ok := h.loadRecord(c, req.PropertyAID)
	if !ok {
		return
	}
	b, ok := h.loadRecord(c, req.PropertyBID)
	if !ok {
		return
	}

	if req.TrainModel {
		h.maybeTrain(c.Request.Context(), "true")
	}
	cmp := services.Compare(h.valuation.Registry().Model(), a, b)

	c.JSON(http.StatusOK, gin.H{
		"property_a_id": cmp.PropertyAID,
		"property_b_id": cmp.PropertyBID,
		"property_a":    layout(a),
		"property_b":    layout(b),
		"differences": gin.H{
			"bedrooms":  cmp.BedroomDiff,
			"bathrooms": cmp.BathroomDiff,
			"sqft":      cmp.SqftDiff,
		},
		"price_impact": gin.H{
			"total_difference":    services.Round2(cmp.PredictedPriceDiff),
			"price_per_sqft_diff": services.Round2(cmp.PricePerSqftDiff),
			"sqft_impact":         services.Round2(cmp.SqftImpact),
			"bedroom_impact":      services.Round2(cmp.BedroomImpact),
			"bathroom_impact":     services.Round2(cmp.BathroomImpact),
			"amenity_impact":      services.Round2(cmp.AmenityImpact),
		},
		"attribution_reconciled": cmp.AttributionReconciled,
		"summary":                cmp.Summary,
		"recommendation":         cmp.Recommendation,
		"report":                 services.FormatComparisonReport(cmp),
	})
}

// GetSqftImpact handles requests for the model's dollars-per-square-foot
func (h *APIHandler) GetSqftImpact(c *gin.Context) {
	h.maybeTrain(c.Request.Context(), c.Query("train_model"))

	impact, ok := services.CalculateSqftImpact(h.valuation.Registry().Model())
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Calculation failed",
			"message": "No linear model trained. Set train_model=true to train first",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"price_per_sqft": services.Round2(impact),
		"examples": gin.H{
			"100_sqft":  math.Round(impact * 100),
			"500_sqft":  math.Round(impact * 500),
			"1000_sqft": math.Round(impact * 1000),
		},
		"model_trained": true,
	})
}

// loadRecord writes a 404 or 500 response and reports false when the
// property cannot be used.
func (h *APIHandler) loadRecord(c *gin.Context, id string) (*models.FeatureRecord, bool) {
	rec, err := h.valuation.LoadRecord(c.Request.Context(), id)
	switch {
	case errors.Is(err, storage.ErrPropertyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found", "property_id": id})
		return nil, false
	case err != nil:
		h.logger.Error("[api] Error loading property %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load property"})
		return nil, false
	case rec == nil:
		c.JSON(http.StatusNotFound, gin.H{
			"error":       "Property has no usable floor plan measurements",
			"property_id": id,
		})
		return nil, false
	}
	return rec, true
}

// maybeTrain retrains with the default model type when flag is "true".
// Failures are logged and the previous model, if any, stays in place.
func (h *APIHandler) maybeTrain(ctx context.Context, flag string) {
	if !strings.EqualFold(flag, "true") {
		return
	}
	if _, err := h.train(ctx, h.defaultModelType, autoTrainMinProperties); err != nil {
		h.logger.Warn("[api] Training before request failed: %v", err)
	}
}

func (h *APIHandler) train(ctx context.Context, modelType models.ModelType, minProperties int) (*services.ModelSnapshot, error) {
	if h.trainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.trainTimeout)
		defer cancel()
	}
	snap, _, err := h.valuation.Train(ctx, modelType, minProperties)
	return snap, err
}

func (h *APIHandler) writeTrainError(c *gin.Context, err error, minProperties int) {
	switch {
	case errors.Is(err, services.ErrUnknownModelType):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid model type", "valid_types": models.ModelTypes})
	case errors.Is(err, services.ErrInsufficientData):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":          "Insufficient data",
			"message":        err.Error(),
			"min_properties": minProperties,
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Model training timed out"})
	default:
		h.logger.Error("[api] Error training model: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Model training failed", "message": err.Error()})
	}
}

func layout(r *models.FeatureRecord) gin.H {
	return gin.H{"bedrooms": r.Bedrooms, "bathrooms": r.Bathrooms, "total_sqft": r.TotalSqft}
}
