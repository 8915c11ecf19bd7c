package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"property-valuation/config"
	"property-valuation/handlers"
	"property-valuation/models"
	"property-valuation/scraper/comps"
	"property-valuation/services"
	"property-valuation/storage"
	"property-valuation/utils"
)

func main() {
	cfg := config.Load()
	logger := utils.NewLoggerWithLevel(utils.ParseLevel(cfg.LogLevel))

	logger.Info("=== Property Valuation starting ===")
	logger.Info("Config: model %s | min properties: %d | train timeout: %s | scrape comps: %t",
		cfg.ModelType, cfg.MinProperties, cfg.TrainTimeout, cfg.ScrapeComps)

	store, err := storage.NewPostgresStore(cfg.DSN(), logger)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ScrapeComps {
		scraper := comps.New(cfg, logger)
		if err := scrapeComparables(ctx, cfg, store, scraper.Scrape, logger); err != nil {
			logger.Error("Comparable scrape failed: %v", err)
		}
	}

	trainer := services.NewTrainer(services.DefaultTrainerConfig(), logger)
	valuation := services.NewValuationService(store, trainer, services.NewModelRegistry(), logger)
	modelType := models.ModelType(cfg.ModelType)

	trainCtx, cancel := context.WithTimeout(ctx, cfg.TrainTimeout)
	snap, records, err := valuation.Train(trainCtx, modelType, cfg.MinProperties)
	cancel()
	switch {
	case errors.Is(err, services.ErrInsufficientData):
		logger.Warn("Skipping initial training: %v", err)
	case err != nil:
		logger.Error("Initial training failed: %v", err)
	}

	insightSvc := services.NewInsightService(logger)
	if snap != nil {
		insightSvc.Print(insightSvc.Generate(records, snap.Model, snap.Report))
	} else {
		insightSvc.Print(insightSvc.Generate(records, nil, nil))
	}

	if !cfg.HTTPEnabled {
		fmt.Printf("  Done. %d properties valued with %s.\n\n", len(records), modelType)
		return
	}

	serve(ctx, cfg, valuation, logger)
}

// scrapeFunc fetches raw comparables for a batch of targets.
type scrapeFunc func(ctx context.Context, targets []models.CompsTarget) ([]*models.ScrapedComparable, error)

// scrapeComparables refreshes comparable sales for every property that has a
// search URL, keeping a raw CSV copy alongside the database rows. The CSV is
// only replaced once a scrape has returned rows.
func scrapeComparables(ctx context.Context, cfg *config.Config, store storage.ComparableWriter, scrape scrapeFunc, logger *utils.Logger) error {
	targets, err := store.FetchCompsTargets(ctx)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		logger.Info("No comps targets configured, skipping scrape")
		return nil
	}

	raw, err := scrape(ctx, targets)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		logger.Warn("No comparables were scraped, keeping previous %s", cfg.CSVOutputPath)
		return nil
	}

	if err := writeRawCSV(cfg.CSVOutputPath, raw); err != nil {
		logger.Error("CSV write failed: %v", err)
	} else {
		logger.Info("Raw comparables saved to %s", cfg.CSVOutputPath)
	}

	if err := store.WriteComparables(ctx, raw); err != nil {
		return err
	}
	logger.Info("Stored %d comparables in PostgreSQL (table: comparable_sales)", len(raw))
	return nil
}

// writeRawCSV replaces the audit CSV with one scrape's comparables.
func writeRawCSV(path string, raw []*models.ScrapedComparable) error {
	w, err := storage.NewCSVWriter(path)
	if err != nil {
		return err
	}
	var csvWriter storage.RawComparableWriter = w
	if err := csvWriter.WriteRaw(raw); err != nil {
		csvWriter.Close()
		return err
	}
	return csvWriter.Close()
}

func serve(ctx context.Context, cfg *config.Config, valuation *services.ValuationService, logger *utils.Logger) {
	apiHandler := handlers.NewAPIHandler(valuation, logger,
		models.ModelType(cfg.ModelType), cfg.MinProperties, cfg.TrainTimeout)

	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	apiHandler.SetupRoutes(router)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: router,
	}

	go func() {
		logger.Info("Server starting on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Failed to start server: %v", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
		return
	}
	logger.Info("Server exited properly")
}
