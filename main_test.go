package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"property-valuation/config"
	"property-valuation/models"
	"property-valuation/utils"
)

type fakeCompsStore struct {
	targets []models.CompsTarget
	written []*models.ScrapedComparable
}

func (f *fakeCompsStore) FetchCompsTargets(context.Context) ([]models.CompsTarget, error) {
	return f.targets, nil
}

func (f *fakeCompsStore) WriteComparables(_ context.Context, comps []*models.ScrapedComparable) error {
	f.written = append(f.written, comps...)
	return nil
}

func TestScrapeComparablesKeepsCSVWithoutRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw_comparables.csv")
	if err := os.WriteFile(path, []byte("previous run\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{CSVOutputPath: path}
	store := &fakeCompsStore{targets: []models.CompsTarget{{PropertyID: "p1", SearchURL: "https://example.com/sold"}}}

	tests := []struct {
		name   string
		scrape scrapeFunc
	}{
		{"empty scrape", func(context.Context, []models.CompsTarget) ([]*models.ScrapedComparable, error) {
			return nil, nil
		}},
		{"failed scrape", func(context.Context, []models.CompsTarget) ([]*models.ScrapedComparable, error) {
			return nil, errors.New("browser crashed")
		}},
	}

	for _, tt := range tests {
		_ = scrapeComparables(context.Background(), cfg, store, tt.scrape, utils.NewDiscardLogger())
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if string(data) != "previous run\n" {
			t.Errorf("%s: CSV was rewritten: %q", tt.name, data)
		}
	}
	if len(store.written) != 0 {
		t.Errorf("stored %d comparables; want 0", len(store.written))
	}
}

func TestScrapeComparablesWritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw_comparables.csv")
	cfg := &config.Config{CSVOutputPath: path}
	store := &fakeCompsStore{targets: []models.CompsTarget{{PropertyID: "p1", SearchURL: "https://example.com/sold"}}}

	scrape := func(context.Context, []models.CompsTarget) ([]*models.ScrapedComparable, error) {
		return []*models.ScrapedComparable{
			{PropertyID: "p1", Address: "12 Elm St", RawPrice: "$410,000", URL: "https://example.com/h/1", ScrapedAt: time.Now()},
		}, nil
	}
	if err := scrapeComparables(context.Background(), cfg, store, scrape, utils.NewDiscardLogger()); err != nil {
		t.Fatalf("scrapeComparables: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "12 Elm St") {
		t.Errorf("CSV missing scraped row:\n%s", data)
	}
	if len(store.written) != 1 {
		t.Errorf("stored %d comparables; want 1", len(store.written))
	}
}
