// Package comps scrapes recently sold comparable properties from listing
// search result pages with a headless browser.
package comps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"property-valuation/config"
	"property-valuation/models"
	"property-valuation/utils"
)

// Scraper collects comparable sales for a batch of properties.
type Scraper struct {
	cfg     *config.Config
	logger  *utils.Logger
	pool    *utils.WorkerPool
	visited *utils.KeySet
	retry   *utils.RetryConfig

	mu    sync.Mutex
	comps []*models.ScrapedComparable
}

// New creates a ready-to-use comparable-sales Scraper.
func New(cfg *config.Config, logger *utils.Logger) *Scraper {
	return &Scraper{
		cfg:     cfg,
		logger:  logger,
		pool:    utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs),
		visited: utils.NewKeySet(),
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// card is one sold-listing card as read from the page.
type card struct {
	Address  string `json:"address"`
	Price    string `json:"price"`
	SoldDate string `json:"soldDate"`
	URL      string `json:"url"`
}

// Scrape visits every target's search page and returns the raw comparables.
// A failing page is logged and skipped; only a cancelled ctx aborts the run.
func (s *Scraper) Scrape(ctx context.Context, targets []models.CompsTarget) ([]*models.ScrapedComparable, error) {
	s.logger.Info("[comps] Starting scrape — %d properties, up to %d comps each",
		len(targets), s.cfg.MaxCompsPerURL)
	if len(targets) == 0 {
		return nil, nil
	}

	chromeBin := findChromeBinary(s.cfg.ChromeBin)
	s.logger.Info("[comps] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelBrowser()

	// Start the browser once; each page below opens as a tab in it.
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("comps: start browser: %w", err)
	}

	for _, target := range targets {
		t := target
		if !s.visited.Add(t.SearchURL) {
			s.logger.Debug("[comps] Skipping duplicate search page: %s", t.SearchURL)
			continue
		}

		submitted := s.pool.Submit(browserCtx, func(ctx context.Context) {
			found, err := s.scrapeSearchPage(ctx, t)
			if err != nil {
				s.logger.Warn("[comps] %s: %v", t.PropertyID, err)
				return
			}

			s.mu.Lock()
			s.comps = append(s.comps, found...)
			total := len(s.comps)
			s.mu.Unlock()

			s.logger.Info("[comps] %s: %d comps (%d total)", t.PropertyID, len(found), total)
		})
		if !submitted {
			break
		}
	}
	s.pool.Wait()

	if err := ctx.Err(); err != nil {
		return s.comps, fmt.Errorf("comps: scrape interrupted: %w", err)
	}
	s.logger.Info("[comps] Scrape complete — total raw comparables: %d", len(s.comps))
	return s.comps, nil
}

// scrapeSearchPage loads one sold-listings search page and extracts its cards.
func (s *Scraper) scrapeSearchPage(parent context.Context, target models.CompsTarget) ([]*models.ScrapedComparable, error) {
	var found []*models.ScrapedComparable

	err := s.retry.Do(parent, "comps-"+target.PropertyID, func(rctx context.Context) error {
		ctx, cancel := chromedp.NewContext(rctx)
		defer cancel()

		ctx, cancelTimeout := context.WithTimeout(ctx, s.cfg.PageTimeout)
		defer cancelTimeout()

		var cards []card
		err := chromedp.Run(ctx,
			chromedp.Navigate(target.SearchURL),
			chromedp.Sleep(5*time.Second),

			// Scroll to load lazy cards
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(2*time.Second),

			chromedp.Evaluate(fmt.Sprintf(extractCardsJS, s.cfg.MaxCompsPerURL), &cards),
		)
		if err != nil {
			return fmt.Errorf("chromedp search page: %w", err)
		}

		s.logger.Debug("[comps] %s: found %d cards", target.SearchURL, len(cards))
		found = toComparables(target, cards, s.visited, s.cfg.MaxCompsPerURL, time.Now())
		return nil
	})

	return found, err
}

// toComparables keeps cards with a URL and a price, dropping listings already
// seen for any property, up to limit.
func toComparables(target models.CompsTarget, cards []card, seen *utils.KeySet, limit int, now time.Time) []*models.ScrapedComparable {
	var out []*models.ScrapedComparable
	for _, c := range cards {
		if limit > 0 && len(out) >= limit {
			break
		}
		url := strings.TrimSpace(c.URL)
		price := strings.TrimSpace(c.Price)
		if url == "" || price == "" || price == "N/A" {
			continue
		}
		if !seen.Add(target.PropertyID + "|" + url) {
			continue
		}

		out = append(out, &models.ScrapedComparable{
			PropertyID: target.PropertyID,
			Address:    strings.Join(strings.Fields(c.Address), " "),
			RawPrice:   price,
			SoldDate:   strings.TrimSpace(c.SoldDate),
			URL:        url,
			ScrapedAt:  now,
		})
	}
	return out
}

// extractCardsJS reads sold-listing cards. %d is the card limit.
const extractCardsJS = `
	(function() {
		var results = [];
		var limit = %d;
		var cardSelectors = [
			'[data-testid="property-card"]',
			'article[data-testid*="card"]',
			'li[class*="result"] article',
			'div[class*="PropertyCard"]'
		];

		var cards = [];
		for (var si = 0; si < cardSelectors.length; si++) {
			cards = document.querySelectorAll(cardSelectors[si]);
			if (cards.length > 0) break;
		}

		var seen = {};
		for (var i = 0; i < cards.length && results.length < limit; i++) {
			var card = cards[i];
			var link = card.querySelector('a[href]');
			var url = link ? link.href : '';
			if (!url || seen[url]) continue;
			seen[url] = true;

			var lines = (card.innerText || '').split('\n').map(function(l){return l.trim();}).filter(Boolean);

			var addrEl = card.querySelector('address') ||
			             card.querySelector('[data-testid="property-card-addr"]');
			var priceEl = card.querySelector('[data-testid="property-card-price"]') ||
			              card.querySelector('span[class*="price"]');

			results.push({
				address:  addrEl ? addrEl.innerText.trim() : (lines[1] || ''),
				price:    priceEl ? priceEl.innerText.trim() : (lines.find(function(l){return l.match(/\$\s*[\d,.]+/);}) || 'N/A'),
				soldDate: lines.find(function(l){return l.match(/^sold/i);}) || '',
				url:      url
			});
		}
		return results;
	})()
`

// findChromeBinary locates a Chrome/Chromium binary, preferring configured.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
