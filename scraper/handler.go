package scraper

import (
	"context"
	"fmt"

	"rera_crawler/models"
)

// ParseMode maps a -mode flag value to a run mode. Empty means crawl.
func ParseMode(s string) (models.RunMode, error) {
	switch models.RunMode(s) {
	case "", models.ModeCrawl:
		return models.ModeCrawl, nil
	case models.ModeHarvest:
		return models.ModeHarvest, nil
	}
	return "", fmt.Errorf("unknown mode %q (want %s or %s)", s, models.ModeCrawl, models.ModeHarvest)
}

// RunMode runs one mode. Options only apply to crawls.
func (o *Orchestrator) RunMode(ctx context.Context, mode models.RunMode, opts CrawlOptions) (*models.CrawlRun, error) {
	switch mode {
	case models.ModeCrawl:
		return o.RunCrawl(ctx, opts)
	case models.ModeHarvest:
		return o.RunHarvest(ctx)
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}
