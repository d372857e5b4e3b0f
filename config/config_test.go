package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rera_crawler/checkpoint"
	"rera_crawler/extract"
)

func TestLoadRegistry_MissingFileUsesDefaults(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultRegistry(), reg)
}

func TestLoadRegistry_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
crawl_district: Mysuru
selectors:
  search_box: "#search"
`), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "Mysuru", reg.CrawlDistrict)
	assert.Equal(t, "#search", reg.Selectors.SearchBox)
	assert.Equal(t, "table#approvedTable", reg.Selectors.ListingTable, "unset keys keep defaults")
	assert.Equal(t, "Bengaluru Rural", reg.HarvestDistrict)
	assert.Equal(t, extract.DefaultSelectors, reg.Detail)
}

func TestLoadRegistry_ShippedFileMatchesDefaults(t *testing.T) {
	reg, err := LoadRegistry("registry.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultRegistry(), reg)
}

func TestLoadRegistry_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("selectors: [unclosed"), 0o644))

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			SessionMode:    SessionShared,
			ResumeStrategy: checkpoint.StrategyPositional,
			OuterTimeout:   20 * time.Second,
			InnerTimeout:   5 * time.Second,
			ContextPoll:    3 * time.Second,
		},
		Registry: DefaultRegistry(),
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Crawl.InnerTimeout = 30 * time.Second
	assert.ErrorContains(t, cfg.Validate(), "must be shorter")

	cfg = validConfig()
	cfg.Crawl.SessionMode = "parallel"
	assert.ErrorContains(t, cfg.Validate(), "unknown mode")

	cfg = validConfig()
	cfg.Crawl.ResumeStrategy = "guess"
	assert.ErrorContains(t, cfg.Validate(), "CRAWL_RESUME_STRATEGY")

	cfg = validConfig()
	cfg.Registry.URL = ""
	assert.ErrorContains(t, cfg.Validate(), "url")
}

func TestLoad_PerTermDefaultsDelay(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CRAWL_SESSION_MODE", "per_term")
	t.Setenv("CRAWL_TERM_DELAY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, SessionPerTerm, cfg.Crawl.SessionMode)
	assert.Equal(t, 2*time.Second, cfg.Crawl.TermDelay)
	assert.Equal(t, int64(2*1024*1024), cfg.Log.MaxSize)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CRAWL_SESSION_MODE", "shared")
	t.Setenv("CRAWL_OUTER_TIMEOUT", "30s")
	t.Setenv("CRAWL_INNER_TIMEOUT", "8s")
	t.Setenv("CRAWL_RESUME_STRATEGY", "content")
	t.Setenv("OUTPUT_PATH", "out.jsonl")
	t.Setenv("SCRAPE_INTERVAL", "6h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Crawl.OuterTimeout)
	assert.Equal(t, 8*time.Second, cfg.Crawl.InnerTimeout)
	assert.Equal(t, checkpoint.StrategyContent, cfg.Crawl.ResumeStrategy)
	assert.Equal(t, "out.jsonl", cfg.Paths.Output)
	assert.Equal(t, 6*time.Hour, cfg.Scheduler.Interval)
	assert.Equal(t, time.Duration(0), cfg.Crawl.TermDelay)
}
