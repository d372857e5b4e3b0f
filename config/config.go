package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
	"rera_crawler/checkpoint"
	"rera_crawler/extract"
)

type SessionMode string

const (
	// SessionShared keeps one browser for the whole run and resets the page
	// between terms.
	SessionShared SessionMode = "shared"
	// SessionPerTerm launches a fresh browser for every term.
	SessionPerTerm SessionMode = "per_term"
)

type Config struct {
	Scheduler SchedulerConfig
	Crawl     CrawlConfig
	Browser   BrowserConfig
	Paths     PathsConfig
	S3        S3Config
	Log       LogConfig
	Registry  *RegistryConfig

	DBPath      string
	DatabaseURL string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
	// Harvest adds a registration id harvest after every scheduled crawl.
	Harvest bool
}

type CrawlConfig struct {
	SessionMode    SessionMode
	ResumeStrategy checkpoint.Strategy
	TermDelay      time.Duration

	// OuterTimeout bounds listing and tab waits, InnerTimeout the detail
	// render wait. Inner must be shorter than outer.
	OuterTimeout   time.Duration
	InnerTimeout   time.Duration
	ContextPoll    time.Duration
	HarvestMaxPage int
	HarvestDelay   time.Duration
}

type BrowserConfig struct {
	Headless      bool
	ActionTimeout time.Duration
}

type PathsConfig struct {
	Input  string
	Output string
	RegNos string
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
}

type LogConfig struct {
	Path    string
	MaxSize int64
	Backups int
}

// RegistryConfig describes the target site. Everything has a built-in
// default; config/registry.yaml overrides individual values.
type RegistryConfig struct {
	URL             string            `yaml:"url"`
	CrawlDistrict   string            `yaml:"crawl_district"`
	HarvestDistrict string            `yaml:"harvest_district"`
	Selectors       Selectors         `yaml:"selectors"`
	Detail          extract.Selectors `yaml:"detail"`
	PromptSelectors []string          `yaml:"prompt_selectors"`
	// RegNoCell is the listing cell holding the registration id.
	RegNoCell int `yaml:"reg_no_cell"`
	// MinRowCells filters placeholder rows such as "no matching records".
	MinRowCells int `yaml:"min_row_cells"`
}

type Selectors struct {
	DistrictInput string `yaml:"district_input"`
	SubmitButton  string `yaml:"submit_button"`
	ListingTable  string `yaml:"listing_table"`
	ListingRows   string `yaml:"listing_rows"`
	SearchBox     string `yaml:"search_box"`
	DetailTrigger string `yaml:"detail_trigger"`
	DetailTab     string `yaml:"detail_tab"`
	DetailReady   string `yaml:"detail_ready"`
	NextPage      string `yaml:"next_page"`
}

func DefaultRegistry() *RegistryConfig {
	return &RegistryConfig{
		URL:             "https://rera.karnataka.gov.in/viewAllProjects",
		CrawlDistrict:   "Bengaluru Urban",
		HarvestDistrict: "Bengaluru Rural",
		Selectors: Selectors{
			DistrictInput: "#projectDist",
			SubmitButton:  ".btn-style",
			ListingTable:  "table#approvedTable",
			ListingRows:   "table#approvedTable > tbody > tr",
			SearchBox:     `input[type="search"]`,
			DetailTrigger: "i.fa.fa-files-o",
			DetailTab:     `a:has-text("Project Details")`,
			DetailReady:   "div.col-md-3.col-sm-6.col-xs-6 > p",
			NextPage:      "a#approvedTable_next",
		},
		Detail:          extract.DefaultSelectors,
		PromptSelectors: []string{".modal.in button.close", ".swal-button"},
		RegNoCell:       2,
		MinRowCells:     3,
	}
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Scheduler: SchedulerConfig{
			Cron:    os.Getenv("SCRAPE_CRON"),
			Harvest: getEnvBool("SCRAPE_HARVEST", false),
		},
		Crawl: CrawlConfig{
			SessionMode:    SessionMode(getEnv("CRAWL_SESSION_MODE", string(SessionShared))),
			ResumeStrategy: checkpoint.Strategy(getEnv("CRAWL_RESUME_STRATEGY", string(checkpoint.StrategyPositional))),
			OuterTimeout:   getEnvDuration("CRAWL_OUTER_TIMEOUT", 20*time.Second),
			InnerTimeout:   getEnvDuration("CRAWL_INNER_TIMEOUT", 5*time.Second),
			ContextPoll:    getEnvDuration("CRAWL_CONTEXT_POLL", 3*time.Second),
			HarvestMaxPage: getEnvInt("HARVEST_MAX_PAGES", 0),
			HarvestDelay:   getEnvDuration("HARVEST_PAGE_DELAY", 2*time.Second),
		},
		Browser: BrowserConfig{
			Headless:      getEnvBool("BROWSER_HEADLESS", true),
			ActionTimeout: getEnvDuration("BROWSER_ACTION_TIMEOUT", 10*time.Second),
		},
		Paths: PathsConfig{
			Input:  getEnv("INPUT_PATH", "newDa.csv"),
			Output: getEnv("OUTPUT_PATH", "new_data_.csv"),
			RegNos: getEnv("REGNO_PATH", "registration_numbers.csv"),
		},
		S3: S3Config{
			Bucket:          os.Getenv("S3_BUCKET"),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        os.Getenv("S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
			Prefix:          getEnv("S3_PREFIX", "rera"),
		},
		Log: LogConfig{
			Path:    getEnv("LOG_PATH", "crawler.log"),
			MaxSize: int64(getEnvInt("LOG_MAX_SIZE_MB", 2)) * 1024 * 1024,
			Backups: getEnvInt("LOG_BACKUPS", 3),
		},
		DBPath:      getEnv("DB_PATH", "crawler.db"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
	}

	// A fresh browser per term pauses between launches unless told otherwise.
	defaultDelay := time.Duration(0)
	if cfg.Crawl.SessionMode == SessionPerTerm {
		defaultDelay = 2 * time.Second
	}
	cfg.Crawl.TermDelay = getEnvDuration("CRAWL_TERM_DELAY", defaultDelay)

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	registry, err := LoadRegistry(getEnv("REGISTRY_CONFIG", "config/registry.yaml"))
	if err != nil {
		return nil, err
	}
	cfg.Registry = registry

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadRegistry overlays the YAML file at path on DefaultRegistry. A missing
// file leaves the defaults in place.
func LoadRegistry(path string) (*RegistryConfig, error) {
	reg := DefaultRegistry()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return reg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return reg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Crawl.SessionMode {
	case SessionShared, SessionPerTerm:
	default:
		errs = append(errs, fmt.Errorf("CRAWL_SESSION_MODE: unknown mode %q", c.Crawl.SessionMode))
	}
	if _, err := checkpoint.ParseStrategy(string(c.Crawl.ResumeStrategy)); err != nil {
		errs = append(errs, fmt.Errorf("CRAWL_RESUME_STRATEGY: %w", err))
	}
	if c.Crawl.OuterTimeout <= 0 || c.Crawl.InnerTimeout <= 0 || c.Crawl.ContextPoll <= 0 {
		errs = append(errs, errors.New("crawl timeouts must be positive"))
	}
	if c.Crawl.InnerTimeout >= c.Crawl.OuterTimeout {
		errs = append(errs, fmt.Errorf("CRAWL_INNER_TIMEOUT (%s) must be shorter than CRAWL_OUTER_TIMEOUT (%s)",
			c.Crawl.InnerTimeout, c.Crawl.OuterTimeout))
	}
	if c.Crawl.TermDelay < 0 {
		errs = append(errs, errors.New("CRAWL_TERM_DELAY must not be negative"))
	}

	if c.Registry == nil {
		errs = append(errs, errors.New("registry config missing"))
	} else {
		if c.Registry.URL == "" {
			errs = append(errs, errors.New("registry url missing"))
		}
		if c.Registry.RegNoCell < 0 {
			errs = append(errs, errors.New("registry reg_no_cell must not be negative"))
		}
		if strings.TrimSpace(c.Registry.Selectors.ListingRows) == "" {
			errs = append(errs, errors.New("registry selectors.listing_rows missing"))
		}
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
