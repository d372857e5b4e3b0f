package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rera_crawler/browser"
	"rera_crawler/config"
	"rera_crawler/logging"
	"rera_crawler/models"
	"rera_crawler/scheduler"
	"rera_crawler/scraper"
	"rera_crawler/storage"
)

var (
	scrapeNow   = flag.Bool("scrape", false, "Run once and exit")
	mode        = flag.String("mode", "crawl", "Run mode: crawl or harvest")
	offset      = flag.Int("offset", -1, "Start at this term index (positional resume)")
	resumeAfter = flag.String("resume-after", "", "Start after this registration id (content resume)")
	input       = flag.String("input", "", "Term file (overrides INPUT_PATH)")
	output      = flag.String("output", "", "Output file, .csv or .jsonl (overrides OUTPUT_PATH)")
	command     = flag.String("command", "", "Queue a command for a running daemon: crawl_now, harvest_now, pause, resume")
	reset       = flag.Bool("reset", false, "Clear the run journal and exit")
	status      = flag.Bool("status", false, "Print recent runs and the failures of the latest one, then exit")
	runID       = flag.Int64("run", 0, "Print the log and failures of this run, then exit")
	show        = flag.String("show", "", "Print the indexed record for this registration id, then exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *input != "" {
		cfg.Paths.Input = *input
	}
	if *output != "" {
		cfg.Paths.Output = *output
	}

	logFile, err := logging.Setup(cfg.Log.Path, cfg.Log.MaxSize, cfg.Log.Backups)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting rera_crawler...")
	log.Printf("Registry: %s (crawl %q, harvest %q)",
		cfg.Registry.URL, cfg.Registry.CrawlDistrict, cfg.Registry.HarvestDistrict)

	sqliteStore, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open SQLite: %v", err)
	}
	defer sqliteStore.Close()
	log.Printf("SQLite database: %s", cfg.DBPath)

	if *reset {
		if err := sqliteStore.ResetAllData(); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		log.Println("Journal cleared")
		return
	}

	if *status || *runID > 0 || *show != "" {
		if err := report(os.Stdout, sqliteStore, *show, *runID); err != nil {
			log.Fatalf("Report failed: %v", err)
		}
		return
	}

	if *command != "" {
		params := models.CommandParams{ResumeAfter: *resumeAfter}
		if *offset >= 0 {
			params.Offset = offset
		}
		id, err := sqliteStore.EnqueueCommand(models.CommandType(*command), params)
		if err != nil {
			log.Fatalf("Queue command: %v", err)
		}
		log.Printf("Queued command %s (#%d)", *command, id)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	launcher := browser.NewPlaywrightLauncher(browser.PlaywrightOptions{
		Headless:        cfg.Browser.Headless,
		ActionTimeout:   cfg.Browser.ActionTimeout,
		PromptSelectors: cfg.Registry.PromptSelectors,
	})
	orchestrator := scraper.NewOrchestrator(cfg, sqliteStore, launcher)

	if cfg.DatabaseURL != "" {
		pgStore, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to Postgres: %v", err)
		}
		defer pgStore.Close()
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to create Postgres schema: %v", err)
		}
		orchestrator.SetPostgres(pgStore)
		log.Printf("Connected to Postgres: %s", maskConnectionString(cfg.DatabaseURL))
	}

	if s3cfg := s3Config(cfg.S3); s3cfg.Enabled() {
		uploader, err := storage.NewS3Uploader(ctx, s3cfg)
		if err != nil {
			log.Fatalf("Failed to set up S3: %v", err)
		}
		orchestrator.SetExporter(storage.NewExporter(uploader, s3cfg))
		log.Printf("Exporting output to s3://%s/%s", s3cfg.Bucket, s3cfg.Prefix)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *scrapeNow {
		runMode, err := scraper.ParseMode(*mode)
		if err != nil {
			log.Fatal(err)
		}
		go func() {
			<-sigCh
			log.Println("Interrupted, stopping after the current step...")
			cancel()
		}()

		opts := scraper.DefaultCrawlOptions()
		opts.Offset = *offset
		opts.ResumeAfter = *resumeAfter

		log.Printf("Running %s...", runMode)
		run, err := orchestrator.RunMode(ctx, runMode, opts)
		if err != nil {
			log.Fatalf("Run failed: %v", err)
		}
		log.Printf("Run complete: %d terms done, %d failed, %d records",
			run.TermsDone, run.TermsFailed, run.RecordsWritten)
		return
	}

	// Daemon mode
	sched := scheduler.New(cfg, orchestrator, sqliteStore)
	if err := sched.Start(ctx); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Println("Daemon running. Press Ctrl+C to stop.")
	<-sigCh

	log.Println("Shutting down...")
	cancel()
	sched.Stop()
	log.Println("Goodbye!")
}

func s3Config(c config.S3Config) storage.S3Config {
	return storage.S3Config{
		Bucket:          c.Bucket,
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Prefix:          c.Prefix,
	}
}

// maskConnectionString masks password in connection string for logging
func maskConnectionString(connStr string) string {
	// Simple mask - find :// and mask until @
	start := 0
	for i := 0; i < len(connStr)-3; i++ {
		if connStr[i:i+3] == "://" {
			start = i + 3
			break
		}
	}
	if start == 0 {
		return connStr
	}

	// Find : after user
	colonIdx := -1
	atIdx := -1
	for i := start; i < len(connStr); i++ {
		if connStr[i] == ':' && colonIdx == -1 {
			colonIdx = i
		}
		if connStr[i] == '@' {
			atIdx = i
			break
		}
	}

	if colonIdx > 0 && atIdx > colonIdx {
		return connStr[:colonIdx+1] + "****" + connStr[atIdx:]
	}
	return connStr
}
