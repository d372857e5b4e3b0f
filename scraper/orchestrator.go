package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"rera_crawler/browser"
	"rera_crawler/checkpoint"
	"rera_crawler/config"
	"rera_crawler/models"
	"rera_crawler/storage"
)

// ErrSessionFatal is returned when a run was aborted because the browser
// session could no longer be trusted.
var ErrSessionFatal = errors.New("session fatal")

type CrawlOptions struct {
	Offset      int // explicit start index, < 0 when unset
	ResumeAfter string
}

func DefaultCrawlOptions() CrawlOptions {
	return CrawlOptions{Offset: -1}
}

type Orchestrator struct {
	cfg      *config.Config
	store    *storage.SQLiteStore
	launcher browser.Launcher
	paused   atomic.Bool

	// Optional
	pgStore  *storage.PostgresStore
	exporter *storage.Exporter
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore, launcher browser.Launcher) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		launcher: launcher,
	}
}

// SetPostgres mirrors every written record into Postgres.
func (o *Orchestrator) SetPostgres(pg *storage.PostgresStore) {
	o.pgStore = pg
}

// SetExporter publishes the output files after every run.
func (o *Orchestrator) SetExporter(e *storage.Exporter) {
	o.exporter = e
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused.Load() {
		log.Println("Crawler is paused, skipping run")
		return nil
	}

	var errs []error
	if _, err := o.RunCrawl(ctx, DefaultCrawlOptions()); err != nil {
		errs = append(errs, fmt.Errorf("crawl: %w", err))
	}
	if o.cfg.Scheduler.Harvest {
		if _, err := o.RunHarvest(ctx); err != nil {
			errs = append(errs, fmt.Errorf("harvest: %w", err))
		}
	}
	return errors.Join(errs...)
}

// session is one launched browser with the components bound to it.
type session struct {
	client  browser.Client
	nav     *Navigator
	scanner *Scanner
	details *DetailManager
}

func (s *session) close() {
	if err := s.client.Close(); err != nil {
		log.Printf("Closing browser: %v", err)
	}
}

// openSession launches a browser and applies the district filter. The
// session is closed again when that fails.
func (o *Orchestrator) openSession(ctx context.Context, district string) (*session, Outcome) {
	client, err := o.launcher.Launch(ctx)
	if err != nil {
		return nil, Fatal(browser.NewError(browser.KindSessionFatal, "launch", "", err))
	}
	nav := NewNavigator(client, o.cfg.Registry, TimeoutsFrom(o.cfg.Crawl))
	if out := nav.Open(ctx, district); !out.IsOK() {
		client.Close()
		return nil, out
	}
	return &session{
		client:  client,
		nav:     nav,
		scanner: NewScanner(client, o.cfg.Registry),
		details: NewDetailManager(nav),
	}, OK()
}

func checkpointKey(mode models.RunMode, output string) string {
	return string(mode) + ":" + filepath.Clean(output)
}

func (o *Orchestrator) startRun(ctx context.Context, mode models.RunMode, total int) (*models.CrawlRun, error) {
	run := &models.CrawlRun{
		Mode:       mode,
		StartedAt:  time.Now(),
		Status:     models.RunStatusRunning,
		TermsTotal: total,
	}
	id, err := o.store.CreateRun(run)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	run.ID = id

	if o.pgStore != nil {
		if err := o.pgStore.CreateRun(ctx, run); err != nil {
			log.Printf("Warning: failed to create Postgres run: %v", err)
		}
	}
	return run, nil
}

// finishRun stamps the run, publishes its files and records whether the
// mode has to be resumed.
func (o *Orchestrator) finishRun(ctx context.Context, run *models.CrawlRun, fatal bool, files ...string) {
	now := time.Now()
	run.FinishedAt = &now

	if o.exporter != nil {
		urls, err := o.exporter.Export(ctx, run, files...)
		if err != nil {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("Export failed: %v", err), "")
		}
		for _, u := range urls {
			o.log(run.ID, models.LogLevelInfo, "Exported "+u, "")
		}
	}

	if err := o.store.UpdateRun(run); err != nil {
		log.Printf("Update run %d: %v", run.ID, err)
	}
	if err := o.store.SetResumePending(run.Mode, fatal); err != nil {
		log.Printf("Set resume pending for %s: %v", run.Mode, err)
	}
	if o.pgStore != nil {
		if err := o.pgStore.UpdateRun(ctx, run); err != nil {
			log.Printf("Warning: failed to update Postgres run: %v", err)
		}
	}
}

// openSinks builds the output chain for a crawl run: the file store picked
// by extension, then the SQLite record index and Postgres when configured,
// all behind registration id deduplication.
func (o *Orchestrator) openSinks(run *models.CrawlRun) (*storage.DedupSink, *storage.RecordIndex, error) {
	out := o.cfg.Paths.Output

	var primary storage.Sink
	switch strings.ToLower(filepath.Ext(out)) {
	case ".jsonl", ".ndjson":
		s, err := storage.NewJSONLSink(out, run.UUID)
		if err != nil {
			return nil, nil, err
		}
		primary = s
	default:
		s, err := storage.NewCSVSink(out)
		if err != nil {
			return nil, nil, err
		}
		primary = s
	}

	index := o.store.RecordIndex(run.UUID)
	secondary := []storage.Sink{index}
	if o.pgStore != nil {
		secondary = append(secondary, o.pgStore.Sink(run.UUID))
	}

	sink, err := storage.NewDedupSink(storage.NewMultiSink(primary, secondary...))
	if err != nil {
		primary.Close()
		return nil, nil, fmt.Errorf("load existing ids: %w", err)
	}
	return sink, index, nil
}

// RunCrawl processes the term file from the resume point to the end.
func (o *Orchestrator) RunCrawl(ctx context.Context, opts CrawlOptions) (*models.CrawlRun, error) {
	terms, err := checkpoint.ReadTerms(o.cfg.Paths.Input)
	if err != nil {
		return nil, fmt.Errorf("read terms: %w", err)
	}

	run, err := o.startRun(ctx, models.ModeCrawl, len(terms))
	if err != nil {
		return nil, err
	}

	sink, index, err := o.openSinks(run)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Open output: %v", err), "")
		o.finishRun(ctx, run, false)
		return run, err
	}

	c := &crawl{
		o:     o,
		run:   run,
		sink:  sink,
		terms: terms,
		key:   checkpointKey(models.ModeCrawl, o.cfg.Paths.Output),
	}

	resumer := &checkpoint.Resumer{
		Strategy:    o.cfg.Crawl.ResumeStrategy,
		Offset:      opts.Offset,
		ResumeAfter: opts.ResumeAfter,
		Key:         c.key,
		Store:       o.store,
		Output:      sink,
	}
	start, err := resumer.Start(ctx, terms)
	if err != nil {
		sink.Close()
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Resolve resume point: %v", err), "")
		o.finishRun(ctx, run, false)
		return run, err
	}
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Starting crawl of %d terms at index %d (%s session, %s resume)",
			len(terms), start, o.cfg.Crawl.SessionMode, resumer.Strategy), "")

	runErr := c.loop(ctx, start)

	closeErr := sink.Close()
	if closeErr != nil {
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Close output: %v", closeErr), "")
	}
	run.RowsSkipped += sink.Skipped
	if index.New+index.Changed+index.Unchanged > 0 {
		o.log(run.ID, models.LogLevelInfo,
			fmt.Sprintf("Record index: %d new, %d changed, %d unchanged", index.New, index.Changed, index.Unchanged), "")
	}

	fatal := runErr != nil
	if fatal {
		run.Status = models.RunStatusFailed
		o.log(run.ID, models.LogLevelError, fmt.Sprintf("Crawl aborted: %v", runErr), "")
	} else {
		run.Status = models.RunStatusCompleted
		if err := o.store.ClearCheckpoint(c.key); err != nil {
			log.Printf("Clear checkpoint %s: %v", c.key, err)
		}
		o.log(run.ID, models.LogLevelInfo,
			fmt.Sprintf("Completed: %d terms done, %d failed, %d records written, %d rows skipped",
				run.TermsDone, run.TermsFailed, run.RecordsWritten, run.RowsSkipped), "")
	}
	o.finishRun(ctx, run, fatal, o.cfg.Paths.Output)

	if runErr != nil {
		return run, runErr
	}
	return run, closeErr
}

// crawl is the state of one RunCrawl call.
type crawl struct {
	o     *Orchestrator
	run   *models.CrawlRun
	sink  *storage.DedupSink
	terms []models.SearchTerm
	key   string
}

func (c *crawl) loop(ctx context.Context, start int) error {
	o := c.o
	district := o.cfg.Registry.CrawlDistrict
	perTerm := o.cfg.Crawl.SessionMode == config.SessionPerTerm

	limit := rate.Inf
	if o.cfg.Crawl.TermDelay > 0 {
		limit = rate.Every(o.cfg.Crawl.TermDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var sess *session
	defer func() {
		if sess != nil {
			sess.close()
		}
	}()

	for i := start; i < len(c.terms); i++ {
		term := c.terms[i]
		if err := limiter.Wait(ctx); err != nil {
			return err
		}

		var out Outcome
		switch {
		case sess == nil:
			sess, out = o.openSession(ctx, district)
		case perTerm:
			sess.close()
			sess, out = o.openSession(ctx, district)
		default:
			out = sess.nav.Reset(ctx, district)
		}

		var rowID string
		if out.IsOK() {
			out, rowID = c.term(ctx, sess, term)
		} else if i == start {
			// Nothing can be crawled when the very first filter fails.
			out = Fatal(fmt.Errorf("initial filter: %w", out.Err))
		}

		if !out.IsOK() {
			c.failure(term, rowID, stateOf(sess), out)
		}
		if out.IsFatal() {
			return c.abort(out)
		}
		if out.IsOK() {
			c.run.TermsDone++
		} else {
			c.run.TermsFailed++
		}

		if err := c.sink.Flush(); err != nil {
			return c.abort(Fatal(fmt.Errorf("flush output: %w", err)))
		}
		cp := &models.Checkpoint{Key: c.key, Index: term.Index, Term: term.Value}
		if err := o.store.SaveCheckpoint(ctx, cp); err != nil {
			log.Printf("Save checkpoint at %d: %v", term.Index, err)
		}
	}
	return nil
}

func stateOf(s *session) State {
	if s == nil {
		return StateInit
	}
	return s.nav.State()
}

// abort flushes what was written so far and turns out into the run error.
func (c *crawl) abort(out Outcome) error {
	if err := c.sink.Flush(); err != nil {
		log.Printf("Flush after abort: %v", err)
	}
	return fmt.Errorf("%w: %v", ErrSessionFatal, out.Err)
}

// term searches one term and processes every result row. Row failures that
// do not end the term are recorded here; otherwise the failing row id is
// returned with the outcome.
func (c *crawl) term(ctx context.Context, sess *session, term models.SearchTerm) (Outcome, string) {
	if out := sess.nav.Search(ctx, term.Value); !out.IsOK() {
		return out, ""
	}

	rows, err := sess.scanner.Rows()
	if err != nil {
		return sess.nav.fail(outcomeOf(err)), ""
	}
	if len(rows) == 0 {
		c.o.log(c.run.ID, models.LogLevelInfo, "No results", term.Value)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return Fatal(err), ""
		}

		id := row.Summary.RegNo
		if id == "" {
			id = row.Summary.AckNo
		}
		res := sess.details.Process(ctx, term.Value, row)
		switch {
		case res.Outcome.IsFatal():
			return res.Outcome, id
		case res.Outcome.IsOK():
			if err := c.write(ctx, res.Record); err != nil {
				return Fatal(err), id
			}
		default:
			c.run.RowsSkipped++
			c.failure(term, id, res.State, res.Outcome)
		}

		if !res.Release.IsOK() {
			if !res.Release.IsFatal() {
				sess.nav.fail(res.Release)
			}
			return res.Release, id
		}
		sess.nav.enter(StateListing)
	}

	sess.nav.enter(StateTermDone)
	c.o.log(c.run.ID, models.LogLevelInfo, fmt.Sprintf("Term done: %d rows", len(rows)), term.Value)
	return OK(), ""
}

func (c *crawl) write(ctx context.Context, r *models.ProjectRecord) error {
	skipped := c.sink.Skipped
	if err := c.sink.Write(ctx, r); err != nil {
		return fmt.Errorf("write %s: %w", r.ID(), err)
	}
	if c.sink.Skipped == skipped {
		c.run.RecordsWritten++
	}
	return nil
}

func (c *crawl) failure(term models.SearchTerm, rowID string, state State, out Outcome) {
	c.run.ErrorsCount++
	f := models.Failure{
		Term:  term.Value,
		RowID: rowID,
		State: state.String(),
		Kind:  out.Kind.String(),
	}
	if out.Err != nil {
		f.Err = out.Err.Error()
	}
	level := models.LogLevelWarn
	if out.IsFatal() {
		level = models.LogLevelError
	}
	c.o.log(c.run.ID, level, f.String(), term.Value)
	if err := c.o.store.RecordFailure(c.run.ID, f); err != nil {
		log.Printf("Record failure: %v", err)
	}
}

// RunHarvest collects registration ids over every result page of the
// harvest district.
func (o *Orchestrator) RunHarvest(ctx context.Context) (*models.CrawlRun, error) {
	ids, err := storage.NewRegNoStore(o.cfg.Paths.RegNos)
	if err != nil {
		return nil, fmt.Errorf("open id store: %w", err)
	}
	defer ids.Close()

	run, err := o.startRun(ctx, models.ModeHarvest, 0)
	if err != nil {
		return nil, err
	}
	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Starting harvest of %q, %d ids known", o.cfg.Registry.HarvestDistrict, ids.Len()), "")

	sess, out := o.openSession(ctx, o.cfg.Registry.HarvestDistrict)
	var stats HarvestStats
	if out.IsOK() {
		h := NewHarvester(sess.nav, ids, o.cfg.Crawl.HarvestMaxPage, o.cfg.Crawl.HarvestDelay)
		stats, out = h.Run(ctx)
		sess.close()
	} else {
		out = Fatal(fmt.Errorf("initial filter: %w", out.Err))
	}

	run.TermsTotal = stats.Pages
	run.TermsDone = stats.Pages
	run.RecordsWritten = stats.New
	run.RowsSkipped = stats.Skipped

	var runErr error
	if out.IsOK() {
		run.Status = models.RunStatusCompleted
		o.log(run.ID, models.LogLevelInfo,
			fmt.Sprintf("Completed: %d pages, %d ids seen, %d new", stats.Pages, stats.Seen, stats.New), "")
	} else {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		o.log(run.ID, models.LogLevelError,
			fmt.Sprintf("Harvest stopped after %d pages: %s", stats.Pages, out), "")
		runErr = out.Err
		if out.IsFatal() {
			runErr = fmt.Errorf("%w: %v", ErrSessionFatal, out.Err)
		}
	}
	o.finishRun(ctx, run, out.IsFatal(), o.cfg.Paths.RegNos)
	return run, runErr
}

// HandleCommand executes one queued console command. Runs it starts are
// bound to ctx.
func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := o.store.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdCrawlNow:
		opts := DefaultCrawlOptions()
		if params.Offset != nil {
			opts.Offset = *params.Offset
		}
		opts.ResumeAfter = params.ResumeAfter
		_, err := o.RunCrawl(ctx, opts)
		return err
	case models.CmdHarvestNow:
		_, err := o.RunHarvest(ctx)
		return err
	case models.CmdPause:
		o.paused.Store(true)
		log.Println("Crawler paused")
	case models.CmdResume:
		o.paused.Store(false)
		log.Println("Crawler resumed")
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, term string) {
	if term != "" {
		log.Printf("[%s] %s: %s", level, term, message)
	} else {
		log.Printf("[%s] %s", level, message)
	}
	o.store.Log(&runID, level, message, term)
}
