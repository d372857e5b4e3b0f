package scraper

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rera_crawler/checkpoint"
	"rera_crawler/config"
	"rera_crawler/models"
	"rera_crawler/storage"
)

type testEnv struct {
	orch  *Orchestrator
	cfg   *config.Config
	store *storage.SQLiteStore
	site  *simSite
}

func newTestEnv(t *testing.T, site *simSite, terms []string) *testEnv {
	t.Helper()
	dir := t.TempDir()

	input := filepath.Join(dir, "terms.csv")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(terms, "\n")+"\n"), 0o644))

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "crawler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Crawl: config.CrawlConfig{
			SessionMode:    config.SessionShared,
			ResumeStrategy: checkpoint.StrategyPositional,
			OuterTimeout:   testTimeouts.Outer,
			InnerTimeout:   testTimeouts.Inner,
			ContextPoll:    testTimeouts.ContextPoll,
		},
		Paths: config.PathsConfig{
			Input:  input,
			Output: filepath.Join(dir, "out.csv"),
			RegNos: filepath.Join(dir, "registration_numbers.csv"),
		},
		Registry: site.reg,
	}
	return &testEnv{orch: NewOrchestrator(cfg, store, site), cfg: cfg, store: store, site: site}
}

func (e *testEnv) outputIDs(t *testing.T) []string {
	t.Helper()
	var ids []string
	switch filepath.Ext(e.cfg.Paths.Output) {
	case ".jsonl":
		require.NoError(t, storage.ReadJSONL(e.cfg.Paths.Output, func(r *models.ProjectRecord) {
			ids = append(ids, r.ID())
		}))
	default:
		data, err := os.ReadFile(e.cfg.Paths.Output)
		require.NoError(t, err)
		s, err := storage.NewCSVSink(e.cfg.Paths.Output)
		require.NoError(t, err)
		defer s.Close()
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.NotEmpty(t, lines)
		last, err := s.LastIdentifier()
		require.NoError(t, err)
		seen, err := s.Identifiers()
		require.NoError(t, err)
		require.Len(t, seen, len(lines)-1)
		for id := range seen {
			ids = append(ids, id)
		}
		if len(ids) > 0 {
			assert.True(t, seen[last])
		}
	}
	return ids
}

func oneRowPerTerm(site *simSite, terms ...string) {
	for _, term := range terms {
		site.results[term] = []simRow{{regNo: term, taluk: "Anekal"}}
	}
}

func TestRunCrawlWritesOneRecordPerRow(t *testing.T) {
	site := newSimSite()
	oneRowPerTerm(site, "PRM/1", "PRM/2")
	site.results["PRM/3"] = []simRow{
		{regNo: "PRM/3", behavior: openInPlace},
		{regNo: "PRM/3-B", behavior: blockedClick},
		{regNo: "PRM/3-C", behavior: noTrigger},
	}
	env := newTestEnv(t, site, []string{"PRM/1", "PRM/2", "PRM/3"})

	run, err := env.orch.RunCrawl(context.Background(), DefaultCrawlOptions())
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.TermsDone)
	assert.Zero(t, run.TermsFailed)
	assert.Equal(t, 4, run.RecordsWritten)
	assert.Equal(t, 1, run.RowsSkipped)
	assert.ElementsMatch(t, []string{"PRM/1", "PRM/2", "PRM/3", "PRM/3-B"}, env.outputIDs(t))

	// One shared session: opened once, reloaded before every later term.
	assert.Equal(t, 1, site.launches)
	assert.Equal(t, 1, site.navigations)
	assert.Equal(t, 2, site.reloads)
	assert.True(t, site.sessions[0].closed)

	failures, err := env.store.GetFailures(run.ID)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "PRM/3-C", failures[0].RowID)
	assert.Equal(t, "element_not_found", failures[0].Kind)

	n, err := env.store.CountRecords()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	logs, err := env.store.GetLogs(run.ID)
	require.NoError(t, err)
	var messages []string
	for _, l := range logs {
		messages = append(messages, l.Message)
	}
	assert.Contains(t, messages, "Record index: 4 new, 0 changed, 0 unchanged")

	cp, err := env.store.GetCheckpoint(context.Background(), checkpointKey(models.ModeCrawl, env.cfg.Paths.Output))
	require.NoError(t, err)
	assert.Nil(t, cp, "checkpoint is cleared once every term is done")
}

func TestRunCrawlFailedSearchMovesOn(t *testing.T) {
	site := newSimSite()
	oneRowPerTerm(site, "A", "C")
	site.failSearch["B"] = true
	env := newTestEnv(t, site, []string{"A", "B", "C"})

	run, err := env.orch.RunCrawl(context.Background(), DefaultCrawlOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, run.TermsDone)
	assert.Equal(t, 1, run.TermsFailed)
	assert.Equal(t, []string{"A", "B", "C"}, site.searches)
	assert.ElementsMatch(t, []string{"A", "C"}, env.outputIDs(t))

	failures, err := env.store.GetFailures(run.ID)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, "B", failures[0].Term)
	assert.Equal(t, "timeout", failures[0].Kind)
}

func TestRunCrawlDismissesDialogAfterSearch(t *testing.T) {
	site := newSimSite()
	oneRowPerTerm(site, "A", "B", "C")
	site.promptOnSearch["B"] = true
	env := newTestEnv(t, site, []string{"A", "B", "C"})

	run, err := env.orch.RunCrawl(context.Background(), DefaultCrawlOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, run.TermsDone)
	assert.Zero(t, run.TermsFailed)
	assert.ElementsMatch(t, []string{"A", "B", "C"}, env.outputIDs(t))
	assert.Equal(t, 1, site.dismissals)
}

func TestRunCrawlDeduplicatesAcrossTerms(t *testing.T) {
	site := newSimSite()
	site.results["A"] = []simRow{{regNo: "PRM/1"}, {regNo: "PRM/2"}}
	site.results["B"] = []simRow{{regNo: "PRM/2"}, {regNo: "PRM/3"}}
	env := newTestEnv(t, site, []string{"A", "B"})

	run, err := env.orch.RunCrawl(context.Background(), DefaultCrawlOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, run.RecordsWritten)
	assert.Equal(t, 1, run.RowsSkipped)
	assert.ElementsMatch(t, []string{"PRM/1", "PRM/2", "PRM/3"}, env.outputIDs(t))
}

func TestRunCrawlKeepsRowsWithBlankRegistration(t *testing.T) {
	site := newSimSite()
	site.results["T"] = []simRow{{ackNo: "ACK/KA/1"}, {ackNo: "ACK/KA/2"}}
	env := newTestEnv(t, site, []string{"T"})

	run, err := env.orch.RunCrawl(context.Background(), DefaultCrawlOptions())
	require.NoError(t, err)

	assert.Equal(t, 2, run.RecordsWritten)
	assert.Zero(t, run.RowsSkipped)
	assert.ElementsMatch(t, []string{"ACK/KA/1", "ACK/KA/2"}, env.outputIDs(t))
}

func TestRunCrawlResumesAfterSessionLoss(t *testing.T) {
	site := newSimSite()
	oneRowPerTerm(site, "A", "B", "D")
	site.results["C"] = []simRow{{regNo: "C", behavior: sessionLost}}
	env := newTestEnv(t, site, []string{"A", "B", "C", "D"})

	run, err := env.orch.RunCrawl(context.Background(), DefaultCrawlOptions())
	require.ErrorIs(t, err, ErrSessionFatal)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Equal(t, 2, run.TermsDone)
	assert.ElementsMatch(t, []string{"A", "B"}, env.outputIDs(t))

	key := checkpointKey(models.ModeCrawl, env.cfg.Paths.Output)
	cp, err := env.store.GetCheckpoint(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, 1, cp.Index)
	assert.Equal(t, "B", cp.Term)

	pending, err := env.store.GetModesPendingResume()
	require.NoError(t, err)
	assert.Equal(t, []models.RunMode{models.ModeCrawl}, pending)

	// The site recovers; the next run picks up at the term that failed.
	site.results["C"] = []simRow{{regNo: "C"}}
	site.searches = nil

	run, err = env.orch.RunCrawl(context.Background(), DefaultCrawlOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, site.searches)
	assert.Equal(t, 2, run.RecordsWritten)
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, env.outputIDs(t))

	pending, err = env.store.GetModesPendingResume()
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunCrawlExplicitOffset(t *testing.T) {
	site := newSimSite()
	oneRowPerTerm(site, "A", "B", "C")
	env := newTestEnv(t, site, []string{"A", "B", "C"})

	opts := DefaultCrawlOptions()
	opts.Offset = 2
	_, err := env.orch.RunCrawl(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, site.searches)
}

func TestRunCrawlContentResume(t *testing.T) {
	site := newSimSite()
	oneRowPerTerm(site, "PRM/1", "PRM/2", "PRM/3", "PRM/4")
	env := newTestEnv(t, site, []string{"PRM/1", "PRM/2", "PRM/3", "PRM/4"})
	env.cfg.Crawl.ResumeStrategy = checkpoint.StrategyContent
	env.cfg.Paths.Output = filepath.Join(t.TempDir(), "out.jsonl")

	opts := DefaultCrawlOptions()
	opts.ResumeAfter = "PRM/2"
	_, err := env.orch.RunCrawl(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"PRM/3", "PRM/4"}, site.searches)

	// Without an explicit id the last record in the output decides.
	site.searches = nil
	_, err = env.orch.RunCrawl(context.Background(), DefaultCrawlOptions())
	require.NoError(t, err)
	assert.Empty(t, site.searches)
	assert.ElementsMatch(t, []string{"PRM/3", "PRM/4"}, env.outputIDs(t))
}

func TestRunCrawlPerTermSessions(t *testing.T) {
	site := newSimSite()
	oneRowPerTerm(site, "A", "B", "C")
	env := newTestEnv(t, site, []string{"A", "B", "C"})
	env.cfg.Crawl.SessionMode = config.SessionPerTerm
	env.cfg.Crawl.TermDelay = 10 * time.Millisecond

	start := time.Now()
	run, err := env.orch.RunCrawl(context.Background(), DefaultCrawlOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, run.RecordsWritten)
	assert.Equal(t, 3, site.launches)
	for _, s := range site.sessions {
		assert.True(t, s.closed)
	}
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestRunCrawlInitialFilterFailureIsFatal(t *testing.T) {
	site := newSimSite()
	oneRowPerTerm(site, "A")
	site.failFilter = true
	env := newTestEnv(t, site, []string{"A"})

	run, err := env.orch.RunCrawl(context.Background(), DefaultCrawlOptions())
	require.ErrorIs(t, err, ErrSessionFatal)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	assert.Empty(t, site.searches)
}

func TestRunCrawlCanceled(t *testing.T) {
	site := newSimSite()
	oneRowPerTerm(site, "A", "B")
	env := newTestEnv(t, site, []string{"A", "B"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.orch.RunCrawl(ctx, DefaultCrawlOptions())
	require.Error(t, err)
	assert.Empty(t, site.searches)
}

func TestRunHarvest(t *testing.T) {
	site := newSimSite()
	site.pages = [][]string{{"PRM/1", "PRM/2"}, {"PRM/2", "PRM/3"}}
	env := newTestEnv(t, site, nil)

	run, err := env.orch.RunHarvest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ModeHarvest, run.Mode)
	assert.Equal(t, 2, run.TermsDone)
	assert.Equal(t, 3, run.RecordsWritten)

	ids, err := storage.NewRegNoStore(env.cfg.Paths.RegNos)
	require.NoError(t, err)
	defer ids.Close()
	assert.Equal(t, 3, ids.Len())

	// A second harvest finds nothing new.
	run, err = env.orch.RunHarvest(context.Background())
	require.NoError(t, err)
	assert.Zero(t, run.RecordsWritten)
}

func TestHandleCommand(t *testing.T) {
	site := newSimSite()
	oneRowPerTerm(site, "A", "B")
	env := newTestEnv(t, site, []string{"A", "B"})

	require.NoError(t, env.orch.HandleCommand(context.Background(), &models.Command{Command: models.CmdPause}))
	assert.True(t, env.orch.IsPaused())
	require.NoError(t, env.orch.RunAll(context.Background()))
	assert.Empty(t, site.searches)

	require.NoError(t, env.orch.HandleCommand(context.Background(), &models.Command{Command: models.CmdResume}))
	assert.False(t, env.orch.IsPaused())

	cmd := &models.Command{Command: models.CmdCrawlNow, Params: []byte(`{"offset":1}`)}
	require.NoError(t, env.orch.HandleCommand(context.Background(), cmd))
	assert.Equal(t, []string{"B"}, site.searches)

	assert.Error(t, env.orch.HandleCommand(context.Background(), &models.Command{Command: "bogus"}))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, models.ModeCrawl, m)

	m, err = ParseMode("harvest")
	require.NoError(t, err)
	assert.Equal(t, models.ModeHarvest, m)

	_, err = ParseMode("scrape")
	assert.Error(t, err)
}
