package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"rera_crawler/identity"
	"rera_crawler/models"
)

// SQLiteStore is the operational journal: runs, logs, failures, checkpoints,
// queued commands and an index of every record written.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY,
		uuid TEXT NOT NULL,
		mode TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		terms_total INTEGER DEFAULT 0,
		terms_done INTEGER DEFAULT 0,
		terms_failed INTEGER DEFAULT 0,
		records_written INTEGER DEFAULT 0,
		rows_skipped INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS crawl_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		term TEXT,
		message TEXT
	);

	CREATE TABLE IF NOT EXISTS crawl_failures (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		term TEXT,
		row_id TEXT,
		state TEXT,
		kind TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS crawl_checkpoints (
		key TEXT PRIMARY KEY,
		term_index INTEGER NOT NULL,
		term TEXT,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS mode_stats (
		mode TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		resume_pending BOOLEAN DEFAULT FALSE
	);

	CREATE TABLE IF NOT EXISTS project_records (
		reg_no TEXT PRIMARY KEY,
		fingerprint TEXT,
		search_term TEXT,
		run_uuid TEXT,
		data JSON,
		first_seen_at DATETIME,
		last_seen_at DATETIME,
		times_seen INTEGER DEFAULT 1
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_logs_run ON crawl_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON crawl_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_failures_run ON crawl_failures(run_id);
	CREATE INDEX IF NOT EXISTS idx_records_fingerprint ON project_records(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Runs
// =============================================================================

func (s *SQLiteStore) CreateRun(run *models.CrawlRun) (int64, error) {
	if run.UUID == uuid.Nil {
		run.UUID = uuid.New()
	}
	result, err := s.db.Exec(`
		INSERT INTO crawl_runs (uuid, mode, started_at, status, terms_total)
		VALUES (?, ?, ?, ?, ?)`,
		run.UUID.String(), run.Mode, run.StartedAt, run.Status, run.TermsTotal)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.CrawlRun) error {
	_, err := s.db.Exec(`
		UPDATE crawl_runs SET finished_at = ?, status = ?, terms_total = ?, terms_done = ?,
			terms_failed = ?, records_written = ?, rows_skipped = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.TermsTotal, run.TermsDone, run.TermsFailed,
		run.RecordsWritten, run.RowsSkipped, run.ErrorsCount, run.ID)
	if err != nil {
		return err
	}
	if run.FinishedAt == nil {
		return nil
	}
	_, err = s.db.Exec(`
		INSERT INTO mode_stats (mode, last_run_at, last_run_status)
		VALUES (?, ?, ?)
		ON CONFLICT(mode) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status`,
		run.Mode, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.CrawlRun, error) {
	row := s.db.QueryRow(`
		SELECT id, uuid, mode, started_at, finished_at, status, terms_total, terms_done,
			terms_failed, records_written, rows_skipped, errors_count
		FROM crawl_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) GetRecentRuns(limit int) ([]models.CrawlRun, error) {
	rows, err := s.db.Query(`
		SELECT id, uuid, mode, started_at, finished_at, status, terms_total, terms_done,
			terms_failed, records_written, rows_skipped, errors_count
		FROM crawl_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.CrawlRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.CrawlRun, error) {
	var run models.CrawlRun
	var id string
	var finished sql.NullTime
	if err := row.Scan(&run.ID, &id, &run.Mode, &run.StartedAt, &finished, &run.Status,
		&run.TermsTotal, &run.TermsDone, &run.TermsFailed, &run.RecordsWritten,
		&run.RowsSkipped, &run.ErrorsCount); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("run %d: %w", run.ID, err)
	}
	run.UUID = parsed
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	return &run, nil
}

// =============================================================================
// Logs and failures
// =============================================================================

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, term string) error {
	_, err := s.db.Exec(`
		INSERT INTO crawl_logs (run_id, timestamp, level, term, message)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, term, message)
	return err
}

func (s *SQLiteStore) GetLogs(runID int64) ([]models.CrawlLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, COALESCE(term, ''), message
		FROM crawl_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.CrawlLog
	for rows.Next() {
		var l models.CrawlLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Term, &l.Message); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) RecordFailure(runID int64, f models.Failure) error {
	_, err := s.db.Exec(`
		INSERT INTO crawl_failures (run_id, term, row_id, state, kind, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		runID, f.Term, f.RowID, f.State, f.Kind, f.Err)
	return err
}

func (s *SQLiteStore) GetFailures(runID int64) ([]models.Failure, error) {
	rows, err := s.db.Query(`
		SELECT term, COALESCE(row_id, ''), state, kind, error
		FROM crawl_failures WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []models.Failure
	for rows.Next() {
		var f models.Failure
		if err := rows.Scan(&f.Term, &f.RowID, &f.State, &f.Kind, &f.Err); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// =============================================================================
// Checkpoints and resume
// =============================================================================

func (s *SQLiteStore) GetCheckpoint(ctx context.Context, key string) (*models.Checkpoint, error) {
	var cp models.Checkpoint
	err := s.db.QueryRowContext(ctx, `
		SELECT key, term_index, COALESCE(term, ''), updated_at
		FROM crawl_checkpoints WHERE key = ?`, key).Scan(&cp.Key, &cp.Index, &cp.Term, &cp.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// SaveCheckpoint only moves forward: an index lower than the stored one is
// ignored.
func (s *SQLiteStore) SaveCheckpoint(ctx context.Context, cp *models.Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO crawl_checkpoints (key, term_index, term, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			term_index = excluded.term_index,
			term = excluded.term,
			updated_at = excluded.updated_at
		WHERE excluded.term_index >= crawl_checkpoints.term_index`,
		cp.Key, cp.Index, cp.Term, cp.UpdatedAt)
	return err
}

func (s *SQLiteStore) ClearCheckpoint(key string) error {
	_, err := s.db.Exec(`DELETE FROM crawl_checkpoints WHERE key = ?`, key)
	return err
}

func (s *SQLiteStore) SetResumePending(mode models.RunMode, pending bool) error {
	_, err := s.db.Exec(`
		INSERT INTO mode_stats (mode, resume_pending)
		VALUES (?, ?)
		ON CONFLICT(mode) DO UPDATE SET resume_pending = ?`, mode, pending, pending)
	return err
}

func (s *SQLiteStore) GetModesPendingResume() ([]models.RunMode, error) {
	rows, err := s.db.Query(`
		SELECT mode FROM mode_stats WHERE resume_pending = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modes []models.RunMode
	for rows.Next() {
		var mode models.RunMode
		if err := rows.Scan(&mode); err != nil {
			return nil, err
		}
		modes = append(modes, mode)
	}
	return modes, rows.Err()
}

func (s *SQLiteStore) GetLastRunTime(mode models.RunMode) (time.Time, error) {
	var lastRun sql.NullTime
	err := s.db.QueryRow(`
		SELECT last_run_at FROM mode_stats WHERE mode = ?`, mode).Scan(&lastRun)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return lastRun.Time, nil
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params models.CommandParams) (int64, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return 0, err
	}
	result, err := s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, cmd, string(data))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, COALESCE(params, '{}'), created_at
		FROM commands WHERE processed_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params string
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt); err != nil {
			return nil, err
		}
		cmd.Params = json.RawMessage(params)
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	var params models.CommandParams
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &params); err != nil {
			return nil, err
		}
	}
	return &params, nil
}

// =============================================================================
// Record index
// =============================================================================

// RecordChange is how an indexed record compares with the stored copy.
type RecordChange int

const (
	RecordNew RecordChange = iota
	RecordChanged
	RecordUnchanged
)

// UpsertRecord indexes a written record by registration id. Seeing the same
// id again refreshes the stored copy and bumps times_seen; the stored
// fingerprint tells whether the registry changed the project since.
func (s *SQLiteStore) UpsertRecord(ctx context.Context, runID uuid.UUID, r *models.ProjectRecord) (RecordChange, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return RecordNew, fmt.Errorf("marshal record: %w", err)
	}
	fp := identity.Fingerprint(r)

	change := RecordNew
	var prev string
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(fingerprint, '') FROM project_records WHERE reg_no = ?`, r.ID()).Scan(&prev)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return RecordNew, fmt.Errorf("read fingerprint: %w", err)
	case prev == fp:
		change = RecordUnchanged
	default:
		change = RecordChanged
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO project_records (reg_no, fingerprint, search_term, run_uuid, data, first_seen_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(reg_no) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			search_term = excluded.search_term,
			run_uuid = excluded.run_uuid,
			data = excluded.data,
			last_seen_at = excluded.last_seen_at,
			times_seen = project_records.times_seen + 1`,
		r.ID(), fp, r.Term, runID.String(), string(data), now, now)
	return change, err
}

func (s *SQLiteStore) GetRecord(regNo string) (*models.ProjectRecord, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM project_records WHERE reg_no = ?`, regNo).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r models.ProjectRecord
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) CountRecords() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM project_records`).Scan(&n)
	return n, err
}

// RecordIndex exposes the record table as a secondary Sink for one run.
func (s *SQLiteStore) RecordIndex(runID uuid.UUID) *RecordIndex {
	return &RecordIndex{store: s, runID: runID}
}

// New, Changed and Unchanged count the records written through the index.
type RecordIndex struct {
	store *SQLiteStore
	runID uuid.UUID

	New       int
	Changed   int
	Unchanged int
}

func (i *RecordIndex) Write(ctx context.Context, r *models.ProjectRecord) error {
	change, err := i.store.UpsertRecord(ctx, i.runID, r)
	if err != nil {
		return err
	}
	switch change {
	case RecordNew:
		i.New++
	case RecordChanged:
		i.Changed++
	default:
		i.Unchanged++
	}
	return nil
}

func (i *RecordIndex) Flush() error { return nil }

// Close leaves the database open; its owner closes the store.
func (i *RecordIndex) Close() error { return nil }

// ResetAllData clears all SQLite operational tables
func (s *SQLiteStore) ResetAllData() error {
	tables := []string{
		"crawl_logs",
		"crawl_failures",
		"crawl_runs",
		"crawl_checkpoints",
		"mode_stats",
		"project_records",
		"commands",
	}

	for _, table := range tables {
		_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return nil
}
