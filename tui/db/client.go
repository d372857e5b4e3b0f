package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Client reads the crawler daemon's SQLite journal and writes to its
// command queue. It never touches the output files.
type Client struct {
	db *sql.DB
}

type ModeStats struct {
	Mode           string
	LastRunAt      *time.Time
	LastRunStatus  *string
	ResumePending  bool
	CheckpointTerm string
	CheckpointIdx  int
	HasCheckpoint  bool
}

type CrawlRun struct {
	ID             int64
	UUID           string
	Mode           string
	StartedAt      time.Time
	FinishedAt     *time.Time
	Status         string
	TermsTotal     int
	TermsDone      int
	TermsFailed    int
	RecordsWritten int
	RowsSkipped    int
	ErrorsCount    int
}

type CrawlLog struct {
	ID        int64
	RunID     *int64
	Timestamp time.Time
	Level     string
	Term      string
	Message   string
}

type Failure struct {
	ID        int64
	RunID     int64
	Term      string
	RowID     string
	State     string
	Kind      string
	Error     string
	CreatedAt time.Time
}

// Record is one row of project_records with the summary columns lifted
// out of the stored JSON.
type Record struct {
	RegNo       string
	ProjectName string
	Promoter    string
	District    string
	Status      string
	SearchTerm  string
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	TimesSeen   int
}

type RecordDetail struct {
	Summary struct {
		AckNo                  string `json:"ack_no"`
		Taluk                  string `json:"taluk"`
		ApprovedOn             string `json:"approved_on"`
		ProposedCompletionDate string `json:"proposed_completion_date"`
		ComplaintsLitigation   string `json:"complaints_litigation"`
	} `json:"summary"`
	Details struct {
		ProjectSubType string `json:"project_sub_type"`
		ProjectStatus  string `json:"project_status"`
		ProjectCost    string `json:"project_cost"`
		TotalArea      string `json:"total_area"`
		Units          string `json:"units"`
		Taluk          string `json:"taluk"`
		ProjectAddress string `json:"project_address"`
		Latitude       string `json:"latitude"`
		Longitude      string `json:"longitude"`
	} `json:"details"`
	Inventories []json.RawMessage `json:"inventories"`
	Towers      []struct {
		TowerName  string `json:"tower_name"`
		Floors     string `json:"no_of_floors"`
		TotalUnits string `json:"total_units"`
	} `json:"towers"`
	Amenities []json.RawMessage `json:"amenities"`
}

func New(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) GetModeStats() ([]ModeStats, error) {
	rows, err := c.db.Query(`
		SELECT m.mode, m.last_run_at, m.last_run_status, COALESCE(m.resume_pending, 0),
			(SELECT term FROM crawl_checkpoints WHERE key LIKE m.mode || ':%' ORDER BY updated_at DESC LIMIT 1),
			(SELECT term_index FROM crawl_checkpoints WHERE key LIKE m.mode || ':%' ORDER BY updated_at DESC LIMIT 1)
		FROM mode_stats m
		ORDER BY m.mode
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ModeStats
	for rows.Next() {
		var s ModeStats
		var lastRunAt sql.NullTime
		var lastRunStatus, cpTerm sql.NullString
		var cpIdx sql.NullInt64
		if err := rows.Scan(&s.Mode, &lastRunAt, &lastRunStatus, &s.ResumePending, &cpTerm, &cpIdx); err != nil {
			return nil, err
		}
		if lastRunAt.Valid {
			s.LastRunAt = &lastRunAt.Time
		}
		if lastRunStatus.Valid {
			s.LastRunStatus = &lastRunStatus.String
		}
		if cpIdx.Valid {
			s.HasCheckpoint = true
			s.CheckpointIdx = int(cpIdx.Int64)
			s.CheckpointTerm = cpTerm.String
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (c *Client) GetRecentRuns(limit int) ([]CrawlRun, error) {
	rows, err := c.db.Query(`
		SELECT id, uuid, mode, started_at, finished_at, status, terms_total, terms_done,
			terms_failed, records_written, rows_skipped, errors_count
		FROM crawl_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []CrawlRun
	for rows.Next() {
		var r CrawlRun
		var finishedAt sql.NullTime
		err := rows.Scan(&r.ID, &r.UUID, &r.Mode, &r.StartedAt, &finishedAt, &r.Status,
			&r.TermsTotal, &r.TermsDone, &r.TermsFailed, &r.RecordsWritten, &r.RowsSkipped, &r.ErrorsCount)
		if err != nil {
			return nil, err
		}
		if finishedAt.Valid {
			r.FinishedAt = &finishedAt.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (c *Client) GetRecords(limit, offset int) ([]Record, error) {
	rows, err := c.db.Query(`
		SELECT reg_no,
			COALESCE(json_extract(data, '$.summary.project_name'), ''),
			COALESCE(json_extract(data, '$.summary.promoter_name'), ''),
			COALESCE(json_extract(data, '$.summary.district'), ''),
			COALESCE(json_extract(data, '$.summary.status'), ''),
			COALESCE(search_term, ''), first_seen_at, last_seen_at, times_seen
		FROM project_records
		ORDER BY last_seen_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		err := rows.Scan(&r.RegNo, &r.ProjectName, &r.Promoter, &r.District, &r.Status,
			&r.SearchTerm, &r.FirstSeenAt, &r.LastSeenAt, &r.TimesSeen)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (c *Client) GetRecordDetail(regNo string) (*RecordDetail, error) {
	var data string
	err := c.db.QueryRow(`SELECT data FROM project_records WHERE reg_no = ?`, regNo).Scan(&data)
	if err != nil {
		return nil, err
	}
	var d RecordDetail
	if err := json.Unmarshal([]byte(data), &d); err != nil {
		return nil, fmt.Errorf("decode %s: %w", regNo, err)
	}
	return &d, nil
}

func (c *Client) GetRecordCount() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM project_records`).Scan(&count)
	return count, err
}

func (c *Client) GetFailureCount() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM crawl_failures`).Scan(&count)
	return count, err
}

func (c *Client) GetPendingCommandCount() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM commands WHERE processed_at IS NULL`).Scan(&count)
	return count, err
}

func (c *Client) GetRecentLogs(limit int, level *string) ([]CrawlLog, error) {
	query := `SELECT id, run_id, timestamp, level, COALESCE(term, ''), message FROM crawl_logs`
	args := []any{}
	if level != nil {
		query += ` WHERE level = ?`
		args = append(args, *level)
	}
	query += ` ORDER BY timestamp DESC LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []CrawlLog
	for rows.Next() {
		var l CrawlLog
		var runID sql.NullInt64
		if err := rows.Scan(&l.ID, &runID, &l.Timestamp, &l.Level, &l.Term, &l.Message); err != nil {
			return nil, err
		}
		if runID.Valid {
			l.RunID = &runID.Int64
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (c *Client) GetRecentFailures(limit int) ([]Failure, error) {
	rows, err := c.db.Query(`
		SELECT id, run_id, COALESCE(term, ''), COALESCE(row_id, ''), COALESCE(state, ''),
			COALESCE(kind, ''), COALESCE(error, ''), created_at
		FROM crawl_failures ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.ID, &f.RunID, &f.Term, &f.RowID, &f.State, &f.Kind, &f.Error, &f.CreatedAt); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

func (c *Client) SendCommand(command string, params map[string]interface{}) error {
	data, _ := json.Marshal(params)
	_, err := c.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`, command, string(data))
	return err
}

func (c *Client) CrawlNow() error {
	return c.SendCommand("crawl_now", nil)
}

func (c *Client) HarvestNow() error {
	return c.SendCommand("harvest_now", nil)
}

func (c *Client) Pause() error {
	return c.SendCommand("pause", nil)
}

func (c *Client) Resume() error {
	return c.SendCommand("resume", nil)
}
