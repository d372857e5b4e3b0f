package models

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type RunMode string

const (
	ModeCrawl   RunMode = "crawl"
	ModeHarvest RunMode = "harvest"
)

type CrawlRun struct {
	ID             int64      `json:"id" db:"id"`
	UUID           uuid.UUID  `json:"uuid" db:"uuid"`
	Mode           RunMode    `json:"mode" db:"mode"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         RunStatus  `json:"status" db:"status"`
	TermsTotal     int        `json:"terms_total" db:"terms_total"`
	TermsDone      int        `json:"terms_done" db:"terms_done"`
	TermsFailed    int        `json:"terms_failed" db:"terms_failed"`
	RecordsWritten int        `json:"records_written" db:"records_written"`
	RowsSkipped    int        `json:"rows_skipped" db:"rows_skipped"`
	ErrorsCount    int        `json:"errors_count" db:"errors_count"`
}

// Checkpoint marks the last term a run finished. Key separates independent
// progress streams (one per mode and output).
type Checkpoint struct {
	Key       string    `json:"key" db:"key"`
	Index     int       `json:"index" db:"term_index"`
	Term      string    `json:"term" db:"term"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
