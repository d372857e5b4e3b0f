package models

import (
	"encoding/json"
	"time"
)

type CommandType string

const (
	CmdCrawlNow   CommandType = "crawl_now"
	CmdHarvestNow CommandType = "harvest_now"
	CmdPause      CommandType = "pause"
	CmdResume     CommandType = "resume"
)

// Command is queued in the journal by one process and picked up by the
// daemon's command poller.
type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Offset      *int   `json:"offset,omitempty"`
	ResumeAfter string `json:"resume_after,omitempty"`
}
