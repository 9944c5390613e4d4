package model

import "time"

// Run statuses
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusDegraded  = "degraded" // completed, but some summarize requests failed
	StatusFailed    = "failed"
)

// StageMetrics represents metrics for a specific pipeline stage
type StageMetrics struct {
	StageName  string        `json:"stage_name"`
	StartTime  time.Time     `json:"start_time"`
	EndTime    time.Time     `json:"end_time"`
	Duration   time.Duration `json:"duration"`
	RecordsIn  int           `json:"records_in"`
	RecordsOut int           `json:"records_out"`
	Status     string        `json:"status"`
	Error      string        `json:"error,omitempty"`
}

// RunMetrics represents overall run metrics
type RunMetrics struct {
	RunID       string         `json:"run_id"`
	StartTime   time.Time      `json:"start_time"`
	EndTime     time.Time      `json:"end_time"`
	Duration    time.Duration  `json:"duration"`
	Status      string         `json:"status"`
	FailedStage string         `json:"failed_stage,omitempty"`
	Stages      []StageMetrics `json:"stages"`
}
