package models

import "time"

// Agent statuses.
const (
	AgentStatusActive = "active"
	AgentStatusPaused = "paused"
	AgentStatusError  = "error"
)

// Agent run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Agent binds a source to a scrape cadence. next_run_at drives the scheduler;
// an agent with next_run_at <= now is due.
type Agent struct {
	ID               string     `json:"id" db:"id"`
	OrgID            string     `json:"org_id" db:"org_id"`
	SourceID         string     `json:"source_id" db:"source_id"`
	Name             string     `json:"name" db:"name"`
	Status           string     `json:"status" db:"status"`
	Frequency        string     `json:"frequency" db:"frequency"`
	ConsecutiveFails int        `json:"consecutive_fails" db:"consecutive_fails"`
	LastRunAt        *time.Time `json:"last_run_at,omitempty" db:"last_run_at"`
	NextRunAt        *time.Time `json:"next_run_at,omitempty" db:"next_run_at"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// AgentRun records one scheduler execution of an agent.
type AgentRun struct {
	ID                 string     `json:"id" db:"id"`
	AgentID            string     `json:"agent_id" db:"agent_id"`
	Status             string     `json:"status" db:"status"`
	StartedAt          time.Time  `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	PagesScraped       int        `json:"pages_scraped" db:"pages_scraped"`
	PagesSkipped       int        `json:"pages_skipped" db:"pages_skipped"`
	OpportunitiesFound int        `json:"opportunities_found" db:"opportunities_found"`
	ErrorMessage       *string    `json:"error_message,omitempty" db:"error_message"`
}
