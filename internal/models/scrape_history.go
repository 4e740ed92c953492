package models

import "time"

// Scrape history statuses.
const (
	ScrapeStatusScraped = "scraped"
	ScrapeStatusSkipped = "skipped"
	ScrapeStatusFailed  = "failed"
)

// ScrapeHistory records one fetch attempt. URLHash is the dedup key: a row
// with the same hash inside the freshness window means the URL is skipped.
type ScrapeHistory struct {
	ID            string    `json:"id" db:"id"`
	AgentID       string    `json:"agent_id" db:"agent_id"`
	SourceID      string    `json:"source_id" db:"source_id"`
	URL           string    `json:"url" db:"url"`
	URLHash       string    `json:"url_hash" db:"url_hash"`
	Status        string    `json:"status" db:"status"`
	HTTPStatus    *int      `json:"http_status,omitempty" db:"http_status"`
	ContentLength *int      `json:"content_length,omitempty" db:"content_length"`
	ErrorMessage  *string   `json:"error_message,omitempty" db:"error_message"`
	ScrapedAt     time.Time `json:"scraped_at" db:"scraped_at"`
}
