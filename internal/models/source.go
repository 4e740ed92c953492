package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Source frequencies.
const (
	FrequencyHourly  = "hourly"
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// Source statuses.
const (
	SourceStatusActive   = "active"
	SourceStatusPaused   = "paused"
	SourceStatusArchived = "archived"
)

// ErrUnknownFrequency is returned for a frequency outside the known set.
var ErrUnknownFrequency = errors.New("unknown frequency")

// ValidFrequency reports whether f is a known scrape frequency.
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyHourly, FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// FrequencyInterval converts a frequency into its run interval.
// Monthly is approximated as 30 days.
func FrequencyInterval(f string) (time.Duration, error) {
	switch f {
	case FrequencyHourly:
		return time.Hour, nil
	case FrequencyDaily:
		return 24 * time.Hour, nil
	case FrequencyWeekly:
		return 7 * 24 * time.Hour, nil
	case FrequencyMonthly:
		return 30 * 24 * time.Hour, nil
	}
	return 0, ErrUnknownFrequency
}

// Source is a configured crawl target owned by an organization.
type Source struct {
	ID            string      `json:"id" db:"id"`
	OrgID         string      `json:"org_id" db:"org_id"`
	Name          string      `json:"name" db:"name"`
	URL           string      `json:"url" db:"url"`
	Description   *string     `json:"description,omitempty" db:"description"`
	Frequency     string      `json:"frequency" db:"frequency"`
	Status        string      `json:"status" db:"status"`
	Tags          StringArray `json:"tags" db:"tags"`
	LastScrapedAt *time.Time  `json:"last_scraped_at,omitempty" db:"last_scraped_at"`
	CreatedBy     *string     `json:"created_by,omitempty" db:"created_by"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// StringArray is a JSON-encoded string array column.
type StringArray []string

// Value implements driver.Valuer. An empty array stores as JSON [].
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(a))
}

// Scan implements sql.Scanner.
func (a *StringArray) Scan(value any) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("string array: expected []byte")
	}
	return json.Unmarshal(bytes, a)
}
