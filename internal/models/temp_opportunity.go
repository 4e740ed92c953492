package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Review statuses for staged opportunities.
const (
	ReviewStatusPending  = "pending_review"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
	ReviewStatusPromoted = "promoted"
)

// ErrInvalidTransition signals a review status change outside the allowed set.
var ErrInvalidTransition = errors.New("invalid review status transition")

// reviewTransitions is the allowed status graph. Rejected and promoted are
// terminal.
var reviewTransitions = map[string][]string{
	ReviewStatusPending:  {ReviewStatusApproved, ReviewStatusRejected},
	ReviewStatusApproved: {ReviewStatusPromoted},
	ReviewStatusRejected: {},
	ReviewStatusPromoted: {},
}

// ValidateReviewTransition checks whether a review status change is allowed.
func ValidateReviewTransition(from, to string) error {
	allowed, ok := reviewTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// IsTerminalReviewStatus reports whether no further transitions exist.
func IsTerminalReviewStatus(status string) bool {
	return status == ReviewStatusRejected || status == ReviewStatusPromoted
}

// TempOpportunity is a staged opportunity awaiting review. TempIdentifier is
// unique per organization; a re-scrape of the same identifier merges into the
// existing row instead of creating a duplicate.
type TempOpportunity struct {
	ID                     string        `json:"id" db:"id"`
	OrgID                  string        `json:"org_id" db:"org_id"`
	AgentID                *string       `json:"agent_id,omitempty" db:"agent_id"`
	SourceID               *string       `json:"source_id,omitempty" db:"source_id"`
	TempIdentifier         string        `json:"temp_identifier" db:"temp_identifier"`
	Title                  string        `json:"title" db:"title"`
	Summary                *string       `json:"summary,omitempty" db:"summary"`
	Status                 string        `json:"status" db:"status"`
	RawPayload             JSONMap       `json:"raw_payload" db:"raw_payload"`
	Confidence             ConfidenceMap `json:"confidence" db:"confidence"`
	RiskScore              *float64      `json:"risk_score,omitempty" db:"risk_score"`
	SourceURL              *string       `json:"source_url,omitempty" db:"source_url"`
	ReviewerID             *string       `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ReviewerNotes          *string       `json:"reviewer_notes,omitempty" db:"reviewer_notes"`
	PromotedOpportunityID  *string       `json:"promoted_opportunity_id,omitempty" db:"promoted_opportunity_id"`
	CreatedAt              time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time     `json:"updated_at" db:"updated_at"`
}

// MergeRawPayload folds incoming extraction output into an existing payload
// without destroying review-time data. New keys are added; existing keys are
// overwritten only when the incoming value is non-empty.
func MergeRawPayload(existing, incoming JSONMap) JSONMap {
	merged := make(JSONMap, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		if _, exists := merged[k]; !exists {
			merged[k] = v
			continue
		}
		if !isEmptyValue(v) {
			merged[k] = v
		}
	}
	return merged
}

// isEmptyValue reports whether an incoming payload value carries no data.
// Zero numbers and false are values, not absences.
func isEmptyValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

// JSONMap is a jsonb column holding arbitrary extraction output.
type JSONMap map[string]any

// Value implements driver.Valuer. A nil map stores as JSON {}.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]any{})
	}
	return json.Marshal(map[string]any(m))
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("json map: expected []byte")
	}
	return json.Unmarshal(bytes, m)
}

// ConfidenceMap is a jsonb column of per-field confidence scores in [0,1].
type ConfidenceMap map[string]float64

// Value implements driver.Valuer. A nil map stores as JSON {}.
func (m ConfidenceMap) Value() (driver.Value, error) {
	if m == nil {
		return json.Marshal(map[string]float64{})
	}
	return json.Marshal(map[string]float64(m))
}

// Scan implements sql.Scanner.
func (m *ConfidenceMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("confidence map: expected []byte")
	}
	return json.Unmarshal(bytes, m)
}
