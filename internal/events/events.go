// Package events publishes pipeline lifecycle events to Redis Streams for
// downstream consumers (CRM notifications, dashboards).
package events

import (
	"time"

	"github.com/google/uuid"
)

// StreamName is the Redis stream carrying pipeline events.
const StreamName = "opportunity-events"

// EventType tags a pipeline event.
type EventType string

const (
	// RunCompleted is published after a successful agent run.
	RunCompleted EventType = "AGENT_RUN_COMPLETED"
	// RunFailed is published after a failed agent run.
	RunFailed EventType = "AGENT_RUN_FAILED"
	// OpportunityStaged is published when a new candidate lands in review.
	OpportunityStaged EventType = "TEMP_OPPORTUNITY_CREATED"
	// OpportunityPromoted is published when a candidate becomes canonical.
	OpportunityPromoted EventType = "TEMP_OPPORTUNITY_PROMOTED"
)

// Event is the envelope for all pipeline events.
type Event struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	OrgID     string    `json:"org_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// RunPayload describes a finished agent run.
type RunPayload struct {
	AgentID            string `json:"agent_id"`
	RunID              string `json:"run_id"`
	OpportunitiesFound int    `json:"opportunities_found,omitempty"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

// PromotionPayload describes a completed promotion.
type PromotionPayload struct {
	TempOpportunityID string   `json:"temp_opportunity_id"`
	OpportunityID     string   `json:"opportunity_id"`
	Warnings          []string `json:"warnings,omitempty"`
}

// StagedPayload describes a newly staged candidate.
type StagedPayload struct {
	TempOpportunityID string `json:"temp_opportunity_id"`
	SourceURL         string `json:"source_url,omitempty"`
}

// NewRunCompleted builds a run-completed event.
func NewRunCompleted(orgID, agentID, runID string, found int) Event {
	return Event{
		EventType: RunCompleted,
		OrgID:     orgID,
		Payload: RunPayload{
			AgentID:            agentID,
			RunID:              runID,
			OpportunitiesFound: found,
		},
	}
}

// NewRunFailed builds a run-failed event.
func NewRunFailed(orgID, agentID, runID, errorMessage string) Event {
	return Event{
		EventType: RunFailed,
		OrgID:     orgID,
		Payload: RunPayload{
			AgentID:      agentID,
			RunID:        runID,
			ErrorMessage: errorMessage,
		},
	}
}

// NewOpportunityPromoted builds a promotion event.
func NewOpportunityPromoted(orgID, tempID, opportunityID string, warnings []string) Event {
	return Event{
		EventType: OpportunityPromoted,
		OrgID:     orgID,
		Payload: PromotionPayload{
			TempOpportunityID: tempID,
			OpportunityID:     opportunityID,
			Warnings:          warnings,
		},
	}
}

// NewOpportunityStaged builds a staged-candidate event.
func NewOpportunityStaged(orgID, tempID, sourceURL string) Event {
	return Event{
		EventType: OpportunityStaged,
		OrgID:     orgID,
		Payload: StagedPayload{
			TempOpportunityID: tempID,
			SourceURL:         sourceURL,
		},
	}
}
