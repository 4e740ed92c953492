package models

import "time"

// Risk bands derived from a staged record's risk score.
const (
	RiskBandHigh   = "high"
	RiskBandMedium = "medium"
	RiskBandLow    = "low"
)

// StageLead is the pipeline stage newly promoted opportunities enter: a cold
// lead, untouched by sales.
const StageLead = "lead"

// Opportunity is the promoted aggregate. Created only by the promotion
// engine, never directly by the API.
type Opportunity struct {
	ID              string     `json:"id" db:"id"`
	OrgID           string     `json:"org_id" db:"org_id"`
	AccountID       *string    `json:"account_id,omitempty" db:"account_id"`
	Stage           string     `json:"stage" db:"stage"`
	Title           string     `json:"title" db:"title"`
	Summary         *string    `json:"summary,omitempty" db:"summary"`
	BudgetValue     *float64   `json:"budget_value,omitempty" db:"budget_value"`
	BudgetText      *string    `json:"budget_text,omitempty" db:"budget_text"`
	RiskBand        string     `json:"risk_band" db:"risk_band"`
	State           *string    `json:"state,omitempty" db:"state"`
	Sector          *string    `json:"sector,omitempty" db:"sector"`
	Deadline        *time.Time `json:"deadline,omitempty" db:"deadline"`
	ExpectedRFPDate *time.Time `json:"expected_rfp_date,omitempty" db:"expected_rfp_date"`
	SourceURL       *string    `json:"source_url,omitempty" db:"source_url"`
	CreatedBy       *string    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// OpportunityOverview is the summary sub-record seeded at promotion: scope
// text plus the key metrics a reviewer saw when approving.
type OpportunityOverview struct {
	ID               string    `json:"id" db:"id"`
	OpportunityID    string    `json:"opportunity_id" db:"opportunity_id"`
	ScopeSummary     *string   `json:"scope_summary,omitempty" db:"scope_summary"`
	KeyMetrics       JSONMap   `json:"key_metrics" db:"key_metrics"`
	DocumentsSummary *string   `json:"documents_summary,omitempty" db:"documents_summary"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// OpportunityDocument is an attachment imported during promotion.
type OpportunityDocument struct {
	ID            string    `json:"id" db:"id"`
	OpportunityID string    `json:"opportunity_id" db:"opportunity_id"`
	URL           string    `json:"url" db:"url"`
	Name          string    `json:"name" db:"name"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
