// Package opportunity is the canonical Opportunity aggregate boundary. The
// promotion engine talks to the Aggregate port only; the Postgres adapter
// here joins the caller's transaction so promotion stays atomic.
package opportunity

import (
	"context"
	"database/sql"

	"github.com/amar74/n-be-sub001/internal/models"
)

// Aggregate owns canonical opportunity records and their sub-records. All
// writes happen inside the caller's transaction.
type Aggregate interface {
	// CreateTx persists a new opportunity, assigning its ID.
	CreateTx(ctx context.Context, tx *sql.Tx, opp *models.Opportunity) error
	// CreateOverviewTx seeds the overview sub-record.
	CreateOverviewTx(ctx context.Context, tx *sql.Tx, overview *models.OpportunityOverview) error
	// ImportDocumentTx records an external document reference.
	ImportDocumentTx(ctx context.Context, tx *sql.Tx, doc *models.OpportunityDocument) error
}
