package repository

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
	"github.com/amar74/n-be-sub001/internal/opportunity"
)

// openMigratedDB connects to the Postgres named by TEST_DATABASE_DSN and
// applies every migration file, skipping the test when no database is
// available. The schema uses IF NOT EXISTS throughout, so reruns are safe.
func openMigratedDB(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	if err := db.Ping(); err != nil {
		t.Skipf("postgres not reachable: %v", err)
	}

	entries, err := os.ReadDir("../../migrations")
	require.NoError(t, err)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		contents, readErr := os.ReadFile(filepath.Join("../../migrations", entry.Name()))
		require.NoError(t, readErr)
		_, execErr := db.Exec(string(contents))
		require.NoErrorf(t, execErr, "apply %s", entry.Name())
	}
	return db
}

// Exercises the write paths that carry optional fields against the real
// schema: nil pointers must land as NULLs, and JSON-codec columns must be
// jsonb, not Postgres arrays.
func TestMigratedSchemaAcceptsRepositoryWrites(t *testing.T) {
	db := openMigratedDB(t)
	ctx := context.Background()
	log := logger.NewNop()
	orgID := "it-" + uuid.New().String()

	sources := NewSourceRepository(db, log)
	source := &models.Source{
		OrgID:     orgID,
		Name:      "City Procurement Portal",
		URL:       "https://city.example.gov/procurement",
		Frequency: models.FrequencyDaily,
		Tags:      models.StringArray{"infrastructure", "water"},
	}
	require.NoError(t, sources.Create(ctx, source))

	fetched, err := sources.GetByID(ctx, orgID, source.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StringArray{"infrastructure", "water"}, fetched.Tags)
	assert.Nil(t, fetched.Description)

	history := NewScrapeHistoryRepository(db, log)
	agentID := uuid.New().String()
	skipped := &models.ScrapeHistory{
		AgentID:  agentID,
		SourceID: source.ID,
		URL:      source.URL + "/rfp/42",
		URLHash:  uuid.New().String(),
		Status:   models.ScrapeStatusSkipped,
	}
	require.NoError(t, history.Insert(ctx, skipped))

	status := 502
	failed := &models.ScrapeHistory{
		AgentID:      agentID,
		SourceID:     source.ID,
		URL:          source.URL + "/rfp/43",
		URLHash:      uuid.New().String(),
		Status:       models.ScrapeStatusFailed,
		HTTPStatus:   &status,
		ErrorMessage: strptr("bad gateway"),
	}
	require.NoError(t, history.Insert(ctx, failed))

	rows, err := history.ListByAgent(ctx, agentID, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Nil(t, row.ContentLength)
	}

	temps := NewTempOpportunityRepository(db, log)
	temp := &models.TempOpportunity{
		OrgID:          orgID,
		TempIdentifier: "https://city.example.gov/procurement/rfp/42",
		Title:          "Bridge Repair",
		RawPayload:     models.JSONMap{"title": "Bridge Repair"},
		Confidence:     models.ConfidenceMap{"title": 0.9},
	}
	created, err := temps.Upsert(ctx, temp)
	require.NoError(t, err)
	assert.True(t, created)

	staged, err := temps.GetByID(ctx, orgID, temp.ID)
	require.NoError(t, err)
	assert.Nil(t, staged.Summary)
	assert.Nil(t, staged.SourceURL)

	aggregate := opportunity.NewPostgresAggregate(log)
	tx, err := temps.BeginTx(ctx)
	require.NoError(t, err)

	opp := &models.Opportunity{
		OrgID: orgID,
		Title: "Bridge Repair",
	}
	require.NoError(t, aggregate.CreateTx(ctx, tx, opp))
	require.NoError(t, aggregate.CreateOverviewTx(ctx, tx, &models.OpportunityOverview{
		OpportunityID: opp.ID,
		KeyMetrics:    models.JSONMap{"document_count": 0},
	}))
	require.NoError(t, temps.MarkPromotedTx(ctx, tx, temp.ID, opp.ID, nil))
	require.NoError(t, tx.Commit())

	promoted, err := temps.GetByID(ctx, orgID, temp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewStatusPromoted, promoted.Status)
	require.NotNil(t, promoted.PromotedOpportunityID)
	assert.Equal(t, opp.ID, *promoted.PromotedOpportunityID)
}

func strptr(s string) *string { return &s }
