// Package importer bulk-loads sources from an Excel workbook. Rows are
// validated individually; bad rows are reported by row number and never block
// the good ones. Valid rows upsert by (org, url) in one transaction.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
	"github.com/amar74/n-be-sub001/internal/repository"
)

// SheetName is the worksheet holding source rows.
const SheetName = "Sources"

// Workbook column indices (0-based).
const (
	colName        = 0
	colURL         = 1
	colDescription = 2
	colFrequency   = 3
	colStatus      = 4
	colTags        = 5
)

// Headers is the expected header row, also written by cmd/gentemplate.
var Headers = []string{"name", "url", "description", "frequency", "status", "tags"}

// SourceRow is one parsed workbook row. Row is the 1-based Excel row number
// for error reporting.
type SourceRow struct {
	Row         int
	Name        string
	URL         string
	Description string
	Frequency   string
	Status      string
	Tags        string // raw JSON array
}

// ImportError reports a rejected row.
type ImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Result summarizes one import.
type Result struct {
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Errors  []ImportError `json:"errors,omitempty"`
}

// Importer parses workbooks and writes sources.
type Importer struct {
	sources *repository.SourceRepository
	logger  logger.Logger
}

// New creates an importer.
func New(sources *repository.SourceRepository, log logger.Logger) *Importer {
	return &Importer{sources: sources, logger: log}
}

// ImportWorkbook parses, validates, and upserts every row of the workbook.
// Returns an error only when the workbook itself is unreadable or the
// transaction fails; row problems land in Result.Errors.
func (i *Importer) ImportWorkbook(ctx context.Context, r io.Reader, orgID string, createdBy *string) (*Result, error) {
	rows, err := readRows(r)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	var valid []*models.Source

	for _, row := range rows {
		if msg := ValidateRow(row); msg != "" {
			result.Errors = append(result.Errors, ImportError{Row: row.Row, Error: msg})
			continue
		}
		source, err := rowToSource(row, orgID, createdBy)
		if err != nil {
			result.Errors = append(result.Errors, ImportError{Row: row.Row, Error: err.Error()})
			continue
		}
		valid = append(valid, source)
	}

	if len(valid) > 0 {
		created, updated, err := i.sources.UpsertSourcesTx(ctx, valid)
		if err != nil {
			return nil, fmt.Errorf("import sources: %w", err)
		}
		result.Created = created
		result.Updated = updated
	}

	i.logger.Info("source import finished",
		logger.String("org_id", orgID),
		logger.Int("created", result.Created),
		logger.Int("updated", result.Updated),
		logger.Int("rejected", len(result.Errors)),
	)
	return result, nil
}

// readRows opens the workbook and parses data rows from the Sources sheet,
// falling back to the first sheet when Sources is absent.
func readRows(r io.Reader) ([]SourceRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := SheetName
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}

	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	var rows []SourceRow
	for n, cells := range raw {
		if n == 0 {
			continue // header
		}
		if rowEmpty(cells) {
			continue
		}
		rows = append(rows, SourceRow{
			Row:         n + 1,
			Name:        cell(cells, colName),
			URL:         cell(cells, colURL),
			Description: cell(cells, colDescription),
			Frequency:   cell(cells, colFrequency),
			Status:      cell(cells, colStatus),
			Tags:        cell(cells, colTags),
		})
	}
	return rows, nil
}

// ValidateRow returns an error message for a bad row, or "" when the row is
// importable.
func ValidateRow(row SourceRow) string {
	if strings.TrimSpace(row.Name) == "" {
		return "name is required"
	}
	if strings.TrimSpace(row.URL) == "" {
		return "url is required"
	}
	if !strings.HasPrefix(row.URL, "http://") && !strings.HasPrefix(row.URL, "https://") {
		return "url must start with http:// or https://"
	}
	if row.Frequency != "" && !models.ValidFrequency(row.Frequency) {
		return "frequency must be one of hourly, daily, weekly, monthly"
	}
	if row.Status != "" && !validStatus(row.Status) {
		return "status must be one of active, paused, archived"
	}
	if row.Tags != "" {
		var tags []string
		if err := json.Unmarshal([]byte(row.Tags), &tags); err != nil {
			return "tags must be a JSON string array"
		}
	}
	return ""
}

func rowToSource(row SourceRow, orgID string, createdBy *string) (*models.Source, error) {
	source := &models.Source{
		OrgID:     orgID,
		Name:      strings.TrimSpace(row.Name),
		URL:       strings.TrimSpace(row.URL),
		Frequency: row.Frequency,
		Status:    row.Status,
		CreatedBy: createdBy,
	}
	if desc := strings.TrimSpace(row.Description); desc != "" {
		source.Description = &desc
	}
	if source.Frequency == "" {
		source.Frequency = models.FrequencyDaily
	}
	if source.Status == "" {
		source.Status = models.SourceStatusActive
	}
	if row.Tags != "" {
		var tags []string
		if err := json.Unmarshal([]byte(row.Tags), &tags); err != nil {
			return nil, fmt.Errorf("tags must be a JSON string array")
		}
		source.Tags = tags
	}
	return source, nil
}

func validStatus(s string) bool {
	switch s {
	case models.SourceStatusActive, models.SourceStatusPaused, models.SourceStatusArchived:
		return true
	}
	return false
}

func cell(cells []string, idx int) string {
	if idx >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[idx])
}

func rowEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
