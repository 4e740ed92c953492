// Command gentemplate writes the Excel import template for bulk source
// registration. Usage: go run cmd/gentemplate/main.go
package main

import (
	"log"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/amar74/n-be-sub001/internal/importer"
)

func main() {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", importer.SheetName); err != nil {
		log.Fatal(err)
	}

	writeRow(f, importer.SheetName, 1, importer.Headers)
	writeRow(f, importer.SheetName, 2, []string{
		"City Procurement Portal",
		"https://city.example.gov/rfps",
		"Municipal RFP and bid listings",
		"daily",
		"active",
		`["rfp", "municipal"]`,
	})
	writeRow(f, importer.SheetName, 3, []string{
		"State Grants Board",
		"https://grants.state.example.gov",
		"",
		"weekly",
		"",
		"",
	})

	if _, err := f.NewSheet("Instructions"); err != nil {
		log.Fatal(err)
	}
	instructions := []string{
		"Column Descriptions:",
		"",
		"name - Required. Display name for the source",
		"url - Required. Landing page to scrape (must start with http:// or https://)",
		"description - Optional. Free text shown in the source list",
		"frequency - Optional. hourly/daily/weekly/monthly (default: daily)",
		"status - Optional. active/paused/archived (default: active)",
		`tags - Optional. JSON string array (e.g., '["rfp", "municipal"]')`,
		"",
		"Rows with errors are reported by row number and skipped;",
		"valid rows import regardless. Re-importing a URL updates it in place.",
	}
	for i, line := range instructions {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			log.Fatal(err)
		}
		if err := f.SetCellValue("Instructions", cell, line); err != nil {
			log.Fatal(err)
		}
	}

	if err := os.MkdirAll("examples", 0o755); err != nil {
		log.Fatal(err)
	}
	if err := f.SaveAs("examples/source-import-template.xlsx"); err != nil {
		log.Fatal(err)
	}
	log.Println("Created examples/source-import-template.xlsx")
}

func writeRow(f *excelize.File, sheet string, row int, values []string) {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			log.Fatal(err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			log.Fatal(err)
		}
	}
}
