package export

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/mlindqvist/product-enricher/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleResults() []entity.ExtractionResult {
	return []entity.ExtractionResult{
		{
			ArticleNumber: "ART-001",
			ProductName:   "Widget",
			Properties: map[string]entity.PropertyValue{
				"color": {Value: "black", Sources: []entity.SourceRef{
					{URL: "https://example.com/w", Label: "web"},
				}},
				"weight": {Value: "2 kg", Sources: []entity.SourceRef{
					{URL: "https://example.com/w", Label: "web"}, // same URL, must dedup
					{URL: "https://example.com/sheet.pdf", Label: "pdf"},
				}},
			},
			SourceLabels: []string{"web", "pdf"},
		},
		{
			ArticleNumber: "ART-002",
			ProductName:   "Gadget",
			Properties: map[string]entity.PropertyValue{
				"color": {Value: "silver"},
			},
			SourceLabels: []string{"web"},
		},
	}
}

func sampleProperties() []entity.PropertyField {
	return []entity.PropertyField{{Name: "color"}, {Name: "weight"}}
}

func openWorkbook(t *testing.T, data []byte) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("export is not a readable workbook: %v", err)
	}
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Products")
	if err != nil {
		t.Fatalf("Products sheet missing: %v", err)
	}
	return rows
}

func TestResultsXLSXLayout(t *testing.T) {
	data, err := NewService(testLogger()).ResultsXLSX(sampleResults(), sampleProperties())
	if err != nil {
		t.Fatal(err)
	}
	rows := openWorkbook(t, data)
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}

	wantHeader := []string{"Article Number", "Product Name", "color", "weight", "Sources", "Source Labels"}
	for i, h := range wantHeader {
		if rows[0][i] != h {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], h)
		}
	}

	first := rows[1]
	if first[0] != "ART-001" || first[1] != "Widget" || first[2] != "black" || first[3] != "2 kg" {
		t.Errorf("first row = %v", first)
	}
	if first[5] != "web, pdf" {
		t.Errorf("source labels = %q", first[5])
	}
}

func TestResultsXLSXDeduplicatesSourceURLs(t *testing.T) {
	data, err := NewService(testLogger()).ResultsXLSX(sampleResults(), sampleProperties())
	if err != nil {
		t.Fatal(err)
	}
	rows := openWorkbook(t, data)

	sources := rows[1][4]
	want := "https://example.com/w\nhttps://example.com/sheet.pdf"
	if sources != want {
		t.Errorf("sources = %q, want %q", sources, want)
	}
}

func TestResultsXLSXMissingPropertyLeavesCellEmpty(t *testing.T) {
	data, err := NewService(testLogger()).ResultsXLSX(sampleResults(), sampleProperties())
	if err != nil {
		t.Fatal(err)
	}
	rows := openWorkbook(t, data)

	second := rows[2]
	if second[0] != "ART-002" || second[2] != "silver" {
		t.Errorf("second row = %v", second)
	}
	if len(second) > 3 && second[3] != "" {
		t.Errorf("missing property cell not empty: %q", second[3])
	}
}

func TestResultsXLSXEmptyResults(t *testing.T) {
	data, err := NewService(testLogger()).ResultsXLSX(nil, sampleProperties())
	if err != nil {
		t.Fatal(err)
	}
	rows := openWorkbook(t, data)
	if len(rows) != 1 {
		t.Errorf("expected header only, got %d rows", len(rows))
	}
}
