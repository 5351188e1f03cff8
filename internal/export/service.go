package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mlindqvist/product-enricher/internal/entity"
)

// Service produces XLSX bytes for completed extraction results.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ResultsXLSX returns an XLSX workbook with one row per completed result.
// Property columns follow the order of the run's property schema; the last
// two columns carry per-property source URLs and the item's source labels.
func (s *Service) ResultsXLSX(results []entity.ExtractionResult, properties []entity.PropertyField) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Products"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defIndex, _ := f.GetSheetIndex("Sheet1"); defIndex != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	headers := []string{"Article Number", "Product Name"}
	for _, p := range properties {
		headers = append(headers, p.Name)
	}
	headers = append(headers, "Sources", "Source Labels")
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, r.ArticleNumber)
		write(2, r.ProductName)

		col := 3
		var sourceURLs []string
		seen := map[string]struct{}{}
		for _, p := range properties {
			if pv, ok := r.Properties[p.Name]; ok {
				write(col, pv.Value)
				for _, src := range pv.Sources {
					if src.URL == "" {
						continue
					}
					if _, dup := seen[src.URL]; dup {
						continue
					}
					seen[src.URL] = struct{}{}
					sourceURLs = append(sourceURLs, src.URL)
				}
			}
			col++
		}
		write(col, strings.Join(sourceURLs, "\n"))
		write(col+1, strings.Join(r.SourceLabels, ", "))
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"properties", len(properties),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}
