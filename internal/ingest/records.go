package ingest

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mlindqvist/product-enricher/constants"
	"github.com/mlindqvist/product-enricher/internal/common"
	"github.com/mlindqvist/product-enricher/internal/entity"
)

// NormalizeRecords prepares caller-supplied records for a batch run:
// trims fields, assigns IDs where missing and synthesizes article numbers
// of the form auto_<n> for rows that had none. The input slice is not
// modified.
func NormalizeRecords(records []entity.ProductRecord, logger *slog.Logger) []entity.ProductRecord {
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]entity.ProductRecord, len(records))
	synthesized := 0
	for i, r := range records {
		r.ID = strings.TrimSpace(r.ID)
		r.ArticleNumber = strings.TrimSpace(r.ArticleNumber)
		r.ProductName = strings.TrimSpace(r.ProductName)
		r.URL = strings.TrimSpace(r.URL)

		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.ArticleNumber == "" {
			r.ArticleNumber = fmt.Sprintf("%s%d", constants.AutoArticlePrefix, i+1)
			synthesized++
		}
		out[i] = r
	}

	if synthesized > 0 {
		logger.Info("ingest.records.synthesized_article_numbers",
			"count", synthesized, "total", len(records))
	}
	return out
}

// ValidateRecords rejects input the orchestrator must never see: duplicate
// IDs and empty product names. It returns a combined validation error.
func ValidateRecords(records []entity.ProductRecord) error {
	v := common.NewValidator()
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		field := fmt.Sprintf("records[%d].product_name", i)
		v.Field(field, r.ProductName, common.Required)

		if r.ID != "" {
			if _, dup := seen[r.ID]; dup {
				v.Field(fmt.Sprintf("records[%d].id", i), r.ID, duplicateID)
			}
			seen[r.ID] = struct{}{}
		}
	}
	return v.Error()
}

func duplicateID(fieldName string, value interface{}) *common.ValidationError {
	return &common.ValidationError{Field: fieldName, Value: value, Message: "duplicate record id"}
}
