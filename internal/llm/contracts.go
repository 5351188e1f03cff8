package llm

import (
	"context"

	"github.com/mlindqvist/product-enricher/internal/entity"
)

// ExtractRequest carries everything one extraction call needs. Exactly one
// of the content paths is used: CombinedContent when any PDF/web text was
// gathered locally, or DirectFetch when the service should fetch URL itself.
type ExtractRequest struct {
	URL           string
	ProductName   string
	ArticleNumber string
	Properties    []entity.PropertyField

	PDFText         string
	WebContent      string
	CombinedContent string
	SourceLabels    []string

	// DirectFetch asks the service to retrieve the page server-side;
	// set when no local content could be gathered but a URL exists.
	DirectFetch bool
}

// Extractor is the interface the worker pipeline depends on.
type Extractor interface {
	ExtractProperties(ctx context.Context, req ExtractRequest) (entity.ExtractionResult, []byte /*rawJSON*/, error)
}
