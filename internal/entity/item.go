package entity

import (
	"github.com/mlindqvist/product-enricher/constants"
)

// SourceRef points at the document or page a property value was read from.
type SourceRef struct {
	URL   string `json:"url,omitempty"`
	Label string `json:"label,omitempty"`
}

// PropertyValue is one extracted property with confidence and provenance.
type PropertyValue struct {
	Value      string      `json:"value"`
	Confidence float32     `json:"confidence,omitempty"`
	Sources    []SourceRef `json:"sources,omitempty"`
}

// ExtractionResult is the enriched output for one record.
type ExtractionResult struct {
	ArticleNumber string                   `json:"article_number"`
	ProductName   string                   `json:"product_name"`
	Properties    map[string]PropertyValue `json:"properties"`
	SourceLabels  []string                 `json:"source_labels,omitempty"`
}

// ItemState is the live, observable state of one record's processing.
// Values are immutable once published; every update replaces the whole
// entry inside the run snapshot.
type ItemState struct {
	ID           string               `json:"id"`
	Status       constants.ItemStatus `json:"status"`
	Progress     int                  `json:"progress"`
	StatusDetail string               `json:"status_detail,omitempty"`
	Result       *ExtractionResult    `json:"result,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// RunSummary is the single terminal report for a batch run.
type RunSummary struct {
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Stopped   int  `json:"stopped"`
	Cancelled bool `json:"cancelled"`
}

// Total is the number of records the summary accounts for.
func (s RunSummary) Total() int {
	return s.Completed + s.Failed + s.Stopped
}
