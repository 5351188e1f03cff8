package entity

// ProductRecord is one input row to be enriched. Records arrive already
// column-mapped by the upstream spreadsheet importer; this layer only sees
// the normalized shape.
type ProductRecord struct {
	ID            string `json:"id"`
	ArticleNumber string `json:"article_number"`
	ProductName   string `json:"product_name"`
	URL           string `json:"url,omitempty"`
}

// PropertyField describes one property the caller wants extracted for every
// product, in display order.
type PropertyField struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	ExpectedFormat string `json:"expected_format,omitempty"`
}

// ExtractionConfig controls one batch run.
type ExtractionConfig struct {
	Concurrency int             `json:"concurrency"`
	PDFEnabled  bool            `json:"pdf_enabled"`
	WebEnabled  bool            `json:"web_enabled"`
	Properties  []PropertyField `json:"properties"`
	Model       string          `json:"model,omitempty"`
}
