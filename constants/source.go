package constants

// SourceLabel tags which content source contributed to an extraction result.
type SourceLabel string

const (
	SourcePDF SourceLabel = "pdf"
	SourceWeb SourceLabel = "web"
)

// AutoArticlePrefix marks article numbers synthesized for rows that had none.
// Records carrying a synthesized number never match PDF files by prefix.
const AutoArticlePrefix = "auto_"
