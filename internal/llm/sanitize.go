package llm

import (
	"strings"
	"unicode/utf8"

	"github.com/mlindqvist/product-enricher/constants"
)

// SanitizeContent strips characters that are known to break server-side
// request validation: NULs and other C0 control characters (except tab,
// newline and carriage return), lone surrogates and invalid UTF-8 bytes.
// Whitespace runs are left alone; this is a filter, not a formatter.
func SanitizeContent(s string) string {
	if s == "" {
		return s
	}
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t' || r == '\r':
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			// drop control characters
		case r >= 0xfff0 && r <= 0xffff:
			// drop specials block (replacement chars, BOM leftovers)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildCombinedContent assembles the single payload sent to the extraction
// service. Section precedence is web+pdf > pdf-only > web-only; each section
// carries a labeled header so the model can attribute sources.
func BuildCombinedContent(pdfText, webContent string) (combined string, labels []string) {
	pdfText = SanitizeContent(pdfText)
	webContent = SanitizeContent(webContent)

	hasPDF := strings.TrimSpace(pdfText) != ""
	hasWeb := strings.TrimSpace(webContent) != ""

	switch {
	case hasPDF && hasWeb:
		combined = "[WEB CONTENT]\n" + webContent + "\n\n[PDF CONTENT]\n" + pdfText
		labels = []string{string(constants.SourceWeb), string(constants.SourcePDF)}
	case hasPDF:
		combined = "[PDF CONTENT]\n" + pdfText
		labels = []string{string(constants.SourcePDF)}
	case hasWeb:
		combined = "[WEB CONTENT]\n" + webContent
		labels = []string{string(constants.SourceWeb)}
	}
	return combined, labels
}
