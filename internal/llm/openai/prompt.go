package openai

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mlindqvist/product-enricher/internal/llm"
)

const maxContentChars = 24000

func buildSystemPrompt(req llm.ExtractRequest) string {
	var b strings.Builder
	b.WriteString("You are a product data extractor. Return ONLY JSON that matches the JSON Schema provided. ")
	b.WriteString("Extract the requested properties for the product from the supplied content. ")
	if len(req.SourceLabels) > 0 {
		b.WriteString("Content sections are labeled with their source (")
		b.WriteString(strings.Join(req.SourceLabels, ", "))
		b.WriteString("); attribute each property's sources accordingly. ")
	}
	b.WriteString("Requested properties:\n")
	for _, p := range req.Properties {
		b.WriteString("- ")
		b.WriteString(p.Name)
		if p.Description != "" {
			b.WriteString(": ")
			b.WriteString(p.Description)
		}
		if p.ExpectedFormat != "" {
			b.WriteString(" (format: ")
			b.WriteString(p.ExpectedFormat)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	b.WriteString("Never output null. If a property cannot be determined from the content, omit it. ")
	b.WriteString("Set is_consistent to false when different sections disagree on a value.")
	return b.String()
}

func buildUserPrompt(req llm.ExtractRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product name: %s\n", req.ProductName)
	fmt.Fprintf(&b, "Article number: %s\n", req.ArticleNumber)
	if req.URL != "" {
		fmt.Fprintf(&b, "Product URL: %s\n", req.URL)
	}

	if req.DirectFetch {
		b.WriteString("\nNo local content is available. Fetch and read the product URL above, then extract the properties.\n")
		return b.String()
	}

	content := truncateContent(req.CombinedContent, maxContentChars)
	b.WriteString("\nContent:\n")
	b.WriteString(content)
	return b.String()
}

// truncateContent caps s at limit bytes without splitting a multi-byte rune.
func truncateContent(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
