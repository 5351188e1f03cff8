package llm

import (
	"strings"
	"testing"
)

func TestSanitizeContentStripsControlCharacters(t *testing.T) {
	in := "spec\x00 sheet\x01\x1f text\x7f"
	got := SanitizeContent(in)
	if got != "spec sheet text" {
		t.Errorf("got %q", got)
	}
}

func TestSanitizeContentKeepsWhitespace(t *testing.T) {
	in := "line one\n\tline two\r\n"
	if got := SanitizeContent(in); got != in {
		t.Errorf("whitespace mangled: %q", got)
	}
}

func TestSanitizeContentRepairsInvalidUTF8(t *testing.T) {
	in := "caf\xff\xfee"
	got := SanitizeContent(in)
	if got != "cafe" {
		t.Errorf("got %q", got)
	}
}

func TestSanitizeContentDropsSpecialsBlock(t *testing.T) {
	in := "text\uFFFD\uFEFFmore"
	got := SanitizeContent(in)
	if strings.ContainsRune(got, '�') {
		t.Errorf("replacement char survived: %q", got)
	}
}

func TestBuildCombinedContentPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		pdf, web   string
		wantLabels string
		wantOrder  []string
	}{
		{"both", "pdf text", "web text", "web,pdf", []string{"[WEB CONTENT]", "[PDF CONTENT]"}},
		{"pdf only", "pdf text", "", "pdf", []string{"[PDF CONTENT]"}},
		{"web only", "", "web text", "web", []string{"[WEB CONTENT]"}},
		{"whitespace is nothing", "  \n ", "\t", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			combined, labels := BuildCombinedContent(tt.pdf, tt.web)
			if got := strings.Join(labels, ","); got != tt.wantLabels {
				t.Errorf("labels = %q, want %q", got, tt.wantLabels)
			}
			last := -1
			for _, header := range tt.wantOrder {
				idx := strings.Index(combined, header)
				if idx < 0 {
					t.Fatalf("missing section %q in %q", header, combined)
				}
				if idx < last {
					t.Errorf("section %q out of order", header)
				}
				last = idx
			}
			if tt.wantOrder == nil && combined != "" {
				t.Errorf("expected empty payload, got %q", combined)
			}
		})
	}
}
