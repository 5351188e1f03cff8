package pdf

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubRunner maps the input path (last-but-one argument) to canned stdout.
type stubRunner struct {
	text  map[string]string
	fail  map[string]bool
	calls []string
}

func (r *stubRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	path := args[len(args)-2]
	base := filepath.Base(path)
	r.calls = append(r.calls, base)
	if r.fail[base] {
		return nil, []byte("syntax error"), errors.New("exit status 1")
	}
	return []byte(r.text[base]), nil, nil
}

func onePage(string) (int, error) { return 1, nil }

func writePDFs(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestFindMatchingIsCaseInsensitivePrefix(t *testing.T) {
	dir := writePDFs(t, "ART-001_datasheet.pdf", "art-001-extra.PDF", "ART-002.pdf", "readme.txt")
	e := NewExtractor(Config{Dir: dir}, testLogger())

	matches, err := e.FindMatching("art-001")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %v", matches)
	}
	for _, m := range matches {
		if !strings.HasPrefix(strings.ToLower(filepath.Base(m)), "art-001") {
			t.Errorf("unexpected match %s", m)
		}
	}
}

func TestFindMatchingMissingDirIsNoFiles(t *testing.T) {
	e := NewExtractor(Config{Dir: "/definitely/not/here"}, testLogger())
	matches, err := e.FindMatching("ART-001")
	if err != nil {
		t.Fatalf("missing directory should be soft: %v", err)
	}
	if matches != nil {
		t.Errorf("expected no matches, got %v", matches)
	}
}

func TestFindMatchingHonoursMaxFiles(t *testing.T) {
	dir := writePDFs(t, "a-1.pdf", "a-2.pdf", "a-3.pdf", "a-4.pdf")
	e := NewExtractor(Config{Dir: dir, MaxFiles: 2}, testLogger())

	matches, err := e.FindMatching("a-")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected cap at 2, got %d", len(matches))
	}
	// sorted by name, the cap keeps the first ones
	if filepath.Base(matches[0]) != "a-1.pdf" || filepath.Base(matches[1]) != "a-2.pdf" {
		t.Errorf("unexpected selection: %v", matches)
	}
}

func TestExtractForArticleJoinsWithSeparator(t *testing.T) {
	dir := writePDFs(t, "ART-001_a.pdf", "ART-001_b.pdf")
	runner := &stubRunner{text: map[string]string{
		"ART-001_a.pdf": "first sheet",
		"ART-001_b.pdf": "second sheet",
	}}
	e := NewExtractor(Config{Dir: dir}, testLogger()).WithRunner(runner).WithPageCounter(onePage)

	text, files, err := e.ExtractForArticle(context.Background(), "ART-001")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %v", files)
	}
	if !strings.Contains(text, ContentSeparator) {
		t.Error("separator missing between documents")
	}
	if !strings.Contains(text, "[PDF 1: ART-001_a.pdf]") || !strings.Contains(text, "[PDF 2: ART-001_b.pdf]") {
		t.Errorf("per-file headers missing:\n%s", text)
	}
	first := strings.Index(text, "first sheet")
	second := strings.Index(text, "second sheet")
	if first < 0 || second < 0 || second < first {
		t.Error("document text missing or out of order")
	}
}

func TestExtractForArticleFileFailureIsSoft(t *testing.T) {
	dir := writePDFs(t, "ART-001_a.pdf", "ART-001_b.pdf")
	runner := &stubRunner{
		text: map[string]string{"ART-001_b.pdf": "surviving sheet"},
		fail: map[string]bool{"ART-001_a.pdf": true},
	}
	e := NewExtractor(Config{Dir: dir}, testLogger()).WithRunner(runner).WithPageCounter(onePage)

	text, files, err := e.ExtractForArticle(context.Background(), "ART-001")
	if err != nil {
		t.Fatalf("per-file failure must be soft: %v", err)
	}
	if len(files) != 1 || files[0] != "ART-001_b.pdf" {
		t.Errorf("expected only the surviving file, got %v", files)
	}
	if !strings.Contains(text, "surviving sheet") {
		t.Error("surviving file's text missing")
	}
	if !strings.Contains(text, "[PDF 1: ART-001_b.pdf]") {
		t.Error("header should number used files, not matched files")
	}
}

func TestExtractForArticleNoMatchesIsEmpty(t *testing.T) {
	dir := writePDFs(t, "OTHER-1.pdf")
	e := NewExtractor(Config{Dir: dir}, testLogger()).WithRunner(&stubRunner{}).WithPageCounter(onePage)

	text, files, err := e.ExtractForArticle(context.Background(), "ART-001")
	if err != nil {
		t.Fatal(err)
	}
	if text != "" || files != nil {
		t.Errorf("expected empty result, got %q %v", text, files)
	}
}

func TestExtractForArticleEmptyPagesRejected(t *testing.T) {
	dir := writePDFs(t, "ART-001.pdf")
	runner := &stubRunner{text: map[string]string{"ART-001.pdf": "text"}}
	e := NewExtractor(Config{Dir: dir}, testLogger()).
		WithRunner(runner).
		WithPageCounter(func(string) (int, error) { return 0, nil })

	text, files, err := e.ExtractForArticle(context.Background(), "ART-001")
	if err != nil {
		t.Fatalf("zero-page file must be soft: %v", err)
	}
	if text != "" || len(files) != 0 {
		t.Errorf("zero-page file contributed content: %q %v", text, files)
	}
	if len(runner.calls) != 0 {
		t.Error("pdftotext ran on a file that failed pre-flight")
	}
}

func TestExtractForArticleHonoursCancellation(t *testing.T) {
	dir := writePDFs(t, "ART-001.pdf")
	e := NewExtractor(Config{Dir: dir}, testLogger()).WithRunner(&stubRunner{}).WithPageCounter(onePage)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := e.ExtractForArticle(ctx, "ART-001")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
