package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ContentSeparator is inserted between the text of consecutive PDF files so
// the extraction model can tell documents apart.
const ContentSeparator = "[PDF CONTENT SEPARATOR]"

// Config holds PDF extraction configuration.
type Config struct {
	Dir       string // directory holding datasheet PDFs
	Pdftotext string // pdftotext binary, defaults to "pdftotext"
	MaxFiles  int    // cap on files per article, 0 means no cap
}

// Extractor finds datasheet PDFs for an article number and extracts their
// text. All per-file failures are soft: the file's text is omitted and the
// remaining files still contribute.
type Extractor struct {
	cfg       Config
	runner    Runner
	pageCount func(path string) (int, error)
	logger    *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	return &Extractor{cfg: cfg, runner: execRunner{}, pageCount: pdfcpuPageCount, logger: logger}
}

// WithRunner swaps the command runner (tests).
func (e *Extractor) WithRunner(r Runner) *Extractor {
	e.runner = r
	return e
}

// WithPageCounter swaps the PDF pre-flight check (tests).
func (e *Extractor) WithPageCounter(fn func(path string) (int, error)) *Extractor {
	e.pageCount = fn
	return e
}

func pdfcpuPageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	return api.PageCount(f, nil)
}

// FindMatching returns the PDF files whose name case-insensitively starts
// with the article number, sorted by name. A missing directory is treated
// as "no files", not an error.
func (e *Extractor) FindMatching(articleNumber string) ([]string, error) {
	entries, err := os.ReadDir(e.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pdf dir: %w", err)
	}

	prefix := strings.ToLower(articleNumber)
	var matches []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".pdf") {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			matches = append(matches, filepath.Join(e.cfg.Dir, entry.Name()))
		}
	}
	sort.Strings(matches)
	if e.cfg.MaxFiles > 0 && len(matches) > e.cfg.MaxFiles {
		matches = matches[:e.cfg.MaxFiles]
	}
	return matches, nil
}

// ExtractForArticle extracts and concatenates the text of every matching
// PDF. Each file's text is preceded by a "[PDF i: filename]" header; files
// are joined with ContentSeparator. No matches yields an empty string and
// nil files, which callers treat as "skip silently".
func (e *Extractor) ExtractForArticle(ctx context.Context, articleNumber string) (string, []string, error) {
	matches, err := e.FindMatching(articleNumber)
	if err != nil {
		return "", nil, err
	}
	if len(matches) == 0 {
		return "", nil, nil
	}

	start := time.Now()
	var sections []string
	var used []string
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return "", used, err
		}
		text, err := e.extractFile(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return "", used, ctx.Err()
			}
			e.logger.Warn("pdf.extract.file_failed",
				"article_number", articleNumber, "file", filepath.Base(path), "error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			e.logger.Warn("pdf.extract.empty_text",
				"article_number", articleNumber, "file", filepath.Base(path))
			continue
		}
		header := fmt.Sprintf("[PDF %d: %s]", len(used)+1, filepath.Base(path))
		sections = append(sections, header+"\n"+text)
		used = append(used, filepath.Base(path))
	}

	if len(sections) == 0 {
		return "", nil, nil
	}

	combined := strings.Join(sections, "\n"+ContentSeparator+"\n")
	e.logger.Debug("pdf.extract.ok",
		"article_number", articleNumber,
		"files", len(used),
		"text_len", len(combined),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return combined, used, nil
}

// extractFile validates the PDF and runs pdftotext on it.
func (e *Extractor) extractFile(ctx context.Context, path string) (string, error) {
	pages, err := e.pageCount(path)
	if err != nil {
		return "", fmt.Errorf("page count: %w", err)
	}
	if pages == 0 {
		return "", fmt.Errorf("pdf has no pages")
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w (%s)", err, truncate(string(errb), 512))
	}
	return string(out), nil
}
