package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mlindqvist/product-enricher/internal/entity"
)

const runsSchema = `
CREATE TABLE IF NOT EXISTS batch_run (
	id          TEXT PRIMARY KEY,
	finished_at TIMESTAMP NOT NULL,
	completed   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	stopped     INTEGER NOT NULL,
	cancelled   BOOLEAN NOT NULL
);
CREATE TABLE IF NOT EXISTS batch_result (
	run_id         TEXT NOT NULL,
	article_number TEXT NOT NULL,
	product_name   TEXT NOT NULL,
	properties     TEXT NOT NULL,
	source_labels  TEXT NOT NULL
);`

// RunRepository persists terminal batch runs and their completed results.
type RunRepository interface {
	RecordRun(ctx context.Context, runID string, summary entity.RunSummary, results []entity.ExtractionResult) error
	ListRuns(ctx context.Context, limit int) ([]entity.RunRecord, error)
	ResultsForRun(ctx context.Context, runID string) ([]entity.ExtractionResult, error)
}

type runRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates the schema if needed and returns the repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) (RunRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, stmt := range strings.Split(runsSchema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("create runs schema: %w", err)
		}
	}
	return &runRepository{db: db, logger: logger}, nil
}

func (r *runRepository) RecordRun(ctx context.Context, runID string, summary entity.RunSummary, results []entity.ExtractionResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batch_run (id, finished_at, completed, failed, stopped, cancelled)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		runID, time.Now().UTC(), summary.Completed, summary.Failed, summary.Stopped, summary.Cancelled,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, res := range results {
		props, err := json.Marshal(res.Properties)
		if err != nil {
			return fmt.Errorf("marshal properties: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO batch_result (run_id, article_number, product_name, properties, source_labels)
			 VALUES ($1, $2, $3, $4, $5)`,
			runID, res.ArticleNumber, res.ProductName, string(props), strings.Join(res.SourceLabels, ","),
		)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.logger.Debug("repository.run.recorded", "run_id", runID, "results", len(results))
	return nil
}

func (r *runRepository) ListRuns(ctx context.Context, limit int) ([]entity.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, finished_at, completed, failed, stopped, cancelled
		 FROM batch_run ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []entity.RunRecord
	for rows.Next() {
		var rec entity.RunRecord
		if err := rows.Scan(&rec.ID, &rec.FinishedAt, &rec.Completed, &rec.Failed, &rec.Stopped, &rec.Cancelled); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *runRepository) ResultsForRun(ctx context.Context, runID string) ([]entity.ExtractionResult, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT article_number, product_name, properties, source_labels
		 FROM batch_result WHERE run_id = $1`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []entity.ExtractionResult
	for rows.Next() {
		var res entity.ExtractionResult
		var props, labels string
		if err := rows.Scan(&res.ArticleNumber, &res.ProductName, &props, &labels); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(props), &res.Properties); err != nil {
			return nil, fmt.Errorf("unmarshal properties: %w", err)
		}
		if labels != "" {
			res.SourceLabels = strings.Split(labels, ",")
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
