// Package runlog persists sync run summaries for operational history.
package runlog

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"

	"github.com/lukmanhidayah/siasn-sync/pkg/models"
	"github.com/lukmanhidayah/siasn-sync/pkg/tracing"
)

// Run is one persisted run summary row.
type Run struct {
	ID             string    `db:"id"`
	Status         string    `db:"status"`
	StartedAt      time.Time `db:"started_at"`
	FinishedAt     time.Time `db:"finished_at"`
	RecordsFetched int       `db:"records_fetched"`
	RowsWritten    int       `db:"rows_written"`
	Duplicates     int       `db:"duplicates"`
	GapFilled      int       `db:"gap_filled"`
	NotFound       int       `db:"not_found"`
	Merged         int       `db:"merged"`
	DocumentsSaved int       `db:"documents_saved"`
	DocumentsTotal int       `db:"documents_total"`
	Error          string    `db:"error"`
	CreatedAt      time.Time `db:"created_at"`
}

// Repository handles run history persistence
type Repository struct {
	db     *sqlx.DB
	logger ectologger.Logger
}

// NewRepository creates a run log repository
func NewRepository(db *sqlx.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Record inserts one run summary.
func (r *Repository) Record(ctx context.Context, summary *models.RunSummary) error {
	ctx, span := tracing.StartSpan(ctx, "runlog.Repository.Record")
	defer span.End()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("sync_runs")
	ib.Cols("id", "status", "started_at", "finished_at", "records_fetched", "rows_written",
		"duplicates", "gap_filled", "not_found", "merged", "documents_saved", "documents_total", "error")
	ib.Values(summary.RunID, string(summary.Status), summary.StartedAt, summary.FinishedAt,
		summary.RecordsFetched, summary.RowsWritten, summary.Duplicates, summary.GapFilled,
		summary.NotFound, summary.Merged, summary.DocumentsSaved, summary.DocumentsTotal, summary.Error)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": summary.RunID}).Error("Failed to record run summary")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to record run summary: %v", err)
	}
	return nil
}

// ListRecent returns the most recent runs, newest first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Run, error) {
	ctx, span := tracing.StartSpan(ctx, "runlog.Repository.ListRecent")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "status", "started_at", "finished_at", "records_fetched", "rows_written",
		"duplicates", "gap_filled", "not_found", "merged", "documents_saved", "documents_total", "error", "created_at")
	sb.From("sync_runs")
	sb.OrderBy("started_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	var runs []Run
	if err := r.db.SelectContext(ctx, &runs, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list recent runs")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list recent runs: %v", err)
	}
	return runs, nil
}

// Get returns one run by id, or a 404 error.
func (r *Repository) Get(ctx context.Context, runID string) (*Run, error) {
	ctx, span := tracing.StartSpan(ctx, "runlog.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "status", "started_at", "finished_at", "records_fetched", "rows_written",
		"duplicates", "gap_filled", "not_found", "merged", "documents_saved", "documents_total", "error", "created_at")
	sb.From("sync_runs")
	sb.Where(sb.Equal("id", runID))

	query, args := sb.Build()
	var run Run
	if err := r.db.GetContext(ctx, &run, query, args...); err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "run %s not found: %v", runID, err)
	}
	return &run, nil
}
