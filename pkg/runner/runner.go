// Package runner orchestrates one full sync cycle: sign-in, bulk fetch,
// reconciliation, document downloads, and archive uploads.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/lukmanhidayah/siasn-sync/pkg/context"
	"github.com/lukmanhidayah/siasn-sync/pkg/documents"
	"github.com/lukmanhidayah/siasn-sync/pkg/drive"
	"github.com/lukmanhidayah/siasn-sync/pkg/events"
	"github.com/lukmanhidayah/siasn-sync/pkg/metrics"
	"github.com/lukmanhidayah/siasn-sync/pkg/models"
	"github.com/lukmanhidayah/siasn-sync/pkg/reconcile"
	"github.com/lukmanhidayah/siasn-sync/pkg/selection"
	"github.com/lukmanhidayah/siasn-sync/pkg/siasn"
	"github.com/lukmanhidayah/siasn-sync/pkg/spreadsheet"
	"github.com/lukmanhidayah/siasn-sync/pkg/tracing"
)

const (
	storeFileName = "monitoring_usulan.json"
	sheetFileName = "monitoring_usulan.xlsx"
	sheetTitle    = "monitoring_usulan"

	pertekDirName = "monitoring_usulan_ttd_pertek"
	skDirName     = "monitoring_usulan_ttd_sk"
)

// Config holds runner settings.
type Config struct {
	DataDir           string
	SelectionFilePath string
	LookupDelay       time.Duration
	DownloadWorkers   int

	DriveSheetFolderID  string
	DrivePertekFolderID string
	DriveSKFolderID     string
}

// Authenticator establishes the SSO session at the start of a cycle.
type Authenticator interface {
	Login(ctx context.Context) error
}

// SessionStore clears persisted session artifacts between cycles.
type SessionStore interface {
	Clear() error
}

// APIClient is the slice of the SIASN client the cycle needs: gap-fill point
// lookups for reconciliation and document fetches for the pool.
type APIClient interface {
	PointLookup(ctx context.Context, noPeserta string) (json.RawMessage, error)
	FetchDocument(ctx context.Context, kind siasn.DocumentKind, itemID string) ([]byte, error)
}

// BulkFetcher pulls the full monitoring result set into the store.
type BulkFetcher interface {
	FetchAll(ctx context.Context, outPath string) (int, error)
}

// RunRecorder persists run summaries. Optional.
type RunRecorder interface {
	Record(ctx context.Context, summary *models.RunSummary) error
}

// Runner executes sync cycles.
type Runner struct {
	cfg      Config
	auth     Authenticator
	sessions SessionStore
	client   APIClient
	fetch    BulkFetcher
	archive  drive.Archive
	emitter  *events.Emitter
	runlog   RunRecorder
	logger   ectologger.Logger

	mu      sync.RWMutex
	lastRun *models.RunSummary
}

// New creates a Runner. archive and runlog may be nil when those integrations
// are disabled.
func New(
	cfg Config,
	authenticator Authenticator,
	sessions SessionStore,
	client APIClient,
	fetch BulkFetcher,
	archive drive.Archive,
	emitter *events.Emitter,
	runlog RunRecorder,
	logger ectologger.Logger,
) *Runner {
	if cfg.DownloadWorkers <= 0 {
		cfg.DownloadWorkers = 10
	}
	return &Runner{
		cfg:      cfg,
		auth:     authenticator,
		sessions: sessions,
		client:   client,
		fetch:    fetch,
		archive:  archive,
		emitter:  emitter,
		runlog:   runlog,
		logger:   logger,
	}
}

func (r *Runner) downloadsDir() string {
	return filepath.Join(r.cfg.DataDir, "downloads")
}

// RunOnce executes one full sync cycle. Setup failures (login, selection,
// bulk fetch, reconciliation) abort the cycle; document and upload stages
// fail in isolation.
func (r *Runner) RunOnce(ctx context.Context) *models.RunSummary {
	runID := uuid.New().String()
	ctx = appctx.SetRunID(ctx, runID)

	ctx, span := tracing.StartSpan(ctx, "runner.Runner.RunOnce")
	defer span.End()

	summary := &models.RunSummary{
		RunID:     runID,
		Status:    models.RunStatusSucceeded,
		StartedAt: time.Now().UTC(),
	}
	r.emitter.EmitRunStarted(ctx, runID)

	if err := r.runCycle(ctx, runID, summary); err != nil {
		summary.Status = models.RunStatusFailed
		summary.Error = err.Error()
	}

	summary.FinishedAt = time.Now().UTC()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)

	metrics.RecordRun(string(summary.Status), summary.Duration.Seconds())
	r.emitter.EmitRunFinished(ctx, summary)

	if r.runlog != nil {
		if err := r.runlog.Record(ctx, summary); err != nil {
			r.emitter.EmitStageError(ctx, runID, "runlog", err)
		}
	}

	r.mu.Lock()
	r.lastRun = summary
	r.mu.Unlock()

	return summary
}

// LastRun returns the most recent cycle summary, or nil before the first
// cycle completes.
func (r *Runner) LastRun() *models.RunSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastRun
}

func (r *Runner) runCycle(ctx context.Context, runID string, summary *models.RunSummary) error {
	// 1. fresh authenticated session; artifacts from the previous cycle are
	// considered stale by now
	if err := r.sessions.Clear(); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("failed to clear session artifacts")
	}
	if err := r.auth.Login(ctx); err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("login failed: %w", err)
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	// 2. selection set
	sel, err := selection.Load(r.cfg.SelectionFilePath)
	if err != nil {
		return err
	}

	// 3. bulk fetch into the store
	storePath := filepath.Join(r.downloadsDir(), storeFileName)
	fetched, err := r.fetch.FetchAll(ctx, storePath)
	if err != nil {
		return fmt.Errorf("bulk fetch failed: %w", err)
	}
	summary.RecordsFetched = fetched
	metrics.RecordsFetched.Add(float64(fetched))

	// 4. pre-fetch the archive folder listing so known documents get links
	// without re-uploading
	titleLinks := map[string]string{}
	if r.archive != nil && r.cfg.DrivePertekFolderID != "" {
		titleLinks, err = r.archive.ListTitleLinks(ctx, r.cfg.DrivePertekFolderID)
		if err != nil {
			r.emitter.EmitStageError(ctx, runID, "drive_listing", err)
			titleLinks = map[string]string{}
		}
	}

	// 5. reconciliation into the spreadsheet
	sheet, err := spreadsheet.NewBuilder()
	if err != nil {
		return err
	}
	defer sheet.Close()

	engine := reconcile.New(reconcile.Config{LookupDelay: r.cfg.LookupDelay}, r.client, sel, titleLinks, r.logger)
	recResult, err := engine.Run(ctx, storePath, sheet)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	summary.RowsWritten = recResult.RowsWritten
	summary.Duplicates = recResult.Duplicates
	summary.GapFilled = recResult.GapFilled
	summary.NotFound = recResult.NotFound
	summary.Merged = recResult.Merged
	metrics.RecordsMerged.Add(float64(recResult.Merged))

	// 6. SK documents: download and archive only, no spreadsheet links
	r.runDocumentStage(ctx, runID, documents.Config{
		Kind:          siasn.DocumentSK,
		OutDir:        filepath.Join(r.downloadsDir(), skDirName),
		Workers:       r.cfg.DownloadWorkers,
		TitlePrefix:   "SK",
		DriveFolderID: r.cfg.DriveSKFolderID,
	}, storePath, sel, summary, nil)

	// 7. Pertek documents: download, archive, and patch links into the sheet
	r.runDocumentStage(ctx, runID, documents.Config{
		Kind:          siasn.DocumentPertek,
		OutDir:        filepath.Join(r.downloadsDir(), pertekDirName),
		Workers:       r.cfg.DownloadWorkers,
		TitlePrefix:   "Pertek",
		DriveFolderID: r.cfg.DrivePertekFolderID,
	}, storePath, sel, summary, sheet)

	// 8. write the spreadsheet
	sheetPath := filepath.Join(r.downloadsDir(), sheetFileName)
	if err := sheet.Save(sheetPath); err != nil {
		return err
	}

	// 9. archive the spreadsheet as a native sheet, replacing the previous one
	if r.archive != nil && r.cfg.DriveSheetFolderID != "" {
		_, err := r.archive.Upload(ctx, sheetPath, r.cfg.DriveSheetFolderID, drive.UploadOptions{
			ConvertSpreadsheet: true,
			ReplaceByTitle:     true,
			Title:              sheetTitle,
		})
		if err != nil {
			metrics.DriveUploadsTotal.WithLabelValues("failure").Inc()
			r.emitter.EmitStageError(ctx, runID, "sheet_upload", err)
		} else {
			metrics.DriveUploadsTotal.WithLabelValues("success").Inc()
		}
	}

	return nil
}

// runDocumentStage runs one document pool. Failures are isolated to the
// stage. When sheet is non-nil, successful upload links are patched into the
// Drive URL column after all workers join.
func (r *Runner) runDocumentStage(
	ctx context.Context,
	runID string,
	cfg documents.Config,
	storePath string,
	sel *selection.Set,
	summary *models.RunSummary,
	sheet *spreadsheet.Builder,
) {
	pool := documents.NewPool(cfg, r.client, r.archive, r.logger)

	tasks, skipped, err := pool.BuildTasks(storePath, sel)
	if err != nil {
		r.emitter.EmitStageError(ctx, runID, string(cfg.Kind)+"_documents", err)
		return
	}
	if len(tasks) == 0 {
		r.logger.WithContext(ctx).Infof("no %s documents in scope (%d records skipped)", cfg.Kind, skipped)
		return
	}

	results := pool.Run(ctx, tasks)
	for _, res := range results {
		status := "failed"
		if res.Saved {
			status = "saved"
		}
		metrics.RecordDocument(string(cfg.Kind), status)
	}

	summary.DocumentsTotal += len(results)
	summary.DocumentsSaved += documents.CountSaved(results)
	r.logger.WithContext(ctx).Infof("%s documents: %s", cfg.Kind, documents.Summary(results, skipped))

	if sheet != nil {
		patched, err := sheet.PatchDriveURLs(documents.LinksByParticipant(results))
		if err != nil {
			r.emitter.EmitStageError(ctx, runID, string(cfg.Kind)+"_patch", err)
			return
		}
		r.logger.WithContext(ctx).Infof("patched %d drive links into spreadsheet", patched)
	}
}
