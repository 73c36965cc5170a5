// Package documents downloads signed PDFs for in-scope records with a
// bounded worker pool and archives them to the cloud folder.
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/lukmanhidayah/siasn-sync/pkg/drive"
	"github.com/lukmanhidayah/siasn-sync/pkg/metrics"
	"github.com/lukmanhidayah/siasn-sync/pkg/models"
	"github.com/lukmanhidayah/siasn-sync/pkg/naming"
	"github.com/lukmanhidayah/siasn-sync/pkg/selection"
	"github.com/lukmanhidayah/siasn-sync/pkg/siasn"
	"github.com/lukmanhidayah/siasn-sync/pkg/store"
	"github.com/lukmanhidayah/siasn-sync/pkg/tracing"
)

// DocumentFetcher is the slice of the API client the pool needs.
type DocumentFetcher interface {
	FetchDocument(ctx context.Context, kind siasn.DocumentKind, itemID string) ([]byte, error)
}

// Config controls one document pass.
type Config struct {
	// Kind selects the pertek or SK endpoint and title prefix.
	Kind siasn.DocumentKind
	// OutDir receives the downloaded PDFs.
	OutDir string
	// Workers bounds pool parallelism.
	Workers int
	// TitlePrefix names archived files ("Pertek" or "SK").
	TitlePrefix string
	// DriveFolderID is the archive folder. Empty disables uploads; tasks
	// still download locally.
	DriveFolderID string
}

// Pool fetches and archives documents with bounded parallelism.
type Pool struct {
	cfg     Config
	client  DocumentFetcher
	archive drive.Archive
	logger  ectologger.Logger
}

// NewPool creates a document pool. archive may be nil when uploads are
// disabled.
func NewPool(cfg Config, client DocumentFetcher, archive drive.Archive, logger ectologger.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.TitlePrefix == "" {
		cfg.TitlePrefix = "Pertek"
	}
	if cfg.Kind == "" {
		cfg.Kind = siasn.DocumentPertek
	}
	return &Pool{cfg: cfg, client: client, archive: archive, logger: logger}
}

// BuildTasks streams the store and derives one download task per record with
// a non-empty id and an in-scope participant number. The second return value
// counts records skipped as out of scope.
func (p *Pool) BuildTasks(storePath string, sel *selection.Set) ([]models.DownloadTask, int, error) {
	var tasks []models.DownloadTask
	skipped := 0

	err := store.Stream(storePath, func(raw json.RawMessage) error {
		var record models.UsulanRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			skipped++
			return nil
		}

		noPeserta := record.NoPeserta()
		if record.ID == "" || noPeserta == "" || !sel.Contains(noPeserta) {
			skipped++
			return nil
		}

		title := naming.DocumentTitle(p.cfg.TitlePrefix, record.NIP, record.DisplayName())
		tasks = append(tasks, models.DownloadTask{
			ItemID:          record.ID,
			NoPeserta:       noPeserta,
			DestinationPath: filepath.Join(p.cfg.OutDir, title+".pdf"),
			Title:           title,
		})
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return tasks, skipped, nil
}

// Run executes all tasks with bounded parallelism and returns one result per
// task. A failing task yields a not-saved result and never aborts siblings.
// Results carry no ordering guarantee.
func (p *Pool) Run(ctx context.Context, tasks []models.DownloadTask) []models.DownloadResult {
	ctx, span := tracing.StartSpan(ctx, "documents.Pool.Run")
	defer span.End()

	if len(tasks) == 0 {
		return nil
	}

	if err := os.MkdirAll(p.cfg.OutDir, 0o755); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("failed to create download directory")
		results := make([]models.DownloadResult, len(tasks))
		for i, task := range tasks {
			results[i] = models.DownloadResult{NoPeserta: task.NoPeserta}
		}
		return results
	}

	jobsCh := make(chan models.DownloadTask)
	resultsCh := make(chan models.DownloadResult)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range jobsCh {
				resultsCh <- p.runTask(ctx, task)
			}
		}()
	}

	go func() {
		for _, task := range tasks {
			jobsCh <- task
		}
		close(jobsCh)
		wg.Wait()
		close(resultsCh)
	}()

	results := make([]models.DownloadResult, 0, len(tasks))
	for result := range resultsCh {
		results = append(results, result)
	}
	return results
}

func (p *Pool) runTask(ctx context.Context, task models.DownloadTask) models.DownloadResult {
	metrics.DocumentsInFlight.Inc()
	defer metrics.DocumentsInFlight.Dec()

	result := models.DownloadResult{NoPeserta: task.NoPeserta}

	body, err := p.client.FetchDocument(ctx, p.cfg.Kind, task.ItemID)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"no_peserta": task.NoPeserta,
			"item_id":    task.ItemID,
		}).Warn("document fetch failed")
		return result
	}

	if err := os.WriteFile(task.DestinationPath, body, 0o644); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"no_peserta": task.NoPeserta,
			"path":       task.DestinationPath,
		}).Warn("document write failed")
		return result
	}
	result.Saved = true

	if p.archive != nil && p.cfg.DriveFolderID != "" {
		link, err := p.archive.Upload(ctx, task.DestinationPath, p.cfg.DriveFolderID, drive.UploadOptions{
			ReplaceByTitle: true,
			Title:          task.Title,
		})
		if err != nil {
			p.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"no_peserta": task.NoPeserta,
				"title":      task.Title,
			}).Warn("document archive upload failed")
			return result
		}
		result.DriveURL = link
	}

	return result
}

// LinksByParticipant folds results into a participant-to-link map for the
// spreadsheet patch pass. Runs strictly after the pool joins.
func LinksByParticipant(results []models.DownloadResult) map[string]string {
	links := make(map[string]string, len(results))
	for _, r := range results {
		if r.DriveURL == "" {
			continue
		}
		if _, ok := links[r.NoPeserta]; ok {
			continue
		}
		links[r.NoPeserta] = r.DriveURL
	}
	return links
}

// CountSaved returns how many results carry a saved document.
func CountSaved(results []models.DownloadResult) int {
	saved := 0
	for _, r := range results {
		if r.Saved {
			saved++
		}
	}
	return saved
}

// Summary formats a short outcome line for logs.
func Summary(results []models.DownloadResult, skipped int) string {
	return fmt.Sprintf("saved %d/%d documents (%d records out of scope)",
		CountSaved(results), len(results), skipped)
}
