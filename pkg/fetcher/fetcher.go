// Package fetcher pulls the full monitoring result set page by page into the
// bulk store.
package fetcher

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/lukmanhidayah/siasn-sync/pkg/metrics"
	"github.com/lukmanhidayah/siasn-sync/pkg/siasn"
	"github.com/lukmanhidayah/siasn-sync/pkg/store"
	"github.com/lukmanhidayah/siasn-sync/pkg/tracing"
)

// Config controls the paginated fetch.
type Config struct {
	PageSize  int
	PageDelay time.Duration
	TglUsulan string
	Periode   string
}

// DefaultConfig returns fetcher defaults.
func DefaultConfig() Config {
	return Config{
		PageSize:  500,
		PageDelay: 300 * time.Millisecond,
	}
}

// Fetcher streams paginated monitoring records to disk.
type Fetcher struct {
	cfg    Config
	client *siasn.Client
	logger ectologger.Logger
}

// New creates a Fetcher.
func New(cfg Config, client *siasn.Client, logger ectologger.Logger) *Fetcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	return &Fetcher{cfg: cfg, client: client, logger: logger}
}

// FetchAll pulls pages until a short page signals exhaustion, appending every
// item to a fresh store file at outPath. Any page failure aborts the whole
// fetch; the partial file is left behind and the caller must re-run.
//
// The reported meta total is used for progress logging only. The stop
// condition is the short page: if the upstream total is an exact multiple of
// the page size, the fetch issues one extra empty-page request before
// stopping. That trailing request is harmless and keeps the condition simple.
func (f *Fetcher) FetchAll(ctx context.Context, outPath string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "fetcher.Fetcher.FetchAll")
	defer span.End()

	w, err := store.NewWriter(outPath)
	if err != nil {
		return 0, err
	}

	offset := 0
	for {
		page, err := f.client.ListUsulan(ctx, siasn.ListParams{
			TglUsulan: f.cfg.TglUsulan,
			Periode:   f.cfg.Periode,
			Limit:     f.cfg.PageSize,
			Offset:    offset,
		})
		if err != nil {
			metrics.PagesFetched.WithLabelValues("failure").Inc()
			w.Abort()
			f.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"offset": offset,
			}).Error("bulk fetch aborted")
			return 0, err
		}
		metrics.PagesFetched.WithLabelValues("success").Inc()

		for _, item := range page.Data {
			if err := w.Append(item); err != nil {
				w.Abort()
				return 0, err
			}
		}

		f.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"offset":  offset,
			"page":    len(page.Data),
			"total":   page.Total(),
			"fetched": w.Count(),
		}).Info("fetched monitoring page")

		if len(page.Data) < f.cfg.PageSize {
			break
		}
		offset += f.cfg.PageSize

		if f.cfg.PageDelay > 0 {
			select {
			case <-ctx.Done():
				w.Abort()
				return 0, ctx.Err()
			case <-time.After(f.cfg.PageDelay):
			}
		}
	}

	count := w.Count()
	if err := w.Close(); err != nil {
		return 0, err
	}

	f.logger.WithContext(ctx).WithFields(map[string]interface{}{
		"records": count,
		"path":    outPath,
	}).Info("bulk fetch complete")

	return count, nil
}
