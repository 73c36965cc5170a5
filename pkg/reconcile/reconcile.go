// Package reconcile is the streaming reconciliation engine: it projects the
// bulk store onto the selection set, fills gaps via point lookups, merges
// discovered records back into the store, and emits spreadsheet rows.
package reconcile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/lukmanhidayah/siasn-sync/pkg/metrics"
	"github.com/lukmanhidayah/siasn-sync/pkg/models"
	"github.com/lukmanhidayah/siasn-sync/pkg/naming"
	"github.com/lukmanhidayah/siasn-sync/pkg/selection"
	"github.com/lukmanhidayah/siasn-sync/pkg/spreadsheet"
	"github.com/lukmanhidayah/siasn-sync/pkg/status"
	"github.com/lukmanhidayah/siasn-sync/pkg/store"
	"github.com/lukmanhidayah/siasn-sync/pkg/tracing"
)

// NotFoundSentinel fills name and status cells for participants the upstream
// has no record of.
const NotFoundSentinel = "Tidak Ditemukan"

// PointLookupClient is the slice of the API client the engine needs.
type PointLookupClient interface {
	PointLookup(ctx context.Context, noPeserta string) (json.RawMessage, error)
}

// Config controls reconciliation behavior.
type Config struct {
	// LookupDelay separates gap-fill point queries.
	LookupDelay time.Duration
	// TitlePrefix is the document title prefix used for Drive URL lookups.
	TitlePrefix string
}

// DefaultConfig returns reconciliation defaults.
func DefaultConfig() Config {
	return Config{
		LookupDelay: 200 * time.Millisecond,
		TitlePrefix: "Pertek",
	}
}

// Result summarizes one reconciliation pass.
type Result struct {
	RowsWritten int
	Duplicates  int
	GapFilled   int
	NotFound    int
	Skipped     int
	Merged      int
}

// accumulator is the explicit fold state for the dedup policy: first
// occurrence wins, keyed on participant number within a run.
type accumulator struct {
	seenIDs          map[string]struct{}
	seenParticipants map[string]struct{}
}

func newAccumulator() *accumulator {
	return &accumulator{
		seenIDs:          make(map[string]struct{}),
		seenParticipants: make(map[string]struct{}),
	}
}

func (a *accumulator) observe(r *models.UsulanRecord) {
	if r.ID != "" {
		a.seenIDs[r.ID] = struct{}{}
	}
	if p := r.NoPeserta(); p != "" {
		a.seenParticipants[p] = struct{}{}
	}
}

// collides reports whether the record matches an already-seen id or
// participant number. Either key matching disqualifies it.
func (a *accumulator) collides(r *models.UsulanRecord) bool {
	if r.ID != "" {
		if _, ok := a.seenIDs[r.ID]; ok {
			return true
		}
	}
	if p := r.NoPeserta(); p != "" {
		if _, ok := a.seenParticipants[p]; ok {
			return true
		}
	}
	return false
}

// Engine runs the two-phase reconciliation over one store.
type Engine struct {
	cfg        Config
	client     PointLookupClient
	selection  *selection.Set
	titleLinks map[string]string
	logger     ectologger.Logger
}

// New creates a reconciliation engine. titleLinks is the pre-fetched
// title-to-link map for the document archive folder; it may be empty.
func New(cfg Config, client PointLookupClient, sel *selection.Set, titleLinks map[string]string, logger ectologger.Logger) *Engine {
	if cfg.TitlePrefix == "" {
		cfg.TitlePrefix = DefaultConfig().TitlePrefix
	}
	if titleLinks == nil {
		titleLinks = map[string]string{}
	}
	return &Engine{
		cfg:        cfg,
		client:     client,
		selection:  sel,
		titleLinks: titleLinks,
		logger:     logger,
	}
}

// Run streams the store at storePath, appends one row per in-scope
// participant to the builder, gap-fills missing participants via point
// lookups, and merges newly discovered records back into the store
// atomically.
func (e *Engine) Run(ctx context.Context, storePath string, sheet *spreadsheet.Builder) (*Result, error) {
	ctx, span := tracing.StartSpan(ctx, "reconcile.Engine.Run")
	defer span.End()

	result := &Result{}
	processed := make(map[string]struct{})

	// Phase A: selective projection over the stream.
	err := store.Stream(storePath, func(raw json.RawMessage) error {
		var record models.UsulanRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			e.logger.WithContext(ctx).WithError(err).Warn("skipping undecodable store record")
			result.Skipped++
			return nil
		}

		noPeserta := record.NoPeserta()
		if noPeserta == "" || !e.selection.Contains(noPeserta) {
			result.Skipped++
			return nil
		}
		if _, dup := processed[noPeserta]; dup {
			e.logger.WithContext(ctx).WithFields(map[string]interface{}{
				"no_peserta": noPeserta,
			}).Warn("duplicate participant in store, keeping first occurrence")
			result.Duplicates++
			return nil
		}
		processed[noPeserta] = struct{}{}

		if err := sheet.AppendRow(e.rowFor(&record)); err != nil {
			return err
		}
		result.RowsWritten++
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Phase B: gap-fill point queries for selected participants the bulk
	// payload never mentioned.
	var staged []json.RawMessage
	missing := e.selection.Missing(processed)
	for i, noPeserta := range missing {
		if i > 0 && e.cfg.LookupDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.cfg.LookupDelay):
			}
		}

		raw, err := e.client.PointLookup(ctx, noPeserta)
		if err != nil {
			// accepted gap: no row for this identifier this run
			metrics.RecordGapLookup("failed")
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"no_peserta": noPeserta,
			}).Warn("point lookup failed, skipping participant")
			continue
		}

		if raw == nil {
			metrics.RecordGapLookup("not_found")
			row := spreadsheet.Row{
				NoPeserta:   noPeserta,
				Nama:        NotFoundSentinel,
				StatusLabel: NotFoundSentinel,
			}
			if err := sheet.AppendRow(row); err != nil {
				return nil, err
			}
			result.NotFound++
			result.RowsWritten++
			continue
		}

		var record models.UsulanRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			e.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
				"no_peserta": noPeserta,
			}).Warn("point lookup returned undecodable record")
			continue
		}

		metrics.RecordGapLookup("found")
		if err := sheet.AppendRow(e.rowFor(&record)); err != nil {
			return nil, err
		}
		result.GapFilled++
		result.RowsWritten++
		staged = append(staged, raw)
	}

	// Merge-back: append staged records that collide with nothing already in
	// the store. The rewrite replaces the store atomically.
	if len(staged) > 0 {
		acc := newAccumulator()
		merged, err := store.Merge(storePath, staged,
			func(raw json.RawMessage) {
				var record models.UsulanRecord
				if json.Unmarshal(raw, &record) == nil {
					acc.observe(&record)
				}
			},
			func(raw json.RawMessage) json.RawMessage {
				var record models.UsulanRecord
				if err := json.Unmarshal(raw, &record); err != nil {
					return nil
				}
				if acc.collides(&record) {
					return nil
				}
				acc.observe(&record)
				return raw
			},
		)
		if err != nil {
			return nil, err
		}
		result.Merged = merged

		e.logger.WithContext(ctx).WithFields(map[string]interface{}{
			"staged": len(staged),
			"merged": merged,
		}).Info("merged gap-fill records into store")
	}

	return result, nil
}

func (e *Engine) rowFor(record *models.UsulanRecord) spreadsheet.Row {
	title := naming.DocumentTitle(e.cfg.TitlePrefix, record.NIP, record.DisplayName())
	return spreadsheet.Row{
		NoPeserta:   record.NoPeserta(),
		NIP:         record.NIP,
		Nama:        record.DisplayName(),
		StatusLabel: status.Label(record.StatusUsulan.String()),
		DriveURL:    e.titleLinks[title],
	}
}
