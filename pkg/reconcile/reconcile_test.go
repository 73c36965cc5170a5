package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/lukmanhidayah/siasn-sync/pkg/selection"
	"github.com/lukmanhidayah/siasn-sync/pkg/spreadsheet"
	"github.com/lukmanhidayah/siasn-sync/pkg/store"
)

type fakeLookup struct {
	records map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeLookup) PointLookup(_ context.Context, noPeserta string) (json.RawMessage, error) {
	f.calls = append(f.calls, noPeserta)
	if err, ok := f.errs[noPeserta]; ok {
		return nil, err
	}
	raw, ok := f.records[noPeserta]
	if !ok {
		return nil, nil
	}
	return json.RawMessage(raw), nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func record(id, noPeserta, nip, nama, status string) string {
	return fmt.Sprintf(
		`{"id":%q,"nip":%q,"nama":%q,"status_usulan":%q,"usulan_data":{"data":{"no_peserta":%q}}}`,
		id, nip, nama, status, noPeserta)
}

func writeStore(t *testing.T, records ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.json")
	w, err := store.NewWriter(path)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Append(json.RawMessage(r)))
	}
	require.NoError(t, w.Close())
	return path
}

func newSheet(t *testing.T) *spreadsheet.Builder {
	t.Helper()
	sheet, err := spreadsheet.NewBuilder()
	require.NoError(t, err)
	t.Cleanup(func() { sheet.Close() })
	return sheet
}

func storeIDs(t *testing.T, path string) []string {
	t.Helper()
	var ids []string
	require.NoError(t, store.Stream(path, func(raw json.RawMessage) error {
		var r struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(raw, &r))
		ids = append(ids, r.ID)
		return nil
	}))
	return ids
}

func TestRunProjectsSelectionWithFirstWinsDedup(t *testing.T) {
	path := writeStore(t,
		record("a", "P1", "111", "Budi", "22"),
		record("b", "P1", "111", "Budi Duplikat", "10"),
		record("c", "P9", "999", "Out of Scope", "22"),
		record("d", "P2", "222", "Siti", "20"),
	)

	lookup := &fakeLookup{}
	engine := New(Config{}, lookup, selection.FromIDs("P1", "P2"), nil, testLogger())
	sheet := newSheet(t)

	result, err := engine.Run(context.Background(), path, sheet)
	require.NoError(t, err)

	assert.Equal(t, 2, result.RowsWritten)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.GapFilled)
	assert.Equal(t, 0, result.Merged)
	assert.Empty(t, lookup.calls)
	assert.Equal(t, 2, sheet.RowCount())
}

func TestRunGapFillsMissingParticipants(t *testing.T) {
	path := writeStore(t, record("a", "P1", "111", "Budi", "22"))

	lookup := &fakeLookup{
		records: map[string]string{
			"P2": record("b", "P2", "222", "Siti", "20"),
		},
	}
	engine := New(Config{}, lookup, selection.FromIDs("P1", "P2", "P3"), nil, testLogger())
	sheet := newSheet(t)

	result, err := engine.Run(context.Background(), path, sheet)
	require.NoError(t, err)

	// P2 found via lookup, P3 gets a sentinel row
	assert.Equal(t, 3, result.RowsWritten)
	assert.Equal(t, 1, result.GapFilled)
	assert.Equal(t, 1, result.NotFound)
	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, []string{"P2", "P3"}, lookup.calls)

	assert.Equal(t, []string{"a", "b"}, storeIDs(t, path))
}

func TestRunSecondPassIsIdempotent(t *testing.T) {
	path := writeStore(t, record("a", "P1", "111", "Budi", "22"))

	lookup := &fakeLookup{
		records: map[string]string{
			"P2": record("b", "P2", "222", "Siti", "20"),
		},
	}
	sel := selection.FromIDs("P1", "P2")

	first, err := New(Config{}, lookup, sel, nil, testLogger()).Run(context.Background(), path, newSheet(t))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Merged)

	// the merged record is now in the store, so no lookup and no growth
	lookup.calls = nil
	second, err := New(Config{}, lookup, sel, nil, testLogger()).Run(context.Background(), path, newSheet(t))
	require.NoError(t, err)
	assert.Equal(t, 2, second.RowsWritten)
	assert.Equal(t, 0, second.GapFilled)
	assert.Equal(t, 0, second.Merged)
	assert.Empty(t, lookup.calls)

	assert.Equal(t, []string{"a", "b"}, storeIDs(t, path))
}

func TestRunSkipsParticipantOnLookupFailure(t *testing.T) {
	path := writeStore(t, record("a", "P1", "111", "Budi", "22"))

	lookup := &fakeLookup{
		errs: map[string]error{"P2": errors.New("upstream timeout")},
	}
	engine := New(Config{}, lookup, selection.FromIDs("P1", "P2"), nil, testLogger())

	result, err := engine.Run(context.Background(), path, newSheet(t))
	require.NoError(t, err)

	// the failed participant produces no row at all
	assert.Equal(t, 1, result.RowsWritten)
	assert.Equal(t, 0, result.NotFound)
	assert.Equal(t, 0, result.GapFilled)
}

func TestRunFillsDriveURLFromTitleLinks(t *testing.T) {
	path := writeStore(t, record("a", "P1", "111", "Budi", "22"))

	titleLinks := map[string]string{
		"Pertek_111_Budi": "https://drive.google.com/file/d/abc/view",
	}
	engine := New(Config{}, &fakeLookup{}, selection.FromIDs("P1"), titleLinks, testLogger())
	sheet := newSheet(t)

	_, err := engine.Run(context.Background(), path, sheet)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, sheet.Save(out))
	assertCell(t, out, "E2", "https://drive.google.com/file/d/abc/view")
	assertCell(t, out, "D2", "Sdh di TTD - Pertek")
}

func assertCell(t *testing.T, path, cell, want string) {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.GetCellValue(spreadsheet.SheetName, cell)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
