package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukmanhidayah/siasn-sync/pkg/drive"
	"github.com/lukmanhidayah/siasn-sync/pkg/selection"
	"github.com/lukmanhidayah/siasn-sync/pkg/siasn"
	"github.com/lukmanhidayah/siasn-sync/pkg/store"
)

type fakeFetcher struct {
	mu     sync.Mutex
	failOn map[string]bool
	calls  int
}

func (f *fakeFetcher) FetchDocument(_ context.Context, _ siasn.DocumentKind, itemID string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.failOn[itemID] {
		return nil, errors.New("document unavailable")
	}
	return []byte("%PDF-" + itemID), nil
}

type fakeArchive struct {
	mu      sync.Mutex
	uploads map[string]string
	failOn  map[string]bool
}

func (f *fakeArchive) Upload(_ context.Context, localPath, _ string, opts drive.UploadOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[opts.Title] {
		return "", errors.New("quota exceeded")
	}
	if f.uploads == nil {
		f.uploads = make(map[string]string)
	}
	link := "https://drive.google.com/file/d/" + opts.Title + "/view"
	f.uploads[opts.Title] = localPath
	return link, nil
}

func (f *fakeArchive) ListTitleLinks(_ context.Context, _ string) (map[string]string, error) {
	return nil, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
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

func record(id, noPeserta, nip, nama string) string {
	return fmt.Sprintf(
		`{"id":%q,"nip":%q,"nama":%q,"usulan_data":{"data":{"no_peserta":%q}}}`,
		id, nip, nama, noPeserta)
}

func TestBuildTasksFiltersScope(t *testing.T) {
	path := writeStore(t,
		record("a", "P1", "111", "Budi"),
		record("", "P2", "222", "No ID"),
		record("c", "", "333", "No Participant"),
		record("d", "P9", "999", "Out of Scope"),
	)

	pool := NewPool(Config{OutDir: t.TempDir()}, &fakeFetcher{}, nil, testLogger())
	tasks, skipped, err := pool.BuildTasks(path, selection.FromIDs("P1", "P2"))
	require.NoError(t, err)

	require.Len(t, tasks, 1)
	assert.Equal(t, 3, skipped)
	assert.Equal(t, "a", tasks[0].ItemID)
	assert.Equal(t, "P1", tasks[0].NoPeserta)
	assert.Equal(t, "Pertek_111_Budi", tasks[0].Title)
	assert.Equal(t, "Pertek_111_Budi.pdf", filepath.Base(tasks[0].DestinationPath))
}

func TestRunDownloadsAndArchives(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "pertek")
	path := writeStore(t,
		record("a", "P1", "111", "Budi"),
		record("b", "P2", "222", "Siti"),
	)

	fetcher := &fakeFetcher{}
	archive := &fakeArchive{}
	pool := NewPool(Config{OutDir: outDir, Workers: 2, DriveFolderID: "folder"}, fetcher, archive, testLogger())

	tasks, _, err := pool.BuildTasks(path, selection.FromIDs("P1", "P2"))
	require.NoError(t, err)

	results := pool.Run(context.Background(), tasks)
	require.Len(t, results, 2)
	assert.Equal(t, 2, CountSaved(results))

	data, err := os.ReadFile(filepath.Join(outDir, "Pertek_111_Budi.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-a", string(data))

	links := LinksByParticipant(results)
	assert.Equal(t, "https://drive.google.com/file/d/Pertek_111_Budi/view", links["P1"])
	assert.Equal(t, "https://drive.google.com/file/d/Pertek_222_Siti/view", links["P2"])
}

func TestRunIsolatesFailingTasks(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "pertek")
	path := writeStore(t,
		record("a", "P1", "111", "Budi"),
		record("b", "P2", "222", "Siti"),
		record("c", "P3", "333", "Andi"),
	)

	fetcher := &fakeFetcher{failOn: map[string]bool{"b": true}}
	archive := &fakeArchive{failOn: map[string]bool{"Pertek_333_Andi": true}}
	pool := NewPool(Config{OutDir: outDir, Workers: 3, DriveFolderID: "folder"}, fetcher, archive, testLogger())

	tasks, _, err := pool.BuildTasks(path, selection.FromIDs("P1", "P2", "P3"))
	require.NoError(t, err)

	results := pool.Run(context.Background(), tasks)
	require.Len(t, results, 3)

	// fetch failure: not saved; upload failure: saved but no link
	assert.Equal(t, 2, CountSaved(results))
	links := LinksByParticipant(results)
	assert.Contains(t, links, "P1")
	assert.NotContains(t, links, "P2")
	assert.NotContains(t, links, "P3")
	assert.Equal(t, 3, fetcher.calls)
}

func TestRunWithoutArchive(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "pertek")
	path := writeStore(t, record("a", "P1", "111", "Budi"))

	pool := NewPool(Config{OutDir: outDir}, &fakeFetcher{}, nil, testLogger())
	tasks, _, err := pool.BuildTasks(path, selection.FromIDs("P1"))
	require.NoError(t, err)

	results := pool.Run(context.Background(), tasks)
	require.Len(t, results, 1)
	assert.True(t, results[0].Saved)
	assert.Empty(t, results[0].DriveURL)
	assert.Empty(t, LinksByParticipant(results))
}

func TestRunEmptyTaskList(t *testing.T) {
	pool := NewPool(Config{OutDir: t.TempDir()}, &fakeFetcher{}, nil, testLogger())
	assert.Nil(t, pool.Run(context.Background(), nil))
}
