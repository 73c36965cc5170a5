package runlog_test

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukmanhidayah/siasn-sync/internal/repositories/runlog"
	"github.com/lukmanhidayah/siasn-sync/pkg/models"
)

func getTestLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func getTestDB(t *testing.T) *sqlx.DB {
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		t.Skip("DB_HOST not set, skipping database integration test")
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "siasn_sync"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	t.Cleanup(func() { db.Close() })
	return db
}

func testSummary() *models.RunSummary {
	started := time.Now().Add(-time.Minute).UTC().Truncate(time.Millisecond)
	return &models.RunSummary{
		RunID:          uuid.New().String(),
		Status:         models.RunStatusSucceeded,
		StartedAt:      started,
		FinishedAt:     started.Add(45 * time.Second),
		RecordsFetched: 120,
		RowsWritten:    30,
		Duplicates:     2,
		GapFilled:      3,
		NotFound:       1,
		Merged:         3,
		DocumentsSaved: 28,
		DocumentsTotal: 30,
	}
}

func TestRecordAndGet(t *testing.T) {
	db := getTestDB(t)
	repo := runlog.NewRepository(db, getTestLogger())

	summary := testSummary()
	require.NoError(t, repo.Record(context.Background(), summary))

	run, err := repo.Get(context.Background(), summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, run.ID)
	assert.Equal(t, string(models.RunStatusSucceeded), run.Status)
	assert.Equal(t, 120, run.RecordsFetched)
	assert.Equal(t, 30, run.RowsWritten)
	assert.Equal(t, 28, run.DocumentsSaved)
}

func TestListRecentOrdersNewestFirst(t *testing.T) {
	db := getTestDB(t)
	repo := runlog.NewRepository(db, getTestLogger())

	older := testSummary()
	older.StartedAt = time.Now().Add(-2 * time.Hour).UTC()
	newer := testSummary()
	newer.StartedAt = time.Now().UTC()

	require.NoError(t, repo.Record(context.Background(), older))
	require.NoError(t, repo.Record(context.Background(), newer))

	runs, err := repo.ListRecent(context.Background(), 50)
	require.NoError(t, err)
	require.NotEmpty(t, runs)

	var olderIdx, newerIdx int
	for i, run := range runs {
		switch run.ID {
		case older.RunID:
			olderIdx = i
		case newer.RunID:
			newerIdx = i
		}
	}
	assert.Less(t, newerIdx, olderIdx, "newer run should be listed first")
}

func TestGetMissingRunReturns404(t *testing.T) {
	db := getTestDB(t)
	repo := runlog.NewRepository(db, getTestLogger())

	_, err := repo.Get(context.Background(), uuid.New().String())
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}
