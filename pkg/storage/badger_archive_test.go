package storage

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrape-gate/pkg/models"
	"scrape-gate/pkg/utils"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestArchive(t *testing.T, dir string) *BadgerArchive {
	t.Helper()
	a, err := NewBadgerArchive(dir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func record(id string, created time.Time) models.BatchRecord {
	return models.BatchRecord{
		ID:        id,
		Mode:      models.ModeText,
		CreatedAt: created,
		Results: []models.UrlResult{
			{URL: "https://ok.com", Status: models.StatusDone, Data: "x", DataType: models.ModeText},
			models.NewBlockedResult("https://blocked.com", "Site terms prohibit scraping"),
		},
	}
}

var _ BatchArchive = (*BadgerArchive)(nil)

func TestSaveAndGetBatch(t *testing.T) {
	a := newTestArchive(t, t.TempDir())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := record("b1", base)
	rec.CompletedAt = base.Add(2 * time.Second)

	require.NoError(t, a.SaveBatch(rec))

	got, err := a.GetBatch("b1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, rec.CompletedAt.Equal(got.CompletedAt))
	assert.Equal(t, rec.Results, got.Results)
}

func TestGetBatch_NotFound(t *testing.T) {
	a := newTestArchive(t, t.TempDir())
	_, err := a.GetBatch("missing")
	assert.ErrorIs(t, err, utils.ErrBatchNotFound)
}

func TestSaveBatch_RequiresID(t *testing.T) {
	a := newTestArchive(t, t.TempDir())
	err := a.SaveBatch(models.BatchRecord{})
	assert.ErrorIs(t, err, utils.ErrDatabase)
}

func TestListBatches_NewestFirst(t *testing.T) {
	a := newTestArchive(t, t.TempDir())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"first", "second", "third"} {
		require.NoError(t, a.SaveBatch(record(id, base.Add(time.Duration(i)*time.Minute))))
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"all", 0, []string{"third", "second", "first"}},
		{"limited", 2, []string{"third", "second"}},
		{"over", 10, []string{"third", "second", "first"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := a.ListBatches(tt.limit)
			require.NoError(t, err)
			ids := make([]string, len(recs))
			for i, r := range recs {
				ids[i] = r.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestSaveBatch_ResaveReplaces(t *testing.T) {
	a := newTestArchive(t, t.TempDir())
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := record("b1", base)
	require.NoError(t, a.SaveBatch(rec))

	rec.CreatedAt = base.Add(time.Hour)
	rec.Cancelled = true
	require.NoError(t, a.SaveBatch(rec))

	recs, err := a.ListBatches(0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Cancelled)
}

func TestArchive_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	a1, err := NewBadgerArchive(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, a1.SaveBatch(record("keep", time.Now())))
	require.NoError(t, a1.Close())
	require.NoError(t, a1.Close(), "second close is a no-op")

	a2 := newTestArchive(t, dir)
	got, err := a2.GetBatch("keep")
	require.NoError(t, err)
	assert.Equal(t, "keep", got.ID)
}

func TestRunGC_StopsOnCancel(t *testing.T) {
	a := newTestArchive(t, t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.RunGC(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunGC did not stop")
	}
}
