package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/metadag/internal/model"
)

type record struct {
	ID    string   `json:"id"`
	Score float64  `json:"score"`
	Tags  []string `json:"tags"`
}

func documents(t *testing.T) map[string]Document[record] {
	t.Helper()
	dir := t.TempDir()
	db, err := OpenSQLite(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Document[record]{
		"memory": NewMemory[record](),
		"json":   NewJSONFile[record](filepath.Join(dir, "records.json")),
		"sqlite": NewSQLite[record](db, "records"),
	}
}

func TestDocumentEmptyOnFirstLoad(t *testing.T) {
	for name, doc := range documents(t) {
		t.Run(name, func(t *testing.T) {
			items, err := doc.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, items)
		})
	}
}

func TestDocumentReplaceAndLoad(t *testing.T) {
	ctx := context.Background()
	for name, doc := range documents(t) {
		t.Run(name, func(t *testing.T) {
			want := []record{
				{ID: "a", Score: 0.25, Tags: []string{"x"}},
				{ID: "b", Score: 1, Tags: []string{"y", "z"}},
			}
			require.NoError(t, doc.Replace(ctx, want))

			got, err := doc.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want, got)

			require.NoError(t, doc.Replace(ctx, want[:1]))
			got, err = doc.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, want[:1], got)
		})
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	ctx := context.Background()
	for name, doc := range documents(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, Append(ctx, doc, record{ID: "1", Tags: []string{}}))
			require.NoError(t, Append(ctx, doc, record{ID: "2", Tags: []string{}}, record{ID: "3", Tags: []string{}}))

			got, err := doc.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got, 3)
			for i, id := range []string{"1", "2", "3"} {
				assert.Equal(t, id, got[i].ID)
			}
		})
	}
}

func TestMemoryLoadIsACopy(t *testing.T) {
	ctx := context.Background()
	doc := NewMemory[record]()
	require.NoError(t, doc.Replace(ctx, []record{{ID: "a", Tags: []string{"keep"}}}))

	items, err := doc.Load(ctx)
	require.NoError(t, err)
	items[0].Tags[0] = "mutated"

	again, err := doc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "keep", again[0].Tags[0])
}

func TestJSONFileCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewJSONFile[record](path).Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt), "expected ErrCorrupt, got %v", err)
}

func TestJSONFileEmptyFileIsEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	items, err := NewJSONFile[record](path).Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestJSONFileReplaceLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	doc := NewJSONFile[record](filepath.Join(dir, "nested", "records.json"))
	require.NoError(t, doc.Replace(context.Background(), []record{{ID: "a"}}))

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "records.json", entries[0].Name())

	info, err := os.Stat(doc.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestReplaceNilWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	doc := NewJSONFile[record](path)
	require.NoError(t, doc.Replace(context.Background(), nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := NewMemory[record]()
	assert.ErrorIs(t, doc.Replace(ctx, []record{{ID: "a"}}), context.Canceled)
	_, err := doc.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSQLiteCollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "shared.db"))
	require.NoError(t, err)
	defer db.Close()

	a := NewSQLite[record](db, "a")
	b := NewSQLite[record](db, "b")
	require.NoError(t, a.Replace(ctx, []record{{ID: "a1", Tags: []string{}}}))
	require.NoError(t, b.Replace(ctx, []record{{ID: "b1", Tags: []string{}}, {ID: "b2", Tags: []string{}}}))

	gotA, err := a.Load(ctx)
	require.NoError(t, err)
	gotB, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, gotA, 1)
	assert.Len(t, gotB, 2)
}

func TestOpenDrivers(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, driver := range []string{DriverJSON, DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			stores, err := Open(Config{Driver: driver, StateDir: t.TempDir()})
			require.NoError(t, err)
			defer stores.Close()
			require.NotNil(t, stores.Lock)
			require.NotNil(t, stores.Translations)

			entry := model.AuditEntry{
				Policy: "Arbitration",
				Risk:   "Conflict",
				Action: "Accepted E1",
				Metadata: model.AuditMetadata{
					Timestamp: ts,
					EventID:   "E1",
					Source:    "SEED-CORE",
				},
			}
			require.NoError(t, Append(ctx, stores.Audit, entry))
			got, err := stores.Audit.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, entry, got[0])
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "etcd", StateDir: t.TempDir()})
	assert.Error(t, err)
}

func TestOpenRequiresStateDir(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
