package translate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/metadag/internal/model"
	"github.com/ppiankov/metadag/internal/store"
)

func TestArchiveRecordsInOrder(t *testing.T) {
	ctx := context.Background()
	tr := newTranslator(t, Options{})
	path := filepath.Join(t.TempDir(), store.TranslationLog)
	a := NewArchive(store.NewJSONFile[model.Event](path), nil)

	for _, text := range []string{"schedule a meeting", "possible data leak", "invoice payment"} {
		event, err := tr.Translate(text, "", "")
		require.NoError(t, err)
		require.NoError(t, a.Record(ctx, event))
	}

	all, err := a.Tail(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "schedule a meeting", all[0].OriginalText())

	last, err := a.Tail(ctx, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "invoice payment", last[0].OriginalText())
}

func TestArchiveSurfacesCorruptLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), store.TranslationLog)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	a := NewArchive(store.NewJSONFile[model.Event](path), store.NewMutexLock())

	err := a.Record(context.Background(), model.Event{ID: "x"})
	assert.ErrorIs(t, err, store.ErrCorrupt)
}
