package pipeline

import (
	"context"

	"github.com/ppiankov/metadag/internal/backend"
	"github.com/ppiankov/metadag/internal/model"
)

// Generated runs sub.Text through g and returns the submission the
// pipeline should govern: the generated reply as a MODEL_QUERY, or the
// original prompt carrying the backend error. A nil generator returns sub
// unchanged. Call it before Process, never while holding ledger state.
func Generated(ctx context.Context, g backend.Generator, sub Submission) Submission {
	if g == nil || sub.BackendError != "" {
		return sub
	}
	if sub.TaskType == "" {
		sub.TaskType = model.TaskModelQuery
	}
	reply, err := g.Generate(ctx, sub.Text)
	if err != nil {
		sub.BackendError = err.Error()
		return sub
	}
	sub.Text = reply
	return sub
}
