package watcher

import (
	"context"

	"github.com/conneroisu/stencil/internal/asset"
	"github.com/conneroisu/stencil/internal/logging"
)

// Index is the part of the content repository a batch is applied to.
type Index interface {
	RefOf(path string) (string, bool)
	Import(ctx context.Context, path string) (string, error)
	Move(ctx context.Context, from, to string) error
	Forget(ctx context.Context, path string) error
}

// Apply brings the index up to date with batch and returns the batch as the
// engines should see it. A move whose source was never indexed is reported
// as an import of its target. Paths the index rejects are logged and dropped.
func Apply(ctx context.Context, index Index, batch asset.ChangeBatch, logger logging.Logger) asset.ChangeBatch {
	if logger == nil {
		logger = logging.Nop()
	}

	var out asset.ChangeBatch
	imported := append([]string(nil), batch.Imported...)
	for _, m := range batch.Moved {
		if _, known := index.RefOf(m.From); !known {
			imported = append(imported, m.To)
			continue
		}
		if err := index.Move(ctx, m.From, m.To); err != nil {
			logger.Error(ctx, err, "Failed to record move", "from", m.From, "to", m.To)
			continue
		}
		out.Moved = append(out.Moved, m)
	}

	for _, p := range imported {
		if _, err := index.Import(ctx, p); err != nil {
			logger.Warn(ctx, err, "Failed to import asset", "path", p)
			continue
		}
		out.Imported = append(out.Imported, p)
	}

	for _, p := range batch.Deleted {
		if _, known := index.RefOf(p); !known {
			continue
		}
		if err := index.Forget(ctx, p); err != nil {
			logger.Error(ctx, err, "Failed to forget asset", "path", p)
			continue
		}
		out.Deleted = append(out.Deleted, p)
	}
	return out
}
