package vectorstore

import (
	"context"

	"ragspan/internal/index"
)

// Mirror copies published indexes into an external vector database.
type Mirror interface {
	Sync(ctx context.Context, idx *index.Index, metric index.Metric) error
	Clear(ctx context.Context) error
}
