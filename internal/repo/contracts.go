package repo

import (
	"context"

	"github.com/andreyxaxa/Product-Composite/pkg/stream"
)

type (
	// DeadLetterRepo archives parked records for out-of-band inspection.
	// Stores must tolerate re-archiving of the same batch.
	DeadLetterRepo interface {
		StoreBatch(ctx context.Context, batch []stream.DeadLetter) error
	}

	// ArchiveStore keeps compressed batch snapshots in object storage.
	ArchiveStore interface {
		UploadBatch(ctx context.Context, batch []stream.DeadLetter) (string, error)
	}
)
