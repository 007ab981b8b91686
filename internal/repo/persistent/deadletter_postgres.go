package persistent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/andreyxaxa/Product-Composite/pkg/postgres"
	"github.com/andreyxaxa/Product-Composite/pkg/stream"
)

const (
	// Table
	deadLettersTable = "dead_letters"

	// Columns
	dlTopicColumn     = "topic"
	dlPartitionColumn = "partition"
	dlOffsetColumn    = "record_offset"
	dlKeyColumn       = "record_key"
	dlValueColumn     = "record_value"
	dlHeadersColumn   = "headers"
	dlGroupColumn     = "consumer_group"
	dlReasonColumn    = "reason"
	dlAttemptsColumn  = "attempts"
	dlLastErrorColumn = "last_error"
	dlParkedAtColumn  = "parked_at"
)

type DeadLetterRepo struct {
	*postgres.Postgres
}

func NewDeadLetterRepo(pg *postgres.Postgres) *DeadLetterRepo {
	return &DeadLetterRepo{pg}
}

// StoreBatch inserts the batch in one statement. Re-archiving the same
// (topic, partition, offset, group) is a no-op, so a failed S3 leg can be
// retried without duplicating rows.
func (r *DeadLetterRepo) StoreBatch(ctx context.Context, batch []stream.DeadLetter) error {
	if len(batch) == 0 {
		return nil
	}

	builder := r.Builder.
		Insert(deadLettersTable).
		Columns(
			dlTopicColumn,
			dlPartitionColumn,
			dlOffsetColumn,
			dlKeyColumn,
			dlValueColumn,
			dlHeadersColumn,
			dlGroupColumn,
			dlReasonColumn,
			dlAttemptsColumn,
			dlLastErrorColumn,
			dlParkedAtColumn,
		)

	for _, dl := range batch {
		headers, err := json.Marshal(dl.Headers)
		if err != nil {
			return fmt.Errorf("DeadLetterRepo - StoreBatch - json.Marshal: %w", err)
		}

		builder = builder.Values(
			dl.Topic,
			dl.Partition,
			dl.Offset,
			dl.Key,
			dl.Value,
			headers,
			dl.Group,
			dl.Reason,
			dl.Attempts,
			dl.LastError,
			dl.ParkedAt,
		)
	}

	sql, args, err := builder.
		Suffix("ON CONFLICT (topic, partition, record_offset, consumer_group) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("DeadLetterRepo - StoreBatch - r.Builder.ToSql: %w", err)
	}

	_, err = r.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("DeadLetterRepo - StoreBatch - r.Pool.Exec: %w", err)
	}

	return nil
}
