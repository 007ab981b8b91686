package persistent

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andreyxaxa/Product-Composite/pkg/s3client"
	"github.com/andreyxaxa/Product-Composite/pkg/stream"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type ArchiveStore struct {
	*s3client.S3Client
	bucket string
}

func NewArchiveStore(s3c *s3client.S3Client, bucket string) *ArchiveStore {
	return &ArchiveStore{s3c, bucket}
}

// UploadBatch writes the batch as one gzip'd JSON-lines object and returns
// the object key.
func (r *ArchiveStore) UploadBatch(ctx context.Context, batch []stream.DeadLetter) (string, error) {
	if len(batch) == 0 {
		return "", nil
	}

	body, err := encodeBatch(batch)
	if err != nil {
		return "", fmt.Errorf("ArchiveStore - UploadBatch - encodeBatch: %w", err)
	}

	key := fmt.Sprintf("dead-letters/%s/%s.jsonl.gz",
		time.Now().UTC().Format("2006-01-02"), uuid.NewString())

	_, err = r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(r.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("gzip"),
		ContentLength:   aws.Int64(int64(len(body))),
	})
	if err != nil {
		return "", fmt.Errorf("ArchiveStore - UploadBatch - r.Client.PutObject: %w", err)
	}

	return key, nil
}

// одна запись - одна json-строка
func encodeBatch(batch []stream.DeadLetter) ([]byte, error) {
	var buf bytes.Buffer

	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)

	for _, dl := range batch {
		if err := enc.Encode(dl); err != nil {
			return nil, fmt.Errorf("encodeBatch - enc.Encode: %w", err)
		}
	}

	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("encodeBatch - gz.Close: %w", err)
	}

	return buf.Bytes(), nil
}
