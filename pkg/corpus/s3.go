package corpus

import (
	"context"
	"fmt"
	"io"

	"github.com/lanternhq/lantern/pkg/storage/postgres"
)

// S3Scanner enumerates the corpus bucket through the storage layer's S3
// client. Keys are the full object keys; a leading prefix segment never
// changes derivation because unrecognized segments are skipped.
type S3Scanner struct {
	client *postgres.S3Client
	prefix string
}

// NewS3Scanner creates a scanner over the configured bucket prefix.
func NewS3Scanner(client *postgres.S3Client, prefix string) (*S3Scanner, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	return &S3Scanner{client: client, prefix: prefix}, nil
}

func (s *S3Scanner) Scan(ctx context.Context) (map[string]Object, error) {
	listed, err := s.client.ListObjects(ctx, s.prefix)
	if err != nil {
		return nil, err
	}

	objects := make(map[string]Object, len(listed))
	for _, obj := range listed {
		objects[obj.Key] = Object{
			Key:          obj.Key,
			ETag:         obj.ETag,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		}
	}
	return objects, nil
}

func (s *S3Scanner) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.client.GetObject(ctx, key)
}
