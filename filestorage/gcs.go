package filestorage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

const (
	timeout = time.Second * 50
)

// GCSClient is a client for google cloud storage
type GCSClient struct {
	client *storage.Client
}

// NewGCSClient returns an instance of GCS
func NewGCSClient(ctx context.Context) (*GCSClient, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client, error %v", err)
	}
	return &GCSClient{
		client: client,
	}, nil
}

// Upload writes b to the object fileName of bucket and returns its
// public URL.
func (gcs *GCSClient) Upload(ctx context.Context, b []byte, bucket, fileName string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	wc := gcs.client.Bucket(bucket).Object(fileName).NewWriter(ctx)
	wc.ContentType = contentType(b)
	if _, err := io.Copy(wc, bytes.NewReader(b)); err != nil {
		wc.Close()
		return "", fmt.Errorf("failed to copy content to GCS object (%s/%s), error %v", bucket, fileName, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer (%s/%s), error %v", bucket, fileName, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, fileName), nil
}
