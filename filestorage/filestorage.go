package filestorage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/matryer/try"
	"go.uber.org/zap"
)

const (
	// ReceiptsFolder is the folder shared receipts are stored under.
	ReceiptsFolder = "voter_receipts"

	maxAttempts = 5
)

// FileStorage is an interface for file storage providers.
type FileStorage interface {
	// Upload stores b as fileName in bucket and returns a URL (or path,
	// for local storage) the file can be read from.
	Upload(ctx context.Context, b []byte, bucket, fileName string) (string, error)
}

// ReceiptName returns a unique object name for a receipt image taken
// at t.
func ReceiptName(t time.Time) string {
	return fmt.Sprintf("%s/%d_%s.png", ReceiptsFolder, t.UnixNano()/int64(time.Millisecond), uuid.New().String())
}

func contentType(b []byte) string {
	return http.DetectContentType(b)
}

type retrying struct {
	storage FileStorage
	wait    time.Duration
	logger  *zap.SugaredLogger
}

// WithRetries wraps storage so every upload is tried up to 5 times,
// waiting wait between attempts.
func WithRetries(storage FileStorage, wait time.Duration, logger *zap.SugaredLogger) FileStorage {
	return &retrying{storage: storage, wait: wait, logger: logger}
}

func (r *retrying) Upload(ctx context.Context, b []byte, bucket, fileName string) (string, error) {
	var location string
	err := try.Do(func(attempt int) (bool, error) {
		var err error
		location, err = r.storage.Upload(ctx, b, bucket, fileName)
		if err != nil {
			r.logger.Warnw("upload failed", "bucket", bucket, "file", fileName, "attempt", attempt, "error", err)
			if ctx.Err() != nil {
				return false, err
			}
			time.Sleep(r.wait)
		}
		return attempt < maxAttempts, err
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload [%s] to [%s] after retries, error %v", fileName, bucket, err)
	}
	return location, nil
}
