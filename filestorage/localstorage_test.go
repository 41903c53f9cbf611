package filestorage

import (
	"context"
	"errors"
	"io/ioutil"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestUpload(t *testing.T) {
	content := "मी आपला उमेदवार, माझी निशाणी कमळ"
	fileStorage := NewLocalStorage("")
	dir := t.TempDir()
	fileName := "voter_receipts/aname.png"
	path, err := fileStorage.Upload(context.Background(), []byte(content), dir, fileName)
	if err != nil {
		t.Errorf("expected erro nil when writing a file, got %q", err)
	}
	fileContent, err := ioutil.ReadFile(path)
	if err != nil {
		t.Errorf("expected err nil when reading file, got %q", err)
	}
	if content != string(fileContent) {
		t.Errorf("expected content to be \"%s\", got %s", content, string(fileContent))
	}
	if path != filepath.Join(dir, "voter_receipts", "aname.png") {
		t.Errorf("unexpected path %s", path)
	}
}

func TestUploadWithBaseURL(t *testing.T) {
	fileStorage := NewLocalStorage("http://localhost:8080/receipts/")
	url, err := fileStorage.Upload(context.Background(), []byte("x"), t.TempDir(), "voter_receipts/a.png")
	if err != nil {
		t.Fatalf("expected err nil, got %q", err)
	}
	if url != "http://localhost:8080/receipts/voter_receipts/a.png" {
		t.Errorf("unexpected url %s", url)
	}
}

func TestReceiptName(t *testing.T) {
	at := time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)
	name := ReceiptName(at)
	re := regexp.MustCompile(`^voter_receipts/1763629200000_[0-9a-f-]{36}\.png$`)
	if !re.MatchString(name) {
		t.Errorf("unexpected receipt name %s", name)
	}
	if ReceiptName(at) == name {
		t.Errorf("expected unique names for the same instant")
	}
}

type flakyStorage struct {
	failures int
	calls    int
}

func (f *flakyStorage) Upload(ctx context.Context, b []byte, bucket, fileName string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", errors.New("503 service unavailable")
	}
	return "https://storage.example/" + bucket + "/" + fileName, nil
}

func TestWithRetries(t *testing.T) {
	testCases := []struct {
		failures      int
		expectedCalls int
		expectedErr   bool
	}{
		{0, 1, false},
		{3, 4, false},
		{4, 5, false},
		{5, 5, true},
	}
	for _, tt := range testCases {
		flaky := &flakyStorage{failures: tt.failures}
		s := WithRetries(flaky, 0, zap.NewNop().Sugar())
		url, err := s.Upload(context.Background(), []byte("png"), "bucket", "r.png")
		if (err != nil) != tt.expectedErr {
			t.Errorf("expected error %v after %d failures, got %v", tt.expectedErr, tt.failures, err)
		}
		if flaky.calls != tt.expectedCalls {
			t.Errorf("expected %d calls, got %d", tt.expectedCalls, flaky.calls)
		}
		if !tt.expectedErr && !strings.HasSuffix(url, "bucket/r.png") {
			t.Errorf("unexpected url %s", url)
		}
	}
}
