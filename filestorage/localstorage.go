package filestorage

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

type localStorage struct {
	baseURL string
}

// NewLocalStorage returns a storage writing under the bucket directory.
// With a baseURL the returned location is baseURL/fileName, otherwise
// the file path.
func NewLocalStorage(baseURL string) FileStorage {
	return &localStorage{baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (ls *localStorage) Upload(ctx context.Context, b []byte, bucket, fileName string) (string, error) {
	name := filepath.Join(bucket, filepath.FromSlash(fileName))
	if err := os.MkdirAll(filepath.Dir(name), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s, error %v", filepath.Dir(name), err)
	}
	if err := ioutil.WriteFile(name, b, 0644); err != nil {
		return "", fmt.Errorf("failed to save file %s at %s, error %v", fileName, name, err)
	}
	if ls.baseURL != "" {
		return ls.baseURL + "/" + fileName, nil
	}
	return name, nil
}
