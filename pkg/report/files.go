package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileStore persists uploaded report bytes. Paths returned are opaque to
// callers; only the extracted text ever enters the pipeline.
type FileStore interface {
	Save(sessionID, filename string, content []byte) (string, error)
}

type LocalFileStore struct {
	root string
}

func NewLocalFileStore(root string) *LocalFileStore {
	return &LocalFileStore{root: root}
}

func (s *LocalFileStore) Save(sessionID, filename string, content []byte) (string, error) {
	dir := filepath.Join(s.root, sessionID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	name := fmt.Sprintf("%d-%s", time.Now().UTC().UnixNano(), filepath.Base(filename))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}
