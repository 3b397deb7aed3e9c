package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces name to a plain file name that is safe to join to a
// directory: path components are dropped, whitespace becomes '_' and any
// character outside [A-Za-z0-9_.-] is removed. Leading dots and underscores
// are trimmed, so the result may be empty.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// UploadStore keeps uploaded files in one directory per assistant:
// <root>/<key>/<file>. The key is used verbatim, so distinct keys never share
// a directory; callers pass the remote assistant id.
type UploadStore struct {
	root string
}

func NewUploadStore(root string) *UploadStore {
	return &UploadStore{root: root}
}

func (s *UploadStore) dir(key string) (string, error) {
	if key == "" || key != SecureFilename(key) {
		return "", fmt.Errorf("invalid upload directory key %q", key)
	}
	return filepath.Join(s.root, key), nil
}

// Save writes content to the key's directory under filename. Both must
// already be secure file names. An existing file is overwritten.
func (s *UploadStore) Save(key, filename string, content io.Reader) (string, error) {
	if filename == "" || filename != SecureFilename(filename) {
		return "", fmt.Errorf("invalid file name %q", filename)
	}

	dir, err := s.dir(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	return path, nil
}

// List returns the paths of every regular file stored under key, sorted by
// name.
func (s *UploadStore) List(key string) ([]string, error) {
	dir, err := s.dir(key)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read upload directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// Open opens a file previously returned by List.
func (s *UploadStore) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}
