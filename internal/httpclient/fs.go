package httpclient

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

type FileSystem interface {
	ReadFile(name string) ([]byte, error)
}

type OSFileSystem struct{}

func (OSFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// readFile loads a form-data file part. Relative paths are tried against
// baseDir first and then as given.
func (c *Client) readFile(path, baseDir string) ([]byte, string, error) {
	if c == nil || c.fs == nil {
		return nil, "", errdef.New(errdef.CodeFilesystem, "file reader unavailable")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, "", errdef.New(errdef.CodeFilesystem, "form file path is empty")
	}

	candidates := buildPathCandidates(path, baseDir)
	var lastErr error
	for _, candidate := range candidates {
		data, err := c.fs.ReadFile(candidate)
		if err == nil {
			return data, candidate, nil
		}
		lastErr = err
	}
	return nil, "", errdef.Wrap(errdef.CodeFilesystem, lastErr, "read form file %s", path)
}

func buildPathCandidates(path, baseDir string) []string {
	if filepath.IsAbs(path) || baseDir == "" {
		return []string{path}
	}
	joined := filepath.Join(baseDir, path)
	if joined == path {
		return []string{path}
	}
	return []string{joined, path}
}
