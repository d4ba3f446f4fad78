package writer

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/openapi"
)

type FileWriter struct{}

func NewFileWriter() *FileWriter {
	return &FileWriter{}
}

// WriteProject writes every project file below destination. Existing files
// are left untouched unless OverwriteExisting is set; the check runs before
// anything is written.
func (w *FileWriter) WriteProject(
	ctx context.Context,
	project *openapi.Project,
	destination string,
	opts openapi.WriterOptions,
) error {
	if project == nil {
		return errdef.New(errdef.CodeGeneration, "project is nil")
	}
	if strings.TrimSpace(destination) == "" {
		return errdef.New(errdef.CodeGeneration, "output directory is empty")
	}

	targets := make([]string, len(project.Files))
	for i, f := range project.Files {
		target, err := targetPath(destination, f.Path)
		if err != nil {
			return err
		}
		if !opts.OverwriteExisting {
			if _, err := os.Stat(target); err == nil {
				return errdef.New(errdef.CodeGeneration, "destination %s already exists", target)
			}
		}
		targets[i] = target
	}

	for i, f := range project.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeFile(targets[i], f.Content); err != nil {
			return err
		}
	}
	return nil
}

func targetPath(root, rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errdef.New(errdef.CodeGeneration, "invalid project file path %q", rel)
	}
	return filepath.Join(root, clean), nil
}

func writeFile(dst string, content []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errdef.Wrap(errdef.CodeGeneration, err, "create directory")
	}

	tmp, err := os.CreateTemp(dir, ".commandpost-*.tmp")
	if err != nil {
		return errdef.Wrap(errdef.CodeGeneration, err, "create temp file")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return errdef.Wrap(errdef.CodeGeneration, err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errdef.Wrap(errdef.CodeGeneration, err, "close temp file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return errdef.Wrap(errdef.CodeGeneration, err, "chmod temp file")
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return errdef.Wrap(errdef.CodeGeneration, err, "rename temp file")
	}
	return nil
}
