package writer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/openapi"
)

func sampleProject() *openapi.Project {
	return &openapi.Project{
		Module: "example.com/cli",
		Files: []openapi.File{
			{Path: "go.mod", Content: []byte("module example.com/cli\n")},
			{Path: "cmd/root.go", Content: []byte("package cmd\n")},
		},
	}
}

func TestWriteProject(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	if err := NewFileWriter().WriteProject(context.Background(), sampleProject(), dir, openapi.WriterOptions{}); err != nil {
		t.Fatalf("WriteProject: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "cmd", "root.go"))
	if err != nil {
		t.Fatalf("read generated file: %v", err)
	}
	if string(data) != "package cmd\n" {
		t.Fatalf("unexpected content %q", data)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "cmd"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected temp files to be cleaned up, got %v (%v)", entries, err)
	}
}

func TestWriteProjectRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "go.mod")
	if err := os.WriteFile(existing, []byte("module keep\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	err := NewFileWriter().WriteProject(context.Background(), sampleProject(), dir, openapi.WriterOptions{})
	if !errdef.Is(err, errdef.CodeGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cmd", "root.go")); !os.IsNotExist(err) {
		t.Fatalf("nothing should be written when a target exists")
	}

	if err := NewFileWriter().WriteProject(context.Background(), sampleProject(), dir, openapi.WriterOptions{OverwriteExisting: true}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "module example.com/cli\n" {
		t.Fatalf("expected overwrite, got %q", data)
	}
}

func TestWriteProjectRejectsEscapingPaths(t *testing.T) {
	project := &openapi.Project{Files: []openapi.File{{Path: "../evil.go", Content: []byte("x")}}}
	err := NewFileWriter().WriteProject(context.Background(), project, t.TempDir(), openapi.WriterOptions{})
	if !errdef.Is(err, errdef.CodeGeneration) {
		t.Fatalf("expected generation error, got %v", err)
	}
}
