package openapi

import (
	"context"

	"github.com/unkn0wn-root/commandpost/internal/openapi/model"
)

type Parser interface {
	Parse(ctx context.Context, source string, opts ParseOptions) (*model.Spec, error)
}

type Generator interface {
	Generate(ctx context.Context, spec *model.Spec, opts GeneratorOptions) (*Project, error)
}

type ProjectWriter interface {
	WriteProject(ctx context.Context, project *Project, destination string, opts WriterOptions) error
}

type ParseOptions struct {
	ResolveExternalRefs bool
}

type GeneratorOptions struct {
	Module               string
	IncludeDeprecated    bool
	PreferredServerIndex int
}

type WriterOptions struct {
	OverwriteExisting bool
}

// Project is a generated program: file paths are slash separated and
// relative to the output directory.
type Project struct {
	Module   string
	Files    []File
	Warnings []string
}

type File struct {
	Path    string
	Content []byte
}
