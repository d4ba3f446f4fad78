package openapi

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/mod/module"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/openapi/model"
)

const (
	errParserNotConfigured    = "openapi: parser not configured"
	errGeneratorNotConfigured = "openapi: generator not configured"
	errWriterNotConfigured    = "openapi: writer not configured"
)

type EndpointDef struct {
	Method      string   `json:"method" yaml:"method"`
	Path        string   `json:"path" yaml:"path"`
	Summary     string   `json:"summary" yaml:"summary"`
	Description string   `json:"description" yaml:"description"`
	Tags        []string `json:"tags" yaml:"tags"`
}

type SpecDetails struct {
	BaseURL   string        `json:"baseUrl" yaml:"baseUrl"`
	Endpoints []EndpointDef `json:"endpoints" yaml:"endpoints"`
}

type AuthScheme struct {
	Name         string   `json:"name" yaml:"name"`
	Type         string   `json:"type" yaml:"type"`
	Scheme       string   `json:"scheme,omitempty" yaml:"scheme,omitempty"`
	In           string   `json:"in,omitempty" yaml:"in,omitempty"`
	ParamName    string   `json:"paramName,omitempty" yaml:"paramName,omitempty"`
	BearerFormat string   `json:"bearerFormat,omitempty" yaml:"bearerFormat,omitempty"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Flows        []string `json:"flows,omitempty" yaml:"flows,omitempty"`
	TokenURL     string   `json:"tokenUrl,omitempty" yaml:"tokenUrl,omitempty"`
	AuthURL      string   `json:"authUrl,omitempty" yaml:"authUrl,omitempty"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// listedMethods are the methods the endpoint listing exposes, in display
// order.
var listedMethods = map[model.HTTPMethod]int{
	model.MethodGet:    0,
	model.MethodPost:   1,
	model.MethodPut:    2,
	model.MethodDelete: 3,
	model.MethodPatch:  4,
}

type Service struct {
	Parser    Parser
	Generator Generator
	Writer    ProjectWriter
}

type GenerateOptions struct {
	Parse    ParseOptions
	Generate GeneratorOptions
	Write    WriterOptions
}

// ValidateModule reports whether name can be used as a generated module
// path.
func ValidateModule(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errdef.New(errdef.CodeGeneration, "module name is required")
	}
	if err := module.CheckImportPath(name); err != nil {
		return errdef.Wrap(errdef.CodeGeneration, err, "invalid module name %q", name)
	}
	return nil
}

func (s *Service) load(ctx context.Context, source string, opts ParseOptions) (*model.Spec, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.Parser == nil {
		return nil, errdef.New(errdef.CodeSpecParse, errParserNotConfigured)
	}
	return s.Parser.Parse(ctx, source, opts)
}

// ParseSpec lists the endpoints of a spec file or URL. The base URL is the
// first server entry.
func (s *Service) ParseSpec(ctx context.Context, source string) (SpecDetails, error) {
	spec, err := s.load(ctx, source, ParseOptions{})
	if err != nil {
		return SpecDetails{}, err
	}

	details := SpecDetails{Endpoints: []EndpointDef{}}
	if len(spec.Servers) > 0 {
		details.BaseURL = spec.Servers[0].URL
	}
	for _, op := range spec.Operations {
		if _, ok := listedMethods[op.Method]; !ok {
			continue
		}
		details.Endpoints = append(details.Endpoints, EndpointDef{
			Method:      string(op.Method),
			Path:        op.Path,
			Summary:     op.Summary,
			Description: op.Description,
			Tags:        append([]string(nil), op.Tags...),
		})
	}
	sort.SliceStable(details.Endpoints, func(i, j int) bool {
		a, b := details.Endpoints[i], details.Endpoints[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return listedMethods[model.HTTPMethod(a.Method)] < listedMethods[model.HTTPMethod(b.Method)]
	})
	return details, nil
}

// ValidateSpec reports whether the document loads.
func (s *Service) ValidateSpec(ctx context.Context, source string) (bool, error) {
	if _, err := s.load(ctx, source, ParseOptions{}); err != nil {
		return false, err
	}
	return true, nil
}

// DetectAuth lists the security schemes a spec declares, sorted by name.
func (s *Service) DetectAuth(ctx context.Context, source string) ([]AuthScheme, error) {
	spec, err := s.load(ctx, source, ParseOptions{})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(spec.SecuritySchemes))
	for name := range spec.SecuritySchemes {
		names = append(names, name)
	}
	sort.Strings(names)

	schemes := make([]AuthScheme, 0, len(names))
	for _, name := range names {
		raw := spec.SecuritySchemes[name]
		scheme := AuthScheme{
			Name:         name,
			Type:         string(raw.Type),
			Scheme:       raw.Subtype,
			In:           string(raw.In),
			ParamName:    raw.Name,
			BearerFormat: raw.BearerFormat,
			Description:  raw.Description,
		}
		for _, flow := range raw.OAuthFlows {
			scheme.Flows = append(scheme.Flows, string(flow.Type))
			if scheme.TokenURL == "" {
				scheme.TokenURL = flow.TokenURL
			}
			if scheme.AuthURL == "" {
				scheme.AuthURL = flow.AuthorizationURL
			}
			scheme.Scopes = mergeScopes(scheme.Scopes, flow.Scopes)
		}
		schemes = append(schemes, scheme)
	}
	return schemes, nil
}

func mergeScopes(have, more []string) []string {
	seen := make(map[string]bool, len(have))
	for _, s := range have {
		seen[s] = true
	}
	for _, s := range more {
		if !seen[s] {
			seen[s] = true
			have = append(have, s)
		}
	}
	return have
}

// GenerateCLI writes a standalone cobra program for the spec under
// outputDir. Failures are generation errors, except for spec loading which
// keeps its own code.
func (s *Service) GenerateCLI(ctx context.Context, specPath, outputDir, moduleName string, opts GenerateOptions) (*Project, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.Generator == nil {
		return nil, errdef.New(errdef.CodeGeneration, errGeneratorNotConfigured)
	}
	if s.Writer == nil {
		return nil, errdef.New(errdef.CodeGeneration, errWriterNotConfigured)
	}
	if err := ValidateModule(moduleName); err != nil {
		return nil, err
	}
	if strings.TrimSpace(outputDir) == "" {
		return nil, errdef.New(errdef.CodeGeneration, "output directory is required")
	}

	spec, err := s.load(ctx, specPath, opts.Parse)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	genOpts := opts.Generate
	genOpts.Module = strings.TrimSpace(moduleName)
	project, err := s.Generator.Generate(ctx, spec, genOpts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.Writer.WriteProject(ctx, project, outputDir, opts.Write); err != nil {
		return nil, err
	}
	return project, ctx.Err()
}
