package openapi_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/openapi"
	"github.com/unkn0wn-root/commandpost/internal/openapi/generator"
	"github.com/unkn0wn-root/commandpost/internal/openapi/parser"
	"github.com/unkn0wn-root/commandpost/internal/openapi/writer"
)

var specPath = filepath.Join("testdata", "deviceinventory.yaml")

func newService() *openapi.Service {
	return &openapi.Service{
		Parser:    parser.NewLoader(),
		Generator: generator.NewBuilder(),
		Writer:    writer.NewFileWriter(),
	}
}

func TestParseSpec(t *testing.T) {
	details, err := newService().ParseSpec(context.Background(), specPath)
	if err != nil {
		t.Fatalf("ParseSpec: %v", err)
	}
	if details.BaseURL != "https://api.example.com/v1" {
		t.Fatalf("unexpected base url %q", details.BaseURL)
	}

	want := []struct{ method, path string }{
		{"GET", "/devices"},
		{"POST", "/devices"},
		{"GET", "/devices/{deviceId}"},
		{"DELETE", "/devices/{deviceId}"},
		{"PATCH", "/devices/{deviceId}"},
		{"GET", "/devices/{deviceId}/logs"},
	}
	if len(details.Endpoints) != len(want) {
		t.Fatalf("expected %d endpoints, got %#v", len(want), details.Endpoints)
	}
	for i, w := range want {
		got := details.Endpoints[i]
		if got.Method != w.method || got.Path != w.path {
			t.Fatalf("endpoint %d: expected %s %s, got %s %s", i, w.method, w.path, got.Method, got.Path)
		}
	}
	if first := details.Endpoints[0]; first.Summary != "List devices" || len(first.Tags) != 1 || first.Tags[0] != "devices" {
		t.Fatalf("unexpected endpoint details %#v", first)
	}
}

func TestParseSpecErrors(t *testing.T) {
	_, err := newService().ParseSpec(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
	if !errdef.Is(err, errdef.CodeSpecParse) {
		t.Fatalf("expected spec parse error, got %v", err)
	}

	svc := &openapi.Service{}
	if _, err := svc.ParseSpec(context.Background(), specPath); err == nil {
		t.Fatalf("expected error without parser")
	}
}

func TestValidateSpec(t *testing.T) {
	ok, err := newService().ValidateSpec(context.Background(), specPath)
	if err != nil || !ok {
		t.Fatalf("expected valid spec, got %v %v", ok, err)
	}
	ok, err = newService().ValidateSpec(context.Background(), "missing.yaml")
	if ok || err == nil {
		t.Fatalf("expected invalid spec")
	}
}

func TestDetectAuth(t *testing.T) {
	schemes, err := newService().DetectAuth(context.Background(), specPath)
	if err != nil {
		t.Fatalf("DetectAuth: %v", err)
	}
	if len(schemes) != 3 {
		t.Fatalf("expected 3 schemes, got %#v", schemes)
	}
	if schemes[0].Name != "apiKeyAuth" || schemes[0].In != "header" || schemes[0].ParamName != "X-API-Key" {
		t.Fatalf("unexpected api key scheme %#v", schemes[0])
	}
	if schemes[1].Name != "bearerAuth" || schemes[1].Scheme != "bearer" || schemes[1].BearerFormat != "JWT" {
		t.Fatalf("unexpected bearer scheme %#v", schemes[1])
	}
	oauth := schemes[2]
	if oauth.Name != "oauthDemo" || oauth.TokenURL != "https://auth.example.com/oauth/token" ||
		len(oauth.Flows) != 1 || oauth.Flows[0] != "client_credentials" || len(oauth.Scopes) != 2 {
		t.Fatalf("unexpected oauth scheme %#v", oauth)
	}
}

func TestGenerateCLI(t *testing.T) {
	out := filepath.Join(t.TempDir(), "devicectl")
	project, err := newService().GenerateCLI(context.Background(), specPath, out, "example.com/devicectl", openapi.GenerateOptions{})
	if err != nil {
		t.Fatalf("GenerateCLI: %v", err)
	}
	for _, f := range project.Files {
		if _, err := os.Stat(filepath.Join(out, filepath.FromSlash(f.Path))); err != nil {
			t.Fatalf("expected %s to be written: %v", f.Path, err)
		}
	}

	_, err = newService().GenerateCLI(context.Background(), specPath, out, "example.com/devicectl", openapi.GenerateOptions{})
	if !errdef.Is(err, errdef.CodeGeneration) {
		t.Fatalf("expected generation error on existing output, got %v", err)
	}
}

func TestGenerateCLIValidation(t *testing.T) {
	svc := newService()
	dir := t.TempDir()

	if _, err := svc.GenerateCLI(context.Background(), specPath, dir, "not a module", openapi.GenerateOptions{}); !errdef.Is(err, errdef.CodeGeneration) {
		t.Fatalf("expected generation error for module, got %v", err)
	}
	if _, err := svc.GenerateCLI(context.Background(), specPath, " ", "example.com/x", openapi.GenerateOptions{}); !errdef.Is(err, errdef.CodeGeneration) {
		t.Fatalf("expected generation error for output dir, got %v", err)
	}
	if _, err := svc.GenerateCLI(context.Background(), "missing.yaml", dir, "example.com/x", openapi.GenerateOptions{}); !errdef.Is(err, errdef.CodeSpecParse) {
		t.Fatalf("expected spec parse error, got %v", err)
	}

	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := svc.GenerateCLI(context.Background(), specPath, filepath.Join(blocker, "out"), "example.com/x", openapi.GenerateOptions{}); !errdef.Is(err, errdef.CodeGeneration) {
		t.Fatalf("expected generation error for unwritable dir, got %v", err)
	}
}
