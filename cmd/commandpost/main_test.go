package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/commandpost/internal/config"
	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Trace  string
	Body   string
}

type echoServer struct {
	*httptest.Server
	mu   sync.Mutex
	seen []seenRequest
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()
	es := &echoServer{}
	es.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		es.mu.Lock()
		es.seen = append(es.seen, seenRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Trace:  r.Header.Get("X-Trace"),
			Body:   string(data),
		})
		n := len(es.seen)
		es.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
		fmt.Fprintf(w, `{"n":%d,"path":%q}`, n, r.URL.Path)
	}))
	t.Cleanup(es.Close)
	return es
}

func (es *echoServer) requests() []seenRequest {
	es.mu.Lock()
	defer es.mu.Unlock()
	return append([]seenRequest(nil), es.seen...)
}

// withConfigDir isolates settings and the database for one test.
func withConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.EnvConfigDir, dir)
	return dir
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(&out, &errOut)
	root := newRootCmd(a)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	a.close()
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("%v: %v\nstderr:\n%s", args, err, errOut)
	}
	return out
}

func TestSendBuildsRequestAndRecordsHistory(t *testing.T) {
	withConfigDir(t)
	srv := newEchoServer(t)

	out := mustRun(t, "send", "POST", srv.URL+"/items",
		"-q", "page=2",
		"-H", "X-Trace: abc",
		"-d", `{"a":1}`,
		"--bearer", "tok",
	)

	reqs := srv.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	got := reqs[0]
	want := seenRequest{Method: "POST", Path: "/items", Query: "page=2", Auth: "Bearer tok", Trace: "abc", Body: `{"a":1}`}
	if got != want {
		t.Fatalf("unexpected request:\n got %+v\nwant %+v", got, want)
	}
	if !strings.Contains(out, "\"n\": 1") {
		t.Fatalf("expected pretty printed body, got:\n%s", out)
	}

	list := mustRun(t, "history", "list")
	if !strings.Contains(list, "POST") || !strings.Contains(list, "/items?page=2") {
		t.Fatalf("history list missing request:\n%s", list)
	}

	show := mustRun(t, "history", "show", "1")
	if !strings.HasPrefix(show, "POST "+srv.URL+"/items?page=2\n") {
		t.Fatalf("unexpected history show:\n%s", show)
	}
}

func TestSendNoHistorySkipsRecording(t *testing.T) {
	withConfigDir(t)
	srv := newEchoServer(t)

	mustRun(t, "send", srv.URL+"/quiet", "--no-history")
	if out := mustRun(t, "history", "list"); !strings.Contains(out, "no history") {
		t.Fatalf("expected empty history, got:\n%s", out)
	}
}

func TestSendErrorStatusIsNotAFailure(t *testing.T) {
	withConfigDir(t)
	srv := newEchoServer(t)

	_, errOut, err := runCLI(t, "send", srv.URL+"/missing")
	if err != nil {
		t.Fatalf("4xx must not fail send: %v", err)
	}
	if !strings.Contains(errOut, "HTTP 404") {
		t.Fatalf("expected status line on stderr, got %q", errOut)
	}
}

func TestSendUsesEnvironmentBaseURLAndVariables(t *testing.T) {
	withConfigDir(t)
	srv := newEchoServer(t)

	mustRun(t, "env", "save", "staging", "--base-url", srv.URL+"/api/", "--var", "id=7")
	mustRun(t, "send", "/users/{{id}}", "-e", "staging", "--var", "q=override", "-q", "filter={{q}}")

	reqs := srv.requests()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].Path != "/api/users/7" || reqs[0].Query != "filter=override" {
		t.Fatalf("unexpected request %+v", reqs[0])
	}
}

func TestSendOAuthUsesStoredToken(t *testing.T) {
	withConfigDir(t)
	srv := newEchoServer(t)

	expires := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	stored := fmt.Sprintf(`{"environments":[{"name":"prod","base_url":%q,"access_token":"stored-token","expires_at":%q}]}`, srv.URL, expires)
	path := filepath.Join(t.TempDir(), "envs.yaml")
	if err := os.WriteFile(path, []byte(stored), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	mustRun(t, "env", "import", path)
	mustRun(t, "send", "/me", "-e", "prod", "--oauth")

	reqs := srv.requests()
	if len(reqs) != 1 || reqs[0].Auth != "Bearer stored-token" {
		t.Fatalf("unexpected requests %+v", reqs)
	}
}

func TestSendValidatesFlags(t *testing.T) {
	withConfigDir(t)

	cases := [][]string{
		{"send", "POST", "http://127.0.0.1:1/x", "-d", "a", "--form", "k=v"},
		{"send", "http://127.0.0.1:1/x", "--bearer", "a", "--basic", "u:p"},
		{"send", "http://127.0.0.1:1/x", "--api-key", "k=v", "--api-key-in", "cookie"},
		{"send", "GET", "http://127.0.0.1:1/x", "-X", "POST"},
		{"send", "http://127.0.0.1:1/x", "--oauth"},
		{"send", "/x", "-e", "nope"},
	}
	for _, args := range cases {
		_, _, err := runCLI(t, args...)
		if !errdef.Is(err, errdef.CodeValidation) {
			t.Fatalf("%v: expected validation error, got %v", args, err)
		}
	}
}

func TestHistoryDiff(t *testing.T) {
	withConfigDir(t)
	srv := newEchoServer(t)

	mustRun(t, "send", srv.URL+"/a")
	mustRun(t, "send", srv.URL+"/a")

	out := mustRun(t, "history", "diff", "1", "2")
	for _, want := range []string{"--- #1", "+++ #2", `-  "n": 1,`, `+  "n": 2,`} {
		if !strings.Contains(out, want) {
			t.Fatalf("diff missing %q:\n%s", want, out)
		}
	}

	if out := mustRun(t, "history", "diff", "1", "1"); !strings.Contains(out, "identical") {
		t.Fatalf("expected identical notice, got %q", out)
	}

	_, _, err := runCLI(t, "history", "show", "abc")
	if !errdef.Is(err, errdef.CodeValidation) {
		t.Fatalf("expected validation error for bad id, got %v", err)
	}
}

func TestHistoryDeleteClearAndExport(t *testing.T) {
	withConfigDir(t)
	srv := newEchoServer(t)

	mustRun(t, "send", srv.URL+"/one")
	mustRun(t, "send", srv.URL+"/two")
	mustRun(t, "history", "delete", "1")

	exportPath := filepath.Join(t.TempDir(), "history.jsonl")
	if out := mustRun(t, "history", "export", exportPath); !strings.Contains(out, "exported 1 entries") {
		t.Fatalf("unexpected export output %q", out)
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 2 {
		t.Fatalf("expected request and response lines, got %d", len(lines))
	}

	mustRun(t, "history", "clear")
	if out := mustRun(t, "history", "list"); !strings.Contains(out, "no history") {
		t.Fatalf("expected empty history, got:\n%s", out)
	}
}

func TestCollectionSaveRunAndExport(t *testing.T) {
	withConfigDir(t)
	srv := newEchoServer(t)

	mustRun(t, "collection", "save", "smoke", srv.URL+"/ping")
	mustRun(t, "collection", "save", "smoke", "DELETE", srv.URL+"/ping/1")

	out := mustRun(t, "collection", "run", "smoke", "--no-history")
	if !strings.Contains(out, "HTTP 200") || !strings.Contains(out, "DELETE") {
		t.Fatalf("unexpected run output:\n%s", out)
	}
	reqs := srv.requests()
	if len(reqs) != 2 || reqs[0].Method != "GET" || reqs[1].Method != "DELETE" {
		t.Fatalf("unexpected requests %+v", reqs)
	}

	exportPath := filepath.Join(t.TempDir(), "smoke.json")
	mustRun(t, "collection", "export", "smoke", exportPath)
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var exported []map[string]any
	if err := json.Unmarshal(data, &exported); err != nil || len(exported) != 2 {
		t.Fatalf("expected two exported requests, got %s (%v)", data, err)
	}

	if out := mustRun(t, "collection", "list"); !strings.Contains(out, "smoke") {
		t.Fatalf("collection list missing smoke:\n%s", out)
	}
	mustRun(t, "collection", "delete", "smoke")
	_, _, err = runCLI(t, "collection", "run", "smoke")
	if !errdef.Is(err, errdef.CodeValidation) {
		t.Fatalf("expected missing collection error, got %v", err)
	}
}

func TestCollectionRunReportsFailures(t *testing.T) {
	withConfigDir(t)
	srv := newEchoServer(t)

	mustRun(t, "collection", "save", "mixed", srv.URL+"/ok")
	mustRun(t, "collection", "save", "mixed", srv.URL+"/missing")

	_, _, err := runCLI(t, "collection", "run", "mixed")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 requests failed") {
		t.Fatalf("expected failure summary, got %v", err)
	}
}

func TestEnvSaveShowAndMask(t *testing.T) {
	withConfigDir(t)

	mustRun(t, "env", "save", "dev",
		"--base-url", "http://localhost:8080",
		"--client-id", "cli",
		"--client-secret", "s3cret",
		"--access-token", "live-token",
		"--var", "region=eu",
	)
	mustRun(t, "env", "save", "dev", "--var", "tenant=acme")

	out := mustRun(t, "env", "show", "dev")
	for _, want := range []string{"base_url: http://localhost:8080", "region: eu", "tenant: acme", masked} {
		if !strings.Contains(out, want) {
			t.Fatalf("env show missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "s3cret") || strings.Contains(out, "live-token") {
		t.Fatalf("secrets leaked:\n%s", out)
	}

	revealed := mustRun(t, "env", "show", "dev", "--reveal")
	if !strings.Contains(revealed, "live-token") {
		t.Fatalf("expected revealed token:\n%s", revealed)
	}

	if out := mustRun(t, "env", "list"); !strings.Contains(out, "dev") || !strings.Contains(out, "yes") {
		t.Fatalf("unexpected env list:\n%s", out)
	}

	_, _, err := runCLI(t, "env", "save", "dev", "--oauth2-config", "{broken")
	if !errdef.Is(err, errdef.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPreviewPrintsGeneratedCommand(t *testing.T) {
	withConfigDir(t)

	out := mustRun(t, "preview", "POST", "/users/{id}/posts",
		"-q", "draft=true",
		"--bearer", "t",
		"-d", `{"title":"hi"}`,
	)
	want := `cli users posts create --draft "true" --token "t" --body '{"title":"hi"}'` + "\n"
	if out != want {
		t.Fatalf("unexpected preview:\n got %q\nwant %q", out, want)
	}
}

func TestSpecCommands(t *testing.T) {
	withConfigDir(t)
	spec := filepath.Join("..", "..", "internal", "openapi", "testdata", "deviceinventory.yaml")

	out := mustRun(t, "spec", "parse", spec)
	var details struct {
		BaseURL   string `json:"baseUrl"`
		Endpoints []struct {
			Method string `json:"method"`
			Path   string `json:"path"`
		} `json:"endpoints"`
	}
	if err := json.Unmarshal([]byte(out), &details); err != nil {
		t.Fatalf("decode parse output: %v\n%s", err, out)
	}
	if details.BaseURL == "" || len(details.Endpoints) == 0 {
		t.Fatalf("unexpected details %+v", details)
	}

	if out := mustRun(t, "spec", "validate", spec); !strings.Contains(out, "valid") {
		t.Fatalf("unexpected validate output %q", out)
	}

	auth := mustRun(t, "spec", "auth", spec, "-o", "yaml")
	if !strings.Contains(auth, "name: bearerAuth") {
		t.Fatalf("auth listing missing bearerAuth:\n%s", auth)
	}

	_, _, err := runCLI(t, "spec", "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	if !errdef.Is(err, errdef.CodeSpecParse) {
		t.Fatalf("expected spec parse error, got %v", err)
	}
}

func TestGenerateWritesProject(t *testing.T) {
	withConfigDir(t)
	spec := filepath.Join("..", "..", "internal", "openapi", "testdata", "deviceinventory.yaml")
	outDir := t.TempDir()

	out := mustRun(t, "generate", spec, "--out", outDir, "--module", "example.com/devicecli")
	if !strings.Contains(out, "wrote go.mod") {
		t.Fatalf("unexpected generate output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(outDir, "cmd", "root.go")); err != nil {
		t.Fatalf("expected cmd/root.go: %v", err)
	}

	_, _, err := runCLI(t, "generate", spec, "--out", outDir, "--module", "example.com/devicecli")
	if !errdef.Is(err, errdef.CodeGeneration) {
		t.Fatalf("expected refusal to overwrite, got %v", err)
	}
	mustRun(t, "generate", spec, "--out", outDir, "--module", "example.com/devicecli", "--force")
}

func TestConfigLayering(t *testing.T) {
	dir := withConfigDir(t)
	if err := os.WriteFile(filepath.Join(dir, "settings.toml"), []byte("timeout_ms = 2500\nhistory_limit = 3\n"), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}

	out := mustRun(t, "config", "show")
	if !strings.Contains(out, "timeout_ms = 2500") || !strings.Contains(out, "history_limit = 3") {
		t.Fatalf("settings file not applied:\n%s", out)
	}

	t.Setenv("COMMANDPOST_TIMEOUT", "1234")
	if out := mustRun(t, "config", "show"); !strings.Contains(out, "timeout_ms = 1234") {
		t.Fatalf("env override not applied:\n%s", out)
	}

	if out := mustRun(t, "--timeout", "99", "config", "show"); !strings.Contains(out, "timeout_ms = 99") {
		t.Fatalf("flag override not applied:\n%s", out)
	}

	mustRun(t, "--history-limit", "7", "config", "save")
	t.Setenv("COMMANDPOST_TIMEOUT", "")
	saved, _, err := config.LoadSettings()
	if err != nil {
		t.Fatalf("reload settings: %v", err)
	}
	if saved.HistoryLimit != 7 {
		t.Fatalf("expected saved history limit 7, got %d", saved.HistoryLimit)
	}
}

func TestVersion(t *testing.T) {
	withConfigDir(t)
	if out := mustRun(t, "version"); !strings.HasPrefix(out, "commandpost "+version) {
		t.Fatalf("unexpected version output %q", out)
	}
}
