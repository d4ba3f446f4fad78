package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unkn0wn-root/commandpost/internal/auth"
	"github.com/unkn0wn-root/commandpost/internal/body"
	"github.com/unkn0wn-root/commandpost/internal/store"
)

func TestMethodAndTarget(t *testing.T) {
	cases := []struct {
		name       string
		flag       string
		args       []string
		wantMethod string
		wantTarget string
		wantErr    bool
	}{
		{name: "target only", args: []string{"/x"}, wantMethod: "GET", wantTarget: "/x"},
		{name: "method arg", args: []string{"post", "/x"}, wantMethod: "POST", wantTarget: "/x"},
		{name: "method flag", flag: "delete", args: []string{"/x"}, wantMethod: "DELETE", wantTarget: "/x"},
		{name: "same twice", flag: "put", args: []string{"PUT", "/x"}, wantMethod: "PUT", wantTarget: "/x"},
		{name: "conflict", flag: "put", args: []string{"POST", "/x"}, wantErr: true},
		{name: "too many", args: []string{"GET", "/x", "extra"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := requestFlags{method: tc.flag}
			method, target, err := f.methodAndTarget(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if method != tc.wantMethod || target != tc.wantTarget {
				t.Fatalf("got %s %s, want %s %s", method, target, tc.wantMethod, tc.wantTarget)
			}
		})
	}
}

func TestHeaderListSeparators(t *testing.T) {
	list := headerList([]string{"Accept: application/json", "x-id=a:b", "Authorization: Bearer k=v"})
	got := map[string]string{}
	for _, e := range list.Effective() {
		got[e.Key] = e.Value
	}
	want := map[string]string{
		"Accept":        "application/json",
		"x-id":          "a:b",
		"Authorization": "Bearer k=v",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("header %s: got %q, want %q", k, got[k], v)
		}
	}
}

func TestBodySpecSelection(t *testing.T) {
	dir := t.TempDir()
	payload := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(payload, []byte(`{"from":"file"}`), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	f := requestFlags{data: "@" + payload}
	spec, err := f.bodySpec()
	if err != nil {
		t.Fatalf("bodySpec: %v", err)
	}
	if spec.Type != body.TypeRaw || spec.Raw != `{"from":"file"}` {
		t.Fatalf("unexpected raw spec %+v", spec)
	}

	f = requestFlags{form: []string{"name=probe"}, formFiles: []string{"image=./me.png"}}
	spec, err = f.bodySpec()
	if err != nil {
		t.Fatalf("bodySpec: %v", err)
	}
	fields := body.Encode("POST", spec).FormData
	if spec.Type != body.TypeFormData || len(fields) != 2 || !fields[1].IsFile || fields[1].Value != "./me.png" {
		t.Fatalf("unexpected form fields %+v", fields)
	}

	f = requestFlags{urlencoded: []string{"a=1", "b=two words"}}
	spec, err = f.bodySpec()
	if err != nil {
		t.Fatalf("bodySpec: %v", err)
	}
	if spec.Type != body.TypeURLEncoded {
		t.Fatalf("expected urlencoded, got %s", spec.Type)
	}

	if spec, err := (&requestFlags{}).bodySpec(); err != nil || spec.Type != body.TypeNone {
		t.Fatalf("expected no body, got %+v (%v)", spec, err)
	}

	if _, err := (&requestFlags{data: "@" + filepath.Join(dir, "missing")}).bodySpec(); err == nil {
		t.Fatalf("expected error for missing body file")
	}
}

func TestAuthConfigFromFlags(t *testing.T) {
	cfg, err := (&requestFlags{basic: "ada:pw"}).authConfig()
	if err != nil {
		t.Fatalf("authConfig: %v", err)
	}
	if got, ok := cfg.Active().(auth.Basic); !ok || got.Username != "ada" || got.Password != "pw" {
		t.Fatalf("unexpected basic scheme %#v", cfg.Active())
	}

	cfg, err = (&requestFlags{apiKey: "key=abc", apiKeyIn: "QUERY"}).authConfig()
	if err != nil {
		t.Fatalf("authConfig: %v", err)
	}
	if got, ok := cfg.Active().(auth.APIKey); !ok || got.Location != auth.InQuery || got.KeyValue != "abc" {
		t.Fatalf("unexpected api key scheme %#v", cfg.Active())
	}

	cfg, err = (&requestFlags{}).authConfig()
	if err != nil || cfg.Kind() != auth.KindNone {
		t.Fatalf("expected no auth, got %s (%v)", cfg.Kind(), err)
	}
}

func TestResolverPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("host=from-file\nuser=file-user\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	f := requestFlags{vars: []string{"host=from-flag"}, envFiles: []string{envFile}}
	env := &store.Environment{
		Name:      "dev",
		BaseURL:   "http://dev.local",
		Variables: map[string]string{"host": "from-env", "user": "env-user", "region": "eu"},
	}
	r, err := f.resolver(env)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	got := r.Lenient("{{host}} {{user}} {{region}} {{baseUrl}}")
	if got != "from-flag file-user eu http://dev.local" {
		t.Fatalf("unexpected expansion %q", got)
	}

	if _, err := (&requestFlags{vars: []string{"=x"}}).resolver(nil); err == nil {
		t.Fatalf("expected error for empty variable name")
	}
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	cases := map[string]bool{
		"":                     false,
		"not a time":           false,
		"2025-01-01T13:00:00Z": false,
		"2025-01-01T12:00:00Z": true,
		"2024-12-31T23:00:00Z": true,
	}
	for in, want := range cases {
		if got := tokenExpired(in, now); got != want {
			t.Fatalf("tokenExpired(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseHistoryID(t *testing.T) {
	if id, err := parseHistoryID("#12"); err != nil || id != 12 {
		t.Fatalf("got %d (%v)", id, err)
	}
	for _, bad := range []string{"", "0", "-3", "x"} {
		if _, err := parseHistoryID(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestMaskEnvironment(t *testing.T) {
	env := maskEnvironment(store.Environment{
		AccessToken:  "a",
		ClientSecret: "s",
		OAuth2Config: `{"accessToken":"a","clientId":"c"}`,
	})
	if env.AccessToken != masked || env.ClientSecret != masked || env.RefreshToken != "" {
		t.Fatalf("unexpected masking %+v", env)
	}
	if env.OAuth2Config != `{"accessToken":"`+masked+`","clientId":"c"}` {
		t.Fatalf("unexpected oauth2 config %s", env.OAuth2Config)
	}
}
