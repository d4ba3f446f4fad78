package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/request"
	"github.com/unkn0wn-root/commandpost/internal/telemetry"
)

type mapFS map[string][]byte

func (m mapFS) ReadFile(name string) ([]byte, error) {
	if data, ok := m[name]; ok {
		return data, nil
	}
	return nil, os.ErrNotExist
}

func descriptor(method, url string, headers map[string]string, body string) request.Descriptor {
	return request.FromData(request.Data{
		Method:  method,
		URL:     url,
		Headers: headers,
		Body:    body,
		Timeout: request.DefaultTimeoutMs,
	})
}

func TestExecuteSendsRequestAndJoinsHeaders(t *testing.T) {
	var gotMethod, gotBody, gotAuth, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept-Encoding")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Header().Add("X-Multi", "a")
		w.Header().Add("X-Multi", "b")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := NewClient(nil)
	resp, err := client.Execute(context.Background(), descriptor(
		"POST", srv.URL+"/items", map[string]string{"Authorization": "Bearer t"}, `{"a":1}`,
	), Options{})
	require.NoError(t, err)

	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.Equal(t, "Bearer t", gotAuth)
	assert.Equal(t, "gzip, deflate, br, zstd", gotAccept)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "a, b", resp.Headers["X-Multi"])
	assert.Equal(t, `{"ok":true}`, resp.Body)
	assert.Equal(t, int64(len(`{"ok":true}`)), resp.SizeBytes)
	assert.GreaterOrEqual(t, resp.ElapsedMs, int64(0))
}

func TestExecuteSendsOneValuePerHeaderName(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	headers := map[string]string{
		"content-type":  "application/json",
		"Content-Type":  "application/x-www-form-urlencoded",
		"authorization": "X",
		"Authorization": "Bearer T",
		"x-trace":       "b",
		"X-TRACE":       "a",
	}
	_, err := NewClient(nil).Execute(context.Background(), descriptor(
		"POST", srv.URL, headers, "a=1",
	), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"application/x-www-form-urlencoded"}, got.Values("Content-Type"))
	assert.Equal(t, []string{"Bearer T"}, got.Values("Authorization"))
	assert.Equal(t, []string{"a"}, got.Values("X-Trace"))
}

func TestWireHeaders(t *testing.T) {
	assert.Equal(t,
		map[string]string{"Content-Type": "text/plain", "x-id": "1"},
		wireHeaders(map[string]string{"content-type": "a", "Content-Type": "text/plain", "x-id": "1"}),
	)
	assert.Equal(t,
		map[string]string{"X-ID": "2"},
		wireHeaders(map[string]string{"x-id": "1", "X-ID": "2"}),
	)
}

func TestExecuteReturnsErrorStatusesAsResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := NewClient(nil).Execute(context.Background(), descriptor("GET", srv.URL, nil, ""), Options{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "missing\n", resp.Body)
}

func TestExecuteDecodesGzipAndReportsWireSize(t *testing.T) {
	payload := strings.Repeat("compressed payload ", 50)
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(payload))
	require.NoError(t, zw.Close())
	wire := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(wire)
	}))
	defer srv.Close()

	resp, err := NewClient(nil).Execute(context.Background(), descriptor("GET", srv.URL, nil, ""), Options{})
	require.NoError(t, err)
	assert.Equal(t, payload, resp.Body)
	assert.Equal(t, int64(len(wire)), resp.SizeBytes)
}

func TestExecuteTranscodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		_, _ = w.Write([]byte("caf\xe9"))
	}))
	defer srv.Close()

	resp, err := NewClient(nil).Execute(context.Background(), descriptor("GET", srv.URL, nil, ""), Options{})
	require.NoError(t, err)
	assert.Equal(t, "café", resp.Body)
}

func TestExecuteMultipartForm(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "avatar.png"), []byte("PNGDATA"), 0o644))

	type seen struct {
		name, fileName, fileType, fileBody string
	}
	var got seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		got.name = r.FormValue("name")
		file, hdr, err := r.FormFile("avatar")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		got.fileName = hdr.Filename
		got.fileType = hdr.Header.Get("Content-Type")
		got.fileBody = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	desc := request.FromData(request.Data{
		Method:  "POST",
		URL:     srv.URL + "/upload",
		Headers: map[string]string{"Content-Type": "multipart/form-data"},
		FormData: map[string]request.FormPart{
			"name":   {Value: "alice"},
			"avatar": {Value: "avatar.png", IsFile: true},
		},
		Timeout: 2000,
	})
	resp, err := NewClient(nil).Execute(context.Background(), desc, Options{BaseDir: dir})
	require.NoError(t, err)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, "alice", got.name)
	assert.Equal(t, "avatar.png", got.fileName)
	assert.Equal(t, "image/png", got.fileType)
	assert.Equal(t, "PNGDATA", got.fileBody)
}

func TestExecuteMissingFormFile(t *testing.T) {
	desc := request.FromData(request.Data{
		Method:   "POST",
		URL:      "http://127.0.0.1:1/upload",
		FormData: map[string]request.FormPart{"doc": {Value: "nope.bin", IsFile: true}},
	})
	_, err := NewClient(mapFS{}).Execute(context.Background(), desc, Options{})
	require.Error(t, err)
	assert.Equal(t, errdef.CodeFilesystem, errdef.CodeOf(err))
}

func TestExecuteReadsFileThroughFileSystem(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("doc")
		if err == nil {
			data, _ := io.ReadAll(file)
			body = string(data)
			_ = file.Close()
		}
	}))
	defer srv.Close()

	fs := mapFS{filepath.Join("/base", "doc.bin"): []byte("from-fs")}
	desc := request.FromData(request.Data{
		Method:   "POST",
		URL:      srv.URL,
		FormData: map[string]request.FormPart{"doc": {Value: "doc.bin", IsFile: true}},
	})
	_, err := NewClient(fs).Execute(context.Background(), desc, Options{BaseDir: "/base"})
	require.NoError(t, err)
	assert.Equal(t, "from-fs", body)
}

func TestExecuteTimeoutIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	desc := request.FromData(request.Data{Method: "GET", URL: srv.URL, Timeout: 50})
	_, err := NewClient(nil).Execute(context.Background(), desc, Options{})
	require.Error(t, err)
	assert.Equal(t, errdef.CodeNetwork, errdef.CodeOf(err))
}

func TestExecuteConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(nil).Execute(context.Background(), descriptor("GET", url, nil, ""), Options{})
	require.Error(t, err)
	assert.True(t, errdef.Is(err, errdef.CodeNetwork))
}

func TestExecuteRedirectPolicy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("new"))
	}))
	defer srv.Close()

	client := NewClient(nil)
	resp, err := client.Execute(context.Background(), descriptor("GET", srv.URL+"/old", nil, ""), Options{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/new", resp.Headers["Location"])

	resp, err = client.Execute(context.Background(), descriptor("GET", srv.URL+"/old", nil, ""), Options{FollowRedirects: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "new", resp.Body)
}

func TestExecuteKeepsCallerAcceptEncoding(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Accept-Encoding")
	}))
	defer srv.Close()

	_, err := NewClient(nil).Execute(context.Background(), descriptor(
		"GET", srv.URL, map[string]string{"accept-encoding": "identity"}, "",
	), Options{})
	require.NoError(t, err)
	assert.Equal(t, "identity", got)
}

func TestExecuteEmitsSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	inst, err := telemetry.New(telemetry.Config{ServiceName: "test"}, telemetry.WithSpanProcessor(recorder))
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Shutdown(context.Background()) })

	client := NewClient(nil)
	client.SetTelemetry(inst)
	_, err = client.Execute(context.Background(), descriptor("GET", srv.URL+"/pots?api_key=secret", nil, ""), Options{Label: "teapot"})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "teapot", spans[0].Name())

	attrs := make(map[string]string)
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "GET", attrs["http.method"])
	assert.Equal(t, srv.URL+"/pots?api_key=xxxxx", attrs["http.url"])
	assert.NotContains(t, attrs["http.url"], "secret")
}

func TestBuildPathCandidates(t *testing.T) {
	assert.Equal(t, []string{"/abs/file"}, buildPathCandidates("/abs/file", "/base"))
	assert.Equal(t, []string{"rel"}, buildPathCandidates("rel", ""))
	assert.Equal(t, []string{filepath.Join("/base", "rel"), "rel"}, buildPathCandidates("rel", "/base"))
}
