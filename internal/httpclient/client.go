package httpclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/unkn0wn-root/commandpost/internal/compress"
	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/request"
	"github.com/unkn0wn-root/commandpost/internal/response"
	"github.com/unkn0wn-root/commandpost/internal/telemetry"
)

type Options struct {
	FollowRedirects    bool
	InsecureSkipVerify bool
	ProxyURL           string
	// BaseDir resolves relative form-data file paths.
	BaseDir string
	// Label names the telemetry span, e.g. a saved request name.
	Label string
}

type Client struct {
	fs          FileSystem
	httpFactory func(Options) (*http.Client, error)
	telemetry   telemetry.Instrumenter
	logger      *slog.Logger
}

func (c *Client) resolveHTTPFactory() func(Options) (*http.Client, error) {
	if c == nil {
		return nil
	}
	if c.httpFactory != nil {
		return c.httpFactory
	}
	return buildHTTPClient
}

func NewClient(fs FileSystem) *Client {
	if fs == nil {
		fs = OSFileSystem{}
	}
	return &Client{
		fs:          fs,
		httpFactory: buildHTTPClient,
		telemetry:   telemetry.Noop(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetHTTPFactory allows callers to override how http.Client instances are created.
// Passing nil restores the default factory.
func (c *Client) SetHTTPFactory(factory func(Options) (*http.Client, error)) {
	c.httpFactory = factory
}

// SetTelemetry configures the instrumenter used to emit OpenTelemetry spans. Passing nil restores the no-op implementation.
func (c *Client) SetTelemetry(instr telemetry.Instrumenter) {
	if instr == nil {
		instr = telemetry.Noop()
	}
	c.telemetry = instr
}

func (c *Client) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.logger = logger
}

// Execute sends desc and normalizes the reply. Every HTTP status yields a
// descriptor; only transport failures (connect, TLS, timeout, reading the
// body) return an error, coded errdef.CodeNetwork. Nothing is retried.
func (c *Client) Execute(
	ctx context.Context,
	desc request.Descriptor,
	opts Options,
) (resp response.Descriptor, err error) {
	if ms := desc.TimeoutMs(); ms > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(ms)*time.Millisecond)
		defer cancel()
	}

	httpReq, err := c.prepareHTTPRequest(ctx, desc, opts)
	if err != nil {
		return response.Descriptor{}, err
	}

	factory := c.resolveHTTPFactory()
	if factory == nil {
		return response.Descriptor{}, errdef.New(errdef.CodeNetwork, "http client factory unavailable")
	}
	client, err := factory(opts)
	if err != nil {
		return response.Descriptor{}, err
	}

	spanCtx, span := c.telemetry.Start(httpReq.Context(), telemetry.RequestStart{
		Name:      opts.Label,
		Method:    httpReq.Method,
		URL:       httpReq.URL.String(),
		TimeoutMs: desc.TimeoutMs(),
		FormParts: len(desc.FormFields()),
	})
	httpReq = httpReq.WithContext(spanCtx)

	start := time.Now()
	defer func() {
		span.End(telemetry.RequestResult{
			Err:        err,
			StatusCode: resp.StatusCode,
			SizeBytes:  resp.SizeBytes,
			Elapsed:    time.Since(start),
		})
	}()

	c.logger.Debug("sending request", "method", httpReq.Method, "url", telemetry.RedactURL(httpReq.URL.String()))
	httpResp, err := client.Do(httpReq)
	if err != nil {
		return response.Descriptor{}, errdef.Wrap(errdef.CodeNetwork, err, "perform request")
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil && err == nil {
			err = errdef.Wrap(errdef.CodeNetwork, closeErr, "close response body")
		}
	}()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return response.Descriptor{}, errdef.Wrap(errdef.CodeNetwork, err, "read response body")
	}
	elapsed := time.Since(start)

	body := c.decodeBody(raw, httpResp.Header)
	resp = response.Descriptor{
		StatusCode: httpResp.StatusCode,
		Headers:    joinHeaders(httpResp.Header),
		Body:       string(body),
		ElapsedMs:  elapsed.Milliseconds(),
		SizeBytes:  int64(len(raw)),
	}
	c.logger.Debug(
		"received response",
		"status", resp.StatusCode,
		"elapsed_ms", resp.ElapsedMs,
		"size", resp.SizeBytes,
	)
	return resp, nil
}

// decodeBody undoes the content coding and transcodes the declared charset.
// A body that cannot be decoded is returned as received.
func (c *Client) decodeBody(raw []byte, header http.Header) []byte {
	body := raw
	if enc := header.Get("Content-Encoding"); enc != "" {
		decoded, err := compress.DecodeContent(raw, enc)
		if err != nil {
			c.logger.Warn("could not decode response body", "encoding", enc, "error", err)
			return raw
		}
		body = decoded
	}
	return toUTF8(body, header.Get("Content-Type"))
}

func joinHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		out[name] = strings.Join(values, ", ")
	}
	return out
}
