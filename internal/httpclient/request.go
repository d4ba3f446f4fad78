package httpclient

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/unkn0wn-root/commandpost/internal/compress"
	"github.com/unkn0wn-root/commandpost/internal/errdef"
	"github.com/unkn0wn-root/commandpost/internal/request"
)

func (c *Client) prepareHTTPRequest(
	ctx context.Context,
	desc request.Descriptor,
	opts Options,
) (*http.Request, error) {
	var (
		reader      io.Reader
		contentType string
	)
	if desc.HasFormData() {
		payload, ct, err := c.buildMultipart(desc.FormFields(), opts.BaseDir)
		if err != nil {
			return nil, err
		}
		reader, contentType = payload, ct
	} else if desc.Body() != "" {
		reader = strings.NewReader(desc.Body())
	}

	httpReq, err := http.NewRequestWithContext(ctx, desc.Method(), strings.TrimSpace(desc.URL()), reader)
	if err != nil {
		return nil, errdef.Wrap(errdef.CodeNetwork, err, "build request")
	}

	for name, value := range wireHeaders(desc.Headers()) {
		if strings.EqualFold(name, "Host") {
			httpReq.Host = value
			continue
		}
		if contentType != "" && strings.EqualFold(name, "Content-Type") {
			continue
		}
		httpReq.Header[name] = []string{value}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if !hasHeader(httpReq.Header, "Accept-Encoding") {
		httpReq.Header.Set("Accept-Encoding", compress.AcceptEncoding)
	}
	return httpReq, nil
}

// wireHeaders keeps one entry per case-insensitive name. The canonical
// spelling wins a collision because the auth and content-type overlays write
// canonical names; otherwise the lowest key wins. The chosen key keeps its
// spelling.
func wireHeaders(headers map[string]string) map[string]string {
	chosen := make(map[string]string, len(headers))
	for name := range headers {
		canon := http.CanonicalHeaderKey(name)
		prev, ok := chosen[canon]
		switch {
		case !ok:
			chosen[canon] = name
		case prev == canon:
		case name == canon || name < prev:
			chosen[canon] = name
		}
	}
	out := make(map[string]string, len(chosen))
	for _, name := range chosen {
		out[name] = headers[name]
	}
	return out
}

func hasHeader(h http.Header, name string) bool {
	for k := range h {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}
