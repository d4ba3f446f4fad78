package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/unkn0wn-root/commandpost/internal/body"
	"github.com/unkn0wn-root/commandpost/internal/errdef"
)

const mimeOctetStream = "application/octet-stream"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// buildMultipart renders fields in order and returns the payload with the
// boundary-carrying content type.
func (c *Client) buildMultipart(fields []body.Field, baseDir string) (io.Reader, string, error) {
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)

	for _, f := range fields {
		if !f.IsFile {
			if err := writer.WriteField(f.Key, f.Value); err != nil {
				return nil, "", errdef.Wrap(errdef.CodeEncoding, err, "write form field %s", f.Key)
			}
			continue
		}

		data, resolved, err := c.readFile(f.Value, baseDir)
		if err != nil {
			return nil, "", err
		}
		fileName := filepath.Base(resolved)

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
				escapeQuotes(f.Key), escapeQuotes(fileName)))
		mimeType := mime.TypeByExtension(filepath.Ext(fileName))
		if mimeType == "" {
			mimeType = mimeOctetStream
		}
		h.Set("Content-Type", mimeType)

		part, err := writer.CreatePart(h)
		if err != nil {
			return nil, "", errdef.Wrap(errdef.CodeEncoding, err, "create form part %s", f.Key)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", errdef.Wrap(errdef.CodeEncoding, err, "write form part %s", f.Key)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", errdef.Wrap(errdef.CodeEncoding, err, "close multipart writer")
	}
	return buf, writer.FormDataContentType(), nil
}
