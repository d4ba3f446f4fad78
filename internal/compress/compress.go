// Package compress encodes and decodes HTTP content codings.
package compress

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

type Type int8

const (
	TypeNone Type = iota
	TypeGzip
	TypeDeflate
	TypeBr
	TypeZstd
)

// AcceptEncoding is the value sent by the executor.
const AcceptEncoding = "gzip, deflate, br, zstd"

var lookup = map[string]Type{
	"":         TypeNone,
	"identity": TypeNone,
	"gzip":     TypeGzip,
	"x-gzip":   TypeGzip,
	"deflate":  TypeDeflate,
	"br":       TypeBr,
	"zstd":     TypeZstd,
}

var (
	gzipWriterPool = sync.Pool{
		New: func() any { return gzip.NewWriter(io.Discard) },
	}
	brotliWriterPool = sync.Pool{
		New: func() any { return brotli.NewWriter(io.Discard) },
	}
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// ParseEncoding maps a Content-Encoding token to a Type.
func ParseEncoding(encoding string) (Type, bool) {
	t, ok := lookup[strings.ToLower(strings.TrimSpace(encoding))]
	return t, ok
}

func Compress(data []byte, t Type) ([]byte, error) {
	var buf bytes.Buffer
	switch t {
	case TypeNone:
		return append([]byte(nil), data...), nil
	case TypeGzip:
		z := gzipWriterPool.Get().(*gzip.Writer)
		defer gzipWriterPool.Put(z)
		z.Reset(&buf)
		if _, err := z.Write(data); err != nil {
			return nil, err
		}
		if err := z.Close(); err != nil {
			return nil, err
		}
	case TypeDeflate:
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case TypeBr:
		w := brotliWriterPool.Get().(*brotli.Writer)
		defer brotliWriterPool.Put(w)
		w.Reset(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	case TypeZstd:
		return zstdEncoder.EncodeAll(data, nil), nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %d", t)
	}
	return buf.Bytes(), nil
}

func Decompress(data []byte, t Type) ([]byte, error) {
	switch t {
	case TypeNone:
		return data, nil
	case TypeGzip:
		z, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = z.Close() }()
		return io.ReadAll(z)
	case TypeDeflate:
		r := flate.NewReader(bytes.NewReader(data))
		defer func() { _ = r.Close() }()
		return io.ReadAll(r)
	case TypeBr:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	case TypeZstd:
		return zstdDecoder.DecodeAll(data, nil)
	default:
		return nil, fmt.Errorf("unsupported compression type: %d", t)
	}
}

// DecodeContent undoes a Content-Encoding header value. Stacked codings
// ("gzip, br") are removed in reverse order of application.
func DecodeContent(data []byte, contentEncoding string) ([]byte, error) {
	if strings.TrimSpace(contentEncoding) == "" {
		return data, nil
	}
	codings := strings.Split(contentEncoding, ",")
	out := data
	for i := len(codings) - 1; i >= 0; i-- {
		t, ok := ParseEncoding(codings[i])
		if !ok {
			return nil, fmt.Errorf("%s encoding not supported", strings.TrimSpace(codings[i]))
		}
		var err error
		if out, err = Decompress(out, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}
