package httpclient

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/net/html/charset"

	apperrors "github.com/shhac/battp/internal/errors"
)

// decodeBody turns a raw response body into UTF-8 text. Content-Encoding
// layers are removed first, then a declared non-UTF-8 charset is converted.
// Bodies that are still not valid UTF-8 are rejected.
func decodeBody(raw []byte, header http.Header) (string, error) {
	body, err := decompress(raw, contentEncodings(header))
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrUnreadableBody, err)
	}

	if label := declaredCharset(header.Get("Content-Type")); label != "" && !isUTF8Label(label) {
		r, err := charset.NewReaderLabel(label, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("%w: %v", apperrors.ErrUnreadableBody, err)
		}
		if body, err = io.ReadAll(r); err != nil {
			return "", fmt.Errorf("%w: %v", apperrors.ErrUnreadableBody, err)
		}
	}

	if !utf8.Valid(body) {
		return "", apperrors.ErrUnreadableBody
	}
	return string(body), nil
}

// contentEncodings lists the codings in the order they were applied.
func contentEncodings(header http.Header) []string {
	var out []string
	for _, v := range header.Values("Content-Encoding") {
		for part := range strings.SplitSeq(v, ",") {
			if coding := strings.ToLower(strings.TrimSpace(part)); coding != "" && coding != "identity" {
				out = append(out, coding)
			}
		}
	}
	return out
}

func decompress(data []byte, codings []string) ([]byte, error) {
	for i := len(codings) - 1; i >= 0; i-- {
		var err error
		if data, err = decompressOne(data, codings[i]); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func decompressOne(data []byte, coding string) ([]byte, error) {
	switch coding {
	case "gzip", "x-gzip":
		z, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer func() { _ = z.Close() }()
		return io.ReadAll(z)

	case "deflate":
		// Servers disagree on whether deflate means zlib-wrapped or raw.
		if z, err := zlib.NewReader(bytes.NewReader(data)); err == nil {
			defer func() { _ = z.Close() }()
			return io.ReadAll(z)
		}
		f := flate.NewReader(bytes.NewReader(data))
		defer func() { _ = f.Close() }()
		return io.ReadAll(f)

	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))

	case "zstd":
		d, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer d.Close()
		return io.ReadAll(d)

	default:
		return nil, fmt.Errorf("%s encoding not supported", coding)
	}
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}

func isUTF8Label(label string) bool {
	return label == "utf-8" || label == "utf8" || label == "us-ascii"
}
