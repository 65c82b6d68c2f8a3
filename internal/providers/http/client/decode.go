package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

const acceptEncoding = "gzip, deflate, zstd"

func nopClose() {}

// decodeContent wraps r according to a Content-Encoding header value.
// Stacked encodings are undone in reverse order.
func decodeContent(r io.Reader, encoding string) (io.Reader, func(), error) {
	if encoding == "" {
		return r, nopClose, nil
	}

	codings := strings.Split(encoding, ",")
	closers := make([]func(), 0, len(codings))
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	for i := len(codings) - 1; i >= 0; i-- {
		switch coding := strings.ToLower(strings.TrimSpace(codings[i])); coding {
		case "", "identity":
		case "gzip", "x-gzip":
			gz, err := gzip.NewReader(r)
			if err != nil {
				closeAll()
				return nil, nopClose, fmt.Errorf("gzip failed: %w", err)
			}
			closers = append(closers, func() { gz.Close() })
			r = gz
		case "deflate":
			fr := flate.NewReader(r)
			closers = append(closers, func() { fr.Close() })
			r = fr
		case "zstd":
			zr, err := zstd.NewReader(r)
			if err != nil {
				closeAll()
				return nil, nopClose, fmt.Errorf("zstd failed: %w", err)
			}
			closers = append(closers, zr.Close)
			r = zr
		default:
			closeAll()
			return nil, nopClose, fmt.Errorf("unsupported content encoding %q", coding)
		}
	}
	return r, closeAll, nil
}
