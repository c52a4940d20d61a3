package fetcher

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxContentSize caps how much of a response body is read.
const DefaultMaxContentSize int64 = 1 << 20 // 1 MiB

// ErrSizeLimitExceeded means the body crossed the byte cap mid-stream.
var ErrSizeLimitExceeded = errors.New("content size limit exceeded")

const readChunkSize = 32 * 1024

// ReadBounded consumes body incrementally and returns it as text,
// aborting as soon as the running byte total exceeds capBytes — it
// never buffers past the cap waiting for the stream to end. Chunks are
// accumulated as raw bytes, so a read boundary falling inside a
// multi-byte character never corrupts the result. The caller owns
// closing the body on every exit path.
func ReadBounded(body io.Reader, capBytes int64) (string, error) {
	if capBytes <= 0 {
		capBytes = DefaultMaxContentSize
	}

	var sb strings.Builder
	buf := make([]byte, readChunkSize)
	var total int64

	for {
		n, err := body.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > capBytes {
				return "", ErrSizeLimitExceeded
			}
			sb.Write(buf[:n])
		}
		if err == io.EOF {
			return sb.String(), nil
		}
		if err != nil {
			return "", fmt.Errorf("ReadBounded: %w", err)
		}
	}
}
