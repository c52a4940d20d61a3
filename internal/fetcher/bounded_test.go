package fetcher

import (
	"errors"
	"io"
	"strings"
	"testing"
)

// chunkedReader yields its payload in fixed-size pieces to exercise
// incremental consumption.
type chunkedReader struct {
	data  []byte
	pos   int
	chunk int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(p) {
		n = len(p)
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func TestReadBounded_ExactlyAtCap(t *testing.T) {
	data := strings.Repeat("a", 1000)
	got, err := ReadBounded(strings.NewReader(data), 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != data {
		t.Errorf("read %d bytes, want %d", len(got), len(data))
	}
}

func TestReadBounded_OneByteOverCap(t *testing.T) {
	data := strings.Repeat("a", 1001)
	_, err := ReadBounded(&chunkedReader{data: []byte(data), chunk: 100}, 1000)
	if !errors.Is(err, ErrSizeLimitExceeded) {
		t.Fatalf("err = %v, want ErrSizeLimitExceeded", err)
	}
}

func TestReadBounded_AbortsWithoutDrainingStream(t *testing.T) {
	// 10 MiB source with a 1 KiB cap: the reader must stop early, not
	// buffer the whole stream before deciding.
	r := &chunkedReader{data: make([]byte, 10<<20), chunk: 512}
	_, err := ReadBounded(r, 1024)
	if !errors.Is(err, ErrSizeLimitExceeded) {
		t.Fatalf("err = %v, want ErrSizeLimitExceeded", err)
	}
	if r.pos > 4096 {
		t.Errorf("read %d bytes past the cap before aborting", r.pos)
	}
}

func TestReadBounded_MultiByteBoundary(t *testing.T) {
	// Chunk size 1 forces reads to split every multi-byte character.
	data := strings.Repeat("héllo wörld ", 50)
	got, err := ReadBounded(&chunkedReader{data: []byte(data), chunk: 1}, int64(len(data)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != data {
		t.Error("multi-byte characters corrupted across chunk boundaries")
	}
}

func TestReadBounded_PropagatesReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("partial"), &failingReader{err: boom})
	_, err := ReadBounded(r, 1<<20)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

type failingReader struct{ err error }

func (r *failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestReadBounded_EmptyBody(t *testing.T) {
	got, err := ReadBounded(strings.NewReader(""), 1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestReadBounded_ZeroCapUsesDefault(t *testing.T) {
	data := strings.Repeat("a", 2048)
	got, err := ReadBounded(strings.NewReader(data), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != data {
		t.Error("default cap should admit a small body")
	}
}
