package bundle

import (
	"bytes"
	"io"
	"sync"

	"github.com/pierrec/lz4"
)

// Builder assembles a bundle in memory. Bundles are versioned and cannot be
// appended to; build a new one instead. Add compresses eagerly, so the only
// work left for WriteTo is laying out the index and copying entries through.
type Builder struct {
	header Header

	mutex   sync.Mutex
	entries []builderEntry
}

type builderEntry struct {
	name       string
	size       int64
	compressed []byte
}

// NewBuilder creates a Builder. Do not fill the Index in the header, it is
// computed by WriteTo.
func NewBuilder(header Header) *Builder {
	header.Index = nil
	return &Builder{header: header}
}

// Add compresses data and appends it to the bundle under the given name.
// Blocks until lz4 finishes. Safe to call concurrently from different
// goroutines; entries are laid out in Add order.
func (b *Builder) Add(name string, data []byte) error {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.entries = append(b.entries, builderEntry{
		name:       name,
		size:       int64(len(data)),
		compressed: buf.Bytes(),
	})
	return nil
}

// WriteTo lays out and writes the finished bundle. The builder is left empty
// afterwards.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	header := b.header
	var offset int64
	for _, e := range b.entries {
		header.Index = append(header.Index, IndexEntry{
			Name:           e.name,
			Offset:         offset,
			Size:           e.size,
			CompressedSize: int64(len(e.compressed)),
		})
		offset += int64(len(e.compressed))
	}

	rawHeader, err := gobEncode(header)
	if err != nil {
		return 0, err
	}

	var written int64
	n, err := w.Write(magic[:])
	written += int64(n)
	if err != nil {
		return written, err
	}
	n, err = w.Write(uint64ToBinary(uint64(len(rawHeader))))
	written += int64(n)
	if err != nil {
		return written, err
	}
	n, err = w.Write(rawHeader)
	written += int64(n)
	if err != nil {
		return written, err
	}
	for _, e := range b.entries {
		n, err = w.Write(e.compressed)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	b.entries = b.entries[:0]
	return written, nil
}
