package bundle

import (
	"fmt"
	"io"

	"github.com/pierrec/lz4"
)

// Archive provides concurrent reads from an opened bundle. All methods are
// safe to call from multiple goroutines, as long as the underlying ReaderAt is.
type Archive struct {
	reader    io.ReaderAt
	header    Header
	entries   map[string]IndexEntry
	dataStart int64
}

// Open reads and validates the bundle header from r.
func Open(r io.ReaderAt) (*Archive, error) {
	magicBytes := make([]byte, MagicLength)
	if num, err := r.ReadAt(magicBytes, 0); err != nil {
		return nil, err
	} else if num < MagicLength || [MagicLength]byte(magicBytes) != magic {
		return nil, ErrFileFormat
	}

	headerSizeBytes := make([]byte, HeaderSizeNumberLength)
	if num, err := r.ReadAt(headerSizeBytes, MagicLength); err != nil {
		return nil, err
	} else if num < HeaderSizeNumberLength {
		return nil, ErrFileFormat
	}
	headerSize := int64(binaryToUint64(headerSizeBytes))

	headerBytes := make([]byte, headerSize)
	if num, err := r.ReadAt(headerBytes, MagicLength+HeaderSizeNumberLength); err != nil {
		return nil, err
	} else if int64(num) < headerSize {
		return nil, ErrFileFormat
	}

	ar := Archive{
		reader:    r,
		entries:   make(map[string]IndexEntry),
		dataStart: MagicLength + HeaderSizeNumberLength + headerSize,
	}
	if err := gobDecode(&ar.header, headerBytes); err != nil {
		return nil, ErrFileFormat
	}
	for _, e := range ar.header.Index {
		ar.entries[e.Name] = e
	}
	return &ar, nil
}

// Header returns the decoded bundle header, index included.
func (a *Archive) Header() Header {
	return a.header
}

// Has reports whether the bundle contains an entry with the given name.
func (a *Archive) Has(name string) bool {
	_, ok := a.entries[name]
	return ok
}

// Open returns a reader that decompresses the named entry on the fly.
func (a *Archive) Open(name string) (io.Reader, error) {
	entry, ok := a.entries[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNoEntry)
	}
	section := io.NewSectionReader(a.reader, a.dataStart+entry.Offset, entry.CompressedSize)
	return io.LimitReader(lz4.NewReader(section), entry.Size), nil
}

// ReadAll returns the entire decompressed contents of the named entry.
func (a *Archive) ReadAll(name string) ([]byte, error) {
	entry, ok := a.entries[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNoEntry)
	}
	r, err := a.Open(name)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) != entry.Size {
		return nil, ErrFileFormat
	}
	return data, nil
}
