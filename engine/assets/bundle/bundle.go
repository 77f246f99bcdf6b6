// Package bundle implements an lz4 backed asset container built for
// streaming. The archive itself is not compressed; every entry is compressed
// individually, so any one of them can be located through the index and
// decompressed on its own without touching the rest of the file. That trades
// a little space for the ability to serve concurrent random reads straight
// from an io.ReaderAt, which is what the load scheduler wants.
package bundle

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
)

// package errors
var (
	ErrFileFormat = errors.New("corrupted or not a lodestone bundle")
	ErrNoEntry    = errors.New("no such entry in bundle")
)

// Sizes relevant to the fixed part of the file header.
const (
	MagicLength            = 4
	HeaderSizeNumberLength = 8
)

var magic = [MagicLength]byte{'L', 'S', 'B', 0}

// IndexEntry is info for one file in the bundle index. Offset is relative to
// the start of the data section.
type IndexEntry struct {
	Name           string
	Offset         int64
	Size           int64
	CompressedSize int64
}

// Header is the bundle header, gob-encoded right after the magic and the
// header length.
type Header struct {
	Author      string
	DateCreated int64
	Version     int64
	Index       []IndexEntry
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	return gob.NewDecoder(bytes.NewReader(bts)).Decode(obj)
}

func uint64ToBinary(num uint64) []byte {
	bts := make([]byte, HeaderSizeNumberLength)
	binary.LittleEndian.PutUint64(bts, num)
	return bts
}

func binaryToUint64(bts []byte) uint64 {
	return binary.LittleEndian.Uint64(bts)
}
