package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lodestone-engine/lodestone/engine/assets/bundle"
	"github.com/lodestone-engine/lodestone/engine/core"
)

// BundleBackend serves fetches from an opened asset bundle. Reads are
// concurrent-safe, so it can sit directly under the scheduler's worker pool.
type BundleBackend struct {
	archive *bundle.Archive
	closer  io.Closer
}

// NewBundleBackend wraps an already opened archive.
func NewBundleBackend(archive *bundle.Archive) *BundleBackend {
	return &BundleBackend{archive: archive}
}

// OpenBundleBackend opens the bundle file at path.
func OpenBundleBackend(path string) (*BundleBackend, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	archive, err := bundle.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open bundle %s: %w", path, err)
	}
	return &BundleBackend{archive: archive, closer: f}, nil
}

func (bb *BundleBackend) Fetch(_ context.Context, locator string) ([]byte, error) {
	data, err := bb.archive.ReadAll(locator)
	if err != nil {
		if errors.Is(err, bundle.ErrNoEntry) {
			return nil, fmt.Errorf("%s: %w", locator, core.ErrResourceNotFound)
		}
		return nil, fmt.Errorf("%s: %w: %v", locator, core.ErrRetrievalFailed, err)
	}
	return data, nil
}

func (bb *BundleBackend) Close() error {
	if bb.closer != nil {
		return bb.closer.Close()
	}
	return nil
}
