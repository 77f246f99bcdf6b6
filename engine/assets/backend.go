package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lodestone-engine/lodestone/engine/core"
)

// Backend supplies raw bytes for a resource locator. Implementations may be
// slow and may fail; the scheduler treats any error as retryable unless it
// wraps core.ErrResourceNotFound.
type Backend interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// BackendFunc adapts a plain function to the Backend interface.
type BackendFunc func(ctx context.Context, locator string) ([]byte, error)

func (f BackendFunc) Fetch(ctx context.Context, locator string) ([]byte, error) {
	return f(ctx, locator)
}

// DirectoryBackend serves assets from a directory tree. Recently fetched
// payloads are memoized in a small LRU so retry storms do not hit the disk
// repeatedly; the fsnotify watcher invalidates memo entries when files change
// on disk and reports the change so callers can re-enqueue hot-reloaded assets.
type DirectoryBackend struct {
	base string

	memo *lru.Cache[string, []byte]

	mutex    sync.Mutex
	watcher  *fsnotify.Watcher
	onChange func(relPath string)
	done     chan struct{}
	isClosed bool
}

// NewDirectoryBackend creates a backend rooted at base. memoSize is the
// number of recently fetched payloads to keep (minimum 1).
func NewDirectoryBackend(base string, memoSize int) (*DirectoryBackend, error) {
	if memoSize < 1 {
		memoSize = 1
	}
	memo, err := lru.New[string, []byte](memoSize)
	if err != nil {
		return nil, err
	}
	return &DirectoryBackend{
		base: base,
		memo: memo,
		done: make(chan struct{}),
	}, nil
}

func (db *DirectoryBackend) Fetch(_ context.Context, locator string) ([]byte, error) {
	if data, ok := db.memo.Get(locator); ok {
		return data, nil
	}

	path := filepath.Join(db.base, filepath.FromSlash(locator))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", locator, core.ErrResourceNotFound)
		}
		return nil, fmt.Errorf("%s: %w: %v", locator, core.ErrRetrievalFailed, err)
	}

	db.memo.Add(locator, data)
	return data, nil
}

// Watch starts the recursive change watcher. onChange receives the locator
// (slash-separated, relative to base) of every created or modified file.
func (db *DirectoryBackend) Watch(onChange func(locator string)) error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.isClosed {
		return fmt.Errorf("directory backend already closed")
	}
	if db.watcher != nil {
		return fmt.Errorf("watcher already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	db.watcher = watcher
	db.onChange = onChange

	go db.watchLoop()

	return db.watchRecursive(db.base)
}

func (db *DirectoryBackend) watchLoop() {
	for {
		select {
		case e, ok := <-db.watcher.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s.IsDir() {
				if e.Op&fsnotify.Create != 0 {
					db.watchRecursive(e.Name)
				}
				continue
			}
			if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) != 0 {
				db.handleFileEvent(e.Name)
			}

		case err, ok := <-db.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err.Error())

		case <-db.done:
			db.watcher.Close()
			return
		}
	}
}

// watchRecursive adds all directories under the given one to the watch list.
func (db *DirectoryBackend) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return db.watcher.Add(walkPath)
		}
		return nil
	})
}

func (db *DirectoryBackend) handleFileEvent(path string) {
	rel, err := filepath.Rel(db.base, path)
	if err != nil {
		return
	}
	locator := filepath.ToSlash(rel)
	db.memo.Remove(locator)

	if db.onChange != nil {
		db.onChange(locator)
	}
}

// Close stops the watcher, if one was started.
func (db *DirectoryBackend) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	if db.isClosed {
		return nil
	}
	db.isClosed = true
	if db.watcher != nil {
		close(db.done)
	}
	return nil
}
