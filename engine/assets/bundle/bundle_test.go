package bundle_test

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lodestone-engine/lodestone/engine/assets/bundle"
)

var (
	testString1 = "idunvovkjnreovmegihjbrqlkmfrjnb"
	testString2 = "idunvovkjnreovmsdvwrvnervnreegihjbrqlkmfrjnb"
)

func buildTestBundle(t *testing.T, entries map[string][]byte) *bundle.Archive {
	t.Helper()
	builder := bundle.NewBuilder(bundle.Header{
		Author:      "test",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	for name, data := range entries {
		require.NoError(t, builder.Add(name, data))
	}
	var buf bytes.Buffer
	written, err := builder.WriteTo(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), written)

	ar, err := bundle.Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	return ar
}

func TestCreateAndRead(t *testing.T) {
	ar := buildTestBundle(t, map[string][]byte{
		"test":  []byte(testString1),
		"test2": []byte(testString2),
	})

	require.True(t, ar.Has("test"))
	require.True(t, ar.Has("test2"))
	assert.False(t, ar.Has("test3"))

	result, err := ar.ReadAll("test")
	require.NoError(t, err)
	assert.Equal(t, testString1, string(result))

	result, err = ar.ReadAll("test2")
	require.NoError(t, err)
	assert.Equal(t, testString2, string(result))
}

func TestMissingEntry(t *testing.T) {
	ar := buildTestBundle(t, map[string][]byte{"only": []byte("x")})

	_, err := ar.ReadAll("absent")
	assert.ErrorIs(t, err, bundle.ErrNoEntry)
}

func TestNotABundle(t *testing.T) {
	_, err := bundle.Open(bytes.NewReader([]byte("definitely not a bundle file")))
	assert.ErrorIs(t, err, bundle.ErrFileFormat)
}

func TestEmptyEntry(t *testing.T) {
	ar := buildTestBundle(t, map[string][]byte{"empty": {}})

	data, err := ar.ReadAll("empty")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestLargeEntryRoundTrip(t *testing.T) {
	// Compressible payload larger than one lz4 block.
	large := bytes.Repeat([]byte("lodestone"), 1<<16)
	ar := buildTestBundle(t, map[string][]byte{"large": large})

	data, err := ar.ReadAll("large")
	require.NoError(t, err)
	assert.True(t, bytes.Equal(large, data))
}

func TestConcurrentReads(t *testing.T) {
	entries := map[string][]byte{
		"a": bytes.Repeat([]byte("aaaa"), 4096),
		"b": bytes.Repeat([]byte("bbbb"), 4096),
		"c": bytes.Repeat([]byte("cccc"), 4096),
	}
	ar := buildTestBundle(t, entries)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		for name, want := range entries {
			wg.Add(1)
			go func(name string, want []byte) {
				defer wg.Done()
				got, err := ar.ReadAll(name)
				assert.NoError(t, err)
				assert.True(t, bytes.Equal(want, got))
			}(name, want)
		}
	}
	wg.Wait()
}

func TestHeaderIndexOrder(t *testing.T) {
	builder := bundle.NewBuilder(bundle.Header{Version: 3})
	require.NoError(t, builder.Add("first", []byte("1")))
	require.NoError(t, builder.Add("second", []byte("22")))

	var buf bytes.Buffer
	_, err := builder.WriteTo(&buf)
	require.NoError(t, err)

	ar, err := bundle.Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	header := ar.Header()
	assert.Equal(t, int64(3), header.Version)
	require.Len(t, header.Index, 2)
	assert.Equal(t, "first", header.Index[0].Name)
	assert.Equal(t, "second", header.Index[1].Name)
	assert.Equal(t, int64(1), header.Index[0].Size)
	assert.Equal(t, int64(2), header.Index[1].Size)
}
