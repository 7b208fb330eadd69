package obfuscated

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// writeObfuscated stores plain XOR-ed with key in a temp file and returns its path.
func writeObfuscated(t *testing.T, plain []byte, key byte) string {
	t.Helper()

	data := bytes.Clone(plain)
	XOR(data, key)

	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestReadRoundTrip(t *testing.T) {
	plain := make([]byte, 100_000)
	for i := range plain {
		plain[i] = byte(i * 31)
	}

	for _, key := range []byte{0, 1, 0x5a, 0xff} {
		path := writeObfuscated(t, plain, key)

		r, err := Open(path, key)
		require.NoError(t, err)

		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, plain, got, "key %#x", key)
		require.NoError(t, r.Close())
	}
}

func TestReadWithWrongKeyChangesEveryByte(t *testing.T) {
	plain := []byte("7767517\nimages 640 chw\n")
	path := writeObfuscated(t, plain, 0x21)

	r, err := Open(path, 0x22)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Len(t, got, len(plain))
	for i := range plain {
		assert.NotEqual(t, plain[i], got[i], "byte %d", i)
	}
}

func TestReadAtEOF(t *testing.T) {
	path := writeObfuscated(t, []byte("abc"), 7)

	r, err := Open(path, 7)
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 8)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))

	n, err = r.Read(buf)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func TestOpenMissingFile(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r, err := Open(filepath.Join(t.TempDir(), "missing.param"), 9, WithPreload(), WithLogger(zap.New(core)))
	require.Error(t, err)
	require.NotNil(t, r, "a failed Open must still return a usable reader")

	assert.False(t, r.Valid())

	n, err := r.Read(make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, ErrNotOpen)

	var v int
	assert.Equal(t, 0, r.Scan("%d", &v))
	assert.NoError(t, r.Close())

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].ContextMap(), "path")
}

func TestPreloadLeavesReadAtStart(t *testing.T) {
	plain := []byte("7767517\nrest")
	path := writeObfuscated(t, plain, 0x33)

	r, err := Open(path, 0x33, WithPreload())
	require.NoError(t, err)
	defer r.Close()

	var magic int
	require.Equal(t, 1, r.Scan("%d", &magic))
	assert.Equal(t, 7767517, magic)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestScanHeader(t *testing.T) {
	header := "7767517\n  images 640\tchw\n3\n\noutput0 8\noutput1 16\r\noutput2 32\n"
	path := writeObfuscated(t, []byte(header), 0x77)

	r, err := Open(path, 0x77, WithPreload())
	require.NoError(t, err)
	defer r.Close()

	var (
		magic, size, count int
		name, layout       string
	)
	require.Equal(t, 1, r.Scan("%d", &magic))
	require.Equal(t, 1, r.Scan("%s", &name))
	require.Equal(t, 1, r.Scan(" %d", &size))
	require.Equal(t, 1, r.Scan("%s", &layout))
	require.Equal(t, 1, r.Scan("%d", &count))

	assert.Equal(t, 7767517, magic)
	assert.Equal(t, "images", name)
	assert.Equal(t, 640, size)
	assert.Equal(t, "chw", layout)
	assert.Equal(t, 3, count)

	for _, want := range []struct {
		name   string
		stride int
	}{{"output0", 8}, {"output1", 16}, {"output2", 32}} {
		var (
			out    string
			stride int
		)
		require.Equal(t, 2, r.Scan("%s %d", &out, &stride))
		assert.Equal(t, want.name, out)
		assert.Equal(t, want.stride, stride)
	}

	var extra int
	assert.Equal(t, 0, r.Scan("%d", &extra), "buffer is exhausted")
}

func TestScanDoesNotAdvanceOnFailure(t *testing.T) {
	path := writeObfuscated(t, []byte("abc 42"), 1)

	r, err := Open(path, 1, WithPreload())
	require.NoError(t, err)
	defer r.Close()

	before := r.Remaining()

	var v int
	assert.Equal(t, 0, r.Scan("%d", &v))
	assert.Equal(t, before, r.Remaining())

	var s string
	assert.Equal(t, 1, r.Scan("%s ", &s))
	assert.Equal(t, "abc", s)
	assert.Equal(t, 2, r.Remaining(), "trailing space in the format skips input whitespace")

	assert.Equal(t, 1, r.Scan("%d", &v))
	assert.Equal(t, 42, v)
	assert.Equal(t, 0, r.Remaining())
}

func TestScanWithoutPreload(t *testing.T) {
	path := writeObfuscated(t, []byte("123"), 0)

	r, err := Open(path, 0)
	require.NoError(t, err)
	defer r.Close()

	var v int
	assert.Equal(t, 0, r.Scan("%d", &v))
	assert.Equal(t, 0, v)
}

func TestCloseIsIdempotentAndWipes(t *testing.T) {
	path := writeObfuscated(t, []byte("secret weights"), 0x42)

	r, err := Open(path, 0x42, WithPreload())
	require.NoError(t, err)

	buf := r.buf
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	assert.False(t, r.Valid())
	assert.Equal(t, byte(0), r.key)
	assert.Nil(t, r.buf)
	assert.Equal(t, make([]byte, len(buf)), buf, "preload buffer must be zeroed")

	_, err = r.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrNotOpen)
}
