// Package obfuscated - Streaming reader for single-byte XOR obfuscated model files.
//
// The XOR layer keeps model files from being trivially readable on disk. It is
// obfuscation, not encryption: a one-byte key offers no confidentiality.
package obfuscated

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNotOpen is returned by Read on a reader whose file failed to open or was closed.
var ErrNotOpen = errors.New("obfuscated reader is not open")

// Option configures a Reader at Open time.
type Option func(*Reader)

// WithPreload reads and de-obfuscates the whole file at Open so Scan can
// parse it. The file is rewound afterwards, so Read still starts at byte 0.
func WithPreload() Option {
	return func(r *Reader) {
		r.preload = true
	}
}

// WithLogger sets the logger used for open and read diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Reader de-obfuscates a file as it is read. A Reader is not safe for
// concurrent use.
type Reader struct {
	path    string
	file    *os.File
	key     byte
	preload bool
	logger  *zap.Logger

	// buf holds the de-obfuscated file in preload mode; off is the Scan cursor.
	buf []byte
	off int
}

// Open opens path for de-obfuscated reading with the given key. A key of 0
// reads the file as plaintext.
//
// Arguments:
//   - path: The obfuscated file.
//   - key: Single-byte XOR key.
//   - opts: WithPreload, WithLogger.
//
// Returns:
//   - *Reader: Always non-nil. On failure it is in a closed state where Read
//     returns ErrNotOpen and Scan returns 0, and Close is safe.
//   - error: The wrapped open or preload failure.
//
// @example
//
//	r, err := obfuscated.Open("model.param", 0x5a, obfuscated.WithPreload())
//	defer r.Close()
//	var magic int
//	if r.Scan("%d", &magic) != 1 { ... }
func Open(path string, key byte, opts ...Option) (*Reader, error) {
	r := &Reader{path: path, key: key, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}

	f, err := os.Open(path)
	if err != nil {
		r.key = 0
		r.logger.Warn("failed to open obfuscated file", zap.String("path", path), zap.Error(err))
		return r, errors.Wrapf(err, "open %s", path)
	}
	r.file = f

	if r.preload {
		if err := r.load(); err != nil {
			r.logger.Warn("failed to preload obfuscated file", zap.String("path", path), zap.Error(err))
			_ = r.Close()
			return r, err
		}
	}

	r.logger.Debug("opened obfuscated file",
		zap.String("path", path),
		zap.Bool("plaintext", key == 0),
		zap.Int("preloaded", len(r.buf)))

	return r, nil
}

func (r *Reader) load() error {
	data, err := io.ReadAll(r.file)
	if err != nil {
		return errors.Wrapf(err, "preload %s", r.path)
	}
	XOR(data, r.key)
	r.buf = data
	r.off = 0

	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return errors.Wrapf(err, "rewind %s", r.path)
	}
	return nil
}

// Valid reports whether the underlying file is open.
func (r *Reader) Valid() bool {
	return r != nil && r.file != nil
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// Read reads up to len(p) bytes from the file and de-obfuscates them in place.
// It follows the io.Reader contract: (0, io.EOF) at end of file and
// (0, ErrNotOpen) when the reader is not open.
func (r *Reader) Read(p []byte) (int, error) {
	if !r.Valid() {
		return 0, ErrNotOpen
	}

	n, err := r.file.Read(p)
	XOR(p[:n], r.key)

	if err != nil && err != io.EOF {
		r.logger.Warn("failed to read obfuscated file", zap.String("path", r.path), zap.Error(err))
		return n, errors.Wrapf(err, "read %s", r.path)
	}
	return n, err
}

// Scan parses values from the preloaded buffer starting at the scan cursor,
// using fmt scanning verbs. Like C's scanf, whitespace (including newlines)
// before the first verb is skipped, and trailing whitespace in format skips
// whitespace in the input. The cursor advances by the exact number of bytes
// consumed, and only when at least one value was parsed.
//
// Returns the number of values parsed, or 0 if the reader is not open, was
// not opened WithPreload, or nothing could be consumed.
func (r *Reader) Scan(format string, dst ...any) int {
	if !r.Valid() || r.buf == nil || len(dst) == 0 {
		return 0
	}

	trimmed := strings.TrimLeftFunc(format, unicode.IsSpace)
	verbs := strings.TrimRightFunc(trimmed, unicode.IsSpace)
	skipTrailing := len(verbs) < len(trimmed)

	start := r.skipSpace(r.off)
	if start >= len(r.buf) {
		return 0
	}

	src := bytes.NewReader(r.buf[start:])
	before := src.Len()
	n, err := fmt.Fscanf(src, verbs, dst...)
	consumed := before - src.Len()

	if n == 0 || consumed == 0 {
		if err != nil {
			r.logger.Debug("scan failed",
				zap.String("path", r.path),
				zap.String("format", format),
				zap.Int("offset", r.off),
				zap.Error(err))
		}
		return 0
	}

	r.off = start + consumed
	if skipTrailing {
		r.off = r.skipSpace(r.off)
	}
	return n
}

// Remaining returns the number of preloaded bytes not yet consumed by Scan.
func (r *Reader) Remaining() int {
	if r == nil {
		return 0
	}
	return len(r.buf) - r.off
}

func (r *Reader) skipSpace(off int) int {
	for off < len(r.buf) && isSpace(r.buf[off]) {
		off++
	}
	return off
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// Close releases the file, zeroes the key and wipes the preload buffer.
// It is safe to call more than once.
func (r *Reader) Close() error {
	if r == nil {
		return nil
	}

	var err error
	if r.file != nil {
		err = r.file.Close()
		r.file = nil
	}

	r.key = 0
	clear(r.buf)
	r.buf = nil
	r.off = 0

	if err != nil {
		return errors.Wrapf(err, "close %s", r.path)
	}
	return nil
}
