package obfuscated

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

const chunkSize = 32 << 10

// XOR applies key to every byte of p in place. XOR is its own inverse, so the
// same call obfuscates and restores. A zero key leaves p unchanged.
func XOR(p []byte, key byte) {
	if key == 0 {
		return
	}
	for i := range p {
		p[i] ^= key
	}
}

// Encode copies src to dst, XOR-ing every byte with key.
//
// Returns the number of bytes written.
func Encode(dst io.Writer, src io.Reader, key byte) (int64, error) {
	buf := make([]byte, chunkSize)

	var written int64
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			XOR(buf[:n], key)
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, errors.Wrap(werr, "write obfuscated data")
			}
			if w != n {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, errors.Wrap(rerr, "read source data")
		}
	}
}

// EncodeFile writes srcPath XOR-ed with key to dstPath, creating or
// truncating dstPath. Running it again with the same key restores the
// original.
func EncodeFile(srcPath, dstPath string, key byte) (int64, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", srcPath)
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, errors.Wrapf(err, "create %s", dstPath)
	}

	n, err := Encode(dst, src, key)
	if cerr := dst.Close(); err == nil && cerr != nil {
		err = errors.Wrapf(cerr, "close %s", dstPath)
	}
	return n, err
}
