package download

import (
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/zifproj/zif"
)

// DecompressFor decompresses the file at path into a sibling file with its
// compression suffix stripped, dispatching on path's extension, and returns
// the decompressed path. Supported suffixes: .gz, .xz, .zst, .bz2. An
// unrecognized suffix is returned unchanged (the file is assumed to already
// be uncompressed).
func DecompressFor(path string) (string, error) {
	ext := filepath.Ext(path)
	out := strings.TrimSuffix(path, ext)

	var newReader func(io.Reader) (io.Reader, error)
	switch ext {
	case ".gz":
		newReader = func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }
	case ".xz":
		newReader = func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) }
	case ".zst":
		newReader = func(r io.Reader) (io.Reader, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		}
	case ".bz2":
		newReader = func(r io.Reader) (io.Reader, error) { return bzip2.NewReader(r), nil }
	default:
		return path, nil
	}

	in, err := os.Open(path)
	if err != nil {
		return "", &zif.Error{Op: "download.DecompressFor", Kind: zif.ErrInternal, Inner: err}
	}
	defer in.Close()
	dr, err := newReader(in)
	if err != nil {
		return "", &zif.Error{Op: "download.DecompressFor", Kind: zif.ErrMalformed, Inner: err}
	}
	if c, ok := dr.(io.Closer); ok {
		defer c.Close()
	}

	tmp := out + ".part"
	of, err := os.Create(tmp)
	if err != nil {
		return "", &zif.Error{Op: "download.DecompressFor", Kind: zif.ErrInternal, Inner: err}
	}
	if _, err := io.Copy(of, dr); err != nil {
		of.Close()
		os.Remove(tmp)
		return "", &zif.Error{Op: "download.DecompressFor", Kind: zif.ErrMalformed, Inner: err}
	}
	if err := of.Close(); err != nil {
		os.Remove(tmp)
		return "", &zif.Error{Op: "download.DecompressFor", Kind: zif.ErrInternal, Inner: err}
	}
	if err := os.Rename(tmp, out); err != nil {
		return "", &zif.Error{Op: "download.DecompressFor", Kind: zif.ErrInternal, Inner: err}
	}
	return out, nil
}
