package fileutil

import (
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrUnsupportedMime signals a log file whose content is neither plain
// text nor a supported compressed format. Such a file is invalidated by
// the caller instead of retried.
var ErrUnsupportedMime = errors.New("unsupported log file mime type")

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	bzip2Magic = []byte("BZh")
)

// OpenLogFile opens a raw access log, transparently decompressing gzip
// and bzip2 content. The format is sniffed from the file's leading bytes,
// never from its extension.
func OpenLogFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	head := make([]byte, 3)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		f.Close()
		return nil, err
	}
	head = head[:n]

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	switch {
	case bytes.HasPrefix(head, gzipMagic):
		gr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip log: %w", err)
		}
		return &multiCloser{Reader: gr, closers: []io.Closer{gr, f}}, nil
	case bytes.HasPrefix(head, bzip2Magic):
		return &multiCloser{Reader: bzip2.NewReader(f), closers: []io.Closer{f}}, nil
	case isText(head):
		return f, nil
	default:
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMime, path)
	}
}

// isText accepts anything that does not start with a control byte.
// Empty files count as text.
func isText(head []byte) bool {
	if len(head) == 0 {
		return true
	}
	b := head[0]
	return b == '\t' || b == '\n' || b == '\r' || b >= 0x20
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var err error
	for _, c := range m.closers {
		if e := c.Close(); err == nil && e != nil {
			err = e
		}
	}
	return err
}

// EnsureDir creates dir (and parents) if it does not exist yet
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// PretablePath builds the canonical pretable file path for a calendar
// day, optionally carrying a posfix marker (e.g. "unsorted").
func PretablePath(dir, day, posfix, extension string) string {
	if posfix != "" {
		return filepath.Join(dir, fmt.Sprintf("%s.%s.%s", day, posfix, extension))
	}
	return filepath.Join(dir, fmt.Sprintf("%s.%s", day, extension))
}

// ExtractGzip decompresses a .gz file to pathOutput
func ExtractGzip(path, pathOutput string) error {
	fin, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fin.Close()

	gr, err := gzip.NewReader(fin)
	if err != nil {
		return fmt.Errorf("failed to read gzip: %w", err)
	}
	defer gr.Close()

	fout, err := os.Create(pathOutput)
	if err != nil {
		return err
	}

	if _, err := io.Copy(fout, gr); err != nil {
		fout.Close()
		return fmt.Errorf("failed to extract %s: %w", path, err)
	}

	return fout.Close()
}
