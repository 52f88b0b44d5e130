// Package blockfile is a thin random-access wrapper over a single file.
// It addresses bytes by absolute offset and leaves durability to the caller,
// which decides when to Sync.
package blockfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"syscall"
)

var (
	ErrIO            = errors.New("i/o error")
	ErrShortRead     = errors.New("short read")
	ErrFileExists    = errors.New("file already exists")
	ErrFileNotFound  = errors.New("file not found")
	ErrNotAccessible = errors.New("file is not accessible for read and write")
	ErrNotRegular    = errors.New("not a regular file")
	ErrClosed        = errors.New("file already closed")
)

// File is an open block file. ReadAt and WriteAt may be called concurrently
// on disjoint ranges.
type File struct {
	path string
	file *os.File
}

// Create creates path exclusively for reading and writing. It fails with
// ErrFileExists if anything already exists at path.
func Create(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, classifyOpenErr(path, err)
	}
	return wrap(path, f)
}

// Open opens an existing file for reading and writing.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, classifyOpenErr(path, err)
	}
	return wrap(path, f)
}

// OpenReadOnly opens an existing file for inspection. Writes fail.
func OpenReadOnly(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, classifyOpenErr(path, err)
	}
	return wrap(path, f)
}

func wrap(path string, f *os.File) (*File, error) {
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIO, path, err)
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	return &File{path: path, file: f}, nil
}

func classifyOpenErr(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %s", ErrFileExists, path)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	case errors.Is(err, syscall.EISDIR):
		return fmt.Errorf("%w: %s", ErrNotRegular, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s: %v", ErrNotAccessible, path, err)
	default:
		return fmt.Errorf("%w: opening %s: %v", ErrIO, path, err)
	}
}

// Path returns the file name the File was opened with.
func (f *File) Path() string {
	return f.path
}

// ReadAt reads exactly n bytes starting at off.
func (f *File) ReadAt(off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := f.file.ReadAt(buf, off)
	if read == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: want %d bytes at offset %d, got %d", ErrShortRead, f.path, n, off, read)
	}
	return nil, fmt.Errorf("%w: reading %s at offset %d: %v", ErrIO, f.path, off, err)
}

// WriteAt writes all of data starting at off. The write is not durable until Sync.
func (f *File) WriteAt(off int64, data []byte) error {
	if _, err := f.file.WriteAt(data, off); err != nil {
		return fmt.Errorf("%w: writing %s at offset %d: %v", ErrIO, f.path, off, err)
	}
	return nil
}

// Sync flushes written data to stable storage.
func (f *File) Sync() error {
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("%w: syncing %s: %v", ErrIO, f.path, err)
	}
	return nil
}

// Size returns the current file length.
func (f *File) Size() (int64, error) {
	fi, err := f.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat %s: %v", ErrIO, f.path, err)
	}
	return fi.Size(), nil
}

// Truncate changes the file length.
func (f *File) Truncate(size int64) error {
	if err := f.file.Truncate(size); err != nil {
		return fmt.Errorf("%w: truncating %s to %d: %v", ErrIO, f.path, size, err)
	}
	return nil
}

// Close releases the file handle. Closing twice returns ErrClosed.
func (f *File) Close() error {
	if err := f.file.Close(); err != nil {
		if errors.Is(err, os.ErrClosed) {
			return fmt.Errorf("%w: %s", ErrClosed, f.path)
		}
		return fmt.Errorf("%w: closing %s: %v", ErrIO, f.path, err)
	}
	return nil
}
