package fcs

import (
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// File is an FCS file read into memory.
// The file handle is closed by Open; File only keeps the bytes.
type File struct {
	path string
	buf  []byte
	opts options
}

// Open reads the FCS file at path into memory.
func Open(path string, opts ...Option) (*File, error) {
	o := buildOptions(opts)
	buf, err := readFile(path, o.maxFileSize)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("Read FCS file",
		zap.String("service", "fcs"),
		zap.String("path", path),
		zap.String("size", humanize.IBytes(uint64(len(buf)))))
	return &File{path: path, buf: buf, opts: o}, nil
}

func readFile(path string, limit int64) (buf []byte, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierr.Append(err, &IOError{Path: path, Err: cerr})
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	if fi.Size() > limit {
		return nil, errors.Wrapf(ErrTooLarge, "%s is %s, limit is %s",
			path, humanize.IBytes(uint64(fi.Size())), humanize.IBytes(uint64(limit)))
	}

	buf = make([]byte, fi.Size())
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, &IOError{Path: path, Err: err}
	}
	return buf, nil
}

// Path returns the path the file was opened from.
func (f *File) Path() string {
	return f.path
}

// Read decodes the file. Every call returns a new, independent FlowSample.
func (f *File) Read() (*FlowSample, error) {
	return newBytesDecoder(f.buf, f.opts).Decode()
}

// ReadMetadata decodes only the HEADER and TEXT segments.
func (f *File) ReadMetadata() (*Metadata, error) {
	return newBytesDecoder(f.buf, f.opts).DecodeMetadata()
}
