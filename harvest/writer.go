package harvest

import (
	"bufio"
	"os"

	"github.com/dainst/marc-authority-harvester/errors"
	"github.com/dainst/marc-authority-harvester/marc"
)

// Format selects the serialization of output files.
type Format string

const (
	FormatMARC    Format = "marc"
	FormatMARCXML Format = "marcxml"
)

// Suffix returns the file suffix for the format, or an error for formats the
// harvester does not produce.
func (f Format) Suffix() (string, error) {
	switch f {
	case FormatMARC:
		return ".mrc", nil
	case FormatMARCXML:
		return ".marcxml", nil
	default:
		return "", errors.Newf("unknown output format: %s", f)
	}
}

// Writer appends encoded authority records to one output file. Binary MARC
// records are simply concatenated; MARCXML records are wrapped in a single
// collection element whose closing tag is written on Close.
type Writer struct {
	file   *os.File
	buf    *bufio.Writer
	format Format
	count  int
}

// NewWriter creates the output file, truncating an existing one. For MARCXML
// the collection opening is written immediately.
func NewWriter(path string, format Format) (*Writer, error) {
	if _, err := format.Suffix(); err != nil {
		return nil, err
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create output file %s", path)
	}

	w := &Writer{file: file, buf: bufio.NewWriter(file), format: format}
	if format == FormatMARCXML {
		if _, err := w.buf.Write(marc.CollectionOpen); err != nil {
			file.Close()
			return nil, errors.Wrapf(err, "failed to start collection in %s", path)
		}
	}
	return w, nil
}

// Write appends one record in the writer's format.
func (w *Writer) Write(record *marc.Record) error {
	var encoded []byte
	var err error

	switch w.format {
	case FormatMARC:
		encoded, err = marc.Encode(record)
	case FormatMARCXML:
		encoded, err = marc.EncodeXML(record)
	default:
		_, err = w.format.Suffix()
		return err
	}
	if err != nil {
		return err
	}

	if _, err := w.buf.Write(encoded); err != nil {
		return errors.Wrapf(err, "failed to write record to %s", w.file.Name())
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	return w.count
}

// Close finishes the collection wrapper if needed and closes the file.
func (w *Writer) Close() error {
	var closeErr error
	if w.format == FormatMARCXML {
		if _, err := w.buf.Write(marc.CollectionClose); err != nil {
			closeErr = errors.Wrapf(err, "failed to close collection in %s", w.file.Name())
		}
	}
	if err := w.buf.Flush(); err != nil && closeErr == nil {
		closeErr = errors.Wrapf(err, "failed to flush %s", w.file.Name())
	}
	if err := w.file.Close(); err != nil && closeErr == nil {
		closeErr = errors.Wrapf(err, "failed to close %s", w.file.Name())
	}
	return closeErr
}
