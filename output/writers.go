// Package output exports entity lists as CSV or newline-delimited JSON.
package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Supported export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// Record is an entity that can be flattened into a CSV row.
type Record interface {
	CSVHeader() []string
	CSVRecord() []string
}

// Writer exports batches of records.
type Writer[T Record] interface {
	Write(items []T) error
	Close() error
}

// New returns a writer for format on top of dst. Closing the writer closes
// dst.
func New[T Record](format string, dst io.WriteCloser) (Writer[T], error) {
	switch format {
	case FormatCSV:
		return NewCSVWriter[T](dst), nil
	case FormatJSON:
		return NewJSONWriter[T](dst), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
}

// Open returns the destination for filename, creating parent directories.
// An empty name or "-" selects fallback, which is never closed.
func Open(filename string, fallback io.Writer) (io.WriteCloser, error) {
	if filename == "" || filename == "-" {
		return nopCloser{fallback}, nil
	}
	if err := ensureDir(filename); err != nil {
		return nil, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// CSVWriter writes records as CSV. The header row is written before the
// first batch, so an export of zero records still has a header once closed.
type CSVWriter[T Record] struct {
	dst    io.WriteCloser
	writer *csv.Writer
	header bool
	mu     sync.Mutex
}

func NewCSVWriter[T Record](dst io.WriteCloser) *CSVWriter[T] {
	return &CSVWriter[T]{dst: dst, writer: csv.NewWriter(dst)}
}

func (cw *CSVWriter[T]) writeHeaderLocked() error {
	if cw.header {
		return nil
	}
	var zero T
	if err := cw.writer.Write(zero.CSVHeader()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	cw.header = true
	return nil
}

// Write appends items to the CSV output.
func (cw *CSVWriter[T]) Write(items []T) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.writeHeaderLocked(); err != nil {
		return err
	}
	for _, item := range items {
		if err := cw.writer.Write(item.CSVRecord()); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv records: %w", err)
	}
	return nil
}

// Close flushes and closes the destination.
func (cw *CSVWriter[T]) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if err := cw.writeHeaderLocked(); err != nil {
		cw.dst.Close()
		return err
	}
	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		cw.dst.Close()
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.dst.Close()
}

// JSONWriter writes one JSON object per line.
type JSONWriter[T Record] struct {
	dst     io.WriteCloser
	writer  *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

func NewJSONWriter[T Record](dst io.WriteCloser) *JSONWriter[T] {
	buffer := bufio.NewWriter(dst)
	return &JSONWriter[T]{
		dst:     dst,
		writer:  buffer,
		encoder: json.NewEncoder(buffer),
	}
}

// Write appends items in JSONL format.
func (jw *JSONWriter[T]) Write(items []T) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, item := range items {
		if err := jw.encoder.Encode(item); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := jw.writer.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the destination.
func (jw *JSONWriter[T]) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.writer.Flush(); err != nil {
		jw.dst.Close()
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.dst.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
