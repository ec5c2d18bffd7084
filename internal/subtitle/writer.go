package subtitle

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Writer serializes a segment sequence to a subtitle file.
type Writer interface {
	// Write renders segments and stores them at outputPath. The destination
	// either holds the complete document afterwards or is left untouched.
	Write(segments []Segment, outputPath string) error
}

// Render produces the subtitle document: for every segment a 1-based index
// line, a "start --> end" line, the cleaned text and a blank separator line.
func Render(segments []Segment) ([]byte, error) {
	var buf bytes.Buffer
	for i, seg := range segments {
		start, err := FormatTimestamp(seg.Start)
		if err != nil {
			return nil, fmt.Errorf("segment %d start: %w", i+1, err)
		}
		end, err := FormatTimestamp(seg.End)
		if err != nil {
			return nil, fmt.Errorf("segment %d end: %w", i+1, err)
		}

		buf.WriteString(strconv.Itoa(i + 1))
		buf.WriteByte('\n')
		buf.WriteString(start)
		buf.WriteString(" --> ")
		buf.WriteString(end)
		buf.WriteByte('\n')
		buf.WriteString(CleanText(seg.Text))
		buf.WriteString("\n\n")
	}
	return buf.Bytes(), nil
}

// FileWriter implements Writer by writing to a hidden temporary file next to
// the destination and renaming it into place.
type FileWriter struct {
	createTemp func(dir, pattern string) (*os.File, error)
	rename     func(oldpath, newpath string) error
	remove     func(name string) error
	perm       os.FileMode
}

// NewFileWriter creates a FileWriter backed by the real filesystem.
func NewFileWriter() *FileWriter {
	return &FileWriter{
		createTemp: os.CreateTemp,
		rename:     os.Rename,
		remove:     os.Remove,
		perm:       0o644,
	}
}

// Write implements Writer.Write.
func (w *FileWriter) Write(segments []Segment, outputPath string) error {
	data, err := Render(segments)
	if err != nil {
		return err
	}

	dir := filepath.Dir(outputPath)
	tmp, err := w.createTemp(dir, "."+filepath.Base(outputPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file in %s: %w", ErrWriteFailed, dir, err)
	}
	tmpPath := tmp.Name()

	if err := writeAndClose(tmp, data); err != nil {
		_ = w.remove(tmpPath)
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, outputPath, err)
	}

	if err := os.Chmod(tmpPath, w.perm); err != nil {
		_ = w.remove(tmpPath)
		return fmt.Errorf("%w: chmod %s: %w", ErrWriteFailed, tmpPath, err)
	}

	if err := w.rename(tmpPath, outputPath); err != nil {
		_ = w.remove(tmpPath)
		return fmt.Errorf("%w: rename into %s: %w", ErrWriteFailed, outputPath, err)
	}

	return nil
}

// writeAndClose writes data, flushes it to stable storage and closes f.
func writeAndClose(f *os.File, data []byte) error {
	if _, err := io.Copy(f, bytes.NewReader(data)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Compile-time check that FileWriter implements Writer.
var _ Writer = (*FileWriter)(nil)
