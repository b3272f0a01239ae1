package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
)

// ProgressFunc receives cumulative rows and bytes written after each chunk.
type ProgressFunc func(rowsWritten, bytesWritten int64)

// FileWriter persists rows or structured payloads to disk. Writes are not
// transactional: on failure the destination file is left as-is and the
// caller must treat its state as unknown.
type FileWriter struct{}

func NewFileWriter() *FileWriter {
	return &FileWriter{}
}

// WriteCSV writes a header followed by rows in batches of chunkSize,
// invoking onProgress after each batch. The file is flushed before return.
func (w *FileWriter) WriteCSV(path string, fields []string, rows []map[string]string, chunkSize int, onProgress ProgressFunc) error {
	if chunkSize < 1 {
		chunkSize = 1
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	counter := &countingWriter{w: file}
	cw := csv.NewWriter(counter)

	if err := cw.Write(fields); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	written := int64(0)
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		for _, row := range rows[start:end] {
			line := make([]string, len(fields))
			for i, field := range fields {
				line[i] = row[field]
			}
			if err := cw.Write(line); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("failed to flush chunk: %w", err)
		}
		written += int64(end - start)
		if onProgress != nil {
			onProgress(written, counter.n)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes a single structured document.
func (w *FileWriter) WriteJSON(path string, payload any) error {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := os.WriteFile(path, append(encoded, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

type countingWriter struct {
	w interface{ Write([]byte) (int, error) }
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
