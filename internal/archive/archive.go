package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/yegors/approach-monitor/internal/inference"
	"github.com/yegors/approach-monitor/pkg/logger"
)

// Extension of archived cycles
const Extension = ".msgpack.zst"

// Writer stores every cycle report as a zstd compressed msgpack file.
type Writer struct {
	dir    string
	logger *logger.Logger
}

// NewWriter creates the archive directory if needed.
func NewWriter(dir string, log *logger.Logger) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Writer{dir: dir, logger: log.Named("archive")}, nil
}

// FileName returns the archive name of a cycle, e.g. cycle-20250310T140000Z.msgpack.zst
func FileName(cycleAt time.Time) string {
	return "cycle-" + cycleAt.UTC().Format("20060102T150405Z") + Extension
}

// Write archives the report and returns the file path. The file appears
// atomically so readers never see a partial cycle.
func (w *Writer) Write(report *inference.Report) (string, error) {
	path := filepath.Join(w.dir, FileName(report.CycleAt))

	tmp, err := os.CreateTemp(w.dir, ".cycle-*")
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, report); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move archive into place: %w", err)
	}

	w.logger.Debug("Archived cycle", logger.String("path", path))
	return path, nil
}

// Encode writes the report in the archive format (msgpack + zstd).
func Encode(out io.Writer, report *inference.Report) error {
	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer zw.Close()

	enc := msgpack.NewEncoder(zw)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to close zstd writer: %w", err)
	}
	return nil
}

// Decode reads a report written by Encode.
func Decode(r io.Reader) (*inference.Report, error) {
	zr, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(0))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	dec := msgpack.NewDecoder(zr)
	dec.SetCustomStructTag("json")

	var report inference.Report
	if err := dec.Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}

// Load reads one archived cycle from disk.
func Load(path string) (*inference.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}
