package metadata

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"ArxivHarvester/internal/domain"
	"ArxivHarvester/internal/ports"
)

// FileName is the fixed name of the acquisition log inside the output dir.
const FileName = "download_metadata.csv"

var header = []string{
	"timestamp",
	"arxiv_id",
	"artifact_type",
	"file_size_bytes",
	"page_count",
	"validation_status",
}

// CSVRecorder appends acquisition events to a shared CSV file. The store is
// the only state shared across concurrent acquisitions; an advisory file
// lock scoped to the single append keeps rows whole and nothing lost.
type CSVRecorder struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

var _ ports.MetadataRecorder = (*CSVRecorder)(nil)

// NewCSVRecorder places the log in dir, creating it on first append.
func NewCSVRecorder(dir string, logger *slog.Logger) *CSVRecorder {
	path := filepath.Join(dir, FileName)
	return &CSVRecorder{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger,
	}
}

// Path reports the backing file location.
func (r *CSVRecorder) Path() string {
	return r.path
}

// Append writes one complete row under the file lock. The lock is released
// on every exit path and never held beyond this call.
func (r *CSVRecorder) Append(ctx context.Context, record domain.MetadataRecord) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}

	locked, err := r.lock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquire metadata lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("acquire metadata lock: not granted")
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			r.logger.Error("release metadata lock failed", "error", err)
		}
	}()

	f, err := os.OpenFile(r.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o640)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat metadata store: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			_ = f.Close()
			return fmt.Errorf("write metadata header: %w", err)
		}
	}

	if err := w.Write(row(record)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write metadata row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush metadata row: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close metadata store: %w", err)
	}

	return nil
}

func row(record domain.MetadataRecord) []string {
	pages := ""
	if record.PageCount != nil {
		pages = strconv.Itoa(*record.PageCount)
	}

	return []string{
		record.Timestamp.UTC().Format(time.RFC3339),
		record.ArxivID,
		string(record.ArtifactType),
		strconv.FormatInt(record.FileSizeBytes, 10),
		pages,
		string(record.ValidationStatus),
	}
}
