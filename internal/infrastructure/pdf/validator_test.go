package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ArxivHarvester/internal/domain"
)

type recorderSpy struct {
	mu      sync.Mutex
	records []domain.MetadataRecord
}

func (r *recorderSpy) Append(_ context.Context, record domain.MetadataRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildPDF assembles a minimal but structurally complete PDF with the given
// page count, computing xref offsets as it goes.
func buildPDF(pages int) []byte {
	var b bytes.Buffer
	var offsets []int
	writeObj := func(s string) {
		offsets = append(offsets, b.Len())
		b.WriteString(s)
	}

	b.WriteString("%PDF-1.4\n")
	writeObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", 3+i)
	}
	writeObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [ %s] /Count %d >>\nendobj\n", kids, pages))

	for i := 0; i < pages; i++ {
		writeObj(fmt.Sprintf(
			"%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>\nendobj\n",
			3+i))
	}

	xrefPos := b.Len()
	total := 3 + pages
	b.WriteString(fmt.Sprintf("xref\n0 %d\n", total))
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		b.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	b.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total, xrefPos))

	return b.Bytes()
}

func writeArtifact(t *testing.T, data []byte) *domain.DownloadedArtifact {
	t.Helper()

	path := filepath.Join(t.TempDir(), "2411.00148.pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	return &domain.DownloadedArtifact{
		ID:          "2411.00148",
		Kind:        domain.KindPDF,
		Path:        path,
		Size:        int64(len(data)),
		RetrievedAt: time.Now().UTC(),
	}
}

func TestValidatePDFValid(t *testing.T) {
	t.Parallel()

	artifact := writeArtifact(t, buildPDF(17))
	rec := &recorderSpy{}

	outcome, err := NewValidator(rec, testLogger()).ValidatePDF(context.Background(), artifact)
	if err != nil {
		t.Fatalf("ValidatePDF error: %v", err)
	}

	if outcome.Status != domain.StatusValid {
		t.Fatalf("expected valid, got %s", outcome.Status)
	}
	if outcome.PageCount != 17 {
		t.Fatalf("expected 17 pages, got %d", outcome.PageCount)
	}
	if _, err := os.Stat(artifact.Path); err != nil {
		t.Fatalf("valid pdf should remain on disk: %v", err)
	}

	if len(rec.records) != 1 {
		t.Fatalf("expected one metadata record, got %d", len(rec.records))
	}
	record := rec.records[0]
	if record.ValidationStatus != domain.StatusValid || record.PageCount == nil || *record.PageCount != 17 {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestValidatePDFWrongMagic(t *testing.T) {
	t.Parallel()

	artifact := writeArtifact(t, []byte("<html>not a pdf at all</html>"))
	rec := &recorderSpy{}

	outcome, err := NewValidator(rec, testLogger()).ValidatePDF(context.Background(), artifact)
	if err != nil {
		t.Fatalf("ValidatePDF error: %v", err)
	}

	if outcome.Status != domain.StatusCorrupt {
		t.Fatalf("expected corrupt, got %s", outcome.Status)
	}
	if _, statErr := os.Stat(artifact.Path); !os.IsNotExist(statErr) {
		t.Fatalf("corrupt pdf must be deleted, stat: %v", statErr)
	}
	if len(rec.records) != 1 || rec.records[0].ValidationStatus != domain.StatusCorrupt {
		t.Fatalf("expected one corrupt record, got %+v", rec.records)
	}
}

func TestValidatePDFTruncated(t *testing.T) {
	t.Parallel()

	// Keeps the magic bytes but loses the xref table and trailer.
	artifact := writeArtifact(t, buildPDF(3)[:40])

	outcome, err := NewValidator(&recorderSpy{}, testLogger()).ValidatePDF(context.Background(), artifact)
	if err != nil {
		t.Fatalf("ValidatePDF error: %v", err)
	}

	if outcome.Status != domain.StatusCorrupt {
		t.Fatalf("expected corrupt, got %s", outcome.Status)
	}
	if _, statErr := os.Stat(artifact.Path); !os.IsNotExist(statErr) {
		t.Fatalf("truncated pdf must be deleted, stat: %v", statErr)
	}
}

// A validator failure before any verdict still appends one row per call.
func TestValidatePDFUnreadable(t *testing.T) {
	t.Parallel()

	artifact := &domain.DownloadedArtifact{
		ID:          "2411.00148",
		Kind:        domain.KindPDF,
		Path:        t.TempDir(), // a directory cannot be read as a file
		RetrievedAt: time.Now().UTC(),
	}
	rec := &recorderSpy{}

	if _, err := NewValidator(rec, testLogger()).ValidatePDF(context.Background(), artifact); err == nil {
		t.Fatal("expected error for unreadable artifact")
	}

	if len(rec.records) != 1 || rec.records[0].ValidationStatus != domain.StatusSkipped {
		t.Fatalf("expected one skipped record, got %+v", rec.records)
	}
}

func TestValidatePDFEmptyFile(t *testing.T) {
	t.Parallel()

	artifact := writeArtifact(t, nil)

	outcome, err := NewValidator(&recorderSpy{}, testLogger()).ValidatePDF(context.Background(), artifact)
	if err != nil {
		t.Fatalf("ValidatePDF error: %v", err)
	}

	if outcome.Status != domain.StatusCorrupt {
		t.Fatalf("expected corrupt, got %s", outcome.Status)
	}
	if _, statErr := os.Stat(artifact.Path); !os.IsNotExist(statErr) {
		t.Fatalf("empty pdf must be deleted, stat: %v", statErr)
	}
}
