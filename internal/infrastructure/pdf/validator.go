package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"ArxivHarvester/internal/domain"
	"ArxivHarvester/internal/ports"
)

var pdfMagic = []byte("%PDF-")

// Validator checks downloaded PDFs in two stages: a magic-byte header check
// that catches wrong content types without reading the file, then a
// structural parse that counts pages and catches truncation and malformed
// internals. A file that fails either stage is deleted before returning.
type Validator struct {
	recorder ports.MetadataRecorder
	logger   *slog.Logger
}

var _ ports.PDFValidator = (*Validator)(nil)

// NewValidator wires the shared metadata recorder.
func NewValidator(recorder ports.MetadataRecorder, logger *slog.Logger) *Validator {
	return &Validator{recorder: recorder, logger: logger}
}

// ValidatePDF returns a valid outcome with the page count, or a corrupt
// outcome after deleting the file. The corrupt outcome is a result, not an
// error; errors are reserved for failures of the validator itself.
func (v *Validator) ValidatePDF(ctx context.Context, artifact *domain.DownloadedArtifact) (domain.ValidationOutcome, error) {
	header, err := readHeader(artifact.Path, len(pdfMagic))
	if err != nil {
		// A file the validator cannot even read still consumed a call; the
		// log gets a row before the error surfaces.
		if recErr := v.record(ctx, artifact, domain.StatusSkipped, nil); recErr != nil {
			return domain.ValidationOutcome{}, recErr
		}
		return domain.ValidationOutcome{}, fmt.Errorf("read pdf header: %w", err)
	}

	if !bytes.Equal(header, pdfMagic) {
		v.logger.Warn("pdf header mismatch", "arxiv_id", artifact.ID, "path", artifact.Path)
		return v.corrupt(ctx, artifact)
	}

	pageCount, err := api.PageCountFile(artifact.Path)
	if err != nil {
		v.logger.Warn("pdf structure unreadable", "arxiv_id", artifact.ID, "error", err)
		return v.corrupt(ctx, artifact)
	}

	outcome := domain.ValidationOutcome{Status: domain.StatusValid, PageCount: pageCount}
	if err := v.record(ctx, artifact, outcome.Status, &pageCount); err != nil {
		return domain.ValidationOutcome{}, err
	}

	v.logger.Info("pdf validated", "arxiv_id", artifact.ID, "pages", pageCount)
	return outcome, nil
}

// corrupt records the verdict and deletes the artifact. The row is written
// first so the log holds the verdict even when the delete fails; the system
// never retains a file it knows to be invalid.
func (v *Validator) corrupt(ctx context.Context, artifact *domain.DownloadedArtifact) (domain.ValidationOutcome, error) {
	if err := v.record(ctx, artifact, domain.StatusCorrupt, nil); err != nil {
		return domain.ValidationOutcome{}, err
	}

	if err := os.Remove(artifact.Path); err != nil && !os.IsNotExist(err) {
		return domain.ValidationOutcome{}, fmt.Errorf("remove corrupt pdf: %w", err)
	}

	return domain.ValidationOutcome{Status: domain.StatusCorrupt}, nil
}

func (v *Validator) record(ctx context.Context, artifact *domain.DownloadedArtifact, status domain.ValidationStatus, pages *int) error {
	if v.recorder == nil {
		return nil
	}

	err := v.recorder.Append(ctx, domain.MetadataRecord{
		Timestamp:        time.Now().UTC(),
		ArxivID:          artifact.ID,
		ArtifactType:     artifact.Kind,
		FileSizeBytes:    artifact.Size,
		PageCount:        pages,
		ValidationStatus: status,
	})
	if err != nil {
		return fmt.Errorf("record validation metadata: %w", err)
	}
	return nil
}

func readHeader(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, n)
	if _, err := io.ReadFull(f, header); err != nil {
		// A file shorter than the magic sequence cannot be a PDF.
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	return header, nil
}
