package ports

import (
	"context"

	"ArxivHarvester/internal/domain"
)

// ArtifactFetcher retrieves raw artifacts from arXiv into local storage.
type ArtifactFetcher interface {
	FetchSource(ctx context.Context, id, dir string) (*domain.DownloadedArtifact, error)
	FetchPDF(ctx context.Context, id, dir string) (*domain.DownloadedArtifact, error)
}

// PDFValidator runs format-level integrity checks on a downloaded PDF. A
// corrupt outcome means the file has been deleted.
type PDFValidator interface {
	ValidatePDF(ctx context.Context, artifact *domain.DownloadedArtifact) (domain.ValidationOutcome, error)
}

// SourceExtractor unpacks a source archive and classifies its contents.
type SourceExtractor interface {
	Extract(ctx context.Context, archivePath, outputDir string) (*domain.SourceManifest, error)
}

// MetadataRecorder appends one row per acquisition event to the shared log.
type MetadataRecorder interface {
	Append(ctx context.Context, record domain.MetadataRecord) error
}

// PaperRepository persists acquisition history for deduplication and audit.
type PaperRepository interface {
	AlreadyAcquired(ctx context.Context, id string) (bool, error)
	SaveAcquired(ctx context.Context, paper domain.AcquiredPaper) error
}

// TextExtractor is the downstream stage consuming a manifest's main document
// and auxiliary files. Interface boundary only; implemented elsewhere.
type TextExtractor interface {
	ExtractText(ctx context.Context, manifest *domain.SourceManifest) (string, error)
}

// CorpusIngestor is the downstream ingestion stage. Interface boundary only.
type CorpusIngestor interface {
	Ingest(ctx context.Context, id, text string) error
}
