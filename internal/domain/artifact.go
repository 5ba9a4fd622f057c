package domain

import "time"

// ArtifactKind distinguishes the two artifact flavors arXiv offers per paper.
type ArtifactKind string

const (
	KindSource ArtifactKind = "source"
	KindPDF    ArtifactKind = "pdf"
)

// ValidationStatus is the outcome tag recorded for every acquisition step.
type ValidationStatus string

const (
	StatusValid   ValidationStatus = "valid"
	StatusCorrupt ValidationStatus = "corrupt"
	StatusSkipped ValidationStatus = "skipped"
)

// ArtifactRequest describes a single acquisition call. Created per call,
// never persisted.
type ArtifactRequest struct {
	ID   string
	Kind ArtifactKind
	Dir  string
}

// DownloadedArtifact is the owning handle to a fetched file on disk. The file
// exists exactly when the fetch that produced this handle succeeded; the
// caller owns it until a validator or extractor consumes it.
type DownloadedArtifact struct {
	ID          string
	Kind        ArtifactKind
	Path        string
	Size        int64
	RetrievedAt time.Time
}

// ValidationOutcome is the tagged result of validating a downloaded artifact.
// A corrupt outcome implies the file has already been deleted.
type ValidationOutcome struct {
	Status    ValidationStatus
	PageCount int
}

// SourceManifest is the categorized inventory of an extracted source archive.
// All paths are relative to ExtractionDir. The six category lists are
// disjoint and together cover every regular file under the root. Immutable
// after creation.
type SourceManifest struct {
	ArxivID       string
	ExtractionDir string
	MainTex       string
	AuxiliaryTex  []string
	BibFiles      []string
	FigureFiles   []string
	StyleFiles    []string
	OtherFiles    []string
}

// FileCount reports the total number of categorized files, main included.
func (m *SourceManifest) FileCount() int {
	return 1 + len(m.AuxiliaryTex) + len(m.BibFiles) + len(m.FigureFiles) +
		len(m.StyleFiles) + len(m.OtherFiles)
}

// MetadataRecord is one append-only row of the acquisition log. PageCount is
// nil for artifacts that have no page structure (source archives).
type MetadataRecord struct {
	Timestamp        time.Time
	ArxivID          string
	ArtifactType     ArtifactKind
	FileSizeBytes    int64
	PageCount        *int
	ValidationStatus ValidationStatus
}

// AcquiredPaper is the acquisition-history row persisted to Postgres for
// deduplication and audit.
type AcquiredPaper struct {
	ArxivID      string
	ArtifactType ArtifactKind
	MainTex      string
	FileCount    int
	AcquiredAt   time.Time
}
