package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"ArxivHarvester/internal/domain"
)

type fakeFetcher struct {
	calls        *[]string
	sourceErr    error
	pdfErr       error
	sourceCalled bool
	pdfCalled    bool
}

func (f *fakeFetcher) FetchSource(_ context.Context, id, dir string) (*domain.DownloadedArtifact, error) {
	f.sourceCalled = true
	*f.calls = append(*f.calls, "fetch-source")
	if f.sourceErr != nil {
		return nil, f.sourceErr
	}
	return &domain.DownloadedArtifact{
		ID: id, Kind: domain.KindSource, Path: dir + "/" + id + ".tar.gz", Size: 10,
		RetrievedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeFetcher) FetchPDF(_ context.Context, id, dir string) (*domain.DownloadedArtifact, error) {
	f.pdfCalled = true
	*f.calls = append(*f.calls, "fetch-pdf")
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return &domain.DownloadedArtifact{
		ID: id, Kind: domain.KindPDF, Path: dir + "/" + id + ".pdf", Size: 20,
		RetrievedAt: time.Now().UTC(),
	}, nil
}

type fakeValidator struct {
	calls   *[]string
	outcome domain.ValidationOutcome
}

func (v *fakeValidator) ValidatePDF(_ context.Context, _ *domain.DownloadedArtifact) (domain.ValidationOutcome, error) {
	*v.calls = append(*v.calls, "validate")
	return v.outcome, nil
}

type fakeExtractor struct {
	calls *[]string
	err   error
}

func (e *fakeExtractor) Extract(_ context.Context, archivePath, outputDir string) (*domain.SourceManifest, error) {
	*e.calls = append(*e.calls, "extract")
	if e.err != nil {
		return nil, e.err
	}
	return &domain.SourceManifest{
		ArxivID:       "2411.00148",
		ExtractionDir: outputDir + "/2411.00148",
		MainTex:       "ms.tex",
		AuxiliaryTex:  []string{},
		BibFiles:      []string{"ms.bib"},
		FigureFiles:   []string{},
		StyleFiles:    []string{},
		OtherFiles:    []string{},
	}, nil
}

type fakeRepository struct {
	acquired bool
	saved    []domain.AcquiredPaper
}

func (r *fakeRepository) AlreadyAcquired(_ context.Context, _ string) (bool, error) {
	return r.acquired, nil
}

func (r *fakeRepository) SaveAcquired(_ context.Context, paper domain.AcquiredPaper) error {
	r.saved = append(r.saved, paper)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAcquireSourceOrdering(t *testing.T) {
	t.Parallel()

	var calls []string
	repo := &fakeRepository{}
	pipeline := NewPipeline(PipelineDeps{
		Fetcher:    &fakeFetcher{calls: &calls},
		Validator:  &fakeValidator{calls: &calls},
		Extractor:  &fakeExtractor{calls: &calls},
		Repository: repo,
		OutputDir:  t.TempDir(),
		Logger:     testLogger(),
	})

	manifest, err := pipeline.AcquireSource(context.Background(), "2411.00148")
	if err != nil {
		t.Fatalf("AcquireSource error: %v", err)
	}
	if manifest == nil || manifest.MainTex != "ms.tex" {
		t.Fatalf("unexpected manifest: %+v", manifest)
	}

	if len(calls) != 2 || calls[0] != "fetch-source" || calls[1] != "extract" {
		t.Fatalf("unexpected call order: %v", calls)
	}

	if len(repo.saved) != 1 || repo.saved[0].ArtifactType != domain.KindSource {
		t.Fatalf("unexpected history: %+v", repo.saved)
	}
	if repo.saved[0].MainTex != "ms.tex" || repo.saved[0].FileCount != 2 {
		t.Fatalf("unexpected history row: %+v", repo.saved[0])
	}
}

func TestAcquireSourceDedup(t *testing.T) {
	t.Parallel()

	var calls []string
	fetcher := &fakeFetcher{calls: &calls}
	pipeline := NewPipeline(PipelineDeps{
		Fetcher:    fetcher,
		Validator:  &fakeValidator{calls: &calls},
		Extractor:  &fakeExtractor{calls: &calls},
		Repository: &fakeRepository{acquired: true},
		OutputDir:  t.TempDir(),
		Logger:     testLogger(),
	})

	manifest, err := pipeline.AcquireSource(context.Background(), "2411.00148")
	if err != nil {
		t.Fatalf("AcquireSource error: %v", err)
	}
	if manifest != nil {
		t.Fatalf("expected nil manifest for already-acquired paper, got %+v", manifest)
	}
	if fetcher.sourceCalled {
		t.Fatal("fetcher must not run for already-acquired paper")
	}
}

// The pipeline surfaces source failures as-is; it never substitutes the PDF.
func TestAcquireSourceNoSilentFallback(t *testing.T) {
	t.Parallel()

	var calls []string
	fetcher := &fakeFetcher{calls: &calls, sourceErr: domain.ErrSourceUnavailable}
	pipeline := NewPipeline(PipelineDeps{
		Fetcher:   fetcher,
		Validator: &fakeValidator{calls: &calls},
		Extractor: &fakeExtractor{calls: &calls},
		OutputDir: t.TempDir(),
		Logger:    testLogger(),
	})

	_, err := pipeline.AcquireSource(context.Background(), "2411.00148")
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if fetcher.pdfCalled {
		t.Fatal("pipeline must not fall back to pdf on its own")
	}
}

func TestAcquirePDFValid(t *testing.T) {
	t.Parallel()

	var calls []string
	repo := &fakeRepository{}
	pipeline := NewPipeline(PipelineDeps{
		Fetcher:    &fakeFetcher{calls: &calls},
		Validator:  &fakeValidator{calls: &calls, outcome: domain.ValidationOutcome{Status: domain.StatusValid, PageCount: 17}},
		Extractor:  &fakeExtractor{calls: &calls},
		Repository: repo,
		OutputDir:  t.TempDir(),
		Logger:     testLogger(),
	})

	artifact, outcome, err := pipeline.AcquirePDF(context.Background(), "2411.00148")
	if err != nil {
		t.Fatalf("AcquirePDF error: %v", err)
	}
	if artifact == nil || outcome.PageCount != 17 {
		t.Fatalf("unexpected result: %+v %+v", artifact, outcome)
	}

	if len(calls) != 2 || calls[0] != "fetch-pdf" || calls[1] != "validate" {
		t.Fatalf("unexpected call order: %v", calls)
	}
	if len(repo.saved) != 1 || repo.saved[0].ArtifactType != domain.KindPDF {
		t.Fatalf("unexpected history: %+v", repo.saved)
	}
}

func TestAcquirePDFCorrupt(t *testing.T) {
	t.Parallel()

	var calls []string
	repo := &fakeRepository{}
	pipeline := NewPipeline(PipelineDeps{
		Fetcher:    &fakeFetcher{calls: &calls},
		Validator:  &fakeValidator{calls: &calls, outcome: domain.ValidationOutcome{Status: domain.StatusCorrupt}},
		Extractor:  &fakeExtractor{calls: &calls},
		Repository: repo,
		OutputDir:  t.TempDir(),
		Logger:     testLogger(),
	})

	artifact, outcome, err := pipeline.AcquirePDF(context.Background(), "2411.00148")
	if err != nil {
		t.Fatalf("AcquirePDF error: %v", err)
	}
	if artifact != nil {
		t.Fatalf("corrupt outcome must not return an artifact handle, got %+v", artifact)
	}
	if outcome.Status != domain.StatusCorrupt {
		t.Fatalf("expected corrupt outcome, got %+v", outcome)
	}
	if len(repo.saved) != 0 {
		t.Fatalf("corrupt pdf must not be persisted: %+v", repo.saved)
	}
}
