package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ArxivHarvester/internal/domain"
	"ArxivHarvester/internal/ports"
)

// PipelineDeps wires all driven adapters into the acquisition pipeline.
// Repository is optional; everything else is required.
type PipelineDeps struct {
	Fetcher    ports.ArtifactFetcher
	Validator  ports.PDFValidator
	Extractor  ports.SourceExtractor
	Repository ports.PaperRepository
	OutputDir  string
	Logger     *slog.Logger
}

// Pipeline implements the per-paper acquisition workflow. It never
// substitutes one artifact kind for another; that decision belongs to the
// caller.
type Pipeline struct {
	fetcher    ports.ArtifactFetcher
	validator  ports.PDFValidator
	extractor  ports.SourceExtractor
	repository ports.PaperRepository
	outputDir  string
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		fetcher:    deps.Fetcher,
		validator:  deps.Validator,
		extractor:  deps.Extractor,
		repository: deps.Repository,
		outputDir:  deps.OutputDir,
		logger:     deps.Logger,
	}
}

// AcquireSource fetches the LaTeX source for id, extracts and classifies it.
// Returns (nil, nil) when the paper is already in the acquisition history.
func (p *Pipeline) AcquireSource(ctx context.Context, id string) (*domain.SourceManifest, error) {
	done, err := p.alreadyAcquired(ctx, id)
	if err != nil {
		return nil, err
	}
	if done {
		p.logger.Debug("paper already acquired, skipping", "arxiv_id", id)
		return nil, nil
	}

	artifact, err := p.fetcher.FetchSource(ctx, id, p.outputDir)
	if err != nil {
		return nil, fmt.Errorf("fetch source %s: %w", id, err)
	}

	manifest, err := p.extractor.Extract(ctx, artifact.Path, p.outputDir)
	if err != nil {
		return nil, fmt.Errorf("extract source %s: %w", id, err)
	}

	if err := p.saveAcquired(ctx, domain.AcquiredPaper{
		ArxivID:      id,
		ArtifactType: domain.KindSource,
		MainTex:      manifest.MainTex,
		FileCount:    manifest.FileCount(),
		AcquiredAt:   time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	return manifest, nil
}

// AcquirePDF fetches and validates the PDF for id. A corrupt outcome is
// returned as a result, with the artifact already deleted; the artifact
// handle is nil in that case.
func (p *Pipeline) AcquirePDF(ctx context.Context, id string) (*domain.DownloadedArtifact, domain.ValidationOutcome, error) {
	artifact, err := p.fetcher.FetchPDF(ctx, id, p.outputDir)
	if err != nil {
		return nil, domain.ValidationOutcome{}, fmt.Errorf("fetch pdf %s: %w", id, err)
	}

	outcome, err := p.validator.ValidatePDF(ctx, artifact)
	if err != nil {
		return nil, domain.ValidationOutcome{}, fmt.Errorf("validate pdf %s: %w", id, err)
	}

	if outcome.Status != domain.StatusValid {
		return nil, outcome, nil
	}

	if err := p.saveAcquired(ctx, domain.AcquiredPaper{
		ArxivID:      id,
		ArtifactType: domain.KindPDF,
		AcquiredAt:   time.Now().UTC(),
	}); err != nil {
		return nil, domain.ValidationOutcome{}, err
	}

	return artifact, outcome, nil
}

func (p *Pipeline) alreadyAcquired(ctx context.Context, id string) (bool, error) {
	if p.repository == nil {
		return false, nil
	}

	done, err := p.repository.AlreadyAcquired(ctx, id)
	if err != nil {
		return false, fmt.Errorf("load acquisition history %s: %w", id, err)
	}
	return done, nil
}

func (p *Pipeline) saveAcquired(ctx context.Context, paper domain.AcquiredPaper) error {
	if p.repository == nil {
		return nil
	}

	if err := p.repository.SaveAcquired(ctx, paper); err != nil {
		return fmt.Errorf("persist acquisition %s: %w", paper.ArxivID, err)
	}
	return nil
}
