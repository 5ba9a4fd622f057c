package app

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"ArxivHarvester/internal/config"
	"ArxivHarvester/internal/domain"
	"ArxivHarvester/internal/infrastructure/archive"
	"ArxivHarvester/internal/infrastructure/arxiv"
	"ArxivHarvester/internal/infrastructure/metadata"
	"ArxivHarvester/internal/infrastructure/pdf"
	"ArxivHarvester/internal/infrastructure/storage"
	"ArxivHarvester/internal/logging"
	"ArxivHarvester/internal/ports"
	"ArxivHarvester/internal/usecase"
)

// Application wires configs to the acquisition pipeline.
type Application struct {
	cfg      config.Config
	pipeline *usecase.Pipeline
	logger   *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	recorder := metadata.NewCSVRecorder(cfg.Output.Dir, baseLogger.With("component", "recorder"))
	fetcher := arxiv.NewClient(nil, cfg.Arxiv, recorder, baseLogger.With("component", "fetcher"))
	validator := pdf.NewValidator(recorder, baseLogger.With("component", "validator"))
	extractor := archive.NewExtractor(cfg.Extraction, recorder, baseLogger.With("component", "extractor"))

	var repository ports.PaperRepository
	if cfg.Database.DSN != "" {
		if db, err := sql.Open("postgres", cfg.Database.DSN); err != nil {
			baseLogger.Warn("acquisition history disabled", "error", err)
		} else {
			repository = storage.NewPostgresRepository(db)
		}
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Fetcher:    fetcher,
		Validator:  validator,
		Extractor:  extractor,
		Repository: repository,
		OutputDir:  cfg.Output.Dir,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	return &Application{cfg: cfg, pipeline: pipeline, logger: baseLogger}
}

// Run acquires every configured paper: LaTeX source first, with an explicit,
// logged fallback to the PDF when the source cannot be used. The pipeline
// itself never falls back; the substitution decision is made here.
func (a *Application) Run(ctx context.Context) error {
	if len(a.cfg.Papers) == 0 {
		a.logger.Info("no papers configured")
		return nil
	}

	var errs []error
	for _, id := range a.cfg.Papers {
		if err := a.acquire(ctx, id); err != nil {
			a.logger.Error("acquisition failed", "arxiv_id", id, "error", err)
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}

	return errors.Join(errs...)
}

func (a *Application) acquire(ctx context.Context, id string) error {
	manifest, err := a.pipeline.AcquireSource(ctx, id)
	if err == nil {
		if manifest != nil {
			a.logger.Info("source acquired",
				"arxiv_id", id, "main_tex", manifest.MainTex, "files", manifest.FileCount())
		}
		return nil
	}

	if !fallbackToPDF(err) {
		return err
	}

	a.logger.Warn("source unusable, falling back to pdf", "arxiv_id", id, "reason", err)

	artifact, outcome, err := a.pipeline.AcquirePDF(ctx, id)
	if err != nil {
		return err
	}
	if outcome.Status != domain.StatusValid {
		return errors.New("pdf fallback failed validation for " + id)
	}

	a.logger.Info("pdf acquired", "arxiv_id", id, "path", artifact.Path, "pages", outcome.PageCount)
	return nil
}

// fallbackToPDF decides which source failures justify trying the PDF. Papers
// that do not exist and transient network exhaustion do not.
func fallbackToPDF(err error) bool {
	return errors.Is(err, domain.ErrSourceUnavailable) ||
		errors.Is(err, domain.ErrCorruptArchive) ||
		errors.Is(err, domain.ErrMainTexNotFound) ||
		errors.Is(err, domain.ErrAmbiguousMainTex)
}
