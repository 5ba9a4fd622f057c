package arxiv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"ArxivHarvester/internal/config"
	"ArxivHarvester/internal/domain"
	"ArxivHarvester/internal/ports"
)

// New-style "2411.00148" (optional vN) and old-style "astro-ph/0601001" ids.
var idExpr = regexp.MustCompile(`^(\d{4}\.\d{4,5}(v\d+)?|[a-z][a-z-]*(\.[A-Z]{2})?/\d{7}(v\d+)?)$`)

// Client retrieves source archives and PDFs from arXiv. Every terminal
// outcome, success or failure, appends exactly one metadata record.
type Client struct {
	client     *http.Client
	apiURL     string
	sourceURL  string
	pdfURL     string
	userAgent  string
	maxRetries int
	recorder   ports.MetadataRecorder
	logger     *slog.Logger
}

var _ ports.ArtifactFetcher = (*Client)(nil)

// NewClient wires an HTTP client; a nil client gets the configured timeout.
func NewClient(client *http.Client, cfg config.ArxivConfig, recorder ports.MetadataRecorder, logger *slog.Logger) *Client {
	if client == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 3
	}

	return &Client{
		client:     client,
		apiURL:     strings.TrimSuffix(cfg.APIURL, "/"),
		sourceURL:  strings.TrimSuffix(cfg.SourceURL, "/"),
		pdfURL:     strings.TrimSuffix(cfg.PDFURL, "/"),
		userAgent:  cfg.UserAgent,
		maxRetries: retries,
		recorder:   recorder,
		logger:     logger,
	}
}

// FetchSource downloads the LaTeX source tarball for id into dir.
func (c *Client) FetchSource(ctx context.Context, id, dir string) (*domain.DownloadedArtifact, error) {
	return c.fetch(ctx, id, dir, domain.KindSource)
}

// FetchPDF downloads the PDF for id into dir.
func (c *Client) FetchPDF(ctx context.Context, id, dir string) (*domain.DownloadedArtifact, error) {
	return c.fetch(ctx, id, dir, domain.KindPDF)
}

func (c *Client) fetch(ctx context.Context, id, dir string, kind domain.ArtifactKind) (*domain.DownloadedArtifact, error) {
	if !idExpr.MatchString(id) {
		c.record(ctx, id, kind, 0, domain.StatusCorrupt)
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		c.record(ctx, id, kind, 0, domain.StatusCorrupt)
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var artifact *domain.DownloadedArtifact
	operation := func() error {
		art, err := c.attempt(ctx, id, dir, kind)
		if err != nil {
			if errors.Is(err, domain.ErrNetwork) {
				c.logger.Warn("transient fetch failure, retrying",
					"arxiv_id", id, "kind", kind, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		artifact = art
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries)), ctx)
	err := backoff.Retry(operation, policy)

	if err != nil {
		c.record(ctx, id, kind, 0, domain.StatusCorrupt)
		return nil, err
	}

	// A fetch is only successful once its log entry exists; otherwise the
	// artifact must not survive.
	if recErr := c.record(ctx, id, kind, artifact.Size, domain.StatusSkipped); recErr != nil {
		_ = os.Remove(artifact.Path)
		return nil, fmt.Errorf("record fetch metadata: %w", recErr)
	}

	c.logger.Info("artifact downloaded",
		"arxiv_id", id, "kind", kind, "path", artifact.Path, "size", artifact.Size)
	return artifact, nil
}

// attempt performs one resolution + download cycle.
func (c *Client) attempt(ctx context.Context, id, dir string, kind domain.ArtifactKind) (*domain.DownloadedArtifact, error) {
	if err := c.resolve(ctx, id); err != nil {
		return nil, err
	}

	base := c.sourceURL
	ext := ".tar.gz"
	if kind == domain.KindPDF {
		base = c.pdfURL
		ext = ".pdf"
	}

	finalPath := filepath.Join(dir, strings.ReplaceAll(id, "/", "_")+ext)
	if err := c.download(ctx, base+"/"+id, finalPath, kind); err != nil {
		return nil, err
	}

	info, err := os.Stat(finalPath)
	if err != nil {
		return nil, fmt.Errorf("stat downloaded artifact: %w", err)
	}

	return &domain.DownloadedArtifact{
		ID:          id,
		Kind:        kind,
		Path:        finalPath,
		Size:        info.Size(),
		RetrievedAt: time.Now().UTC(),
	}, nil
}

// resolve confirms the identifier exists upstream via the Atom query API.
func (c *Client) resolve(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"?id_list="+id, nil)
	if err != nil {
		return fmt.Errorf("build query request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: query %s: %v", domain.ErrNetwork, id, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(stageResolve, domain.KindSource, resp.StatusCode); err != nil {
		return fmt.Errorf("query %s: %w", id, err)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: parse query feed: %v", domain.ErrNetwork, err)
	}

	entry := doc.Find("entry").First()
	if entry.Length() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrPaperNotFound, id)
	}
	// The API reports unknown ids as a well-formed feed with an error entry.
	if strings.EqualFold(strings.TrimSpace(entry.Find("title").First().Text()), "error") {
		return fmt.Errorf("%w: %s", domain.ErrPaperNotFound, id)
	}

	title := strings.TrimSpace(entry.Find("title").First().Text())
	c.logger.Debug("paper resolved", "arxiv_id", id, "title", title)
	return nil
}

// download streams the artifact to a part file and renames it into place.
// The part file never survives a failure.
func (c *Client) download(ctx context.Context, url, finalPath string, kind domain.ArtifactKind) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download %s: %v", domain.ErrNetwork, url, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(stageDownload, kind, resp.StatusCode); err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}

	partPath := finalPath + "." + uuid.NewString() + ".part"
	part, err := os.OpenFile(partPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("create part file: %w", err)
	}

	written, err := io.Copy(part, resp.Body)
	if closeErr := part.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(partPath)
		return fmt.Errorf("%w: transfer interrupted: %v", domain.ErrNetwork, err)
	}

	if written == 0 {
		_ = os.Remove(partPath)
		return fmt.Errorf("%w: empty response body", domain.ErrNetwork)
	}

	if err := os.Rename(partPath, finalPath); err != nil {
		_ = os.Remove(partPath)
		return fmt.Errorf("finalize download: %w", err)
	}

	return nil
}

func (c *Client) record(ctx context.Context, id string, kind domain.ArtifactKind, size int64, status domain.ValidationStatus) error {
	if c.recorder == nil {
		return nil
	}

	err := c.recorder.Append(ctx, domain.MetadataRecord{
		Timestamp:        time.Now().UTC(),
		ArxivID:          id,
		ArtifactType:     kind,
		FileSizeBytes:    size,
		ValidationStatus: status,
	})
	if err != nil {
		c.logger.Error("metadata append failed", "arxiv_id", id, "error", err)
	}
	return err
}
