package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"ArxivHarvester/internal/config"
	"ArxivHarvester/internal/domain"
	"ArxivHarvester/internal/ports"
)

// Extractor unpacks arXiv source tarballs. The archive is untrusted input:
// every entry is treated as hostile until its destination, and for links its
// target, canonicalizes to a path inside the extraction root. Lexical checks
// alone are not enough once symlinks exist on disk, so every write re-resolves
// its parent directory against the real filesystem and the finished tree gets
// a final link-resolution pass. Any violation aborts the whole extraction and
// removes everything written so far.
type Extractor struct {
	maxFileSize  int64
	maxTotalSize int64
	recorder     ports.MetadataRecorder
	logger       *slog.Logger
}

var _ ports.SourceExtractor = (*Extractor)(nil)

// NewExtractor wires extraction limits and the shared metadata recorder.
func NewExtractor(cfg config.ExtractionConfig, recorder ports.MetadataRecorder, logger *slog.Logger) *Extractor {
	maxFile := cfg.MaxFileSizeBytes
	if maxFile <= 0 {
		maxFile = 64 * 1024 * 1024
	}
	maxTotal := cfg.MaxTotalSizeBytes
	if maxTotal <= 0 {
		maxTotal = 512 * 1024 * 1024
	}

	return &Extractor{
		maxFileSize:  maxFile,
		maxTotalSize: maxTotal,
		recorder:     recorder,
		logger:       logger,
	}
}

// Extract unpacks archivePath into {outputDir}/{archive stem}/ and returns
// the categorized manifest. All-or-nothing: no partially extracted tree
// survives a failure, whatever the failure is.
func (e *Extractor) Extract(ctx context.Context, archivePath, outputDir string) (*domain.SourceManifest, error) {
	stem := archiveStem(archivePath)
	arxivID := strings.ReplaceAll(stem, "_", "/")

	var archiveSize int64
	if info, err := os.Stat(archivePath); err == nil {
		archiveSize = info.Size()
	}

	root := filepath.Join(outputDir, stem)
	if err := os.MkdirAll(root, 0o750); err != nil {
		e.record(ctx, arxivID, archiveSize, domain.StatusSkipped)
		return nil, fmt.Errorf("%w: create extraction root: %v", domain.ErrExtraction, err)
	}

	// Canonicalize once so every containment check compares resolved paths.
	canonRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		e.record(ctx, arxivID, archiveSize, domain.StatusSkipped)
		return nil, fmt.Errorf("%w: resolve extraction root: %v", domain.ErrExtraction, err)
	}

	if err := e.unpack(ctx, archivePath, canonRoot); err != nil {
		_ = os.RemoveAll(root)
		status := domain.StatusSkipped
		if errors.Is(err, domain.ErrCorruptArchive) {
			status = domain.StatusCorrupt
		}
		e.record(ctx, arxivID, archiveSize, status)
		return nil, err
	}

	manifest, err := buildManifest(arxivID, canonRoot)
	if err != nil {
		_ = os.RemoveAll(root)
		e.record(ctx, arxivID, archiveSize, domain.StatusSkipped)
		return nil, err
	}
	manifest.ExtractionDir = root

	if err := e.record(ctx, arxivID, archiveSize, domain.StatusValid); err != nil {
		_ = os.RemoveAll(root)
		return nil, err
	}

	e.logger.Info("source extracted",
		"arxiv_id", arxivID,
		"dir", root,
		"main_tex", manifest.MainTex,
		"files", manifest.FileCount())
	return manifest, nil
}

func (e *Extractor) unpack(ctx context.Context, archivePath, root string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("%w: open archive: %v", domain.ErrCorruptArchive, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: not a gzip stream: %v", domain.ErrCorruptArchive, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			return verifyLinks(root)
		}
		if err != nil {
			return fmt.Errorf("%w: read tar entry: %v", domain.ErrCorruptArchive, err)
		}

		dest, err := safeDestination(root, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := safeMkdirAll(root, dest); err != nil {
				return fmt.Errorf("entry %s: %w", hdr.Name, err)
			}

		case tar.TypeReg:
			if hdr.Size > e.maxFileSize {
				return fmt.Errorf("%w: entry %s exceeds file size limit (%d > %d)",
					domain.ErrCorruptArchive, hdr.Name, hdr.Size, e.maxFileSize)
			}
			total += hdr.Size
			if total > e.maxTotalSize {
				return fmt.Errorf("%w: archive exceeds total size limit (%d)",
					domain.ErrCorruptArchive, e.maxTotalSize)
			}
			if err := safeMkdirAll(root, filepath.Dir(dest)); err != nil {
				return fmt.Errorf("entry %s: %w", hdr.Name, err)
			}
			if err := writeFile(dest, tr, e.maxFileSize); err != nil {
				return fmt.Errorf("%w: write %s: %v", domain.ErrExtraction, hdr.Name, err)
			}

		case tar.TypeSymlink:
			if err := checkLinkTarget(root, dest, hdr.Linkname); err != nil {
				return fmt.Errorf("symlink %s -> %s: %w", hdr.Name, hdr.Linkname, err)
			}
			if err := safeMkdirAll(root, filepath.Dir(dest)); err != nil {
				return fmt.Errorf("entry %s: %w", hdr.Name, err)
			}
			if err := os.Symlink(hdr.Linkname, dest); err != nil {
				return fmt.Errorf("%w: create symlink %s: %v", domain.ErrExtraction, hdr.Name, err)
			}

		case tar.TypeLink:
			target := filepath.Join(root, hdr.Linkname)
			if !within(root, target) {
				return fmt.Errorf("%w: hard link %s escapes extraction root", domain.ErrCorruptArchive, hdr.Name)
			}
			// The target must already exist; resolve it for real so a link
			// routed through an in-tree symlink cannot reach outside.
			resolved, err := filepath.EvalSymlinks(target)
			if err != nil {
				return fmt.Errorf("%w: hard link %s target unresolvable", domain.ErrCorruptArchive, hdr.Name)
			}
			if !within(root, resolved) {
				return fmt.Errorf("%w: hard link %s escapes extraction root", domain.ErrCorruptArchive, hdr.Name)
			}
			if err := safeMkdirAll(root, filepath.Dir(dest)); err != nil {
				return fmt.Errorf("entry %s: %w", hdr.Name, err)
			}
			if err := os.Link(resolved, dest); err != nil {
				return fmt.Errorf("%w: create hard link %s: %v", domain.ErrExtraction, hdr.Name, err)
			}

		default:
			// Device nodes, fifos and other special entries have no place
			// in a LaTeX source bundle.
			e.logger.Warn("skipping special tar entry", "name", hdr.Name, "typeflag", hdr.Typeflag)
		}
	}
}

// safeDestination joins an entry name to the root and verifies the result
// stays inside it. Absolute names and names escaping via .. are rejected.
func safeDestination(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: absolute entry path %q", domain.ErrCorruptArchive, name)
	}

	dest := filepath.Join(root, name)
	if !within(root, dest) {
		return "", fmt.Errorf("%w: entry %q escapes extraction root", domain.ErrCorruptArchive, name)
	}
	return dest, nil
}

// checkLinkTarget is the lexical gate on a symlink target: absolute targets
// and targets that step out of the root by name are rejected before the link
// is created. Targets routed through other symlinks pass here and are caught
// by verifyLinks once the tree is complete.
func checkLinkTarget(root, dest, linkname string) error {
	target := linkname
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(dest), target)
	}
	if !within(root, filepath.Clean(target)) {
		return domain.ErrCorruptArchive
	}
	return nil
}

// safeMkdirAll creates dir after proving that its deepest existing ancestor
// resolves, on disk, to a path inside root. Components below that ancestor do
// not exist yet and so cannot be symlinks, which closes the hole where a
// chain of individually in-root links composes to a path outside the root.
func safeMkdirAll(root, dir string) error {
	existing := dir
	for existing != root {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: inspect %s: %v", domain.ErrExtraction, existing, err)
		}
		existing = filepath.Dir(existing)
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", domain.ErrExtraction, existing, err)
	}
	if !within(root, resolved) {
		return fmt.Errorf("%w: path resolves outside extraction root", domain.ErrCorruptArchive)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("%w: create dir: %v", domain.ErrExtraction, err)
	}
	return nil
}

// verifyLinks re-resolves every symlink in the finished tree. Entry order
// inside an archive means a link can only be judged once all of its possible
// targets exist; a link that does not resolve to a real path inside the root
// by then has no legitimate use in a source bundle.
func verifyLinks(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: verify tree: %v", domain.ErrExtraction, err)
		}
		if d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("%w: symlink %s does not resolve", domain.ErrCorruptArchive, d.Name())
		}
		if !within(root, resolved) {
			return fmt.Errorf("%w: symlink %s resolves outside extraction root", domain.ErrCorruptArchive, d.Name())
		}
		return nil
	})
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

func writeFile(dest string, r io.Reader, limit int64) error {
	if info, err := os.Lstat(dest); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing to write through symlink %s", filepath.Base(dest))
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}

	// The header size is already checked; the limit guards against a header
	// lying about its payload.
	_, err = io.Copy(out, io.LimitReader(r, limit+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	return err
}

// archiveStem strips the archive extensions from the file name. The stem
// names the extraction subdirectory; underscores stay as-is so the root is a
// single directory level even for old-style ids.
func archiveStem(archivePath string) string {
	stem := filepath.Base(archivePath)
	stem = strings.TrimSuffix(stem, ".tgz")
	stem = strings.TrimSuffix(stem, ".gz")
	stem = strings.TrimSuffix(stem, ".tar")
	return stem
}

func (e *Extractor) record(ctx context.Context, arxivID string, size int64, status domain.ValidationStatus) error {
	if e.recorder == nil {
		return nil
	}

	err := e.recorder.Append(ctx, domain.MetadataRecord{
		Timestamp:        time.Now().UTC(),
		ArxivID:          arxivID,
		ArtifactType:     domain.KindSource,
		FileSizeBytes:    size,
		ValidationStatus: status,
	})
	if err != nil {
		e.logger.Error("metadata append failed", "arxiv_id", arxivID, "error", err)
	}
	return err
}
