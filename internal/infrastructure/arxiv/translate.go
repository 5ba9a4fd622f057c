package arxiv

import (
	"fmt"
	"net/http"

	"ArxivHarvester/internal/domain"
)

// stage identifies which upstream call produced an HTTP status, because the
// same status means different things at different points: a 404 during
// resolution means the paper does not exist, a 404 while downloading the
// source of a resolved paper means arXiv offers no LaTeX source for it.
type stage int

const (
	stageResolve stage = iota
	stageDownload
)

// classifyStatus is the single translation point from upstream HTTP statuses
// to the acquisition error taxonomy. Anything unrecognized defaults to the
// retryable network class, the most conservative choice.
func classifyStatus(s stage, kind domain.ArtifactKind, code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		if s == stageDownload && kind == domain.KindSource {
			return domain.ErrSourceUnavailable
		}
		return domain.ErrPaperNotFound
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited (HTTP %d)", domain.ErrNetwork, code)
	case code >= 500:
		return fmt.Errorf("%w: server error (HTTP %d)", domain.ErrNetwork, code)
	default:
		return fmt.Errorf("%w: unexpected status (HTTP %d)", domain.ErrNetwork, code)
	}
}
