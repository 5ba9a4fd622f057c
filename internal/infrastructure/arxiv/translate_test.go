package arxiv

import (
	"errors"
	"testing"

	"ArxivHarvester/internal/domain"
)

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		s    stage
		kind domain.ArtifactKind
		code int
		want error
	}{
		{"resolve ok", stageResolve, domain.KindSource, 200, nil},
		{"download ok", stageDownload, domain.KindSource, 200, nil},
		{"resolve not found", stageResolve, domain.KindSource, 404, domain.ErrPaperNotFound},
		{"source download 404", stageDownload, domain.KindSource, 404, domain.ErrSourceUnavailable},
		{"source download 410", stageDownload, domain.KindSource, 410, domain.ErrSourceUnavailable},
		{"pdf download 404", stageDownload, domain.KindPDF, 404, domain.ErrPaperNotFound},
		{"rate limited", stageDownload, domain.KindSource, 429, domain.ErrNetwork},
		{"server error", stageDownload, domain.KindPDF, 500, domain.ErrNetwork},
		{"bad gateway", stageResolve, domain.KindSource, 502, domain.ErrNetwork},
		{"unexpected client error", stageDownload, domain.KindSource, 403, domain.ErrNetwork},
		{"redirect left unfollowed", stageDownload, domain.KindSource, 301, domain.ErrNetwork},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := classifyStatus(tc.s, tc.kind, tc.code)
			if tc.want == nil {
				if got != nil {
					t.Fatalf("expected nil, got %v", got)
				}
				return
			}
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
