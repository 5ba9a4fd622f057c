package domain

import "errors"

// Acquisition failure taxonomy. Each condition is a distinct sentinel so
// callers can choose differentiated recovery with errors.Is: retry on
// ErrNetwork, fall back to the other artifact kind on ErrSourceUnavailable,
// abort on everything else.
var (
	// ErrInvalidID signals an identifier that does not match arXiv syntax.
	ErrInvalidID = errors.New("invalid arxiv identifier")

	// ErrPaperNotFound signals an identifier unknown upstream. Terminal.
	ErrPaperNotFound = errors.New("paper not found on arxiv")

	// ErrSourceUnavailable signals a paper that exists but offers no LaTeX
	// source. Terminal; the caller may fetch the PDF instead.
	ErrSourceUnavailable = errors.New("latex source unavailable")

	// ErrNetwork signals a transient connectivity failure. Retryable.
	ErrNetwork = errors.New("network failure")

	// ErrCorruptArchive signals an archive that cannot be opened or whose
	// entries escape the extraction root.
	ErrCorruptArchive = errors.New("corrupt or unsafe archive")

	// ErrMainTexNotFound signals an extracted tree with no .tex file
	// declaring a document class.
	ErrMainTexNotFound = errors.New("main tex file not found")

	// ErrAmbiguousMainTex signals more than one .tex file declaring a
	// document class; the extractor refuses to guess.
	ErrAmbiguousMainTex = errors.New("ambiguous main tex file")

	// ErrExtraction covers filesystem failures during extraction that are
	// neither containment violations nor classification failures.
	ErrExtraction = errors.New("extraction failed")
)
