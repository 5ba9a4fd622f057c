package archive

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ArxivHarvester/internal/domain"
)

// Figure formats commonly found in arXiv submissions.
var figureExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
	".eps":  true,
	".epsf": true,
	".ps":   true,
}

var styleExts = map[string]bool{
	".sty": true,
	".cls": true,
}

// The document-class declaration sits at the top of a main file by LaTeX
// convention; scanning further mostly finds commented-out templates.
const mainTexScanLines = 10

// buildManifest walks the extracted tree and assigns every regular file to
// exactly one category. The main document is the unique .tex file declaring
// a document class; zero candidates or more than one are both errors.
func buildManifest(arxivID, root string) (*domain.SourceManifest, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk extraction dir: %v", domain.ErrExtraction, err)
	}
	sort.Strings(files)

	var candidates []string
	for _, rel := range files {
		if strings.EqualFold(filepath.Ext(rel), ".tex") && declaresDocumentClass(filepath.Join(root, rel)) {
			candidates = append(candidates, rel)
		}
	}

	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("%w: no .tex file declares a document class under %s",
			domain.ErrMainTexNotFound, root)
	case 1:
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrAmbiguousMainTex, strings.Join(candidates, ", "))
	}
	mainTex := candidates[0]

	manifest := &domain.SourceManifest{
		ArxivID:      arxivID,
		MainTex:      mainTex,
		AuxiliaryTex: []string{},
		BibFiles:     []string{},
		FigureFiles:  []string{},
		StyleFiles:   []string{},
		OtherFiles:   []string{},
	}

	for _, rel := range files {
		if rel == mainTex {
			continue
		}
		switch ext := strings.ToLower(filepath.Ext(rel)); {
		case ext == ".tex":
			manifest.AuxiliaryTex = append(manifest.AuxiliaryTex, rel)
		case ext == ".bib":
			manifest.BibFiles = append(manifest.BibFiles, rel)
		case figureExts[ext]:
			manifest.FigureFiles = append(manifest.FigureFiles, rel)
		case styleExts[ext]:
			manifest.StyleFiles = append(manifest.StyleFiles, rel)
		default:
			manifest.OtherFiles = append(manifest.OtherFiles, rel)
		}
	}

	return manifest, nil
}

// declaresDocumentClass reports whether the first lines of a .tex file
// contain a \documentclass declaration. Unreadable files are not candidates.
func declaresDocumentClass(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for i := 0; i < mainTexScanLines && scanner.Scan(); i++ {
		if strings.Contains(scanner.Text(), `\documentclass`) {
			return true
		}
	}
	return false
}
