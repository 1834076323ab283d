// Package expand resolves document references into ordered page-level
// work units. The engine treats documents as opaque: a Source just
// yields one content reference per page, in page order, and can be
// asked again (the sequence is restartable).
package expand

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source expands a document reference into its per-page content
// references and resolves a reference to canonical content bytes.
type Source interface {
	// Expand returns the ordered, finite list of unit content references
	// for a document. Calling it twice yields the same sequence.
	Expand(ctx context.Context, documentID string) ([]string, error)

	// Content returns the canonical bytes behind a content reference,
	// used for cache key derivation.
	Content(ref string) ([]byte, error)
}

// rasterExtensions are the page raster formats produced by the export
// step upstream of validation.
var rasterExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
}

// DirSource expands documents laid out as directories of page rasters:
// <root>/<documentID>/page-001.png, page-002.png, ... Page order is the
// lexical order of the file names, which the rasterizer's zero-padded
// numbering guarantees matches page order.
type DirSource struct {
	Root string
}

var _ Source = (*DirSource)(nil)

// NewDirSource creates a source rooted at dir.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("documents root unavailable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("documents root %s is not a directory", dir)
	}
	return &DirSource{Root: dir}, nil
}

// Expand implements Source.
func (s *DirSource) Expand(_ context.Context, documentID string) ([]string, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document ID is required")
	}
	dir := filepath.Join(s.Root, documentID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand document %s: %w", documentID, err)
	}

	var refs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !rasterExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		refs = append(refs, filepath.Join(dir, e.Name()))
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("document %s has no page rasters under %s", documentID, dir)
	}

	sort.Strings(refs)
	return refs, nil
}

// Content implements Source.
func (s *DirSource) Content(ref string) ([]byte, error) {
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}
	return data, nil
}
