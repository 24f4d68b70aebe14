// internal/app/system/clafiles/clafiles.go

// Package clafiles stores signed agreement PDFs on disk under the media
// root. Paths are relative, slash-separated, and recorded on the agreement
// record so documents can be served straight from the media file server.
package clafiles

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"go.uber.org/zap"
)

// ICLAPath returns the archive path for an individual agreement PDF.
func ICLAPath(iclaID string) string {
	return path.Join("ICLA", iclaID+".pdf")
}

// CCLAPath returns the archive path for a corporate agreement PDF.
func CCLAPath(cclaID string) string {
	return path.Join("CCLA", cclaID, cclaID+".pdf")
}

// Archive writes agreement PDFs under a media root directory.
type Archive struct {
	root string
	log  *zap.Logger
}

// New creates an Archive rooted at dir.
func New(dir string, logger *zap.Logger) *Archive {
	return &Archive{root: dir, log: logger}
}

// Save writes data to relPath under the media root, creating parent
// directories as needed. relPath must be slash-separated as returned by
// ICLAPath or CCLAPath.
func (a *Archive) Save(relPath string, data []byte) error {
	full := filepath.Join(a.root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", relPath, err)
	}
	a.log.Info("archived agreement document",
		zap.String("path", relPath),
		zap.Int("bytes", len(data)))
	return nil
}

// Exists reports whether a document is already archived at relPath.
func (a *Archive) Exists(relPath string) bool {
	full := filepath.Join(a.root, filepath.FromSlash(relPath))
	_, err := os.Stat(full)
	return err == nil
}
