package clafiles_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dalemusser/clahub/internal/app/system/clafiles"
	"go.uber.org/zap"
)

func TestICLAPath(t *testing.T) {
	// Individual agreements always file flat under ICLA/, whether or not
	// the signer is sponsored by a corporate agreement.
	if got := clafiles.ICLAPath("abc-123"); got != "ICLA/abc-123.pdf" {
		t.Errorf("got %q", got)
	}
}

func TestCCLAPath(t *testing.T) {
	if got := clafiles.CCLAPath("corp-9"); got != "CCLA/corp-9/corp-9.pdf" {
		t.Errorf("got %q", got)
	}
}

func TestArchive_SaveAndExists(t *testing.T) {
	root := t.TempDir()
	archive := clafiles.New(root, zap.NewNop())

	rel := clafiles.ICLAPath("abc-123")
	if archive.Exists(rel) {
		t.Fatal("document should not exist before save")
	}

	data := []byte("%PDF-1.4 fake")
	if err := archive.Save(rel, data); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(root, "ICLA", "abc-123.pdf"))
	if err != nil {
		t.Fatalf("read archived file: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("archived bytes: got %q", got)
	}
	if !archive.Exists(rel) {
		t.Error("Exists should report true after save")
	}
}

func TestArchive_SaveCreatesNestedDirs(t *testing.T) {
	root := t.TempDir()
	archive := clafiles.New(root, zap.NewNop())

	rel := clafiles.CCLAPath("corp-9")
	if err := archive.Save(rel, []byte("pdf")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "CCLA", "corp-9", "corp-9.pdf")); err != nil {
		t.Errorf("expected nested file: %v", err)
	}
}
