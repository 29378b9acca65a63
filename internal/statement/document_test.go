package statement

import (
	"os"
	"path/filepath"
	"testing"

	"tpv-reconciliation-service/pkg/errors"
)

func TestNewDocumentFromText(t *testing.T) {
	doc := NewDocumentFromText("  line one  \n\nline two\n\fpage two line\n\n\f\n")

	if len(doc.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(doc.Pages))
	}
	if doc.Pages[0][0] != "line one" {
		t.Errorf("expected trimmed line, got %q", doc.Pages[0][0])
	}
	if doc.LineCount() != 3 {
		t.Errorf("LineCount = %d, want 3", doc.LineCount())
	}

	lines := doc.Lines()
	if len(lines) != 3 || lines[2] != "page two line" {
		t.Errorf("Lines() = %v", lines)
	}
}

func TestLoadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statement.txt")
	if err := os.WriteFile(path, []byte("56.40\n4532\nAUTORIZADA\n"), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if doc.LineCount() != 3 {
		t.Errorf("LineCount = %d, want 3", doc.LineCount())
	}
}

func TestLoadDocumentNotFound(t *testing.T) {
	_, err := LoadDocument(filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}

	typed, ok := errors.As(err)
	if !ok {
		t.Fatalf("expected typed error, got %T", err)
	}
	if typed.Category != errors.CategoryInput {
		t.Errorf("category = %s, want input", typed.Category)
	}
	if !typed.IsFatal() {
		t.Error("missing input file should be fatal")
	}
}
