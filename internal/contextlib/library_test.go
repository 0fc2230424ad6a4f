package contextlib

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEmptyLibraryReturnsPlaceholder(t *testing.T) {
	lib, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if lib.Len() != 0 {
		t.Errorf("Len = %d, want 0", lib.Len())
	}
	if lib.Context() != Placeholder {
		t.Errorf("Context = %q, want placeholder", lib.Context())
	}
}

func TestLoadTextDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "capitals.txt", "北京是中国的首都。")
	writeFile(t, dir, "go.txt", "Go is a programming language.")
	writeFile(t, dir, "ignored.md", "not loaded")
	writeFile(t, dir, "empty.txt", "   \n")

	lib, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lib.Len() != 2 {
		t.Fatalf("Len = %d, want 2", lib.Len())
	}

	ctx := lib.Context()
	if !strings.Contains(ctx, "北京是中国的首都。") {
		t.Error("context missing Chinese passage")
	}
	if !strings.Contains(ctx, "Go is a programming language.") {
		t.Error("context missing English passage")
	}
	if strings.Contains(ctx, "not loaded") {
		t.Error("context includes non-document file")
	}
}

func TestLoadSkipsCorruptPDF(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.pdf", "this is not a pdf")
	writeFile(t, dir, "ok.txt", "usable passage")

	lib, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lib.Len() != 1 {
		t.Errorf("Len = %d, want 1 (corrupt pdf skipped)", lib.Len())
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
