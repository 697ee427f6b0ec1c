package fileutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"spectra/internal/fileutil"
)

func TestSaveStreamCreatesParents(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "a", "b", "out.bin")

	written, err := fileutil.SaveStream(strings.NewReader("payload"), dst, 0o644)
	if err != nil {
		t.Fatalf("SaveStream failed: %v", err)
	}
	if written != int64(len("payload")) {
		t.Fatalf("expected %d bytes written, got %d", len("payload"), written)
	}

	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != "payload" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestSaveStreamTruncatesExisting(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out.bin")
	if _, err := fileutil.SaveStream(strings.NewReader("a longer first write"), dst, 0o644); err != nil {
		t.Fatalf("SaveStream failed: %v", err)
	}
	if _, err := fileutil.SaveStream(strings.NewReader("short"), dst, 0o644); err != nil {
		t.Fatalf("SaveStream failed: %v", err)
	}
	content, _ := os.ReadFile(dst)
	if string(content) != "short" {
		t.Fatalf("expected truncated rewrite, got %q", content)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	if err := os.WriteFile(src, []byte("copy me"), 0o644); err != nil {
		t.Fatalf("write src: %v", err)
	}

	dst := filepath.Join(dir, "nested", "dst.bin")
	if err := fileutil.CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile failed: %v", err)
	}
	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read dst: %v", err)
	}
	if string(content) != "copy me" {
		t.Fatalf("unexpected content: %q", content)
	}

	if err := fileutil.CopyFile(filepath.Join(dir, "missing"), dst); err == nil {
		t.Fatal("expected error for missing source")
	}
}
