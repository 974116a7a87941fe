package source

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/atleaf/atleaf/pkg/archive"
)

func TestFileSource_Leaves(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_filesource")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	files := map[string][]byte{
		"1.leaf":    []byte("leaf-1"),
		"1.raw":     []byte("raw-1"),
		"3.leaf":    []byte("leaf-3"),
		"10.leaf":   []byte("leaf-10"),
		"10.raw":    []byte("raw-10"),
		"notes.txt": []byte("not a leaf"),
		"x.leaf":    []byte("unparseable index"),
	}
	for name, data := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), data, 0600); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	src := NewFileSource(tmpDir)

	leaves, err := src.Leaves(context.Background(), 0, 5)
	if err != nil {
		t.Fatalf("Leaves failed: %v", err)
	}

	if len(leaves) != 2 {
		t.Fatalf("Leaf count mismatch: got %d, want 2", len(leaves))
	}

	if leaves[0].Index != 1 {
		t.Errorf("First index mismatch: got %d, want 1", leaves[0].Index)
	}
	if !bytes.Equal(leaves[0].Leaf, []byte("leaf-1")) {
		t.Errorf("Leaf 1 bytes mismatch: got %q", leaves[0].Leaf)
	}
	if !bytes.Equal(leaves[0].Raw, []byte("raw-1")) {
		t.Errorf("Raw 1 bytes mismatch: got %q", leaves[0].Raw)
	}

	if leaves[1].Index != 3 {
		t.Errorf("Second index mismatch: got %d, want 3", leaves[1].Index)
	}
	if leaves[1].Raw != nil {
		t.Errorf("Leaf 3 should have no raw body, got %q", leaves[1].Raw)
	}
}

func TestFileSource_FullRange(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_filesource_full")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	for _, name := range []string{"2.leaf", "7.leaf", "5.leaf"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(name), 0600); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	leaves, err := NewFileSource(tmpDir).Leaves(context.Background(), 0, ^uint64(0))
	if err != nil {
		t.Fatalf("Leaves failed: %v", err)
	}

	want := []uint64{2, 5, 7}
	if len(leaves) != len(want) {
		t.Fatalf("Leaf count mismatch: got %d, want %d", len(leaves), len(want))
	}
	for i, leaf := range leaves {
		if leaf.Index != want[i] {
			t.Errorf("Index %d mismatch: got %d, want %d", i, leaf.Index, want[i])
		}
	}
}

func TestFileSource_MissingDir(t *testing.T) {
	src := NewFileSource(filepath.Join(os.TempDir(), "atleaf_no_such_dir"))
	if _, err := src.Leaves(context.Background(), 0, 10); err == nil {
		t.Error("Expected error for missing directory")
	}
}

func TestArchiveSource_Leaves(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_archivesource")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "leaves.archive")
	writer, err := archive.NewArchiveWriter(archive.WriterConfig{FilePath: path})
	if err != nil {
		t.Fatalf("Failed to create archive writer: %v", err)
	}
	for _, entry := range []*archive.Entry{
		{Index: 5, Leaf: []byte("leaf-5"), Raw: []byte("raw-5")},
		{Index: 6, Leaf: []byte("leaf-6")},
		{Index: 9, Leaf: []byte("leaf-9"), Raw: []byte("raw-9")},
	} {
		if _, err := writer.Append(entry); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	src := NewArchiveSource(path)

	leaves, err := src.Leaves(context.Background(), 6, 9)
	if err != nil {
		t.Fatalf("Leaves failed: %v", err)
	}

	if len(leaves) != 2 {
		t.Fatalf("Leaf count mismatch: got %d, want 2", len(leaves))
	}
	if leaves[0].Index != 6 || leaves[1].Index != 9 {
		t.Errorf("Index mismatch: got %d, %d, want 6, 9", leaves[0].Index, leaves[1].Index)
	}
	if !bytes.Equal(leaves[1].Raw, []byte("raw-9")) {
		t.Errorf("Raw mismatch: got %q, want %q", leaves[1].Raw, "raw-9")
	}
}

func TestArchiveSource_ContextCanceled(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "atleaf_archivesource_ctx")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "leaves.archive")
	writer, err := archive.NewArchiveWriter(archive.WriterConfig{FilePath: path})
	if err != nil {
		t.Fatalf("Failed to create archive writer: %v", err)
	}
	if _, err := writer.Append(&archive.Entry{Index: 1, Leaf: []byte("l")}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewArchiveSource(path).Leaves(ctx, 0, 10); err == nil {
		t.Error("Expected error for canceled context")
	}
}
