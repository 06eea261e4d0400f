package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriterRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	writer, err := newRotatingWriter(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	defer writer.Close()

	chunk := bytes.Repeat([]byte("a"), 600*1024)
	if _, err := writer.Write(chunk); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := writer.Write(chunk); err != nil {
		t.Fatalf("second write: %v", err)
	}

	backups, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected 1 backup after rotation, got %d: %v", len(backups), backups)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat current file: %v", err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Fatalf("expected fresh file of %d bytes, got %d", len(chunk), info.Size())
	}
}

func TestRotatingWriterPrunesOldBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	writer, err := newRotatingWriter(path, 1, 1, 1)
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	defer writer.Close()

	chunk := bytes.Repeat([]byte("b"), 600*1024)
	for i := 0; i < 4; i++ {
		if _, err := writer.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	backups, err := filepath.Glob(path + ".*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected pruning to keep 1 backup, got %d: %v", len(backups), backups)
	}
}

func TestRotatingWriterLeavesForeignFilesAlone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.log")
	foreign := path + ".notes"
	if err := os.WriteFile(foreign, []byte("keep me"), 0o644); err != nil {
		t.Fatalf("write foreign file: %v", err)
	}

	writer, err := newRotatingWriter(path, 1, 1, 1)
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	defer writer.Close()

	chunk := bytes.Repeat([]byte("c"), 600*1024)
	for i := 0; i < 3; i++ {
		if _, err := writer.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	if _, err := os.Stat(foreign); err != nil {
		t.Fatalf("foreign sibling file was removed: %v", err)
	}
}
