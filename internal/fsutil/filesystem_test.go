package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestMemoryFileSystem_CreateAndAppend(t *testing.T) {
	m := NewMemoryFileSystem()

	w, err := m.Create("out/a.csv")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := io.WriteString(w, "header\n"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	w.Close()

	a, err := m.Append("out/a.csv")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	io.WriteString(a, "row\n")
	a.Close()

	data, err := m.ReadFile("out/a.csv")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "header\nrow\n" {
		t.Errorf("contents = %q", data)
	}

	if _, err := a.Write([]byte("late")); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("write after close: got %v, want fs.ErrClosed", err)
	}
}

func TestMemoryFileSystem_CreateTruncates(t *testing.T) {
	m := NewMemoryFileSystem()
	w, _ := m.Create("f.txt")
	io.WriteString(w, "old")
	w.Close()

	w, _ = m.Create("f.txt")
	w.Close()

	data, _ := m.ReadFile("f.txt")
	if len(data) != 0 {
		t.Errorf("Create did not truncate: %q", data)
	}
}

func TestMemoryFileSystem_Open(t *testing.T) {
	m := NewMemoryFileSystem()
	if _, err := m.Open("missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open(missing) error = %v, want ErrNotExist", err)
	}

	w, _ := m.Create("frames.jsonl")
	io.WriteString(w, "{}\n")
	w.Close()

	r, err := m.Open("frames.jsonl")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "{}\n" {
		t.Errorf("read %q", data)
	}
}

func TestMemoryFileSystem_DirsAndFiles(t *testing.T) {
	m := NewMemoryFileSystem()
	m.MkdirAll("logs/csv", 0o755)
	if !m.Exists("logs") || !m.Exists("logs/csv") {
		t.Error("MkdirAll did not record parents")
	}

	for _, name := range []string{"logs/csv/b.csv", "logs/csv/a.csv", "other/c.csv"} {
		w, _ := m.Create(name)
		w.Close()
	}
	got := m.Files("logs/csv")
	want := []string{filepath.Clean("logs/csv/a.csv"), filepath.Clean("logs/csv/b.csv")}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Files() = %v, want %v", got, want)
	}
}

func TestOSFileSystem_Append(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.csv")
	var osfs OSFileSystem

	for _, line := range []string{"a\n", "b\n"} {
		w, err := osfs.Append(path)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		io.WriteString(w, line)
		w.Close()
	}

	data, err := osfs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "a\nb\n" {
		t.Errorf("contents = %q", data)
	}
	if !osfs.Exists(path) {
		t.Error("Exists() = false")
	}
}
