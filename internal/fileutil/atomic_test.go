package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	if err := WriteFileAtomic(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("Expected %q, got %q", "hello world", string(data))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("Expected permissions %o, got %o", 0644, info.Mode().Perm())
	}

	// No temp files should survive a successful write.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() != "out.txt" {
			t.Errorf("Unexpected file left behind: %s", entry.Name())
		}
	}
}

func TestWriteFileAtomic_Overwrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.txt")

	if err := WriteFileAtomic(path, []byte("first"), 0644); err != nil {
		t.Fatalf("Initial write failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0644); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("Expected %q, got %q", "second", string(data))
	}
}

func TestWriteFileAtomic_MissingDir(t *testing.T) {
	t.Parallel()

	err := WriteFileAtomic("/nonexistent/dir/out.txt", []byte("data"), 0644)
	if err == nil {
		t.Error("Expected error writing into a missing directory")
	}
}

func TestWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.json")

	in := map[string]int{"rounds": 10, "players": 2}
	if err := WriteJSONAtomic(path, in, 0644); err != nil {
		t.Fatalf("WriteJSONAtomic failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if len(data) == 0 || data[len(data)-1] != '\n' {
		t.Error("Expected trailing newline")
	}

	var out map[string]int
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if out["rounds"] != 10 || out["players"] != 2 {
		t.Errorf("Expected round trip of %v, got %v", in, out)
	}
}
