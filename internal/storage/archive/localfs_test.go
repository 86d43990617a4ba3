// internal/storage/archive/localfs_test.go
package archive

import (
	"context"
	"errors"
	"testing"
)

func TestLocalFS_WriteRead(t *testing.T) {
	fs, err := NewLocalFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFS: %v", err)
	}

	ctx := context.Background()
	data := []byte(`{"run_id":"01"}`)

	if err := fs.Write(ctx, "runs/01/report.json", data); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := fs.Read(ctx, "runs/01/report.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("got %q, want %q", got, data)
	}

	// overwrite replaces
	if err := fs.Write(ctx, "runs/01/report.json", []byte("v2")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ = fs.Read(ctx, "runs/01/report.json")
	if string(got) != "v2" {
		t.Errorf("got %q after overwrite, want v2", got)
	}
}

func TestLocalFS_ReadMissing(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())

	_, err := fs.Read(context.Background(), "runs/none/report.json")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalFS_Exists(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	exists, _ := fs.Exists(ctx, "nonexistent.txt")
	if exists {
		t.Error("expected false for nonexistent file")
	}

	fs.Write(ctx, "exists.txt", []byte("data"))
	exists, _ = fs.Exists(ctx, "exists.txt")
	if !exists {
		t.Error("expected true for existing file")
	}
}

func TestLocalFS_List(t *testing.T) {
	fs, _ := NewLocalFS(t.TempDir())
	ctx := context.Background()

	fs.Write(ctx, "runs/02/report.json", []byte("b"))
	fs.Write(ctx, "runs/01/report.json", []byte("a"))
	fs.Write(ctx, "other/c.txt", []byte("c"))

	paths, err := fs.List(ctx, "runs")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	want := []string{"runs/01/report.json", "runs/02/report.json"}
	if len(paths) != len(want) {
		t.Fatalf("got %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}

	empty, err := fs.List(ctx, "missing")
	if err != nil || len(empty) != 0 {
		t.Errorf("List(missing) = %v, %v; want empty", empty, err)
	}
}
