package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wachiwi/fishcam/pkg/msg"
)

func writeFile(t *testing.T, dir, name string, data string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func TestScanSkipsHiddenAndDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "IMG001.JPG", "a")
	writeFile(t, dir, ".hidden", "b")
	writeFile(t, dir, "IMG000.JPG", "c")
	if err := os.Mkdir(filepath.Join(dir, "DCIM"), 0755); err != nil {
		t.Fatal(err)
	}

	fs, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := fs.BeginScan("/"); err != nil {
		t.Fatalf("BeginScan failed: %v", err)
	}

	var names []string
	for {
		name, err := fs.NextEntry()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextEntry failed: %v", err)
		}
		names = append(names, name)
	}
	if len(names) != 2 || names[0] != "IMG000.JPG" || names[1] != "IMG001.JPG" {
		t.Errorf("Unexpected entries %v", names)
	}
	if _, err := fs.NextEntry(); err != io.EOF {
		t.Errorf("Expected EOF to repeat, got %v", err)
	}
	fs.EndScan()
}

func TestScanMissingDirectory(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.BeginScan("/missing"); !errors.Is(err, msg.ErrFile) {
		t.Errorf("Expected file error, got %v", err)
	}
}

func TestOpenAndCreate(t *testing.T) {
	dir := t.TempDir()
	fs, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}

	w, err := fs.CreateNew("MOV000.AVI")
	if err != nil {
		t.Fatalf("CreateNew failed: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	w.Close()

	if _, err := fs.CreateNew("MOV000.AVI"); !errors.Is(err, msg.ErrFile) {
		t.Errorf("Expected exclusive create to fail, got %v", err)
	}

	r, err := fs.OpenRead("/MOV000.AVI")
	if err != nil {
		t.Fatalf("OpenRead failed: %v", err)
	}
	defer r.Close()
	if r.Size() != 5 {
		t.Errorf("Expected size 5, got %d", r.Size())
	}
	if _, err := fs.OpenRead("../outside"); !errors.Is(err, msg.ErrFile) {
		t.Errorf("Expected names to stay below the root, got %v", err)
	}
}

func TestNextFreeName(t *testing.T) {
	dir := t.TempDir()
	fs, err := New(dir)
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, dir, "IMG000.JPG", "")
	writeFile(t, dir, "IMG001.JPG", "")
	writeFile(t, dir, "IMG003.JPG", "")

	testCases := []struct {
		start int
		want  string
	}{
		{0, "IMG002.JPG"},
		{3, "IMG004.JPG"},
		{10, "IMG010.JPG"},
	}
	for _, tc := range testCases {
		got, err := NextFreeName(fs, "IMG", ".JPG", tc.start)
		if err != nil {
			t.Fatalf("NextFreeName failed: %v", err)
		}
		if got != tc.want {
			t.Errorf("NextFreeName(start=%d) = %s, want %s", tc.start, got, tc.want)
		}
	}

	if _, err := NextFreeName(fs, "IMG", ".JPG", MaxCounter+1); !errors.Is(err, msg.ErrFile) {
		t.Errorf("Expected exhausted counter to fail, got %v", err)
	}
}

func TestWatcherFlagsNewFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := Watch(dir)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	writeFile(t, dir, "IMG000.JPG", "x")

	deadline := time.Now().Add(2 * time.Second)
	for !w.Changed() {
		if time.Now().After(deadline) {
			t.Fatal("Watcher never reported the new file")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if w.Changed() {
		t.Error("Changed must clear the flag")
	}
}
