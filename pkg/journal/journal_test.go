package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEmptyJournal(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "journal.json"), time.Hour)
	entries, err := j.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %v", entries)
	}
}

func TestRetention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "journal.json")
	j := New(path, time.Hour)

	if err := j.Add(Entry{Name: "IMG000.JPG", Kind: "still", Timestamp: time.Now().Add(-2 * time.Hour)}); err != nil {
		t.Fatalf("Failed to add old entry: %v", err)
	}
	if err := j.Add(Entry{Name: "MOV000.AVI", Kind: "movie", Frames: 12}); err != nil {
		t.Fatalf("Failed to add new entry: %v", err)
	}

	entries, err := j.Entries()
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "MOV000.AVI" || entries[0].Frames != 12 {
		t.Errorf("Expected only MOV000.AVI, got %v", entries)
	}
	if entries[0].Timestamp.IsZero() {
		t.Error("Entry was not stamped")
	}
}

func TestCorruptedFileIsReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	j := New(path, time.Hour)
	if entries, err := j.Entries(); err != nil || len(entries) != 0 {
		t.Errorf("Entries on corrupted file = %v, %v", entries, err)
	}
	if err := j.Add(Entry{Name: "IMG001.JPG", Kind: "still"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if entries, _ := j.Entries(); len(entries) != 1 {
		t.Errorf("Expected one entry after rewrite, got %v", entries)
	}
}
