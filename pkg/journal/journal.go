// Package journal keeps a short JSON history of the media the camera wrote,
// so the remote surface can list recent captures without scanning the card.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Entry struct {
	Name      string    `json:"name"`
	Kind      string    `json:"kind"` // "still" or "movie"
	Frames    int       `json:"frames,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Journal is a file-backed list of entries younger than the retention period.
type Journal struct {
	mu        sync.Mutex
	path      string
	retention time.Duration
	now       func() time.Time
}

// New stores the journal at path. A zero retention keeps a day.
func New(path string, retention time.Duration) *Journal {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Journal{path: path, retention: retention, now: time.Now}
}

// Entries returns the recorded entries, oldest first.
func (j *Journal) Entries() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.read()
}

func (j *Journal) read() ([]Entry, error) {
	data, err := os.ReadFile(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return []Entry{}, nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		// corrupted file; the next Add overwrites it
		return []Entry{}, nil
	}
	return entries, nil
}

// Add appends e, stamping it if needed, drops expired entries and saves.
func (j *Journal) Add(e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.read()
	if err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = j.now()
	}
	entries = append(entries, e)

	recent := entries[:0]
	cutoff := j.now().Add(-j.retention)
	for _, x := range entries {
		if x.Timestamp.After(cutoff) {
			recent = append(recent, x)
		}
	}

	data, err := json.MarshalIndent(recent, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(j.path, data, 0644)
}
