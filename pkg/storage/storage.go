// Package storage is the file service backing the media card: a directory
// tree rooted at the configured media path.
package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wachiwi/fishcam/pkg/hal"
	"github.com/wachiwi/fishcam/pkg/msg"
)

// FS serves files below root. Names are slash separated and relative to root;
// a leading slash is allowed.
type FS struct {
	root string

	mu      sync.Mutex
	scanDir string
	entries []os.DirEntry
	pos     int
}

// New returns a file service rooted at root, creating the directory if needed.
func New(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &FS{root: root}, nil
}

// Root returns the host directory backing the service.
func (fs *FS) Root() string { return fs.root }

func (fs *FS) hostPath(name string) string {
	return filepath.Join(fs.root, filepath.FromSlash(path.Clean("/"+name)))
}

// BeginScan starts listing dir in name order. A previous scan is discarded.
func (fs *FS) BeginScan(dir string) error {
	entries, err := os.ReadDir(fs.hostPath(dir))
	if err != nil {
		return fmt.Errorf("failed to scan %s: %v: %w", dir, err, msg.ErrFile)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.scanDir = strings.Trim(path.Clean("/"+dir), "/")
	fs.entries = entries
	fs.pos = 0
	return nil
}

// NextEntry returns the next regular, non-hidden file of the scan or io.EOF.
func (fs *FS) NextEntry() (string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for fs.pos < len(fs.entries) {
		e := fs.entries[fs.pos]
		fs.pos++
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		return path.Join(fs.scanDir, e.Name()), nil
	}
	return "", io.EOF
}

func (fs *FS) EndScan() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.entries = nil
	fs.pos = 0
	return nil
}

type readFile struct {
	*os.File
	size int64
}

func (f *readFile) Size() int64 { return f.size }

func (fs *FS) OpenRead(name string) (hal.ReadFile, error) {
	f, err := os.Open(fs.hostPath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %v: %w", name, err, msg.ErrFile)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %v: %w", name, err, msg.ErrFile)
	}
	return &readFile{File: f, size: info.Size()}, nil
}

func (fs *FS) CreateNew(name string) (hal.WriteFile, error) {
	f, err := os.OpenFile(fs.hostPath(name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %v: %w", name, err, msg.ErrFile)
	}
	return f, nil
}

func (fs *FS) Exists(name string) bool {
	_, err := os.Stat(fs.hostPath(name))
	return err == nil
}

// Remove deletes name. The liveview controller drops half-written files
// with it after an aborted encode.
func (fs *FS) Remove(name string) error {
	if err := os.Remove(fs.hostPath(name)); err != nil {
		return fmt.Errorf("failed to remove %s: %v: %w", name, err, msg.ErrFile)
	}
	return nil
}

// MaxCounter is the largest index of a PREFIXnnn.ext name.
const MaxCounter = 999

// Prober answers whether a file exists.
type Prober interface {
	Exists(name string) bool
}

// NextFreeName returns the first PREFIXnnn.ext, counting from start, that
// does not exist yet.
func NextFreeName(p Prober, prefix, ext string, start int) (string, error) {
	for i := max(start, 0); i <= MaxCounter; i++ {
		name := fmt.Sprintf("%s%03d%s", prefix, i, ext)
		if !p.Exists(name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("all %s###%s names in use: %w", prefix, ext, msg.ErrFile)
}
