package source

import (
	"fmt"
	"sort"
	"sync"
)

// File records the origin of one input file. The middle-end never reads
// file contents; paths exist so diagnostics can name their origin.
type File struct {
	ID   FileID
	Path string
}

// FileSet maps FileIDs to their recorded origins. Registration happens
// while a bound program is loaded; lookups may come from any goroutine
// afterwards, so the map is guarded.
type FileSet struct {
	mu    sync.RWMutex
	files map[FileID]File
	next  FileID
}

func NewFileSet() *FileSet {
	return &FileSet{
		files: make(map[FileID]File),
		next:  1,
	}
}

// Add registers a path and returns its FileID.
func (fs *FileSet) Add(path string) FileID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	id := fs.next
	fs.next++
	fs.files[id] = File{ID: id, Path: path}
	return id
}

// AddWithID registers a path under a caller-chosen ID (used when
// rehydrating a serialized program). Returns an error on collision.
func (fs *FileSet) AddWithID(id FileID, path string) error {
	if id == NoFileID {
		return fmt.Errorf("source: cannot register NoFileID")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, exists := fs.files[id]; exists {
		return fmt.Errorf("source: duplicate file id %d", id)
	}
	fs.files[id] = File{ID: id, Path: path}
	if id >= fs.next {
		fs.next = id + 1
	}
	return nil
}

// Path returns the recorded path, or "" for unknown/synthesized files.
func (fs *FileSet) Path(id FileID) string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.files[id].Path
}

// All returns every registered file ordered by ID.
func (fs *FileSet) All() []File {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	out := make([]File, 0, len(fs.files))
	for _, f := range fs.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered files.
func (fs *FileSet) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.files)
}
