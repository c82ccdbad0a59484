package storage

import (
	"strings"
	"time"
)

// FileMetadata describes one file's known state within a provider.
// Path is always relative to the provider root, forward-slash separated,
// never absolute and never containing "..".
type FileMetadata struct {
	Path       string
	Size       int64
	ModTime    time.Time
	Checksum   string
	Attributes map[string]string
}

// Parent returns the path of the containing directory.
// Returns ok=false when the path is empty or has no separator.
func (m *FileMetadata) Parent() (string, bool) {
	idx := strings.LastIndex(m.Path, "/")
	if idx < 0 {
		return "", false
	}

	return m.Path[:idx], true
}

// Name returns the file name portion of the path.
// Returns ok=false when the path is empty; a path without a separator
// is returned whole.
func (m *FileMetadata) Name() (string, bool) {
	if m.Path == "" {
		return "", false
	}

	idx := strings.LastIndex(m.Path, "/")
	if idx < 0 {
		return m.Path, true
	}

	return m.Path[idx+1:], true
}

// Extension returns the portion of the file name after the last dot.
// Returns ok=false when the name has no dot.
func (m *FileMetadata) Extension() (string, bool) {
	name, ok := m.Name()
	if !ok {
		return "", false
	}

	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return "", false
	}

	return name[idx+1:], true
}

// Clone returns a deep copy of the metadata.
func (m *FileMetadata) Clone() *FileMetadata {
	clone := *m
	if m.Attributes != nil {
		clone.Attributes = make(map[string]string, len(m.Attributes))
		for k, v := range m.Attributes {
			clone.Attributes[k] = v
		}
	}

	return &clone
}
