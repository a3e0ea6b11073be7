package media

import (
	"path/filepath"
	"strings"
)

// Type identifies the broad content category of a candidate file.
type Type string

const (
	TypePhoto   Type = "photo"
	TypeVideo   Type = "video"
	TypeUnknown Type = "unknown"
)

// Bucket returns the destination directory label for the type.
func (t Type) Bucket() string {
	switch t {
	case TypeVideo:
		return "VIDEO"
	default:
		return "PHOTO"
	}
}

// Candidate is a file selected by the scanner for processing. Immutable;
// produced once, consumed once.
type Candidate struct {
	Path string
	Type Type
}

// Registry resolves file extensions to media types using the configured
// allow-lists.
type Registry struct {
	photo map[string]struct{}
	video map[string]struct{}
}

// NewRegistry builds a registry from normalized (lowercase, dotted)
// extension lists.
func NewRegistry(photoExts, videoExts []string) *Registry {
	r := &Registry{
		photo: make(map[string]struct{}, len(photoExts)),
		video: make(map[string]struct{}, len(videoExts)),
	}
	for _, ext := range photoExts {
		r.photo[strings.ToLower(ext)] = struct{}{}
	}
	for _, ext := range videoExts {
		r.video[strings.ToLower(ext)] = struct{}{}
	}
	return r
}

// Detect maps a path to its media type. The second return is false when the
// extension appears in neither allow-list.
func (r *Registry) Detect(path string) (Type, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return TypeUnknown, false
	}
	if _, ok := r.photo[ext]; ok {
		return TypePhoto, true
	}
	if _, ok := r.video[ext]; ok {
		return TypeVideo, true
	}
	return TypeUnknown, false
}
