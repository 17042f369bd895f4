package entity

import "path/filepath"

// SourceImage is a screenshot awaiting processing. Name is its identity.
type SourceImage struct {
	Name string
	Path string
	Data []byte
}

// NewSourceImage builds a SourceImage named after the base of path.
func NewSourceImage(path string, data []byte) SourceImage {
	return SourceImage{Name: filepath.Base(path), Path: path, Data: data}
}
