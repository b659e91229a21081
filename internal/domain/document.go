package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// SupportedExtensions lists the document formats the loader can extract text from.
var SupportedExtensions = []string{".pdf", ".docx", ".txt"}

// Document is a source file from the documents directory with its extracted text.
type Document struct {
	Name    string
	Path    string
	Ext     string
	Size    int64
	ModTime time.Time
	Content string
}

// DocumentInfo is a directory listing entry (no content).
type DocumentInfo struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// IsSupported reports whether the file name has a supported extension (case-insensitive).
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
