// Package storage defines the charts file-system abstraction.
package storage

import (
	"io/fs"

	"github.com/starford/atlas/internal/models"
)

// Chart source file names, in lookup order.
var ChartFiles = []string{"index.txt", "index.text"}

// Provider is the interface for chart file operations.
type Provider interface {
	// ListCharts returns every directory under the root that holds a chart
	// source file, in lexical path order.
	ListCharts() ([]models.ChartMetadata, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Stat describes the file at path (relative to the root).
	Stat(path string) (fs.FileInfo, error)
	// Write atomically writes content to path (relative to the root).
	Write(path string, content []byte) error
	// Root returns the absolute charts directory.
	Root() string
}
