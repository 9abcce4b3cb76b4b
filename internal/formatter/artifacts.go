package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tordrt/commentsync/internal/reconcile"
)

// Default artifact file names
const (
	DefaultFile = "default_metadata.json"
	UpdatedFile = "updated_metadata.json"
)

// ArtifactWriter persists classifications as JSON files in a directory
type ArtifactWriter struct {
	OutputDir   string
	DefaultFile string
	UpdatedFile string
}

// NewArtifactWriter creates a writer, falling back to the default file names
func NewArtifactWriter(outputDir, defaultFile, updatedFile string) *ArtifactWriter {
	if outputDir == "" {
		outputDir = "."
	}
	if defaultFile == "" {
		defaultFile = DefaultFile
	}
	if updatedFile == "" {
		updatedFile = UpdatedFile
	}
	return &ArtifactWriter{
		OutputDir:   outputDir,
		DefaultFile: defaultFile,
		UpdatedFile: updatedFile,
	}
}

// WriteDefault writes the classification of the fetched table
func (w *ArtifactWriter) WriteDefault(c reconcile.Classification) (string, error) {
	return w.write(w.DefaultFile, c)
}

// WriteUpdated writes the classification of the table after the update
func (w *ArtifactWriter) WriteUpdated(c reconcile.Classification) (string, error) {
	return w.write(w.UpdatedFile, c)
}

func (w *ArtifactWriter) write(name string, c reconcile.Classification) (string, error) {
	if err := os.MkdirAll(w.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(w.OutputDir, name)
	}

	// A partial write never replaces an existing artifact.
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := WriteJSON(tmp, c); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// WriteJSON encodes v with four-space indentation
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
