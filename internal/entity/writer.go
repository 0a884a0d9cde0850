package entity

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tordrt/migracraft/internal/schema"
)

// Writer writes one entity file per table into a directory
type Writer struct {
	OutputDir string
	Generator Generator
	Options   Options
}

// NewWriter creates a writer for g. The package name defaults to the
// output directory's base name.
func NewWriter(outputDir string, g Generator) *Writer {
	return &Writer{
		OutputDir: outputDir,
		Generator: g,
		Options:   Options{Package: packageName(outputDir)},
	}
}

// Write renders every table of s and returns the paths it wrote.
func (w *Writer) Write(s *schema.Schema) ([]string, error) {
	if err := os.MkdirAll(w.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, table := range s.Tables {
		path, err := w.writeTableFile(table)
		if err != nil {
			return written, fmt.Errorf("failed to write entity file for %s: %w", table.Name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func (w *Writer) writeTableFile(t schema.Table) (string, error) {
	data, err := w.Generator.Generate(t, w.Options)
	if err != nil {
		return "", err
	}

	filename := filepath.Join(w.OutputDir, w.Generator.FileName(t.Name))
	file, err := os.Create(filename)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()

	if _, err := file.Write(data); err != nil {
		return "", err
	}
	return filename, file.Close()
}

// packageName derives a lower-case identifier from a directory path.
func packageName(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	name := strings.ToLower(strings.Join(words(base), ""))
	if name == "" {
		return "entities"
	}
	return identifier(name)
}
