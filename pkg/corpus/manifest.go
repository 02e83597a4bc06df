package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bibleai-be/pkg/bible"

	"gopkg.in/yaml.v3"
)

// Source is one translation file listed in the manifest
type Source struct {
	Translation string `yaml:"translation"`
	File        string `yaml:"file"`
	// Format is "books" ([{"name": ..., "chapters": [[...]]}]) or "flat" ({"창1:1": ...}).
	// Empty detects the format from the JSON shape.
	Format string `yaml:"format,omitempty"`
}

// Manifest lists the corpus files to ingest
type Manifest struct {
	Sources []Source `yaml:"sources"`
	// Embed controls whether loaded verses are also written to the vector index
	Embed     bool `yaml:"embed"`
	BatchSize int  `yaml:"batch_size,omitempty"`

	dir string
}

const defaultBatchSize = 64

// LoadManifest reads a YAML manifest. Relative file paths resolve against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// ParseManifest decodes and validates manifest content
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if len(m.Sources) == 0 {
		return nil, errors.New("invalid manifest: no sources")
	}
	for i := range m.Sources {
		s := &m.Sources[i]
		t, ok := bible.LookupTranslation(s.Translation)
		if !ok {
			return nil, fmt.Errorf("invalid manifest: source %d: unknown translation %q", i, s.Translation)
		}
		if t.Remote() {
			return nil, fmt.Errorf("invalid manifest: source %d: %s has no local corpus", i, t.Code)
		}
		s.Translation = t.Code
		if strings.TrimSpace(s.File) == "" {
			return nil, fmt.Errorf("invalid manifest: source %d: file is required", i)
		}
		switch s.Format {
		case "", FormatBooks, FormatFlat:
		default:
			return nil, fmt.Errorf("invalid manifest: source %d: unknown format %q", i, s.Format)
		}
	}
	if m.BatchSize <= 0 {
		m.BatchSize = defaultBatchSize
	}
	return &m, nil
}

// Path resolves a source file against the manifest location
func (m *Manifest) Path(s Source) string {
	if filepath.IsAbs(s.File) || m.dir == "" {
		return s.File
	}
	return filepath.Join(m.dir, s.File)
}
