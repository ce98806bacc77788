package vocab

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads a vocabulary definition from a YAML file and validates it.
// Fields omitted from the file keep their built-in defaults, so a file
// can override just the departments or just the role folders.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}

	def := DefaultDefinition()
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse vocabulary file %s: %w", path, err)
	}

	v, err := New(def)
	if err != nil {
		return nil, fmt.Errorf("invalid vocabulary in %s: %w", path, err)
	}
	return v, nil
}

// LoadFromDir searches a directory for a vocabulary file and loads it,
// falling back to the built-in vocabulary when none is present.
func LoadFromDir(dir string) (*Vocabulary, error) {
	names := []string{"lantern-vocab.yaml", "lantern-vocab.yml", ".lantern-vocab.yaml"}

	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	return Default(), nil
}

// Save writes a definition to a YAML file. Used by tooling to emit a
// starting point for customization.
func Save(def Definition, path string) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
