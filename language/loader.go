package language

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load reads one language profile from a YAML file and installs it over any
// builtin with the same id. Operators can retune compiler flags this way
// without rebuilding the engine.
func Load(path string) (Language, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Language{}, fmt.Errorf("read language profile: %w", err)
	}

	var config struct {
		Version  string   `yaml:"version"`
		Language Language `yaml:"language"`
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Language{}, fmt.Errorf("parse language profile %s: %w", path, err)
	}

	lang := config.Language
	if lang.Name == "" {
		return Language{}, fmt.Errorf("language profile %s: name is required", path)
	}
	if lang.Run.Pathname == "" {
		return Language{}, fmt.Errorf("language profile %s: run target is required", path)
	}

	builtins[lang.ID] = lang
	return lang, nil
}

// LoadDir installs every *.yaml profile found in dir.
func LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read language profile dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		if _, err := Load(filepath.Join(dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
