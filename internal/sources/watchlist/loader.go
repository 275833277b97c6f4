package watchlist

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of the watch-list file
type Loader struct {
	filePath string
}

// NewLoader creates a new watch-list loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Path returns the watched file path.
func (l *Loader) Path() string {
	return l.filePath
}

// Load reads and parses the watch-list file.
// ${VAR} references are expanded from the environment before parsing.
func (l *Loader) Load() (Config, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read watch-list file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse watch-list yaml: %w", err)
	}

	return config, nil
}
