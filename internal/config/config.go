package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the top-level configuration for the svparse CLI
type Config struct {
	// IncludeDirs is searched, in order, for `include files that do not
	// resolve relative to the including file
	IncludeDirs []string `json:"includeDirs,omitempty"`

	// Defines seeds the preprocessor macro table, as if each entry had
	// been `define-d before the first line
	Defines map[string]string `json:"defines,omitempty"`

	// Files is a list of glob patterns selecting the source files
	Files []string `json:"files,omitempty"`

	// Exclude is a list of glob patterns removed from the file set
	Exclude []string `json:"exclude,omitempty"`

	// MaxParallelFiles limits concurrent file parsing (0 = auto)
	MaxParallelFiles int `json:"maxParallelFiles,omitempty"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Defines:          map[string]string{},
		Files:            []string{"*.sv", "*.svh", "**/*.sv", "**/*.svh"},
		Exclude:          []string{},
		MaxParallelFiles: 0, // auto
	}
}

// Load finds and loads the configuration file
// Search order:
//  1. ./svparse.json (current working directory)
//  2. ./.svparse.json (current working directory)
//  3. <rootPath>/svparse.json (if different from cwd)
//  4. ~/.config/svparse/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "svparse.json"),
		filepath.Join(cwd, ".svparse.json"),
	}

	// If rootPath is a directory and different from cwd, also check there
	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, "svparse.json"),
				filepath.Join(rootPath, ".svparse.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "svparse", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	// No config found, return defaults
	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.Defines == nil {
		c.Defines = make(map[string]string)
	}
	if len(c.Files) == 0 {
		c.Files = []string{"*.sv", "*.svh", "**/*.sv", "**/*.svh"}
	}
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// ShouldExcludeFile checks if a file is removed by an exclude pattern
func (c *Config) ShouldExcludeFile(filePath string) bool {
	for _, pattern := range c.Exclude {
		if matched, _ := filepath.Match(pattern, filePath); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(filePath)); matched {
			return true
		}
	}
	return false
}
