package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"wasmstack/pkg/stack"
)

// Config holds the run settings that can come from a YAML file.
type Config struct {
	MaxCallDepth   int      `yaml:"max_call_depth"`
	MaxStackHeight int      `yaml:"max_stack_height"`
	MaxSteps       int      `yaml:"max_steps"`
	Invoke         string   `yaml:"invoke"`
	Args           []string `yaml:"args"`
}

// Default returns the settings used when neither a file nor a flag sets them.
func Default() Config {
	return Config{
		MaxCallDepth:   stack.DefaultMaxCallDepth,
		MaxStackHeight: stack.DefaultMaxHeight,
		Invoke:         "main",
	}
}

// Load reads a config file. Keys missing from the file keep their default,
// unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("config: empty path")
	}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects negative limits; zero means unlimited.
func (c Config) Validate() error {
	switch {
	case c.MaxCallDepth < 0:
		return fmt.Errorf("max_call_depth must not be negative, got %d", c.MaxCallDepth)
	case c.MaxStackHeight < 0:
		return fmt.Errorf("max_stack_height must not be negative, got %d", c.MaxStackHeight)
	case c.MaxSteps < 0:
		return fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps)
	}
	return nil
}
