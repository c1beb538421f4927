// Package persona holds the bot's voice: the fixed system instruction, the
// greeting, and optional mood-keyword overrides. Everything has a built-in
// default so the bot runs with no persona file at all; a YAML file tunes the
// voice without a rebuild.
package persona

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSystem is the persona instruction sent as the first system message
// on every completion call.
const DefaultSystem = "Ты — эмпатичный психолог. Отвечай с теплом и участием. " +
	"Помоги человеку понять себя. Не давай готовых советов, а мягко направляй."

// DefaultGreeting opens every session.
const DefaultGreeting = "Ты. Без фильтра.\n\nМесто, где можно быть настоящим.\n\n" +
	"Напиши, что у тебя внутри — и мы начнём."

// Config is the bot persona. Zero-value fields fall back to defaults.
type Config struct {
	// System is the fixed persona system instruction.
	System string `yaml:"system"`

	// Greeting is sent in response to /start.
	Greeting string `yaml:"greeting"`

	// Keywords optionally overrides the mood classifier's keyword sets.
	// A mood left empty keeps its built-in set.
	Keywords struct {
		Joy     []string `yaml:"joy"`
		Sadness []string `yaml:"sadness"`
		Anger   []string `yaml:"anger"`
		Calm    []string `yaml:"calm"`
	} `yaml:"keywords"`
}

// Default returns the built-in persona.
func Default() Config {
	return Config{
		System:   DefaultSystem,
		Greeting: DefaultGreeting,
	}
}

// Load reads a persona YAML file and fills unset fields from the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read persona file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse persona file: %w", err)
	}

	if cfg.System == "" {
		cfg.System = DefaultSystem
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	return cfg, nil
}
