package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// KeybindingConfig represents a single keybinding configuration.
type KeybindingConfig struct {
	Keys []string `yaml:"keys"` // Key(s) that trigger the action
	Help string   `yaml:"help"` // Help text displayed in the UI
}

// KeybindingsConfig holds all customizable dialog keybindings.
type KeybindingsConfig struct {
	Submit          *KeybindingConfig `yaml:"submit,omitempty"`
	Cancel          *KeybindingConfig `yaml:"cancel,omitempty"`
	ToggleAutoStart *KeybindingConfig `yaml:"toggle_auto_start,omitempty"`
	NextField       *KeybindingConfig `yaml:"next_field,omitempty"`
	PrevField       *KeybindingConfig `yaml:"prev_field,omitempty"`
	Preview         *KeybindingConfig `yaml:"preview,omitempty"`
	RemoveImage     *KeybindingConfig `yaml:"remove_image,omitempty"`
}

// DefaultKeybindingsConfigPath returns the default path for the keybindings config file.
func DefaultKeybindingsConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "taskform", "keybindings.yaml")
}

// LoadKeybindings loads keybindings from the default config path.
// Returns nil if the file doesn't exist (not an error - just use defaults).
func LoadKeybindings() (*KeybindingsConfig, error) {
	return LoadKeybindingsFromPath(DefaultKeybindingsConfigPath())
}

// LoadKeybindingsFromPath loads keybindings from a specific path.
// Returns nil if the file doesn't exist (not an error - just use defaults).
func LoadKeybindingsFromPath(path string) (*KeybindingsConfig, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var config KeybindingsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GenerateDefaultKeybindingsYAML generates a YAML string with all default keybindings.
// This can be used to create an example config file.
func GenerateDefaultKeybindingsYAML() string {
	return `# taskform Keybindings Configuration
# Customize the task dialog's keyboard shortcuts by modifying the keys below.
# Each keybinding has:
#   keys: list of key(s) that trigger the action (e.g., ["ctrl+s"], ["tab", "down"])
#   help: text shown in the help line
#
# Available key formats:
#   - Single keys: "a", "?"
#   - Modified keys: "ctrl+s", "ctrl+x", "shift+tab"
#   - Special keys: "enter", "esc", "tab", "up", "down"
#
# Only include keybindings you want to customize.
# Omitted keybindings will use defaults.

submit:
  keys: ["ctrl+s"]
  help: "submit"

cancel:
  keys: ["esc"]
  help: "cancel"

toggle_auto_start:
  keys: ["ctrl+a"]
  help: "auto-start"

next_field:
  keys: ["tab"]
  help: "next field"

prev_field:
  keys: ["shift+tab"]
  help: "prev field"

preview:
  keys: ["ctrl+p"]
  help: "preview"

remove_image:
  keys: ["ctrl+x"]
  help: "remove image"
`
}
