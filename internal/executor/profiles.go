package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in executors
const (
	ExecutorClaudeCode = "CLAUDE_CODE"
	ExecutorCodex      = "CODEX"
	ExecutorGemini     = "GEMINI"
	ExecutorOpenCode   = "OPENCODE"
)

// ProfileID names an execution profile: a coding agent plus an optional variant.
type ProfileID struct {
	Executor string `yaml:"executor"`
	Variant  string `yaml:"variant,omitempty"`
}

// String renders the profile as EXECUTOR or EXECUTOR:VARIANT.
func (p ProfileID) String() string {
	if p.Variant == "" {
		return p.Executor
	}
	return p.Executor + ":" + p.Variant
}

// ParseProfileID parses the EXECUTOR[:VARIANT] form.
func ParseProfileID(s string) (ProfileID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ProfileID{}, fmt.Errorf("parse profile: empty")
	}
	executor, variant, _ := strings.Cut(s, ":")
	if executor == "" {
		return ProfileID{}, fmt.Errorf("parse profile %q: missing executor", s)
	}
	return ProfileID{Executor: strings.ToUpper(executor), Variant: strings.ToUpper(variant)}, nil
}

// Profile is a selectable execution profile.
type Profile struct {
	ProfileID `yaml:",inline"`
	Label     string `yaml:"label,omitempty"`
}

// DisplayName returns the label, falling back to the profile id.
func (p Profile) DisplayName() string {
	if p.Label != "" {
		return p.Label
	}
	return p.ProfileID.String()
}

// Profiles is the configured profile list plus the default selection.
type Profiles struct {
	Default  string    `yaml:"default"`
	Profiles []Profile `yaml:"profiles"`
}

// DefaultProfiles returns the built-in profile set.
func DefaultProfiles() *Profiles {
	return &Profiles{
		Default: ExecutorClaudeCode,
		Profiles: []Profile{
			{ProfileID: ProfileID{Executor: ExecutorClaudeCode}, Label: "Claude Code"},
			{ProfileID: ProfileID{Executor: ExecutorClaudeCode, Variant: "PLAN"}, Label: "Claude Code (plan)"},
			{ProfileID: ProfileID{Executor: ExecutorCodex}, Label: "Codex"},
			{ProfileID: ProfileID{Executor: ExecutorGemini}, Label: "Gemini"},
			{ProfileID: ProfileID{Executor: ExecutorOpenCode}, Label: "OpenCode"},
		},
	}
}

// DefaultProfilesConfigPath returns the default path for the profiles config file.
func DefaultProfilesConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "taskform", "profiles.yaml")
}

// LoadProfilesFromPath loads profiles from a YAML file.
// Returns the built-in profiles if the file doesn't exist.
func LoadProfilesFromPath(path string) (*Profiles, error) {
	if path == "" {
		return DefaultProfiles(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultProfiles(), nil
		}
		return nil, err
	}

	var p Profiles
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if len(p.Profiles) == 0 {
		return nil, fmt.Errorf("parse profiles: %s defines no profiles", path)
	}
	for i := range p.Profiles {
		p.Profiles[i].Executor = strings.ToUpper(p.Profiles[i].Executor)
		p.Profiles[i].Variant = strings.ToUpper(p.Profiles[i].Variant)
	}
	return &p, nil
}

// IDs returns the profile ids in configured order.
func (p *Profiles) IDs() []ProfileID {
	ids := make([]ProfileID, 0, len(p.Profiles))
	for _, prof := range p.Profiles {
		ids = append(ids, prof.ProfileID)
	}
	return ids
}

// Find returns the profile with the given id.
func (p *Profiles) Find(id ProfileID) (Profile, bool) {
	for _, prof := range p.Profiles {
		if prof.ProfileID == id {
			return prof, true
		}
	}
	return Profile{}, false
}

// DefaultID returns the default profile. An override (e.g. a stored setting)
// wins when it names a configured profile. Returns nil when nothing is configured.
func (p *Profiles) DefaultID(override string) *ProfileID {
	for _, candidate := range []string{override, p.Default} {
		if candidate == "" {
			continue
		}
		id, err := ParseProfileID(candidate)
		if err != nil {
			continue
		}
		if _, ok := p.Find(id); ok {
			return &id
		}
	}
	if len(p.Profiles) > 0 {
		id := p.Profiles[0].ProfileID
		return &id
	}
	return nil
}
