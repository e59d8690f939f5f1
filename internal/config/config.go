// Package config provides application configuration from database.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bborn/taskform/internal/db"
)

// Config holds application configuration loaded from database.
type Config struct {
	db             *db.DB
	ImagesDir      string
	RepoPath       string
	DefaultProfile string // EXECUTOR[:VARIANT], "" to use the profiles file default
}

// Setting keys
const (
	SettingImagesDir      = "images_dir"
	SettingRepoPath       = "repo_path"
	SettingDefaultProfile = "default_profile"
)

// Keys lists every setting key in display order.
var Keys = []string{SettingImagesDir, SettingRepoPath, SettingDefaultProfile}

// New creates a config from database.
func New(database *db.DB) *Config {
	cfg := &Config{db: database}
	cfg.load()
	return cfg
}

func (c *Config) load() {
	if dir, err := c.db.GetSetting(SettingImagesDir); err == nil && dir != "" {
		c.ImagesDir = expandPath(dir)
	} else {
		home, _ := os.UserHomeDir()
		c.ImagesDir = filepath.Join(home, ".local", "share", "taskform", "images")
	}

	if repo, err := c.db.GetSetting(SettingRepoPath); err == nil && repo != "" {
		c.RepoPath = expandPath(repo)
	} else {
		c.RepoPath, _ = os.Getwd()
	}

	if profile, err := c.db.GetSetting(SettingDefaultProfile); err == nil {
		c.DefaultProfile = strings.TrimSpace(profile)
	}
}

// Set stores a setting and applies it to the config.
func (c *Config) Set(key, value string) error {
	switch key {
	case SettingImagesDir, SettingRepoPath, SettingDefaultProfile:
	default:
		return &UnknownSettingError{Key: key}
	}
	if err := c.db.SetSetting(key, value); err != nil {
		return err
	}
	c.load()
	return nil
}

// Get returns the effective value of a setting.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case SettingImagesDir:
		return c.ImagesDir, nil
	case SettingRepoPath:
		return c.RepoPath, nil
	case SettingDefaultProfile:
		return c.DefaultProfile, nil
	}
	return "", &UnknownSettingError{Key: key}
}

// UnknownSettingError is returned for keys not in Keys.
type UnknownSettingError struct {
	Key string
}

func (e *UnknownSettingError) Error() string {
	return "unknown setting " + e.Key + " (valid: " + strings.Join(Keys, ", ") + ")"
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
