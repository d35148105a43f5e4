// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for kchat.
//
// Supports both TOML and JSON configuration formats, with defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.kchat/config.toml
//   - ~/.kchat/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/kchat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete kchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Transcript virtualization
	VList VListConfig `toml:"vlist" json:"vlist"`

	// Presentation
	UI UIConfig `toml:"ui" json:"ui"`

	// Chat history persistence
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Mock assistant behaviour
	Assistant AssistantConfig `toml:"assistant" json:"assistant"`

	// Auto-save
	Session SessionConfig `toml:"session" json:"session"`

	Logging LoggingConfig `toml:"logging" json:"logging"`
}

// VListConfig tunes the virtualized transcript. Heights are in rows.
type VListConfig struct {
	EstimatedItemHeight   int `toml:"estimated_item_height" json:"estimated_item_height"`
	OverscanBefore        int `toml:"overscan_before" json:"overscan_before"`
	OverscanAfter         int `toml:"overscan_after" json:"overscan_after"`
	ResizeThrottleMs      int `toml:"resize_throttle_ms" json:"resize_throttle_ms"`
	ScrollThrottleMs      int `toml:"scroll_throttle_ms" json:"scroll_throttle_ms"`
	DefaultViewportHeight int `toml:"default_viewport_height" json:"default_viewport_height"`
}

// ResizeThrottle returns the resize window as a duration.
func (v VListConfig) ResizeThrottle() time.Duration {
	return time.Duration(v.ResizeThrottleMs) * time.Millisecond
}

// ScrollThrottle returns the scroll window as a duration.
func (v VListConfig) ScrollThrottle() time.Duration {
	return time.Duration(v.ScrollThrottleMs) * time.Millisecond
}

// UIConfig contains UI preferences.
type UIConfig struct {
	Theme          string `toml:"theme" json:"theme"`
	Markdown       bool   `toml:"markdown" json:"markdown"`
	ShowTimestamps bool   `toml:"show_timestamps" json:"show_timestamps"`
	SidebarWidth   int    `toml:"sidebar_width" json:"sidebar_width"`
}

// StorageConfig selects where the chat list is persisted.
type StorageConfig struct {
	// Backend is "sqlite" or "file".
	Backend string `toml:"backend" json:"backend"`

	// Path overrides the default database file or store directory.
	Path string `toml:"path" json:"path"`
}

// AssistantConfig controls the reply generator.
type AssistantConfig struct {
	Mute          bool `toml:"mute" json:"mute"`
	PromptWindow  int  `toml:"prompt_window" json:"prompt_window"`
	StreamDelayMs int  `toml:"stream_delay_ms" json:"stream_delay_ms"`
}

// StreamDelay returns the delay between streamed chunks.
func (a AssistantConfig) StreamDelay() time.Duration {
	return time.Duration(a.StreamDelayMs) * time.Millisecond
}

// SessionConfig controls auto-save.
type SessionConfig struct {
	AutoSave             bool `toml:"auto_save" json:"auto_save"`
	AutoSaveIntervalSecs int  `toml:"auto_save_interval_secs" json:"auto_save_interval_secs"`
}

// AutoSaveInterval returns the auto-save period.
func (s SessionConfig) AutoSaveInterval() time.Duration {
	return time.Duration(s.AutoSaveIntervalSecs) * time.Second
}

// LoggingConfig controls the debug log file.
type LoggingConfig struct {
	File  string `toml:"file" json:"file"`
	Debug bool   `toml:"debug" json:"debug"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Version: "1",
		VList: VListConfig{
			EstimatedItemHeight:   6,
			OverscanBefore:        3,
			OverscanAfter:         2,
			ResizeThrottleMs:      100,
			ScrollThrottleMs:      50,
			DefaultViewportHeight: 20,
		},
		UI: UIConfig{
			Theme:          "dark",
			Markdown:       true,
			ShowTimestamps: true,
			SidebarWidth:   28,
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
		},
		Assistant: AssistantConfig{
			PromptWindow:  5,
			StreamDelayMs: 25,
		},
		Session: SessionConfig{
			AutoSave:             true,
			AutoSaveIntervalSecs: 30,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the kchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".kchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// StoragePath returns the configured storage location, or the default for
// the selected backend.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	if c.Storage.Backend == BackendFile {
		return filepath.Join(dir, "store"), nil
	}
	return filepath.Join(dir, "kchat.db"), nil
}

// LogPath returns the configured log file, or ~/.kchat/kchat.log.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File != "" {
		return c.Logging.File, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "kchat.log"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			return LoadFromPath(tomlPath)
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			return LoadFromPath(jsonPath)
		}
	}

	cfg := Default()
	return cfg, cfg.finish()
}

// LoadTOML decodes a TOML file over cfg. Keys missing from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// LoadFromPath loads configuration from a specific file path with full
// validation. The format is chosen by extension; anything but .json is TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if strings.HasSuffix(path, ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finish applies env overrides, defaults and validation.
func (c *Config) finish() error {
	c.ApplyEnvOverrides()
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file atomically.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# kchat configuration file")
	fmt.Fprintln(&buf, "# Generated by kchat - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration to a JSON file atomically.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func checkRange(errs *ValidateErrors, field string, v, lo, hi int) {
	if v < lo || v > hi {
		*errs = append(*errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("value %d out of range [%d, %d]", v, lo, hi),
		})
	}
}

// Validate validates the configuration and returns any errors as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// VList
	checkRange(&errs, "vlist.estimated_item_height", c.VList.EstimatedItemHeight, 1, 500)
	checkRange(&errs, "vlist.overscan_before", c.VList.OverscanBefore, 0, 100)
	checkRange(&errs, "vlist.overscan_after", c.VList.OverscanAfter, 0, 100)
	checkRange(&errs, "vlist.resize_throttle_ms", c.VList.ResizeThrottleMs, 0, 5000)
	checkRange(&errs, "vlist.scroll_throttle_ms", c.VList.ScrollThrottleMs, 0, 5000)
	checkRange(&errs, "vlist.default_viewport_height", c.VList.DefaultViewportHeight, 1, 1000)

	// UI
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}
	if c.UI.SidebarWidth != 0 {
		checkRange(&errs, "ui.sidebar_width", c.UI.SidebarWidth, 16, 80)
	}

	// Storage
	switch strings.ToLower(c.Storage.Backend) {
	case BackendSQLite, BackendFile:
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: sqlite, file", c.Storage.Backend),
		})
	}

	// Assistant
	checkRange(&errs, "assistant.prompt_window", c.Assistant.PromptWindow, 1, 100)
	checkRange(&errs, "assistant.stream_delay_ms", c.Assistant.StreamDelayMs, 0, 2000)

	// Session
	if c.Session.AutoSave {
		checkRange(&errs, "session.auto_save_interval_secs", c.Session.AutoSaveIntervalSecs, 5, 3600)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills values that are unset and have no valid zero.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.VList.EstimatedItemHeight == 0 {
		c.VList.EstimatedItemHeight = d.VList.EstimatedItemHeight
	}
	if c.VList.DefaultViewportHeight == 0 {
		c.VList.DefaultViewportHeight = d.VList.DefaultViewportHeight
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	if c.Assistant.PromptWindow == 0 {
		c.Assistant.PromptWindow = d.Assistant.PromptWindow
	}
	if c.Session.AutoSaveIntervalSecs == 0 {
		c.Session.AutoSaveIntervalSecs = d.Session.AutoSaveIntervalSecs
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - KCHAT_ESTIMATED_ITEM_HEIGHT: overrides vlist.estimated_item_height
//   - KCHAT_STORAGE_BACKEND: overrides storage.backend
//   - KCHAT_STORAGE_PATH: overrides storage.path
//   - KCHAT_MUTE: set to "1" or "true" to mute the assistant
//   - KCHAT_DEBUG: set to "1" or "true" to enable debug logging
func (c *Config) ApplyEnvOverrides() {
	if h := os.Getenv("KCHAT_ESTIMATED_ITEM_HEIGHT"); h != "" {
		if n, err := strconv.Atoi(h); err == nil {
			c.VList.EstimatedItemHeight = n
		}
	}

	if backend := os.Getenv("KCHAT_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}

	if path := os.Getenv("KCHAT_STORAGE_PATH"); path != "" {
		c.Storage.Path = path
	}

	if mute := os.Getenv("KCHAT_MUTE"); mute != "" {
		c.Assistant.Mute = envBool(mute)
	}

	if debug := os.Getenv("KCHAT_DEBUG"); debug != "" {
		c.Logging.Debug = envBool(debug)
	}
}

func envBool(s string) bool {
	s = strings.ToLower(s)
	return s == "1" || s == "true" || s == "yes"
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "vlist.overscan_before").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("field '%s' is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %w", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			field.SetBool(envBool(strVal))
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"version",
		"vlist.estimated_item_height",
		"vlist.overscan_before",
		"vlist.overscan_after",
		"vlist.resize_throttle_ms",
		"vlist.scroll_throttle_ms",
		"vlist.default_viewport_height",
		"ui.theme",
		"ui.markdown",
		"ui.show_timestamps",
		"ui.sidebar_width",
		"storage.backend",
		"storage.path",
		"assistant.mute",
		"assistant.prompt_window",
		"assistant.stream_delay_ms",
		"session.auto_save",
		"session.auto_save_interval_secs",
		"logging.file",
		"logging.debug",
	}
}

// Clone returns a copy of the configuration. Config holds no reference
// types, so a value copy is deep.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the configuration as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
