package cli

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

const (
	// DefaultBaseDir is the configuration directory under the home directory.
	DefaultBaseDir = ".giztoy"
	// DefaultConfigFile is the configuration file name inside the app directory.
	DefaultConfigFile = "config.yaml"
)

// ErrNoCurrentContext is returned when no context is selected.
var ErrNoCurrentContext = errors.New("cli: no current context set")

// Config is the on-disk configuration of an app.
type Config struct {
	CurrentContext string              `yaml:"current_context,omitempty"`
	Contexts       map[string]*Context `yaml:"contexts,omitempty"`

	path string
}

// Context is one named connection profile.
type Context struct {
	Name string `yaml:"name"`

	// Transport selects the live service: "gemini" or "openai".
	Transport    string `yaml:"transport,omitempty"`
	APIKey       string `yaml:"api_key,omitempty"`
	BaseURL      string `yaml:"base_url,omitempty"`
	Model        string `yaml:"model,omitempty"`
	Voice        string `yaml:"voice,omitempty"`
	Instructions string `yaml:"instructions,omitempty"`
}

// LoadConfig loads ~/.giztoy/<app>/config.yaml, creating it when missing.
func LoadConfig(app string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cli: home directory: %w", err)
	}
	return LoadConfigFile(filepath.Join(home, DefaultBaseDir, app, DefaultConfigFile))
}

// LoadConfigFile loads the configuration at path, creating it when missing.
func LoadConfigFile(path string) (*Config, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cli: create config directory: %w", err)
	}
	cfg := &Config{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg.Contexts = make(map[string]*Context)
		return cfg, cfg.Save()
	case err != nil:
		return nil, fmt.Errorf("cli: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cli: parse %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = make(map[string]*Context)
	}
	for name, c := range cfg.Contexts {
		c.Name = name
	}
	return cfg, nil
}

// Save writes the configuration back to its file.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("cli: marshal config: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return fmt.Errorf("cli: write config: %w", err)
	}
	return nil
}

// Path returns the configuration file path.
func (c *Config) Path() string { return c.path }

// AddContext stores ctx under name, replacing any existing one. The first
// context added becomes current.
func (c *Config) AddContext(name string, ctx *Context) error {
	if name == "" {
		return errors.New("cli: context name is required")
	}
	ctx.Name = name
	c.Contexts[name] = ctx
	if c.CurrentContext == "" {
		c.CurrentContext = name
	}
	return c.Save()
}

// DeleteContext removes a context. Deleting the current context clears the
// selection.
func (c *Config) DeleteContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("cli: context %q not found", name)
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext selects the current context.
func (c *Config) UseContext(name string) error {
	if _, ok := c.Contexts[name]; !ok {
		return fmt.Errorf("cli: context %q not found", name)
	}
	c.CurrentContext = name
	return c.Save()
}

// ResolveContext returns the named context, or the current one when name is
// empty.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		if c.CurrentContext == "" {
			return nil, ErrNoCurrentContext
		}
		name = c.CurrentContext
	}
	ctx, ok := c.Contexts[name]
	if !ok {
		return nil, fmt.Errorf("cli: context %q not found", name)
	}
	return ctx, nil
}

// ContextNames returns the context names in sorted order.
func (c *Config) ContextNames() []string {
	return slices.Sorted(maps.Keys(c.Contexts))
}

// Masked returns a copy of ctx safe for display.
func (ctx *Context) Masked() *Context {
	m := *ctx
	m.APIKey = MaskAPIKey(ctx.APIKey)
	return &m
}

// MaskAPIKey keeps the first and last four characters of long keys.
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
