package internal

import (
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Confluence ConfluenceConfig  `yaml:"confluence"`
	Sync       SyncConfig        `yaml:"sync"`
	Journal    JournalConfig     `yaml:"journal"`
	Preview    PreviewConfig     `yaml:"preview"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Confluence.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	return c.Preview.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// ConfluenceConfig holds the remote wiki endpoint and credentials.
// All three fields are required; a missing value is a fatal startup error
// so that no file is touched with incomplete credentials.
type ConfluenceConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	APIToken string `yaml:"api_token"`
}

// Validate validates the Confluence configuration.
func (c *ConfluenceConfig) Validate() error {
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.APIToken, validation.Required),
	)
}

// SyncConfig holds the local docs directory and publishing defaults.
// SpaceKey and ParentID apply when a document's front-matter does not
// override them; ParentID may be empty (pages are created at space root).
type SyncConfig struct {
	DocsDir  string `yaml:"docs_dir"`
	SpaceKey string `yaml:"space_key"`
	ParentID string `yaml:"parent_id"`
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DocsDir, validation.Required),
		validation.Field(&c.SpaceKey, validation.Required),
	)
}

// JournalConfig holds the optional sync journal database path.
// An empty path disables the journal entirely.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Enabled returns true when a journal database is configured.
func (c *JournalConfig) Enabled() bool {
	return c.Path != ""
}

// PreviewConfig holds the local preview server configuration.
type PreviewConfig struct {
	Port int `yaml:"port"`
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Sync: SyncConfig{
			DocsDir:  "./docs",
			SpaceKey: "DOCS",
		},
		Preview: PreviewConfig{
			Port: 8080,
		},
	}
}
