package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Catalog persistence backends.
const (
	CatalogStoreSQLite = "sqlite"
	CatalogStoreFile   = "file"
)

// Ops API auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Bot     BotConfig         `yaml:"bot"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	if err := c.Bot.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// CatalogConfig selects the catalog persistence backend and its path.
type CatalogConfig struct {
	Store      string `yaml:"store"`
	SQLitePath string `yaml:"sqlite_path"`
	FilePath   string `yaml:"file_path"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	if c.Store == "" {
		c.Store = CatalogStoreSQLite
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Store, validation.Required, validation.In(CatalogStoreSQLite, CatalogStoreFile)),
	); err != nil {
		return err
	}
	switch c.Store {
	case CatalogStoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("catalog: store is %q but sqlite_path is empty", c.Store)
		}
	case CatalogStoreFile:
		if c.FilePath == "" {
			return fmt.Errorf("catalog: store is %q but file_path is empty", c.Store)
		}
	}
	return nil
}

// BotConfig holds the chat transport and orchestration settings.
//
// QueryChatID designates the one group chat whose free text is treated as
// catalog queries; messages from other chats are ignored (commands and
// dialogue replies excepted). SearchDelayMS inserts an artificial pause
// between the "searching" acknowledgment and the result.
type BotConfig struct {
	Token          string `yaml:"token"`
	APIBaseURL     string `yaml:"api_base_url"`
	WebhookSecret  string `yaml:"webhook_secret"`
	QueryChatID    int64  `yaml:"query_chat_id"`
	SearchDelayMS  int    `yaml:"search_delay_ms"`
	MaxResults     int    `yaml:"max_results"`
	SessionTTLMins int    `yaml:"session_ttl_minutes"`
}

// SearchDelay returns the configured ack-to-result delay.
func (c *BotConfig) SearchDelay() time.Duration {
	return time.Duration(c.SearchDelayMS) * time.Millisecond
}

// SessionTTL returns the dialogue session lifetime (zero means the
// dialogue package default applies).
func (c *BotConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMins) * time.Minute
}

// Validate validates the bot configuration.
func (c *BotConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Token, validation.Required),
		validation.Field(&c.QueryChatID, validation.Required),
		validation.Field(&c.SearchDelayMS, validation.Min(0)),
		validation.Field(&c.MaxResults, validation.Min(0)),
		validation.Field(&c.SessionTTLMins, validation.Min(0)),
	)
}

// AuthConfig holds the operator allow-list and the ops API auth settings.
//
// Operators are identities allowed to administer the catalog. They come
// from the static list, the optional allow-list file, or both; the file is
// reloaded at runtime when it changes.
type AuthConfig struct {
	Operators     []int64       `yaml:"operators"`
	AllowlistPath string        `yaml:"allowlist_path"`
	API           APIAuthConfig `yaml:"api"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	return c.API.Validate()
}

// APIAuthConfig controls how the ops API authenticates:
//   - "disabled" (default): no authentication, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type APIAuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the ops API auth configuration.
func (c *APIAuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: api mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when ops API authentication is active.
func (c *APIAuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Catalog: CatalogConfig{
			Store:      CatalogStoreSQLite,
			SQLitePath: "./ansuz.db",
		},
		Bot: BotConfig{
			APIBaseURL:     "https://api.telegram.org",
			MaxResults:     5,
			SessionTTLMins: 15,
		},
		Auth: AuthConfig{
			API: APIAuthConfig{Mode: AuthModeDisabled},
		},
	}
}
