package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/headless/internal/content"
	"github.com/starford/headless/internal/contentstore"
	"github.com/starford/headless/internal/hn"
	"github.com/starford/headless/internal/logging"
	"github.com/starford/headless/internal/respcache"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// CacheDriverNone disables response caching.
const CacheDriverNone = "none"

// Config represents the application configuration.
type Config struct {
	App         ApplicationConfig   `yaml:"app"`
	Vault       VaultConfig         `yaml:"vault"`
	SQLite      SQLiteConfig        `yaml:"sqlite"`
	Auth        AuthConfig          `yaml:"auth"`
	Access      AccessConfig        `yaml:"access"`
	Site        SiteConfig          `yaml:"site"`
	Cache       CacheConfig         `yaml:"cache"`
	Graph       GraphConfig         `yaml:"graph"`
	StripFields map[string][]string `yaml:"strip_fields"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	return c.Graph.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = logging.FormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(logging.FormatJSON, logging.FormatText)),
	); err != nil {
		return err
	}
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

// VaultConfig holds the path to the content vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how callers are identified:
//   - "disabled" (default): every caller gets the authenticated permissions.
//   - "token": callers presenting the bearer Token get the authenticated
//     permissions, everyone else the anonymous ones.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// AccessConfig lists the permissions of anonymous and authenticated callers.
type AccessConfig struct {
	Anonymous     []string `yaml:"anonymous"`
	Authenticated []string `yaml:"authenticated"`
}

// SiteConfig holds routing and language settings.
type SiteConfig struct {
	FrontPage           string            `yaml:"front_page"`
	NotFoundPage        string            `yaml:"not_found_page"`
	ForbiddenPage       string            `yaml:"forbidden_page"`
	DefaultLanguage     string            `yaml:"default_language"`
	LanguageNegotiation string            `yaml:"language_negotiation"`
	LanguagePrefixes    map[string]string `yaml:"language_prefixes"`
	Routable            []string          `yaml:"routable"`
	FieldPermissions    map[string]string `yaml:"field_permissions"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	if c.LanguageNegotiation == "" {
		c.LanguageNegotiation = content.NegotiationNone
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultLanguage, validation.Required),
		validation.Field(&c.LanguageNegotiation, validation.In(content.NegotiationNone, content.NegotiationPathPrefix)),
	)
}

// StoreSettings converts the site configuration for the content store.
func (c *SiteConfig) StoreSettings() contentstore.Settings {
	return contentstore.Settings{
		FrontPage:     c.FrontPage,
		NotFoundPage:  c.NotFoundPage,
		ForbiddenPage: c.ForbiddenPage,
		Languages: content.LanguageSettings{
			Method:   c.LanguageNegotiation,
			Default:  c.DefaultLanguage,
			Prefixes: c.LanguagePrefixes,
		},
		Routable:         c.Routable,
		FieldPermissions: c.FieldPermissions,
	}
}

// CacheConfig holds response cache configuration. Path is only used by the
// badger driver; the sqlite driver shares the index database.
type CacheConfig struct {
	Driver string        `yaml:"driver"`
	Path   string        `yaml:"path"`
	MaxAge time.Duration `yaml:"max_age"`
}

// Enabled reports whether responses are cached.
func (c *CacheConfig) Enabled() bool {
	return c.Driver != CacheDriverNone
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(
			CacheDriverNone, respcache.DriverMemory, respcache.DriverSQLite, respcache.DriverBadger)),
		validation.Field(&c.Path, validation.When(c.Driver == respcache.DriverBadger, validation.Required)),
		validation.Field(&c.MaxAge, validation.Min(time.Duration(0))),
	)
}

// GraphConfig bounds a single response build.
type GraphConfig struct {
	MaxDepth   int `yaml:"max_depth"`
	MaxObjects int `yaml:"max_objects"`
}

// Validate validates the graph configuration.
func (c *GraphConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxDepth, validation.Min(0)),
		validation.Field(&c.MaxObjects, validation.Min(0)),
	)
}

// Limits converts the configuration for the graph builder.
func (c *GraphConfig) Limits() hn.Limits {
	return hn.Limits{MaxDepth: c.MaxDepth, MaxObjects: c.MaxObjects}
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	limits := hn.DefaultLimits()
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: logging.FormatJSON,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./headless.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Access: AccessConfig{
			Anonymous:     []string{content.PermAccessContent, content.PermUseGraph},
			Authenticated: []string{content.PermAccessContent, content.PermUseGraph, content.PermViewUnpublished},
		},
		Site: SiteConfig{
			FrontPage:           "/home",
			NotFoundPage:        "/404",
			DefaultLanguage:     "en",
			LanguageNegotiation: content.NegotiationNone,
		},
		Cache: CacheConfig{
			Driver: respcache.DriverSQLite,
			MaxAge: 5 * time.Minute,
		},
		Graph: GraphConfig{
			MaxDepth:   limits.MaxDepth,
			MaxObjects: limits.MaxObjects,
		},
	}
}
