// ABOUTME: Configuration loading and parsing for intake-gateway
// ABOUTME: YAML or TOML files with .env loading, environment variable expansion, defaults and validation

package config

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/2389/intake-gateway/internal/auth"
	"github.com/2389/intake-gateway/internal/catalog"
	"github.com/2389/intake-gateway/internal/hours"
	"github.com/2389/intake-gateway/internal/messages"
)

// Defaults.
const (
	DefaultTimezone       = "America/Sao_Paulo"
	DefaultRetention      = 24 * time.Hour
	DefaultSweepInterval  = 6 * time.Hour
	DefaultStaleAfter     = 15 * time.Second
	DefaultDedupeTTL      = 10 * time.Minute
	DefaultDedupeSize     = 10000
	DefaultBudgetMinutes  = 45
	DefaultStoreDriver    = "sqlite"
	DefaultStorePath      = "intake.db"
	DefaultOpsAddr        = "127.0.0.1:8080"
	DefaultResetKeyword   = "menu"
	DefaultSkipKeyword    = "pular"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
	DefaultMatrixDataDir  = "matrix-data"
	DefaultTailscaleState = "tsnet-state"
)

// DefaultDays is Monday to Friday 08:00-18:00 and Saturday morning.
var DefaultDays = map[string]string{
	"monday":    "08:00-18:00",
	"tuesday":   "08:00-18:00",
	"wednesday": "08:00-18:00",
	"thursday":  "08:00-18:00",
	"friday":    "08:00-18:00",
	"saturday":  "08:00-12:00",
}

// Config represents the complete intake-gateway configuration
type Config struct {
	Company  CompanyConfig  `yaml:"company" toml:"company"`
	Schedule ScheduleConfig `yaml:"schedule" toml:"schedule"`
	Catalog  CatalogConfig  `yaml:"catalog" toml:"catalog"`
	Session  SessionConfig  `yaml:"session" toml:"session"`
	Handoff  HandoffConfig  `yaml:"handoff" toml:"handoff"`
	Store    StoreConfig    `yaml:"store" toml:"store"`
	Matrix   MatrixConfig   `yaml:"matrix" toml:"matrix"`
	Ops      OpsConfig      `yaml:"ops" toml:"ops"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// CompanyConfig describes the shop the assistant answers for
type CompanyConfig struct {
	Name                  string `yaml:"name" toml:"name"`
	Address               string `yaml:"address" toml:"address"`
	PaymentMethods        string `yaml:"payment_methods" toml:"payment_methods"`
	BudgetResponseMinutes int    `yaml:"budget_response_minutes" toml:"budget_response_minutes"`
}

// ScheduleConfig holds opening hours. Days maps lowercase English weekday
// names to "HH:MM-HH:MM"; absent days are closed.
type ScheduleConfig struct {
	Timezone string            `yaml:"timezone" toml:"timezone"`
	Days     map[string]string `yaml:"days" toml:"days"`
}

// CatalogConfig overrides the built-in services catalog
type CatalogConfig struct {
	// CollectVehicle defaults to true when unset. Setting it false means spring
	// arch requests reach the operator without vehicle model and year.
	CollectVehicle *bool           `yaml:"collect_vehicle" toml:"collect_vehicle"`
	Entries        []catalog.Entry `yaml:"entries" toml:"entries"`
}

// SessionConfig holds conversation behaviour and timing
type SessionConfig struct {
	ResetKeyword string `yaml:"reset_keyword" toml:"reset_keyword"`
	SkipKeyword  string `yaml:"skip_keyword" toml:"skip_keyword"`
	DedupeSize   int    `yaml:"dedupe_size" toml:"dedupe_size"`

	Retention     time.Duration `yaml:"-" toml:"-"`
	SweepInterval time.Duration `yaml:"-" toml:"-"`
	StaleAfter    time.Duration `yaml:"-" toml:"-"`
	DedupeTTL     time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	RetentionRaw     string `yaml:"retention" toml:"retention"`
	SweepIntervalRaw string `yaml:"sweep_interval" toml:"sweep_interval"`
	StaleAfterRaw    string `yaml:"stale_after" toml:"stale_after"`
	DedupeTTLRaw     string `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
}

// HandoffConfig says where operator notices go
type HandoffConfig struct {
	// Operator is the Matrix room that receives hand-off notices.
	Operator string `yaml:"operator" toml:"operator"`
}

// StoreConfig selects the session store
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
}

// MatrixConfig holds the Matrix account customers talk to
type MatrixConfig struct {
	Enabled      bool     `yaml:"enabled" toml:"enabled"`
	Homeserver   string   `yaml:"homeserver" toml:"homeserver"`
	UserID       string   `yaml:"user_id" toml:"user_id"`
	Username     string   `yaml:"username" toml:"username"`
	Password     string   `yaml:"password" toml:"password"`
	AccessToken  string   `yaml:"access_token" toml:"access_token"`
	DeviceID     string   `yaml:"device_id" toml:"device_id"`
	Encryption   bool     `yaml:"encryption" toml:"encryption"`
	DataDir      string   `yaml:"data_dir" toml:"data_dir"`
	AllowedRooms []string `yaml:"allowed_rooms" toml:"allowed_rooms"`
	AutoJoin     *bool    `yaml:"auto_join" toml:"auto_join"`
}

// OpsConfig holds the operator HTTP API
type OpsConfig struct {
	Enabled   bool            `yaml:"enabled" toml:"enabled"`
	HTTPAddr  string          `yaml:"http_addr" toml:"http_addr"`
	JWTSecret string          `yaml:"jwt_secret" toml:"jwt_secret"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	CertFile  string `yaml:"cert_file" toml:"cert_file"` // TLS cert file (generate via: tailscale cert <hostname>)
	KeyFile   string `yaml:"key_file" toml:"key_file"`   // TLS key file
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file. A .env file in the working directory is
// loaded first; variables already set in the environment win. ${VAR_NAME}
// references are expanded, .toml files are decoded as TOML and anything else
// as YAML.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data, formatFor(path))
}

// Parse decodes configuration in the given format ("yaml" or "toml"),
// applies defaults and validates the result.
func Parse(data []byte, format string) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	switch format {
	case "toml":
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case "yaml", "":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func formatFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return "toml"
	}
	return "yaml"
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"session.retention", cfg.Session.RetentionRaw, &cfg.Session.Retention},
		{"session.sweep_interval", cfg.Session.SweepIntervalRaw, &cfg.Session.SweepInterval},
		{"session.stale_after", cfg.Session.StaleAfterRaw, &cfg.Session.StaleAfter},
		{"session.dedupe_ttl", cfg.Session.DedupeTTLRaw, &cfg.Session.DedupeTTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Company.BudgetResponseMinutes == 0 {
		c.Company.BudgetResponseMinutes = DefaultBudgetMinutes
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = DefaultTimezone
	}
	if c.Schedule.Days == nil {
		c.Schedule.Days = maps.Clone(DefaultDays)
	}

	s := &c.Session
	if s.ResetKeyword == "" {
		s.ResetKeyword = DefaultResetKeyword
	}
	if s.SkipKeyword == "" {
		s.SkipKeyword = DefaultSkipKeyword
	}
	if s.Retention == 0 {
		s.Retention = DefaultRetention
	}
	if s.SweepInterval == 0 {
		s.SweepInterval = DefaultSweepInterval
	}
	if s.StaleAfter == 0 {
		s.StaleAfter = DefaultStaleAfter
	}
	if s.DedupeTTL == 0 {
		s.DedupeTTL = DefaultDedupeTTL
	}
	if s.DedupeSize == 0 {
		s.DedupeSize = DefaultDedupeSize
	}

	if c.Store.Driver == "" {
		c.Store.Driver = DefaultStoreDriver
	}
	if c.Store.Driver == "sqlite" && c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}

	if c.Matrix.Encryption && c.Matrix.DataDir == "" {
		c.Matrix.DataDir = DefaultMatrixDataDir
	}
	if c.Matrix.AutoJoin == nil {
		autoJoin := true
		c.Matrix.AutoJoin = &autoJoin
	}

	if c.Ops.HTTPAddr == "" && !c.Ops.Tailscale.Enabled {
		c.Ops.HTTPAddr = DefaultOpsAddr
	}
	if c.Ops.Tailscale.Enabled && c.Ops.Tailscale.StateDir == "" {
		c.Ops.Tailscale.StateDir = DefaultTailscaleState
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Company.Name) == "" {
		return errors.New("company.name is required")
	}
	if c.Company.BudgetResponseMinutes < 0 {
		return errors.New("company.budget_response_minutes must not be negative")
	}

	if _, err := c.BuildSchedule(); err != nil {
		return fmt.Errorf("schedule: %w", err)
	}
	if err := c.BuildCatalog().Validate(); err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	if err := c.Session.validate(); err != nil {
		return err
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return errors.New("store.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver must be memory or sqlite, got %q", c.Store.Driver)
	}

	if c.Matrix.Enabled {
		if err := c.Matrix.validate(); err != nil {
			return err
		}
	}

	if c.Ops.Enabled {
		if err := c.Ops.validate(); err != nil {
			return err
		}
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	return nil
}

func (s SessionConfig) validate() error {
	if strings.TrimSpace(s.ResetKeyword) == "" {
		return errors.New("session.reset_keyword must not be blank")
	}
	if strings.EqualFold(strings.TrimSpace(s.ResetKeyword), strings.TrimSpace(s.SkipKeyword)) {
		return errors.New("session.reset_keyword and session.skip_keyword must differ")
	}
	for name, d := range map[string]time.Duration{
		"session.retention":      s.Retention,
		"session.sweep_interval": s.SweepInterval,
		"session.stale_after":    s.StaleAfter,
		"session.dedupe_ttl":     s.DedupeTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if s.DedupeSize < 0 {
		return errors.New("session.dedupe_size must not be negative")
	}
	return nil
}

func (m MatrixConfig) validate() error {
	if m.Homeserver == "" {
		return errors.New("matrix.homeserver is required when matrix is enabled")
	}
	u, err := url.Parse(m.Homeserver)
	if err != nil {
		return fmt.Errorf("matrix.homeserver is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("matrix.homeserver must use http or https scheme")
	}
	if m.AccessToken != "" {
		if m.UserID == "" {
			return errors.New("matrix.user_id is required with matrix.access_token")
		}
	} else if m.Username == "" || m.Password == "" {
		return errors.New("matrix.access_token or matrix.username and matrix.password are required")
	}
	if m.Encryption && m.DataDir == "" {
		return errors.New("matrix.data_dir is required when encryption is enabled")
	}
	return nil
}

func (o OpsConfig) validate() error {
	if len(o.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("ops.jwt_secret must be at least %d bytes", auth.MinSecretLength)
	}
	if o.Tailscale.Enabled {
		if o.Tailscale.Hostname == "" {
			return errors.New("ops.tailscale.hostname is required when tailscale is enabled")
		}
		if (o.Tailscale.CertFile == "") != (o.Tailscale.KeyFile == "") {
			return errors.New("ops.tailscale.cert_file and key_file must be set together")
		}
		return nil
	}
	if o.HTTPAddr == "" {
		return errors.New("ops.http_addr is required (or enable tailscale)")
	}
	return nil
}

// BuildSchedule returns the opening hours.
func (c *Config) BuildSchedule() (*hours.Schedule, error) {
	return hours.Parse(c.Schedule.Timezone, c.Schedule.Days)
}

// BuildCatalog returns the configured catalog, or the built-in one when no
// entries are configured.
func (c *Config) BuildCatalog() *catalog.Catalog {
	cat := catalog.Default()
	if len(c.Catalog.Entries) > 0 {
		cat.Entries = c.Catalog.Entries
	}
	if c.Catalog.CollectVehicle != nil {
		cat.CollectVehicle = *c.Catalog.CollectVehicle
	}
	return cat
}

// CompanyInfo returns the company details used in customer messages.
func (c *Config) CompanyInfo() messages.Company {
	return messages.Company{
		Name:                  c.Company.Name,
		Address:               c.Company.Address,
		PaymentMethods:        c.Company.PaymentMethods,
		BudgetResponseMinutes: c.Company.BudgetResponseMinutes,
	}
}
