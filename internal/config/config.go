// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// Package config loads, normalizes and validates the agent configuration.
// All configuration sources (YAML file, environment, .env file, CLI flags)
// are folded into one typed Config at startup; nothing downstream re-reads
// the environment or branches on legacy config shapes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
	"github.com/vignitin/apstra-commit-backup/internal/model"
)

// Config is the full agent configuration.
type Config struct {
	API       APIConfig       `mapstructure:"api" yaml:"api"`
	Backup    BackupConfig    `mapstructure:"backup" yaml:"backup"`
	Transfer  TransferConfig  `mapstructure:"transfer" yaml:"transfer"`
	State     StateConfig     `mapstructure:"state" yaml:"state"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// APIConfig describes the Apstra controller connection and the blueprints
// to poll. Credentials come from the environment, never from the YAML file.
type APIConfig struct {
	Server                 string            `mapstructure:"server" yaml:"server"`
	Username               string            `mapstructure:"-" yaml:"-"`
	Password               string            `mapstructure:"-" yaml:"-"`
	PollingIntervalSeconds int               `mapstructure:"polling_interval_seconds" yaml:"polling_interval_seconds"`
	TimeoutSeconds         int               `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	TLSVerify              bool              `mapstructure:"tls_verify" yaml:"tls_verify"`
	Endpoint               string            `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Blueprints             []model.Blueprint `mapstructure:"blueprints" yaml:"blueprints,omitempty"`
	LastBlueprintDiscovery string            `mapstructure:"last_blueprint_discovery" yaml:"last_blueprint_discovery,omitempty"`
}

// BackupConfig describes the external backup-capture program.
type BackupConfig struct {
	ScriptPath   string   `mapstructure:"script_path" yaml:"script_path"`
	Parameters   []string `mapstructure:"parameters" yaml:"parameters,omitempty"`
	Mode         string   `mapstructure:"mode" yaml:"mode"`
	SnapshotRoot string   `mapstructure:"snapshot_root" yaml:"snapshot_root"`
}

// Backup modes. FullSystem invokes the backup program once per cycle no
// matter how many blueprints changed; PerBlueprint invokes it once per
// changed blueprint with a --blueprint argument.
const (
	ModeFullSystem   = "full_system"
	ModePerBlueprint = "per_blueprint"
)

// TransferConfig describes the off-box retention target. Password and key
// passphrase are environment-only.
type TransferConfig struct {
	Method           string   `mapstructure:"method" yaml:"method"`
	Host             string   `mapstructure:"host" yaml:"host"`
	Port             int      `mapstructure:"port" yaml:"port"`
	Username         string   `mapstructure:"username" yaml:"username,omitempty"`
	Password         string   `mapstructure:"-" yaml:"-"`
	SSHKeyPath       string   `mapstructure:"ssh_key_path" yaml:"ssh_key_path,omitempty"`
	SSHKeyPassphrase string   `mapstructure:"-" yaml:"-"`
	RemoteDirectory  string   `mapstructure:"remote_directory" yaml:"remote_directory"`
	Compress         bool     `mapstructure:"compress" yaml:"compress"`
	S3               S3Config `mapstructure:"s3" yaml:"s3,omitempty"`
}

// S3Config configures the S3 retention target (method: s3). Endpoint may
// point at any S3-compatible store; ForcePathStyle is what most self-hosted
// stores need.
type S3Config struct {
	Bucket         string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region         string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint       string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKey      string `mapstructure:"-" yaml:"-"`
	SecretKey      string `mapstructure:"-" yaml:"-"`
	Prefix         string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	ForcePathStyle bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// StateConfig locates the persisted state document.
type StateConfig struct {
	FilePath string `mapstructure:"file_path" yaml:"file_path"`
}

// LoggingConfig controls log level and the optional log file.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// DiscoveryConfig controls blueprint discovery refresh.
type DiscoveryConfig struct {
	RefreshSeconds int  `mapstructure:"refresh_seconds" yaml:"refresh_seconds"`
	Persist        bool `mapstructure:"persist" yaml:"persist,omitempty"`
}

// MetricsConfig controls the optional Prometheus endpoint. Empty Listen
// disables it.
type MetricsConfig struct {
	Listen string `mapstructure:"listen" yaml:"listen,omitempty"`
}

// Defaults returns the viper defaults for every setting that has one.
func Defaults() map[string]any {
	return map[string]any{
		"api.polling_interval_seconds": 30,
		"api.timeout_seconds":          30,
		"api.tls_verify":               false,
		"backup.script_path":           "/usr/sbin/aos_backup",
		"backup.mode":                  ModeFullSystem,
		"backup.snapshot_root":         "/var/lib/aos/snapshot",
		"transfer.method":              "sftp",
		"transfer.port":                22,
		"transfer.remote_directory":    "~/",
		"state.file_path":              "data/backup_state.json",
		"logging.level":                "info",
		"discovery.refresh_seconds":    300,
	}
}

// Load reads the configuration file (explicit path or the standard search
// locations), binds the command's flags, applies environment credentials and
// normalizes the result. A missing config file is not an error; the defaults
// plus environment may be a complete configuration.
func Load(cmd *cobra.Command, cfgFile string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName("apstra-commit-backup")
	v.SetConfigType("yaml")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(userConfigDir, "apstra-commit-backup"))
	}
	v.AddConfigPath("/etc/apstra-commit-backup")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, fmt.Errorf("%w: read config: %v", errdefs.ErrConfig, err)
		}
	}

	if cmd != nil {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return c, err
		}
		// Flags whose names cannot carry the nested config key directly.
		for key, name := range map[string]string{
			"discovery.refresh_seconds": "blueprint-refresh",
			"logging.level":             "log-level",
			"metrics.listen":            "metrics-listen",
		} {
			if f := cmd.Flags().Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return c, err
				}
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("%w: parse config: %v", errdefs.ErrConfig, err)
	}

	c.ApplyEnv()
	c.Normalize()
	return c, nil
}

// LoadDotenv loads a .env file into the process environment. With an empty
// path it probes the conventional locations and loads the first hit; a
// missing file is fine, the process environment may already be populated.
func LoadDotenv(path string) (string, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return "", fmt.Errorf("%w: load env file %s: %v", errdefs.ErrConfig, path, err)
		}
		return path, nil
	}
	candidates := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".env"))
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			if err := godotenv.Load(candidate); err != nil {
				return "", fmt.Errorf("%w: load env file %s: %v", errdefs.ErrConfig, candidate, err)
			}
			return candidate, nil
		}
	}
	return "", nil
}

// ApplyEnv copies the credential environment variables into the config.
// This is the only place the agent reads credentials; empty variables leave
// the corresponding fields untouched.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("APSTRA_USERNAME"); v != "" {
		c.API.Username = v
	}
	if v := os.Getenv("APSTRA_PASSWORD"); v != "" {
		c.API.Password = v
	}
	if v := os.Getenv("REMOTE_USERNAME"); v != "" {
		c.Transfer.Username = v
	}
	if v := os.Getenv("REMOTE_PASSWORD"); v != "" {
		c.Transfer.Password = v
	}
	if v := os.Getenv("SSH_KEY_PATH"); v != "" {
		c.Transfer.SSHKeyPath = v
	}
	if v := os.Getenv("SSH_KEY_PASSPHRASE"); v != "" {
		c.Transfer.SSHKeyPassphrase = v
	}
	if v := os.Getenv("S3_ACCESS_KEY"); v != "" {
		c.Transfer.S3.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_KEY"); v != "" {
		c.Transfer.S3.SecretKey = v
	}
}

// Normalize folds legacy configuration shapes into the canonical form. A
// single api.endpoint with no blueprint list becomes one synthetic default
// blueprint; nothing downstream ever sees the legacy shape. Endpoints are
// anchored with a leading slash.
func (c *Config) Normalize() {
	if len(c.API.Blueprints) == 0 && c.API.Endpoint != "" {
		c.API.Blueprints = []model.Blueprint{{
			ID:       "default",
			Name:     "Default Blueprint",
			Endpoint: c.API.Endpoint,
		}}
	}
	for i := range c.API.Blueprints {
		if ep := c.API.Blueprints[i].Endpoint; ep != "" && !strings.HasPrefix(ep, "/") {
			c.API.Blueprints[i].Endpoint = "/" + ep
		}
	}
	if c.Backup.Mode == "" {
		c.Backup.Mode = ModeFullSystem
	}
	// The original exposed "scp" and "sftp" as separate methods; both ride
	// the same SSH transfer client here.
	if strings.EqualFold(c.Transfer.Method, "scp") {
		c.Transfer.Method = "sftp"
	}
	c.Transfer.Method = strings.ToLower(c.Transfer.Method)
}

// Validate checks the settings the agent cannot run without. Everything it
// reports wraps ErrConfig and is fatal at startup.
func (c *Config) Validate() error {
	var missing []string
	if c.API.Server == "" {
		missing = append(missing, "api.server")
	}
	if c.API.Username == "" {
		missing = append(missing, "APSTRA_USERNAME")
	}
	if c.API.Password == "" {
		missing = append(missing, "APSTRA_PASSWORD")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required settings: %s", errdefs.ErrConfig, strings.Join(missing, ", "))
	}

	switch c.Transfer.Method {
	case "sftp", "ftp", "s3":
	default:
		return fmt.Errorf("%w: unsupported transfer method %q", errdefs.ErrConfig, c.Transfer.Method)
	}
	if c.API.PollingIntervalSeconds <= 0 {
		return fmt.Errorf("%w: api.polling_interval_seconds must be positive", errdefs.ErrConfig)
	}
	return nil
}

// PollingInterval returns the polling interval as a duration.
func (c *Config) PollingInterval() time.Duration {
	return time.Duration(c.API.PollingIntervalSeconds) * time.Second
}

// RefreshInterval returns the discovery refresh interval as a duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Discovery.RefreshSeconds) * time.Second
}

// APITimeout returns the HTTP timeout for controller calls.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// WriteEffective writes the effective configuration (with the discovered
// blueprint list) back to path. The prior file is kept as a timestamped
// backup copy first. Secrets never land on disk; their fields are excluded
// from marshaling.
func (c *Config) WriteEffective(path string) error {
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102_150405"))
		prior, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read prior config: %w", err)
		}
		if err := os.WriteFile(backupPath, prior, 0o600); err != nil {
			return fmt.Errorf("write config backup: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
