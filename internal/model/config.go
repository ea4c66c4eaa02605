package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ServerConfig holds the HTTP-facing settings.
type ServerConfig struct {
	// ListenAddr is the address the HTTP server binds to.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	// BaseURL is the externally reachable root used when building
	// tracking URLs embedded in outgoing mail.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// SessionTTLHours is how long a login session stays valid.
	SessionTTLHours int `mapstructure:"session_ttl_hours" yaml:"session_ttl_hours"`
}

// MailConfig holds the remote provider endpoints. The same credential
// pair (address + app password) is forwarded to both capabilities.
type MailConfig struct {
	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort string `mapstructure:"imap_port" yaml:"imap_port"`
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort string `mapstructure:"smtp_port" yaml:"smtp_port"`

	// TLS selects implicit TLS; when false the clients use STARTTLS.
	TLS bool `mapstructure:"tls" yaml:"tls"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Server   ServerConfig `mapstructure:"server" yaml:"server"`
	Mail     MailConfig   `mapstructure:"mail" yaml:"mail"`
	Database string       `mapstructure:"database" yaml:"database"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailtrace/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailtrace", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration. The mail
// endpoints default to Gmail, matching the app-password credential model.
func defaultAppConfig() *AppConfig {
	home, _ := os.UserHomeDir()
	return &AppConfig{
		Server: ServerConfig{
			ListenAddr:      ":3000",
			BaseURL:         "http://localhost:3000",
			SessionTTLHours: 24 * 7,
		},
		Mail: MailConfig{
			IMAPHost: "imap.gmail.com",
			IMAPPort: "993",
			SMTPHost: "smtp.gmail.com",
			SMTPPort: "465",
			TLS:      true,
		},
		Database: filepath.Join(home, ".config", "mailtrace", "mailtrace.db"),
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	def := defaultAppConfig()
	v.SetDefault("server.listen_addr", def.Server.ListenAddr)
	v.SetDefault("server.base_url", def.Server.BaseURL)
	v.SetDefault("server.session_ttl_hours", def.Server.SessionTTLHours)
	v.SetDefault("mail.imap_host", def.Mail.IMAPHost)
	v.SetDefault("mail.imap_port", def.Mail.IMAPPort)
	v.SetDefault("mail.smtp_host", def.Mail.SMTPHost)
	v.SetDefault("mail.smtp_port", def.Mail.SMTPPort)
	v.SetDefault("mail.tls", def.Mail.TLS)
	v.SetDefault("database", def.Database)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("server", cfg.Server)
	v.Set("mail", cfg.Mail)
	v.Set("database", cfg.Database)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
