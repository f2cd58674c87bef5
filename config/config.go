package config

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port     int    `toml:"port"`
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`
}

type SMTPConfig struct {
	Server      string `toml:"server"`
	Port        int    `toml:"port"`
	Username    string `toml:"username"`
	Password    string `toml:"password"`
	From        string `toml:"from"`
	UseSTARTTLS bool   `toml:"use_starttls"` // true for port 587, false for port 465
}

type ComposeConfig struct {
	MaxAttachmentBytes int64 `toml:"max_attachment_bytes"`
	MaxImageWidth      int   `toml:"max_image_width"`
	SessionTTLMinutes  int   `toml:"session_ttl_minutes"`
}

type DispatchConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

type JWTConfig struct {
	Secret string `toml:"secret"` // For session token signing
}

type CacheConfig struct {
	Folder string `toml:"folder"`
}

type SSLConfig struct {
	Enabled      bool   `toml:"enabled"`
	CertFile     string `toml:"cert_file"`     // Path to fullchain.pem
	KeyFile      string `toml:"key_file"`      // Path to privkey.pem
	Port         int    `toml:"port"`          // HTTPS port (default 443)
	HTTPPort     int    `toml:"http_port"`     // HTTP port for redirect (default 80)
	AutoRedirect bool   `toml:"auto_redirect"` // Redirect HTTP to HTTPS
	Domain       string `toml:"domain"`        // Domain name for HSTS
	HSTSMaxAge   int    `toml:"hsts_max_age"`  // Max age for HSTS in seconds
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	SMTP     SMTPConfig     `toml:"smtp"`
	Compose  ComposeConfig  `toml:"compose"`
	Dispatch DispatchConfig `toml:"dispatch"`
	JWT      JWTConfig      `toml:"jwt"`
	Cache    CacheConfig    `toml:"cache"`
	SSL      SSLConfig      `toml:"ssl"`
}

func LoadConfig(filepath string) (*Config, error) {
	var config Config

	// Set default values
	config.Server.Port = 3000
	config.Server.DataDir = "./data"
	config.Server.LogLevel = "info"
	config.SMTP.Port = 587 // Default to STARTTLS port
	config.SMTP.UseSTARTTLS = true
	config.Compose.MaxAttachmentBytes = 10 * 1024 * 1024
	config.Compose.MaxImageWidth = 1920
	config.Compose.SessionTTLMinutes = 120
	config.Dispatch.IntervalSeconds = 15
	config.Cache.Folder = "./data/cache"

	// Default SSL configuration
	config.SSL.Port = 443
	config.SSL.HTTPPort = 80
	config.SSL.HSTSMaxAge = 31536000 // 1 year
	config.SSL.AutoRedirect = true

	// Load config file
	_, err := toml.DecodeFile(filepath, &config)
	if err != nil {
		return nil, err
	}

	if config.JWT.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	// The sending address defaults to the SMTP username
	if config.SMTP.From == "" {
		config.SMTP.From = config.SMTP.Username
	}

	// Validate SSL configuration if enabled
	if config.SSL.Enabled {
		if err := config.ValidateSSL(); err != nil {
			return nil, fmt.Errorf("SSL configuration error: %w", err)
		}
	}

	return &config, nil
}

// DispatchInterval returns the dispatcher polling interval
func (c *Config) DispatchInterval() time.Duration {
	if c.Dispatch.IntervalSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Dispatch.IntervalSeconds) * time.Second
}

// SessionTTL returns how long an idle composer session is kept alive
func (c *Config) SessionTTL() time.Duration {
	if c.Compose.SessionTTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.Compose.SessionTTLMinutes) * time.Minute
}

// Helper method to get the appropriate SMTP port based on encryption
func (c *SMTPConfig) GetPort() int {
	if c.Port != 0 {
		return c.Port
	}
	if c.UseSTARTTLS {
		return 587 // STARTTLS port
	}
	return 465 // SSL/TLS port
}

// ValidateSSL checks if the SSL configuration is valid
func (c *Config) ValidateSSL() error {
	if !c.SSL.Enabled {
		return nil
	}

	if c.SSL.CertFile == "" {
		return fmt.Errorf("SSL certificate file path is required")
	}

	if c.SSL.KeyFile == "" {
		return fmt.Errorf("SSL key file path is required")
	}

	// Try loading the certificates to verify they're valid
	_, err := tls.LoadX509KeyPair(c.SSL.CertFile, c.SSL.KeyFile)
	if err != nil {
		return fmt.Errorf("failed to load SSL certificates: %w", err)
	}

	return nil
}

// GetSecurityHeaders returns a map of security headers based on the configuration
func (c *Config) GetSecurityHeaders() map[string]string {
	headers := make(map[string]string)

	if c.SSL.Enabled {
		// Add HSTS header if SSL is enabled
		if c.SSL.Domain != "" {
			headers["Strict-Transport-Security"] = fmt.Sprintf("max-age=%d; includeSubDomains", c.SSL.HSTSMaxAge)
		}

		headers["X-Content-Type-Options"] = "nosniff"
		headers["X-Frame-Options"] = "SAMEORIGIN"
		headers["X-XSS-Protection"] = "1; mode=block"
		headers["Referrer-Policy"] = "strict-origin-when-cross-origin"
	}

	return headers
}
