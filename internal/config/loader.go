package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fyrsmithlabs/domainscope/internal/filter"
	"github.com/fyrsmithlabs/domainscope/internal/monitor"
	"github.com/fyrsmithlabs/domainscope/internal/registry"
	"github.com/fyrsmithlabs/domainscope/internal/sampling"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "DOMAINSCOPE_"
)

// LoadWithFile loads configuration from a YAML file, then overrides it with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DOMAINSCOPE_SERVER_PORT, ...)
//  2. YAML config file (~/.config/domainscope/config.yaml)
//  3. Defaults
//
// An empty configPath selects the default path. A missing file is not an
// error.
//
// # Security Considerations
//
// The file must live under ~/.config/domainscope/ or /etc/domainscope/, have
// 0600 or 0400 permissions, and be at most 1MB.
//
// # Environment Variable Mapping
//
// The prefix is stripped and the first underscore separates the section:
//
//	DOMAINSCOPE_SERVER_PORT          -> server.port
//	DOMAINSCOPE_SESSION_IDLE_TIMEOUT -> session.idle_timeout
//	DOMAINSCOPE_FORWARDING_URL       -> forwarding.url
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "domainscope", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Validate through the opened descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// envKey maps DOMAINSCOPE_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

// EnsureConfigDir creates the user config directory with 0700 permissions.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(home, ".config", "domainscope")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", configDir, err)
	}
	return nil
}

// validateConfigPath checks the path is inside an allowed directory. It runs
// even when the file does not exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so they cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "domainscope"),
		"/etc/domainscope",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/domainscope/ or /etc/domainscope/")
}

// validateConfigFileProperties checks permissions and size of an opened file.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}

// NewDefaultConfig returns a config with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.RateLimit > 0 && cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = int(cfg.Server.RateLimit) * 2
		if cfg.Server.RateBurst == 0 {
			cfg.Server.RateBurst = 1
		}
	}

	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = Duration(30 * time.Minute)
	}
	if cfg.Session.MaxSessions == 0 {
		cfg.Session.MaxSessions = 10000
	}
	if cfg.Session.DefaultOrigin == "" {
		cfg.Session.DefaultOrigin = "localhost"
	}

	if cfg.Forwarding.SubjectPrefix == "" {
		cfg.Forwarding.SubjectPrefix = "domainscope"
	}

	inst := &cfg.Instrumentation
	if len(inst.Domains) == 0 {
		inst.Domains = registry.DefaultDomains()
	}

	if isZeroSampling(inst.Sampling) {
		inst.Sampling = *sampling.NewDefaultConfig()
	}
	inst.Sampling.Normalize()

	applyFilterDefaults(&inst.Filtering)

	if isZeroAlerting(inst.Alerting) {
		inst.Alerting = *monitor.NewDefaultAlertingConfig()
	}
}

func applyFilterDefaults(f *filter.Config) {
	def := filter.NewDefaultConfig()
	if len(f.BotPatterns) == 0 {
		f.BotPatterns = def.BotPatterns
	}
	if len(f.ExtensionPatterns) == 0 {
		f.ExtensionPatterns = def.ExtensionPatterns
	}
	if len(f.IrrelevantErrors) == 0 {
		f.IrrelevantErrors = def.IrrelevantErrors
	}
	if len(f.ThirdPartyDomains) == 0 {
		f.ThirdPartyDomains = def.ThirdPartyDomains
	}
	if len(f.NoiseURLs) == 0 {
		f.NoiseURLs = def.NoiseURLs
	}
	if len(f.SensitiveFields) == 0 {
		f.SensitiveFields = def.SensitiveFields
	}
	if len(f.CriticalPaths) == 0 {
		f.CriticalPaths = def.CriticalPaths
	}
}

func isZeroSampling(s sampling.Config) bool {
	return s.DefaultRate == 0 && s.CriticalPathRate == 0 && s.ErrorRate == 0 && len(s.DomainRates) == 0
}

func isZeroAlerting(a monitor.AlertingConfig) bool {
	return a.ErrorRateThreshold == 0 && a.LatencyThresholdMS == 0 &&
		a.AvailabilityThreshold == 0 && len(a.BusinessMetricThresholds) == 0
}
