package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	EngineTemplate = "template"
	EngineRemote   = "remote"
)

// Config holds all configuration for ekaya-gem.
// Configuration can come from a YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
type Config struct {
	// Server configuration. Transport "stdio" serves MCP over stdin/stdout;
	// "http" serves streamable HTTP plus health and metrics endpoints.
	Transport string `yaml:"transport" env:"GEM_TRANSPORT" env-default:"stdio"`
	BindAddr  string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port      string `yaml:"port" env:"PORT" env-default:"3480"`
	Env       string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL   string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version   string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, the HTTP transport uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Log            LogConfig            `yaml:"log"`
	Auth           AuthConfig           `yaml:"auth"`
	Media          MediaConfig          `yaml:"media"`
	Solver         SolverConfig         `yaml:"solver"`
	Gapfill        GapfillConfig        `yaml:"gapfill"`
	Reconstruction ReconstructionConfig `yaml:"reconstruction"`
	Metrics        MetricsConfig        `yaml:"metrics"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"` // json or console
}

// AuthConfig holds authentication-related configuration for the HTTP transport.
type AuthConfig struct {
	// EnableVerification controls whether bearer tokens on /mcp are validated.
	// Local single-user servers usually leave it off.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"false"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// Audience is the required "aud" claim.
	Audience string `yaml:"audience" env:"AUTH_AUDIENCE" env-default:"ekaya-gem"`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// MediaConfig controls the conversion of media bounds into exchange uptake.
type MediaConfig struct {
	// UnboundedThreshold is the uptake magnitude at or above which a media
	// entry means "unlimited" and is replaced by DefaultUptake.
	UnboundedThreshold float64 `yaml:"unbounded_threshold" env:"MEDIA_UNBOUNDED_THRESHOLD" env-default:"100"`
	DefaultUptake      float64 `yaml:"default_uptake" env:"MEDIA_DEFAULT_UPTAKE" env-default:"100"`
	// CompartmentIndex is the extracellular compartment index ("e0").
	CompartmentIndex int `yaml:"compartment_index" env:"MEDIA_COMPARTMENT_INDEX" env-default:"0"`
}

// SolverConfig tunes the LP engine.
type SolverConfig struct {
	Tolerance     float64 `yaml:"tolerance" env:"SOLVER_TOLERANCE" env-default:"1e-10"`
	FluxThreshold float64 `yaml:"flux_threshold" env:"SOLVER_FLUX_THRESHOLD" env-default:"1e-6"`
}

// GapfillConfig holds gapfilling defaults.
type GapfillConfig struct {
	DefaultTargetGrowth float64 `yaml:"default_target_growth" env:"GAPFILL_DEFAULT_TARGET_GROWTH" env-default:"0.01"`
	// ATPMultiplier scales test-condition thresholds over observed ATP production.
	ATPMultiplier float64 `yaml:"atp_multiplier" env:"GAPFILL_ATP_MULTIPLIER" env-default:"1.2"`
	// ATPMinFraction is the share of the expected core ATP yield below which
	// energy correction gapfills.
	ATPMinFraction  float64 `yaml:"atp_min_fraction" env:"GAPFILL_ATP_MIN_FRACTION" env-default:"0.1"`
	DefaultTemplate string  `yaml:"default_template" env:"GAPFILL_DEFAULT_TEMPLATE" env-default:"core"`
	// TemplateDir holds extra *.yaml templates loaded next to the embedded ones.
	TemplateDir string `yaml:"template_dir" env:"GAPFILL_TEMPLATE_DIR" env-default:""`
}

// ReconstructionConfig selects the draft reconstruction engine.
type ReconstructionConfig struct {
	Engine     string        `yaml:"engine" env:"RECONSTRUCTION_ENGINE" env-default:"template"` // template or remote
	RemoteURL  string        `yaml:"remote_url" env:"RECONSTRUCTION_REMOTE_URL" env-default:""`
	Timeout    time.Duration `yaml:"timeout" env:"RECONSTRUCTION_TIMEOUT" env-default:"60s"`
	MaxRetries int           `yaml:"max_retries" env:"RECONSTRUCTION_MAX_RETRIES" env-default:"3"`
}

// MetricsConfig controls the Prometheus endpoint of the HTTP transport.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Path    string `yaml:"path" env:"METRICS_PATH" env-default:"/metrics"`
}

// Load reads configuration from path with environment variable overrides.
// An empty path reads config.yaml when it exists and falls back to
// environment variables and defaults otherwise. An explicit path must exist.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err == nil || explicit {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	// Parse complex fields
	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Validate TLS configuration
	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	// A remote engine on the host is reachable from a container only via the
	// Docker host alias.
	if cfg.Reconstruction.RemoteURL != "" {
		cfg.Reconstruction.RemoteURL = ResolveURLForDocker(cfg.Reconstruction.RemoteURL)
	}

	return cfg, nil
}

// validate checks enumerations and numeric ranges.
func (c *Config) validate() error {
	var problems []string

	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		problems = append(problems, fmt.Sprintf("transport must be stdio or http, got %q", c.Transport))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		problems = append(problems, fmt.Sprintf("log.format must be json or console, got %q", c.Log.Format))
	}

	switch c.Reconstruction.Engine {
	case EngineTemplate:
	case EngineRemote:
		if c.Reconstruction.RemoteURL == "" {
			problems = append(problems, "reconstruction.remote_url is required for the remote engine")
		} else if u, err := url.Parse(c.Reconstruction.RemoteURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("reconstruction.remote_url %q is not an absolute URL", c.Reconstruction.RemoteURL))
		}
	default:
		problems = append(problems, fmt.Sprintf("reconstruction.engine must be template or remote, got %q", c.Reconstruction.Engine))
	}
	if c.Reconstruction.Timeout <= 0 {
		problems = append(problems, "reconstruction.timeout must be positive")
	}
	if c.Reconstruction.MaxRetries < 0 {
		problems = append(problems, "reconstruction.max_retries must not be negative")
	}

	positive := map[string]float64{
		"media.unbounded_threshold":     c.Media.UnboundedThreshold,
		"media.default_uptake":          c.Media.DefaultUptake,
		"solver.tolerance":              c.Solver.Tolerance,
		"solver.flux_threshold":         c.Solver.FluxThreshold,
		"gapfill.default_target_growth": c.Gapfill.DefaultTargetGrowth,
		"gapfill.atp_multiplier":        c.Gapfill.ATPMultiplier,
	}
	for _, name := range []string{
		"media.unbounded_threshold", "media.default_uptake", "solver.tolerance",
		"solver.flux_threshold", "gapfill.default_target_growth", "gapfill.atp_multiplier",
	} {
		if !(positive[name] > 0) {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %g", name, positive[name]))
		}
	}
	if !(c.Gapfill.ATPMinFraction > 0 && c.Gapfill.ATPMinFraction <= 1) {
		problems = append(problems, fmt.Sprintf("gapfill.atp_min_fraction must be in (0, 1], got %g", c.Gapfill.ATPMinFraction))
	}
	if c.Media.CompartmentIndex < 0 || c.Media.CompartmentIndex > 9 {
		problems = append(problems, fmt.Sprintf("media.compartment_index must be a single digit (0-9), got %d", c.Media.CompartmentIndex))
	}
	if c.Gapfill.DefaultTemplate == "" {
		problems = append(problems, "gapfill.default_template is required")
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		problems = append(problems, fmt.Sprintf("metrics.path must start with '/', got %q", c.Metrics.Path))
	}
	if c.Auth.EnableVerification && len(c.Auth.JWKSEndpoints) == 0 {
		problems = append(problems, "auth.jwks_endpoints is required when auth.enable_verification is set")
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	// Both must be provided together or both empty
	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	// If both provided, verify files exist (actual readability checked by tls.LoadX509KeyPair at startup)
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// Addr is the listen address of the HTTP transport.
func (c *Config) Addr() string {
	return c.BindAddr + ":" + c.Port
}
