package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (QRIS_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string `default:"0.0.0.0:8080" usage:"API server listen address"`
	VPSBaseURL     string `usage:"Base URL of the payment QR provider (QRIS_VPS_BASE_URL)" flag:"vps-base-url"`
	AdminKey       string `usage:"Shared secret for admin promo actions; empty disables them" flag:"admin-key"`
	CallbackSecret string `usage:"Shared secret required on setstatus callbacks; empty leaves them open" flag:"callback-secret"`
	DevicePepper   string `usage:"HMAC pepper for device key derivation (QRIS_DEVICE_PEPPER)" flag:"device-pepper"`
	GitHub         GitHubConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Graceful       GracefulConfig
}

// GitHubConfig locates the JSON document that persists the promo store.
type GitHubConfig struct {
	Owner  string `usage:"Repository owner holding the promo store document"`
	Repo   string `usage:"Repository name holding the promo store document"`
	Branch string `default:"main" usage:"Branch the document lives on"`
	Path   string `default:"db.json" usage:"Path of the document within the repository"`
	Token  string `usage:"GitHub token with contents read/write (QRIS_GITHUB_TOKEN or GITHUB_TOKEN)"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
	MaxAge  int      `default:"86400" usage:"Preflight cache duration in seconds" flag:"cors-max-age"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "QRIS",
		Files:     []string{"config.yaml", "/etc/qris/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.VPSBaseURL == "" {
		return nil, errors.New("provider base URL is required: set QRIS_VPS_BASE_URL")
	}
	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		return nil, errors.New("store repository is required: set QRIS_GITHUB_OWNER and QRIS_GITHUB_REPO")
	}
	if cfg.GitHub.Token == "" {
		return nil, errors.New("store token is required: set QRIS_GITHUB_TOKEN or GITHUB_TOKEN")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, Netlify-style deploys) that use standard names like PORT
// and GITHUB_TOKEN to the application's QRIS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.GitHub.Token == "" {
		if v := os.Getenv("GITHUB_TOKEN"); v != "" {
			c.GitHub.Token = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
