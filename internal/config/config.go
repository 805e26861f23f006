package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the service.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Recaptcha RecaptchaConfig `yaml:"recaptcha"`
	Resend    ResendConfig    `yaml:"resend"`
	Intake    IntakeConfig    `yaml:"intake"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// RecaptchaConfig holds reCAPTCHA Enterprise assessment settings.
type RecaptchaConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	ProjectID      string  `yaml:"project_id"`
	SiteKey        string  `yaml:"site_key"`
	ExpectedAction string  `yaml:"expected_action"`
	ScoreThreshold float64 `yaml:"score_threshold"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

// ResendConfig holds transactional-email delivery settings.
type ResendConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	FromEmail      string `yaml:"from_email"`
	BusinessEmail  string `yaml:"business_email"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// IntakeConfig holds multipart ingestion limits.
type IntakeConfig struct {
	MaxFileSizeMB int    `yaml:"max_file_size_mb"`
	MaxFileCount  int    `yaml:"max_file_count"`
	SpoolDir      string `yaml:"spool_dir"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// MaxFileBytes returns the per-file cap in bytes.
func (c IntakeConfig) MaxFileBytes() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

// Load reads and parses the configuration file. An empty path returns
// the built-in defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		// Public contact form: the endpoint is called from the static
		// site, which may be served from any CDN host.
		cfg.Server.AllowedOrigins = []string{"*"}
	}
	if cfg.Recaptcha.BaseURL == "" {
		cfg.Recaptcha.BaseURL = "https://recaptchaenterprise.googleapis.com"
	}
	if cfg.Recaptcha.ExpectedAction == "" {
		cfg.Recaptcha.ExpectedAction = "contact_form"
	}
	if cfg.Recaptcha.ScoreThreshold == 0 {
		cfg.Recaptcha.ScoreThreshold = 0.3
	}
	if cfg.Recaptcha.TimeoutSeconds == 0 {
		cfg.Recaptcha.TimeoutSeconds = 30
	}
	if cfg.Resend.BaseURL == "" {
		cfg.Resend.BaseURL = "https://api.resend.com"
	}
	if cfg.Resend.FromEmail == "" {
		cfg.Resend.FromEmail = "onboarding@resend.dev"
	}
	if cfg.Resend.BusinessEmail == "" {
		cfg.Resend.BusinessEmail = "ceramiquesjlepage@gmail.com"
	}
	if cfg.Resend.TimeoutSeconds == 0 {
		cfg.Resend.TimeoutSeconds = 30
	}
	if cfg.Intake.MaxFileSizeMB == 0 {
		cfg.Intake.MaxFileSizeMB = 4
	}
	if cfg.Intake.MaxFileCount == 0 {
		cfg.Intake.MaxFileCount = 5
	}
	if cfg.Intake.SpoolDir == "" {
		cfg.Intake.SpoolDir = os.TempDir()
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file (if present) is loaded first, so secrets can live in
// .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SERVER_PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("RECAPTCHA_API_KEY"); v != "" {
		cfg.Recaptcha.APIKey = v
	}
	if v := os.Getenv("RECAPTCHA_PROJECT_ID"); v != "" {
		cfg.Recaptcha.ProjectID = v
	}
	if v := os.Getenv("RECAPTCHA_SITE_KEY"); v != "" {
		cfg.Recaptcha.SiteKey = v
	}
	if v := os.Getenv("RECAPTCHA_SCORE_THRESHOLD"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RECAPTCHA_SCORE_THRESHOLD %q: %w", v, err)
		}
		cfg.Recaptcha.ScoreThreshold = threshold
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		cfg.Resend.APIKey = v
	}
	if v := os.Getenv("RESEND_BASE_URL"); v != "" {
		cfg.Resend.BaseURL = v
	}
	if v := os.Getenv("FROM_EMAIL"); v != "" {
		cfg.Resend.FromEmail = v
	}
	if v := os.Getenv("BUSINESS_EMAIL"); v != "" {
		cfg.Resend.BusinessEmail = v
	}
	if v := os.Getenv("MAX_FILE_SIZE_MB"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_FILE_SIZE_MB %q: %w", v, err)
		}
		cfg.Intake.MaxFileSizeMB = size
	}
	if v := os.Getenv("MAX_FILE_COUNT"); v != "" {
		count, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_FILE_COUNT %q: %w", v, err)
		}
		cfg.Intake.MaxFileCount = count
	}
	if v := os.Getenv("SPOOL_DIR"); v != "" {
		cfg.Intake.SpoolDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}

// Validate reports configuration errors that make startup pointless.
// Missing external-service credentials are deliberately not fatal
// here: they surface at request time so that misconfiguration is
// observable instead of silently bypassed.
func (cfg *Config) Validate() error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	if cfg.Intake.MaxFileSizeMB < 1 {
		return fmt.Errorf("max file size %dMB out of range", cfg.Intake.MaxFileSizeMB)
	}
	if cfg.Intake.MaxFileCount < 0 {
		return fmt.Errorf("max file count %d out of range", cfg.Intake.MaxFileCount)
	}
	if cfg.Recaptcha.ScoreThreshold < 0 || cfg.Recaptcha.ScoreThreshold > 1 {
		return fmt.Errorf("score threshold %v out of range [0,1]", cfg.Recaptcha.ScoreThreshold)
	}
	return nil
}
