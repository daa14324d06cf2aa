package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"newsletter-digest/internal/logging"
	"newsletter-digest/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Load reads the configuration from the specified YAML file and returns a Config struct.
// A .env file next to the process is loaded first so secrets can stay out of the YAML.
func Load(filepath string) (*models.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Log.WithError(err).Warn("Failed to load .env file")
	}

	configFile, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	return Parse(configFile)
}

// Parse decodes YAML content, applies defaults then environment overrides
func Parse(content []byte) (*models.Config, error) {
	var config models.Config
	if err := yaml.Unmarshal(content, &config); err != nil {
		return nil, err
	}

	ApplyDefaults(&config)
	applyEnv(&config)

	return &config, nil
}

// ApplyDefaults fills zero values with the documented defaults
func ApplyDefaults(c *models.Config) {
	setString(&c.Mail.Provider, "gmail")
	setString(&c.Mail.Label, "Newsletter")
	setDuration(&c.Mail.Lookback, 24*time.Hour)
	setString(&c.Mail.Gmail.CredentialsFile, "credentials.json")
	setString(&c.Mail.Gmail.TokenFile, "token.json")
	setDuration(&c.Mail.Imap.Timeout, 30*time.Second)
	setRetry(&c.Mail.Retry)

	setString(&c.Summarizer.Provider, "gemini")
	setString(&c.Summarizer.Model, "gemini-2.5-flash")
	setString(&c.Summarizer.OllamaURL, "http://localhost:11434")
	setString(&c.Summarizer.OllamaModel, "llama3")
	setDuration(&c.Summarizer.Timeout, 2*time.Minute)
	setRetry(&c.Summarizer.Retry)

	if c.Cleaner.Budget <= 0 {
		c.Cleaner.Budget = 3000
	}
	if c.Cleaner.Workers <= 0 {
		c.Cleaner.Workers = 4
	}

	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns <= 0 {
		c.Database.MinConns = 2
	}
	setDuration(&c.Database.SlowQueryThreshold, 100*time.Millisecond)

	setString(&c.Delivery.Sender, "log")
	setString(&c.Delivery.Subject, "ML Daily Digest")
	if c.Delivery.RatePerSecond <= 0 {
		c.Delivery.RatePerSecond = 2
	}

	setString(&c.Scheduler.Time, "08:00")
	setString(&c.Scheduler.Timezone, "UTC")

	setString(&c.HTTP.Address, ":8000")

	setDuration(&c.Redis.LockTTL, 30*time.Minute)

	setString(&c.Events.Exchange, "events")

	setString(&c.Archive.Provider, "none")
	setString(&c.Archive.Dir, "exports")

	setString(&c.Logging.Level, "info")
	setString(&c.Logging.Format, "json")
}

var envOverrides = []struct {
	key    string
	target func(*models.Config) *string
}{
	{"DATABASE_URL", func(c *models.Config) *string { return &c.Database.URL }},
	{"GEMINI_API_KEY", func(c *models.Config) *string { return &c.Summarizer.APIKey }},
	{"OLLAMA_URL", func(c *models.Config) *string { return &c.Summarizer.OllamaURL }},
	{"IMAP_PASSWORD", func(c *models.Config) *string { return &c.Mail.Imap.Password }},
	{"RESEND_API_KEY", func(c *models.Config) *string { return &c.Delivery.ResendAPIKey }},
	{"REDIS_ADDR", func(c *models.Config) *string { return &c.Redis.Addr }},
	{"REDIS_PASSWORD", func(c *models.Config) *string { return &c.Redis.Password }},
	{"S3_ACCESS_KEY", func(c *models.Config) *string { return &c.Archive.AccessKey }},
	{"S3_SECRET_KEY", func(c *models.Config) *string { return &c.Archive.SecretKey }},
	{"ADMIN_TOKEN", func(c *models.Config) *string { return &c.HTTP.AdminToken }},
	{"AMQP_URL", func(c *models.Config) *string { return &c.Events.URL }},
	{"NEWSLETTER_TIME", func(c *models.Config) *string { return &c.Scheduler.Time }},
}

func applyEnv(c *models.Config) {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.target(c) = v
		}
	}
}

// Validate reports every missing or invalid field at once
func Validate(c *models.Config) error {
	var errs []error

	if c.Database.URL == "" {
		errs = append(errs, errors.New("database.url is required"))
	}

	switch c.Mail.Provider {
	case "gmail":
	case "imap":
		if c.Mail.Imap.Server == "" || c.Mail.Imap.Login == "" {
			errs = append(errs, errors.New("mail.imap.server and mail.imap.login are required for the imap provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mail.provider %q", c.Mail.Provider))
	}

	switch c.Summarizer.Provider {
	case "gemini":
		if c.Summarizer.APIKey == "" {
			errs = append(errs, errors.New("summarizer.apiKey (or GEMINI_API_KEY) is required for gemini"))
		}
	case "ollama", "auto":
	default:
		errs = append(errs, fmt.Errorf("unknown summarizer.provider %q", c.Summarizer.Provider))
	}

	switch c.Delivery.Sender {
	case "log":
	case "gmail":
		if c.Mail.Provider != "gmail" {
			errs = append(errs, errors.New("delivery.sender gmail requires mail.provider gmail"))
		}
	case "resend":
		if c.Delivery.ResendAPIKey == "" || c.Delivery.From == "" {
			errs = append(errs, errors.New("delivery.resendApiKey and delivery.from are required for resend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown delivery.sender %q", c.Delivery.Sender))
	}

	if _, err := time.Parse("15:04", c.Scheduler.Time); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.time %q must be HH:MM", c.Scheduler.Time))
	}
	if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
	}

	switch strings.ToLower(c.Archive.Provider) {
	case "none", "file", "log":
	case "s3":
		if c.Archive.Bucket == "" {
			errs = append(errs, errors.New("archive.bucket is required for s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown archive.provider %q", c.Archive.Provider))
	}

	return errors.Join(errs...)
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setDuration(dst *time.Duration, def time.Duration) {
	if *dst <= 0 {
		*dst = def
	}
}

func setRetry(r *models.RetryConfig) {
	if r.Attempts <= 0 {
		r.Attempts = 3
	}
	setDuration(&r.Initial, time.Second)
	setDuration(&r.Max, 30*time.Second)
	if r.Multiplier <= 1 {
		r.Multiplier = 2
	}
}
