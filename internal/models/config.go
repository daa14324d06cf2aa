package models

import "time"

// Config represents the application configuration
type Config struct {
	Mail       MailConfig       `yaml:"mail"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Cleaner    CleanerConfig    `yaml:"cleaner"`
	Database   DatabaseConfig   `yaml:"database"`
	Delivery   DeliveryConfig   `yaml:"delivery"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	HTTP       HTTPConfig       `yaml:"http"`
	Redis      RedisConfig      `yaml:"redis"`
	Events     EventsConfig     `yaml:"events"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// MailConfig selects the mail provider and the newsletter filter
type MailConfig struct {
	Provider       string        `yaml:"provider"` // gmail | imap
	Label          string        `yaml:"label"`
	SenderKeywords []string      `yaml:"senderKeywords"`
	Lookback       time.Duration `yaml:"lookback"`
	Gmail          GmailConfig   `yaml:"gmail"`
	Imap           ImapConfig    `yaml:"imap"`
	Retry          RetryConfig   `yaml:"retry"`
}

// GmailConfig holds the OAuth files used by the Gmail provider
type GmailConfig struct {
	CredentialsFile string `yaml:"credentialsFile"`
	TokenFile       string `yaml:"tokenFile"`
}

// ImapConfig represents IMAP email configuration
type ImapConfig struct {
	Server   string        `yaml:"server"`
	Login    string        `yaml:"login"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RetryConfig configures backoff for transient collaborator failures
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
}

type SummarizerConfig struct {
	Provider    string        `yaml:"provider"` // gemini | ollama | auto
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"apiKey"`
	OllamaURL   string        `yaml:"ollamaUrl"`
	OllamaModel string        `yaml:"ollamaModel"`
	Timeout     time.Duration `yaml:"timeout"`
	Retry       RetryConfig   `yaml:"retry"`
}

type CleanerConfig struct {
	Budget  int `yaml:"budget"`
	Workers int `yaml:"workers"`
}

type DatabaseConfig struct {
	URL                string        `yaml:"url"`
	MaxConns           int32         `yaml:"maxConns"`
	MinConns           int32         `yaml:"minConns"`
	SlowQueryThreshold time.Duration `yaml:"slowQueryThreshold"`
}

type DeliveryConfig struct {
	Sender          string  `yaml:"sender"` // gmail | imap | resend | log
	From            string  `yaml:"from"`
	Subject         string  `yaml:"subject"`
	ResendAPIKey    string  `yaml:"resendApiKey"`
	RatePerSecond   float64 `yaml:"ratePerSecond"`
	SendEmptyDigest bool    `yaml:"sendEmptyDigest"`
	UnsubscribeURL  string  `yaml:"unsubscribeUrl"`
}

type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Time     string `yaml:"time"` // HH:MM
	Timezone string `yaml:"timezone"`
}

type HTTPConfig struct {
	Address    string `yaml:"address"`
	AdminToken string `yaml:"adminToken"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lockTTL"`
}

type EventsConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type ArchiveConfig struct {
	Provider      string `yaml:"provider"` // s3 | file | none
	Bucket        string `yaml:"bucket"`
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	AccessKey     string `yaml:"accessKey"`
	SecretKey     string `yaml:"secretKey"`
	PublicURLBase string `yaml:"publicUrlBase"`
	Dir           string `yaml:"dir"`
	PDF           bool   `yaml:"pdf"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
