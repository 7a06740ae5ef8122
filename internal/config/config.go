package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	Global   Global   `toml:"global"`
	Extract  Extract  `toml:"extract"`
	Mail     Mail     `toml:"mail"`
	Filter   Filter   `toml:"filter"`
	Pairs    Pairs    `toml:"pairs"`
	Services Services `toml:"services"`
}

type Global struct {
	DataDir  string `toml:"data_dir"`
	Encoding string `toml:"encoding"`
	LogLevel string `toml:"log_level"`
}

type Extract struct {
	AdvisingInboxName   string `toml:"advising_inbox_name"`
	AdvisingName        string `toml:"advising_name"`
	AdvisingAddress     string `toml:"advising_address"`
	SentFolder          string `toml:"sent_folder"`
	SaveInterval        int    `toml:"save_interval"`
	InternalDomainsFile string `toml:"internal_domains_file"`
	NamesFile           string `toml:"names_file"`
	OutFile             string `toml:"out_file"`
	Timezone            string `toml:"timezone"`
}

type Mail struct {
	Source       string `toml:"source"` // "imap" or "mbox"
	IMAPServer   string `toml:"imap_server"`
	IMAPUsername string `toml:"imap_username"`
	IMAPPassword string `toml:"imap_password"`
	MboxDir      string `toml:"mbox_dir"`
}

type Filter struct {
	Enabled      bool   `toml:"enabled"`
	BodyKWFile   string `toml:"body_kw_file"`
	HeaderKWFile string `toml:"header_kw_file"`
	OutFile      string `toml:"out_file"`
}

type Pairs struct {
	OutFile string `toml:"out_file"`
}

type Services struct {
	NatsURL       string `toml:"nats_url"`
	NatsToken     string `toml:"nats_token"`
	DatabaseURL   string `toml:"database_url"`
	StatusPort    int    `toml:"status_port"`
	SlackBotToken string `toml:"slack_bot_token"`
	SlackChannel  string `toml:"slack_channel"`
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Global: Global{
			DataDir:  "data",
			Encoding: "utf-8",
			LogLevel: "info",
		},
		Extract: Extract{
			SentFolder:          "Sent Items",
			SaveInterval:        100,
			InternalDomainsFile: "internal_domains.txt",
			OutFile:             "emails.csv",
			Timezone:            "UTC",
		},
		Mail: Mail{
			Source: "imap",
		},
		Filter: Filter{
			Enabled:      true,
			BodyKWFile:   "body_keywords.txt",
			HeaderKWFile: "header_keywords.txt",
			OutFile:      "emails_filtered.csv",
		},
		Pairs: Pairs{
			OutFile: "pairs.csv",
		},
	}
}

// Load builds the configuration from defaults, then the TOML file at path
// (skipped when path is empty), then environment variables. A .env file in
// the working directory is loaded into the environment first.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Global.DataDir = envStr("DATA_DIR", c.Global.DataDir)
	c.Global.Encoding = envStr("ENCODING", c.Global.Encoding)
	c.Global.LogLevel = envStr("LOG_LEVEL", c.Global.LogLevel)

	c.Extract.AdvisingInboxName = envStr("ADVISING_INBOX_NAME", c.Extract.AdvisingInboxName)
	c.Extract.AdvisingName = envStr("ADVISING_NAME", c.Extract.AdvisingName)
	c.Extract.AdvisingAddress = envStr("ADVISING_ADDRESS", c.Extract.AdvisingAddress)
	c.Extract.SentFolder = envStr("SENT_FOLDER", c.Extract.SentFolder)
	c.Extract.SaveInterval = envInt("SAVE_INTERVAL", c.Extract.SaveInterval)
	c.Extract.InternalDomainsFile = envStr("INTERNAL_DOMAINS_FILE", c.Extract.InternalDomainsFile)
	c.Extract.NamesFile = envStr("NAMES_FILE", c.Extract.NamesFile)
	c.Extract.OutFile = envStr("EXTRACT_OUT_FILE", c.Extract.OutFile)
	c.Extract.Timezone = envStr("TIMEZONE", c.Extract.Timezone)

	c.Mail.Source = envStr("MAIL_SOURCE", c.Mail.Source)
	c.Mail.IMAPServer = envStr("IMAP_SERVER", c.Mail.IMAPServer)
	c.Mail.IMAPUsername = envStr("IMAP_USERNAME", c.Mail.IMAPUsername)
	c.Mail.IMAPPassword = envStr("IMAP_PASSWORD", c.Mail.IMAPPassword)
	c.Mail.MboxDir = envStr("MBOX_DIR", c.Mail.MboxDir)

	c.Filter.Enabled = envBool("FILTER_ENABLED", c.Filter.Enabled)
	c.Filter.BodyKWFile = envStr("BODY_KW_FILE", c.Filter.BodyKWFile)
	c.Filter.HeaderKWFile = envStr("HEADER_KW_FILE", c.Filter.HeaderKWFile)
	c.Filter.OutFile = envStr("FILTER_OUT_FILE", c.Filter.OutFile)

	c.Pairs.OutFile = envStr("PAIRS_OUT_FILE", c.Pairs.OutFile)

	c.Services.NatsURL = envStr("NATS_URL", c.Services.NatsURL)
	c.Services.NatsToken = envStr("NATS_TOKEN", c.Services.NatsToken)
	c.Services.DatabaseURL = envStr("DATABASE_URL", c.Services.DatabaseURL)
	c.Services.StatusPort = envInt("STATUS_PORT", c.Services.StatusPort)
	c.Services.SlackBotToken = envStr("SLACK_BOT_TOKEN", c.Services.SlackBotToken)
	c.Services.SlackChannel = envStr("SLACK_CHANNEL", c.Services.SlackChannel)
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Mail.Source) {
	case "imap", "mbox":
	default:
		return fmt.Errorf("invalid MAIL_SOURCE %q: want imap or mbox", c.Mail.Source)
	}
	if c.Extract.SaveInterval <= 0 {
		return fmt.Errorf("invalid SAVE_INTERVAL %d: must be positive", c.Extract.SaveInterval)
	}
	return nil
}

// Path resolves a configured file name. Relative names live under DataDir.
func (c Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Global.DataDir, name)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
