// Package config loads application configuration from defaults, an optional
// TOML file and PRPILOT_ environment variables, in that order of precedence.
package config

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PRPILOT_"

// Config holds the application configuration.
type Config struct {
	GitHubApp         bool   `toml:"github_app"`
	IntegrationID     int64  `toml:"integration_id" validate:"gte=0"`
	PrivateKey        string `toml:"private_key"`
	WebhookSecret     string `toml:"webhook_secret"`
	CacheTokenSecret  string `toml:"cache_token_secret"`
	OAuthClientID     string `toml:"oauth_client_id"`
	OAuthClientSecret string `toml:"oauth_client_secret"`
	MainToken         string `toml:"main_token"`
	ForkToken         string `toml:"fork_token"`
	MainTokenDelete   string `toml:"main_token_delete"`
	ForkTokenDelete   string `toml:"fork_token_delete"`

	GitHubURL    string `toml:"github_url" validate:"required,url"`
	GitHubAPIURL string `toml:"github_api_url" validate:"required,url"`
	StorageURL   string `toml:"storage_url" validate:"omitempty,url"`
	DBPath       string `toml:"db_path" validate:"required"`
	ListenAddr   string `toml:"listen_addr" validate:"required,hostname_port"`
	RulesFile    string `toml:"rules_file"`

	CommandPrefix string `toml:"command_prefix" validate:"required,startswith=@"`
	GitEmail      string `toml:"git_email" validate:"required,email"`
	OTLPEndpoint  string `toml:"otlp_endpoint" validate:"omitempty,url"`

	LogLevel        string `toml:"log_level" validate:"oneof=debug info warn warning error"`
	LogStdout       bool   `toml:"log_stdout"`
	LogStdoutLevel  string `toml:"log_stdout_level" validate:"oneof=debug info warn warning error"`
	LogDatadog      bool   `toml:"log_datadog"`
	LogDatadogLevel string `toml:"log_datadog_level" validate:"oneof=debug info warn warning error"`
	LogDatadogURL   string `toml:"log_datadog_url" validate:"required,url"`
	LogFile         string `toml:"log_file"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		GitHubApp:       true,
		GitHubURL:       "https://github.com",
		GitHubAPIURL:    "https://api.github.com",
		DBPath:          "prpilot.db",
		ListenAddr:      "127.0.0.1:8080",
		CommandPrefix:   "@prpilot",
		GitEmail:        "prpilot-bot@users.noreply.github.com",
		LogLevel:        "info",
		LogStdout:       true,
		LogStdoutLevel:  "info",
		LogDatadogLevel: "info",
		LogDatadogURL:   "udp://127.0.0.1:10518",
	}
}

// Load builds the configuration: defaults, then the TOML file named by
// PRPILOT_CONFIG_FILE if set, then PRPILOT_* environment variables. The
// result is validated.
func Load() (*Config, error) {
	return LoadPath(os.Getenv(EnvPrefix + "CONFIG_FILE"))
}

// LoadPath is Load with an explicit TOML file. An empty path skips the file.
func LoadPath(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the TOML file at path. Unknown keys are rejected.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			return fmt.Errorf("config file %s: %s", path, sme.String())
		}
		return fmt.Errorf("decoding config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays every PRPILOT_<KEY> variable found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, b := range c.bindings() {
		v, ok := lookup(EnvPrefix + b.key)
		if !ok {
			continue
		}
		if err := b.set(v); err != nil {
			return fmt.Errorf("%s%s has invalid value %q: %w", EnvPrefix, b.key, v, err)
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	for _, lvl := range []*string{&c.LogLevel, &c.LogStdoutLevel, &c.LogDatadogLevel} {
		*lvl = strings.ToLower(strings.TrimSpace(*lvl))
	}
	c.GitHubURL = strings.TrimRight(c.GitHubURL, "/")
}

// TokenKey derives the AES-256 key used to encrypt stored bot tokens. It
// returns nil when CACHE_TOKEN_SECRET is unset.
func (c *Config) TokenKey() []byte {
	if c.CacheTokenSecret == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(c.CacheTokenSecret))
	return sum[:]
}

// Setting is one configuration key and its current value. Value is nil for
// unset optional strings.
type Setting struct {
	Key   string
	Value any
}

// Values returns every setting in declaration order, keyed without the
// PRPILOT_ prefix.
func (c *Config) Values() []Setting {
	bs := c.bindings()
	out := make([]Setting, 0, len(bs))
	for _, b := range bs {
		out = append(out, Setting{Key: b.key, Value: b.value()})
	}
	return out
}

// binding ties an environment key to exactly one typed field.
type binding struct {
	key  string
	str  *string
	flag *bool
	num  *int64
}

func (b binding) set(v string) error {
	switch {
	case b.str != nil:
		*b.str = v
	case b.flag != nil:
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*b.flag = parsed
	case b.num != nil:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*b.num = parsed
	}
	return nil
}

func (b binding) value() any {
	switch {
	case b.str != nil:
		if *b.str == "" {
			return nil
		}
		return *b.str
	case b.flag != nil:
		return *b.flag
	default:
		return *b.num
	}
}

func (c *Config) bindings() []binding {
	return []binding{
		{key: "GITHUB_APP", flag: &c.GitHubApp},
		{key: "INTEGRATION_ID", num: &c.IntegrationID},
		{key: "PRIVATE_KEY", str: &c.PrivateKey},
		{key: "WEBHOOK_SECRET", str: &c.WebhookSecret},
		{key: "CACHE_TOKEN_SECRET", str: &c.CacheTokenSecret},
		{key: "OAUTH_CLIENT_ID", str: &c.OAuthClientID},
		{key: "OAUTH_CLIENT_SECRET", str: &c.OAuthClientSecret},
		{key: "MAIN_TOKEN", str: &c.MainToken},
		{key: "FORK_TOKEN", str: &c.ForkToken},
		{key: "MAIN_TOKEN_DELETE", str: &c.MainTokenDelete},
		{key: "FORK_TOKEN_DELETE", str: &c.ForkTokenDelete},
		{key: "GITHUB_URL", str: &c.GitHubURL},
		{key: "GITHUB_API_URL", str: &c.GitHubAPIURL},
		{key: "STORAGE_URL", str: &c.StorageURL},
		{key: "DB_PATH", str: &c.DBPath},
		{key: "LISTEN_ADDR", str: &c.ListenAddr},
		{key: "RULES_FILE", str: &c.RulesFile},
		{key: "COMMAND_PREFIX", str: &c.CommandPrefix},
		{key: "GIT_EMAIL", str: &c.GitEmail},
		{key: "OTLP_ENDPOINT", str: &c.OTLPEndpoint},
		{key: "LOG_LEVEL", str: &c.LogLevel},
		{key: "LOG_STDOUT", flag: &c.LogStdout},
		{key: "LOG_STDOUT_LEVEL", str: &c.LogStdoutLevel},
		{key: "LOG_DATADOG", flag: &c.LogDatadog},
		{key: "LOG_DATADOG_LEVEL", str: &c.LogDatadogLevel},
		{key: "LOG_DATADOG_URL", str: &c.LogDatadogURL},
		{key: "LOG_FILE", str: &c.LogFile},
	}
}
