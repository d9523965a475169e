// Package config resolves ragchat settings with viper. Sources are layered
// from lowest to highest precedence: defaults, the YAML config file, a .env
// file, RAGCHAT_* environment variables and flags set on the command line.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/ragchat/pkg/client"
	"github.com/go-go-golems/ragchat/pkg/logging"
	"github.com/go-go-golems/ragchat/pkg/redisstream"
	"github.com/go-go-golems/ragchat/pkg/requests"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "RAGCHAT"

type APISettings struct {
	URL     string        `yaml:"url" mapstructure:"url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type ChatSettings struct {
	TopK                int      `yaml:"top-k" mapstructure:"top-k"`
	SimilarityThreshold float64  `yaml:"similarity-threshold" mapstructure:"similarity-threshold"`
	Temperature         *float64 `yaml:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens           *int     `yaml:"max-tokens,omitempty" mapstructure:"max-tokens"`
}

// Options turns the settings into request builder options.
func (c ChatSettings) Options() []requests.ChatOption {
	ret := []requests.ChatOption{
		requests.WithTopK(c.TopK),
		requests.WithSimilarityThreshold(c.SimilarityThreshold),
	}
	if c.Temperature != nil {
		ret = append(ret, requests.WithTemperature(*c.Temperature))
	}
	if c.MaxTokens != nil {
		ret = append(ret, requests.WithMaxTokens(*c.MaxTokens))
	}
	return ret
}

type SearchSettings struct {
	Limit        int  `yaml:"limit" mapstructure:"limit"`
	IncludeScore bool `yaml:"include-score" mapstructure:"include-score"`
}

type Settings struct {
	API     APISettings          `yaml:"api" mapstructure:"api"`
	Chat    ChatSettings         `yaml:"chat" mapstructure:"chat"`
	Search  SearchSettings       `yaml:"search" mapstructure:"search"`
	Logging logging.Settings     `yaml:"logging" mapstructure:"logging"`
	Redis   redisstream.Settings `yaml:"redis" mapstructure:"redis"`

	// ConfigFile is the file the settings were read from, empty if none.
	ConfigFile string `yaml:"-" mapstructure:"-"`
}

func Default() *Settings {
	return &Settings{
		API: APISettings{
			URL:     client.DefaultBaseURL,
			Timeout: client.DefaultTimeout,
		},
		Chat: ChatSettings{
			TopK:                requests.DefaultTopK,
			SimilarityThreshold: requests.DefaultSimilarityThreshold,
		},
		Search: SearchSettings{
			Limit:        requests.DefaultSearchLimit,
			IncludeScore: true,
		},
		Logging: logging.Settings{Level: "info", Format: "text"},
		Redis:   redisstream.DefaultSettings(),
	}
}

// DefaultPath is $HOME/.ragchat/config.yaml, or empty when no home
// directory is known.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".ragchat", "config.yaml")
}

// flagKeys maps the flags registered by AddFlags to settings keys.
var flagKeys = map[string]string{
	"api-url":     "api.url",
	"timeout":     "api.timeout",
	"log-level":   "logging.level",
	"log-format":  "logging.format",
	"log-file":    "logging.log-file",
	"with-caller": "logging.with-caller",
	"redis":       "redis.enabled",
	"redis-addr":  "redis.addr",
}

// envAliases are short variable names accepted next to the automatic
// RAGCHAT_<SECTION>_<KEY> ones, which take precedence when both are set.
var envAliases = map[string]string{
	"api.timeout":               "RAGCHAT_TIMEOUT",
	"chat.top-k":                "RAGCHAT_TOP_K",
	"chat.similarity-threshold": "RAGCHAT_SIMILARITY_THRESHOLD",
	"chat.temperature":          "RAGCHAT_TEMPERATURE",
	"chat.max-tokens":           "RAGCHAT_MAX_TOKENS",
	"logging.level":             "RAGCHAT_LOG_LEVEL",
	"logging.format":            "RAGCHAT_LOG_FORMAT",
	"logging.log-file":          "RAGCHAT_LOG_FILE",
}

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// AddFlags registers the settings flags on fs. Only flags the user sets
// override the other sources.
func AddFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("api-url", d.API.URL, "Base URL of the RAG backend")
	fs.Duration("timeout", d.API.Timeout, "Timeout applied to every backend call")
	fs.String("log-level", d.Logging.Level, "Log level (trace, debug, info, warn, error)")
	fs.String("log-format", d.Logging.Format, "Log format (text, json)")
	fs.String("log-file", "", "Write logs to this file instead of stderr")
	fs.Bool("with-caller", false, "Log caller file and line")
	fs.Bool("redis", false, "Publish session events on Redis Streams")
	fs.String("redis-addr", d.Redis.Addr, "Redis address host:port")
}

type LoadOptions struct {
	// ConfigFile must exist when set. When empty, DefaultPath is read if present.
	ConfigFile string
	// EnvFile is loaded if present; defaults to ".env". Variables already set
	// in the environment win.
	EnvFile string
	// Flags holds the flags registered by AddFlags, usually the command's
	// merged flag set. May be nil.
	Flags *pflag.FlagSet
}

func Load(opts LoadOptions) (*Settings, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, Default())

	path, required := opts.ConfigFile, true
	if path == "" {
		path, required = DefaultPath(), false
		if path != "" {
			if _, err := os.Stat(path); err != nil {
				path = ""
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if required || !os.IsNotExist(errors.Cause(err)) {
				return nil, errors.Wrapf(err, "could not read config file %s", path)
			}
		} else {
			log.Debug().Str("file", path).Msg("loaded config file")
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			return nil, errors.Wrapf(err, "could not load %s", envFile)
		}
	} else {
		log.Debug().Str("file", envFile).Msg("loaded env file")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()
	for key, alias := range envAliases {
		if err := v.BindEnv(key, alias); err != nil {
			return nil, errors.Wrapf(err, "could not bind %s", alias)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, errors.Wrapf(err, "could not bind flag --%s", name)
			}
		}
	}

	s := &Settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	s.ConfigFile = v.ConfigFileUsed()
	return s, nil
}

func setDefaults(v *viper.Viper, d *Settings) {
	v.SetDefault("api.url", d.API.URL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("chat.top-k", d.Chat.TopK)
	v.SetDefault("chat.similarity-threshold", d.Chat.SimilarityThreshold)
	v.SetDefault("search.limit", d.Search.Limit)
	v.SetDefault("search.include-score", d.Search.IncludeScore)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.with-caller", d.Logging.WithCaller)
	v.SetDefault("logging.log-file", d.Logging.LogFile)
	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.group", d.Redis.Group)
	v.SetDefault("redis.consumer", d.Redis.Consumer)
}

// Validate checks the settings that would otherwise only fail on first use.
func (s *Settings) Validate() error {
	u, err := url.Parse(s.API.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("api url must be absolute, got %q", s.API.URL)
	}
	if s.API.Timeout <= 0 {
		return errors.Errorf("api timeout must be positive, got %s", s.API.Timeout)
	}
	if !requests.ValidSearchLimit(s.Search.Limit) {
		return errors.Errorf("search limit must be one of %v, got %d", requests.SearchLimits, s.Search.Limit)
	}
	if _, err := requests.BuildChatRequest("validate", "", s.Chat.Options()...); err != nil {
		return errors.Wrap(err, "invalid chat settings")
	}
	return nil
}

// NewClient builds the transport client described by the API settings.
func (s *Settings) NewClient() (*client.Client, error) {
	return client.New(s.API.URL, client.WithTimeout(s.API.Timeout))
}
