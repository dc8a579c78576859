package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	clienterrors "github.com/dignilife/faceauth-client/internal/errors"
)

const (
	// EnvPrefix is stripped from environment variables before they are mapped
	// onto config keys, e.g. FACEAUTH_API_URL -> api.url
	EnvPrefix = "FACEAUTH_"

	defaultAppName        = "FaceAuth"
	defaultEnv            = "DEV"
	defaultAPIURL         = "http://127.0.0.1:8000"
	defaultRequestTimeout = 30 * time.Second
	defaultRedisPrefix    = "faceauth"
	defaultLogLevel       = "info"
	credentialsFileName   = "credentials.json"
)

type settings struct {
	App struct {
		Name string `koanf:"name"`
		Env  string `koanf:"env"`
	} `koanf:"app"`

	API struct {
		URL     string        `koanf:"url"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"api"`

	Store struct {
		Backend string `koanf:"backend"`
		Path    string `koanf:"path"`
	} `koanf:"store"`

	Redis struct {
		URL    string `koanf:"url"`
		Prefix string `koanf:"prefix"`
	} `koanf:"redis"`

	Log struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
	} `koanf:"log"`
}

// Load reads the optional YAML file at configFile and then applies FACEAUTH_*
// environment overrides. An empty configFile skips the file.
func Load(configFile string) (Config, error) {
	k := koanf.New(".")

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "[config.Load] read %s", configFile)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "[config.Load] load env variables")
	}

	var s settings
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &s,
			TagName:          "koanf",
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, errors.Wrap(err, "[config.Load] unmarshal")
	}

	cfg := mainConfig{settings: s}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c mainConfig) validate() error {
	switch c.GetStoreBackend() {
	case StoreBackendFile, StoreBackendMemory:
	case StoreBackendRedis:
		if c.GetRedisURL() == "" {
			return errors.Wrap(clienterrors.ErrInvalidConfig, "redis store backend requires redis.url")
		}
	default:
		return errors.Wrapf(clienterrors.ErrInvalidConfig, "unknown store backend %q", c.Store.Backend)
	}
	if c.GetRequestTimeout() < 0 {
		return errors.Wrap(clienterrors.ErrInvalidConfig, "api.timeout must not be negative")
	}
	return nil
}

func (c mainConfig) GetAppName() string {
	return valueOr(c.App.Name, defaultAppName)
}

func (c mainConfig) GetEnv() string {
	return strings.ToUpper(valueOr(c.App.Env, defaultEnv))
}

func (c mainConfig) GetAPIURL() string {
	return strings.TrimRight(valueOr(c.API.URL, defaultAPIURL), "/")
}

func (c mainConfig) GetRequestTimeout() time.Duration {
	if c.API.Timeout == 0 {
		return defaultRequestTimeout
	}
	return c.API.Timeout
}

func (c mainConfig) GetStoreBackend() StoreBackend {
	return StoreBackend(strings.ToLower(valueOr(c.Store.Backend, string(StoreBackendFile))))
}

// GetStorePath returns the credentials file path, defaulting to the user config dir
func (c mainConfig) GetStorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "faceauth", credentialsFileName)
}

func (c mainConfig) GetRedisURL() string {
	return c.Redis.URL
}

func (c mainConfig) GetRedisPrefix() string {
	return valueOr(c.Redis.Prefix, defaultRedisPrefix)
}

func (c mainConfig) GetLogLevel() string {
	return valueOr(c.Log.Level, defaultLogLevel)
}

func (c mainConfig) GetLogPretty() bool {
	return c.Log.Pretty
}

func valueOr(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
