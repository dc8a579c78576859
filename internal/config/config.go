package config

import "time"

type Config interface {
	EnvConfig
	APIConfig
	StoreConfig
	LogConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
}

type APIConfig interface {
	GetAPIURL() string
	GetRequestTimeout() time.Duration
}

type StoreConfig interface {
	GetStoreBackend() StoreBackend
	GetStorePath() string
	GetRedisURL() string
	GetRedisPrefix() string
}

type LogConfig interface {
	GetLogLevel() string
	GetLogPretty() bool
}

// StoreBackend selects where the session tokens are persisted
type StoreBackend string

const (
	StoreBackendFile   StoreBackend = "file"
	StoreBackendRedis  StoreBackend = "redis"
	StoreBackendMemory StoreBackend = "memory"
)

type mainConfig struct {
	settings
}

var _ Config = mainConfig{}
