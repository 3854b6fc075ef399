package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

const (
	defaultPort        = "8080"
	defaultMode        = "and"
	defaultCacheTTL    = 5 * time.Minute
	defaultMaxLoadTime = 5 * time.Minute
)

type Config struct {
	config *viper.Viper
}

func Load(env string) (*Config, error) {

	if len(env) == 0 {
		if env = os.Getenv(keyEnv); len(env) == 0 {
			env = envLocal
		}
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	viperConfig.SetDefault("server.port", defaultPort)
	viperConfig.SetDefault("search.default_mode", defaultMode)
	viperConfig.SetDefault("cache.ttl", defaultCacheTTL)
	viperConfig.SetDefault("index.max_load_time", defaultMaxLoadTime)

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

// getString prefers the environment variable over the config file key.
func (c *Config) getString(envKey string, fileKey string) string {
	value := c.config.GetString(envKey)
	if len(value) == 0 {
		value = c.config.GetString(fileKey)
	}

	return value
}

func (c *Config) GetPort() string {
	return c.getString("PORT", "server.port")
}

func (c *Config) GetLogLevel() string {
	return c.getString("LOG_LEVEL", "log.level")
}

func (c *Config) GetKVDBPath() string {
	return c.getString("KVDB_PATH", "database.kvdb_path")
}

// GetPayloadPath is the search index loaded at startup. It may point at the
// payload file itself or at a directory containing it.
func (c *Config) GetPayloadPath() string {
	return c.getString("PAYLOAD_PATH", "index.payload_path")
}

func (c *Config) GetMaxLoadTime() time.Duration {
	return c.config.GetDuration("index.max_load_time")
}

func (c *Config) GetDefaultMode() string {
	return c.getString("SEARCH_MODE", "search.default_mode")
}

func (c *Config) GetPartialMatching() bool {
	if c.config.IsSet("SEARCH_PARTIAL") {
		return c.config.GetBool("SEARCH_PARTIAL")
	}
	return c.config.GetBool("search.partial")
}

// GetRedisAddr is empty when the query cache is disabled.
func (c *Config) GetRedisAddr() string {
	return c.getString("REDIS_ADDR", "cache.redis_addr")
}

func (c *Config) GetCacheTTL() time.Duration {
	return c.config.GetDuration("cache.ttl")
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
