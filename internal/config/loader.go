package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from an optional YAML file plus CHAT_*
// environment variables. A .env file is honoured when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	setDefaults()

	env := strings.ToLower(os.Getenv("CHAT_ENVIRONMENT"))
	if env == "" {
		env = "development"
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/chat-service")
	}

	viper.SetEnvPrefix("CHAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, environment variables cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Environment = env

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.tcp_addr", ":4000")
	viper.SetDefault("server.ws_addr", ":4001")
	viper.SetDefault("server.http_addr", ":8080")
	viper.SetDefault("server.shutdown_timeout", "15s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "chat")
	viper.SetDefault("database.dbname", "chat")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.auto_migrate", true)

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("session.ttl", "24h")
	viper.SetDefault("session.sweep_interval", "1h")

	viper.SetDefault("chat.max_message_length", 4096)
	viper.SetDefault("chat.outbox_size", 256)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
