package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/frahmantamala/secure-payments/internal"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	clearData  bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "secure-payments",
	Short: "Secure Payments",
	Long:  `Creates, lists and approves payments whose sensitive reference is masked for display and encrypted at rest.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*internal.Config, error) {
	// .env is optional; values already in the environment win
	_ = godotenv.Load()

	// Check if we're running in Docker environment
	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		// Load configuration from environment variables (Docker deployment)
		cfg := internal.LoadConfigFromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("error validating config from environment: %w", err)
		}
		return cfg, nil
	}

	// Load configuration from file (development)
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_server.env", "development")
	v.SetDefault("http_server.port", 8080)
	v.SetDefault("http_server.read_header_timeout", 5*time.Second)
	v.SetDefault("http_server.read_timeout", 10*time.Second)
	v.SetDefault("http_server.idle_timeout", 60*time.Second)
	v.SetDefault("http_server.write_timeout", 10*time.Second)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("parameters.source", "redis")
	v.SetDefault("parameters.prefix", "/secure-payments/dev")
	v.SetDefault("parameters.cache_ttl", 15*time.Second)
	v.SetDefault("index.reconcile_interval", time.Minute)
	v.SetDefault("dependencies.timeout", 5*time.Second)
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-dir", ".", "directory containing config.yml")
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
