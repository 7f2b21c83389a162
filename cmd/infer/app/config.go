package app

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/infer/pkg/constants"
	"github.com/agentstation/infer/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by the configuration.
const EnvPrefix = "INFER"

// Config holds the application configuration loaded from config files,
// environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	Format  string

	// Config file
	ConfigFile string

	// Reconciliation
	RulesDir    string
	Source      string
	Input       string
	OutputDir   string
	Concurrency int
	ExpandURNs  bool
	MetricsFile string

	// Search backend
	ElasticsearchAddresses []string
	NameField              string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (INFER_*)
// 3. .env files
// 4. Config file (~/.infer.yaml or ./.infer.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile := os.Getenv(EnvPrefix + "_CONFIG"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".infer")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "cannot read config file", err)
		}
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		RulesDir:    v.GetString("rules_dir"),
		Source:      v.GetString("source"),
		Input:       v.GetString("input"),
		OutputDir:   v.GetString("output_dir"),
		Concurrency: v.GetInt("concurrency"),
		ExpandURNs:  v.GetBool("expand_urns"),
		MetricsFile: v.GetString("metrics_file"),

		ElasticsearchAddresses: splitList(v.GetStringSlice("elasticsearch.addresses")),
		NameField:              v.GetString("elasticsearch.name_field"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput: getEnvOrDefault("LOG_OUTPUT", "stderr"),
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rules_dir", "rules")
	v.SetDefault("input", "-")
	v.SetDefault("output_dir", "output")
	v.SetDefault("concurrency", constants.DefaultConcurrency)
	v.SetDefault("elasticsearch.addresses", []string{constants.DefaultElasticsearchURL})
	v.SetDefault("elasticsearch.name_field", constants.DefaultNameField)
}

// Validate checks the settings a run needs.
func (c *Config) Validate() error {
	if c.Source == "" {
		return errors.NewConfigError("config", "source dataset is required (--source or INFER_SOURCE)", nil)
	}
	if c.RulesDir == "" {
		return errors.NewConfigError("config", "rules directory is required", nil)
	}
	if c.Concurrency < 1 || c.Concurrency > constants.MaxConcurrency {
		return errors.NewConfigError("config", "concurrency must be between 1 and 256",
			errors.NewValidationError("concurrency", c.Concurrency, "out of range"))
	}
	if len(c.ElasticsearchAddresses) == 0 {
		return errors.NewConfigError("config", "at least one elasticsearch address is required", nil)
	}
	return nil
}

// loadEnvFiles loads environment variables from .env files.
// Variables already set win, so .env.local is loaded before .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}

// splitList also splits comma-separated entries, as given in env vars.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
