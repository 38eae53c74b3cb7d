// Package config resolves runtime settings from flags, environment
// variables, an optional meetballs.yaml and a .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	// A .env file in the working directory is loaded before anything reads the environment.
	_ "github.com/joho/godotenv/autoload"
	"github.com/maloquacious/semver"
	"github.com/spf13/viper"
)

// Version is the application version reported by `meetballs version` and
// the admin status endpoint.
var Version = semver.Version{Minor: 1, PreRelease: "alpha", Build: semver.Commit()}

const (
	DefaultDBFileName    = "file:local.db"
	DefaultMigrationsDir = "migrations"
	DefaultPort          = 8080
	DefaultAdminPort     = 8383
	DefaultShutdown      = 15 * time.Second

	envPrefix  = "MEETBALLS"
	configName = "meetballs"
)

// Config holds the settings every command shares.
type Config struct {
	DBFileName      string
	MigrationsDir   string
	Port            int
	AdminPort       int
	Verbose         bool
	ShutdownTimeout time.Duration
}

// Setup registers defaults and environment bindings on v and reads the
// config file. An explicit configFile must exist; otherwise meetballs.yaml
// is looked up in the working directory and skipped when absent.
func Setup(v *viper.Viper, configFile string) error {
	v.SetDefault("db_file_name", DefaultDBFileName)
	v.SetDefault("migrations_dir", DefaultMigrationsDir)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("admin_port", DefaultAdminPort)
	v.SetDefault("verbose", false)
	v.SetDefault("shutdown_timeout", DefaultShutdown)

	// MEETBALLS_MIGRATIONS_DIR -> "migrations_dir", MEETBALLS_PORT -> "port".
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// The database location keeps the conventional unprefixed name.
	if err := v.BindEnv("db_file_name", "DB_FILE_NAME", envPrefix+"_DB_FILE_NAME"); err != nil {
		return fmt.Errorf("bind DB_FILE_NAME: %w", err)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", configFile, err)
		}
		return nil
	}

	v.SetConfigName(configName)
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load reads the merged configuration out of v.
func Load(v *viper.Viper) Config {
	return Config{
		DBFileName:      v.GetString("db_file_name"),
		MigrationsDir:   v.GetString("migrations_dir"),
		Port:            v.GetInt("port"),
		AdminPort:       v.GetInt("admin_port"),
		Verbose:         v.GetBool("verbose"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
	}
}
