package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aashishaacharya/IMUdb-web/internal/db"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	ApplyModeSQL          = "sql"
	ApplyModeEdgeFunction = "edge_function"
)

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Apply    ApplyConfig
	Workflow WorkflowConfig
	Log      LogConfig
}

type ServerConfig struct {
	Addr            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	// Driver selects postgres or the in-memory store.
	Driver string
	db.Config
}

type AuthConfig struct {
	JWTSecret      string
	Issuer         string
	Audience       string
	ProfileRetries int
	ProfileBackoff time.Duration
}

// ApplyConfig selects how approved edits are written to the site tables.
// With the memory driver the sql mode applies to the in-memory sites.
type ApplyConfig struct {
	Mode        string
	FunctionURL string
	ServiceKey  string
	Timeout     time.Duration
}

type WorkflowConfig struct {
	CallTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	dbDefaults := db.DefaultConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:5173"})
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.host", dbDefaults.Host)
	v.SetDefault("database.port", dbDefaults.Port)
	v.SetDefault("database.user", dbDefaults.User)
	v.SetDefault("database.password", dbDefaults.Password)
	v.SetDefault("database.dbname", dbDefaults.DBName)
	v.SetDefault("database.sslmode", dbDefaults.SSLMode)
	v.SetDefault("database.max_conns", dbDefaults.MaxConns)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "authenticated")
	v.SetDefault("auth.profile_retries", 3)
	v.SetDefault("auth.profile_backoff", 200*time.Millisecond)

	v.SetDefault("apply.mode", ApplyModeSQL)
	v.SetDefault("apply.function_url", "")
	v.SetDefault("apply.service_key", "")
	v.SetDefault("apply.timeout", 15*time.Second)

	v.SetDefault("workflow.call_timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads config.yaml from configPath, when present, and applies
// IMUDB_* environment overrides (IMUDB_DATABASE_HOST, IMUDB_AUTH_JWT_SECRET, ...).
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix("IMUDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			AllowedOrigins:  splitList(v.GetStringSlice("server.allowed_origins")),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
			Config: db.Config{
				Host:     v.GetString("database.host"),
				Port:     v.GetInt("database.port"),
				User:     v.GetString("database.user"),
				Password: v.GetString("database.password"),
				DBName:   v.GetString("database.dbname"),
				SSLMode:  v.GetString("database.sslmode"),
				MaxConns: v.GetInt32("database.max_conns"),
			},
		},
		Auth: AuthConfig{
			JWTSecret:      v.GetString("auth.jwt_secret"),
			Issuer:         v.GetString("auth.issuer"),
			Audience:       v.GetString("auth.audience"),
			ProfileRetries: v.GetInt("auth.profile_retries"),
			ProfileBackoff: v.GetDuration("auth.profile_backoff"),
		},
		Apply: ApplyConfig{
			Mode:        strings.ToLower(strings.TrimSpace(v.GetString("apply.mode"))),
			FunctionURL: v.GetString("apply.function_url"),
			ServiceKey:  v.GetString("apply.service_key"),
			Timeout:     v.GetDuration("apply.timeout"),
		},
		Workflow: WorkflowConfig{
			CallTimeout: v.GetDuration("workflow.call_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Apply.Mode {
	case ApplyModeSQL:
	case ApplyModeEdgeFunction:
		if strings.TrimSpace(c.Apply.FunctionURL) == "" {
			return fmt.Errorf("apply.function_url is required for mode %q", c.Apply.Mode)
		}
	default:
		return fmt.Errorf("unsupported apply mode %q", c.Apply.Mode)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Workflow.CallTimeout <= 0 {
		return fmt.Errorf("workflow.call_timeout must be positive")
	}
	return nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
