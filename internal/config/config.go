package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration shared by the registry and
// DAO binaries.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Registry RegistryConfig `json:"registry"`
	Database DatabaseConfig `json:"database"`
	Security SecurityConfig `json:"security"`
	Snapshot SnapshotConfig `json:"snapshot"`
	Audit    AuditConfig    `json:"audit"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// RegistryConfig configures the registry instance and, for the DAO binary,
// how to reach it.
type RegistryConfig struct {
	Name       string   `json:"name"`
	Symbol     string   `json:"symbol"`
	Custodians []string `json:"custodians"`
	// BaseURL and the custodian token are the DAO side of the boundary.
	BaseURL        string        `json:"base_url"`
	CustodianToken string        `json:"custodian_token"`
	CallTimeout    time.Duration `json:"call_timeout"`
}

// DatabaseConfig represents the DAO journal database.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// SecurityConfig holds the bearer-token secret shared by the services.
type SecurityConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// SnapshotConfig selects the snapshot store backend.
type SnapshotConfig struct {
	Backend  string `json:"backend"` // "local", "s3", or "" to disable
	LocalDir string `json:"local_dir"`
	S3Bucket string `json:"s3_bucket"`
	S3Prefix string `json:"s3_prefix"`
}

// AuditConfig schedules the periodic stats audit.
type AuditConfig struct {
	CronSpec string `json:"cron_spec"`
	Repair   bool   `json:"repair"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "propspace_portal",
			SSLMode: "disable",
		},
		Registry: RegistryConfig{
			CallTimeout: 30 * time.Second,
		},
		Snapshot: SnapshotConfig{
			Backend:  "local",
			LocalDir: "snapshots",
		},
		Audit: AuditConfig{
			CronSpec: "@hourly",
		},
	}

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)
	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Security.JWTSecret = secret
	}
	if url := os.Getenv("REGISTRY_BASE_URL"); url != "" {
		config.Registry.BaseURL = url
	}
	if token := os.Getenv("REGISTRY_CUSTODIAN_TOKEN"); token != "" {
		config.Registry.CustodianToken = token
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DATABASE_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			config.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if bucket := os.Getenv("SNAPSHOT_S3_BUCKET"); bucket != "" {
		config.Snapshot.Backend = "s3"
		config.Snapshot.S3Bucket = bucket
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
