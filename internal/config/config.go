// Package config provides configuration loading for the chrontext CLI and
// engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	// ContextStore configuration (the SPARQL endpoint the static query runs against)
	ContextStore ContextStoreConfig `mapstructure:"contextStore"`

	// Virtualization configuration (named backends the VQs push down to)
	Virtualization VirtualizationConfig `mapstructure:"virtualization"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging"`

	// Server configuration (for the engine HTTP API, when running as a service)
	Server ServerConfig `mapstructure:"server"`
}

// ContextStoreConfig holds the context-store client configuration.
type ContextStoreConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Timeout  string `mapstructure:"timeout"`
}

// VirtualizationConfig names every virtualized backend the engine may
// push a VirtualizedQuery down to.
type VirtualizationConfig struct {
	BigQuery   BigQueryConfig   `mapstructure:"bigquery"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	DuckDB     DuckDBConfig     `mapstructure:"duckdb"`
	Snowflake  SnowflakeConfig  `mapstructure:"snowflake"`
	Trino      TrinoConfig      `mapstructure:"trino"`
	Databricks DatabricksConfig `mapstructure:"databricks"`
	OPCUA      OPCUAConfig      `mapstructure:"opcua"`

	// Tables maps each resource to the physical table its time series
	// lives in, for the SQL-backed adapters (sqltranslate.Table).
	Tables []TableConfig `mapstructure:"tables"`

	// ResourceBackends maps a resource name to the backend name
	// (registry key) that serves it, e.g. "weather-station-1" -> "duckdb".
	ResourceBackends map[string]string `mapstructure:"resourceBackends"`
}

// TableConfig is the physical home of one resource's time series,
// mirrored into sqltranslate.Table when building a SQL backend adapter.
type TableConfig struct {
	Resource         string `mapstructure:"resource"`
	Schema           string `mapstructure:"schema"`
	Name             string `mapstructure:"name"`
	ValueColumn      string `mapstructure:"valueColumn"`
	TimestampColumn  string `mapstructure:"timestampColumn"`
	IdentifierColumn string `mapstructure:"identifierColumn"`
	YearColumn       string `mapstructure:"yearColumn"`
	MonthColumn      string `mapstructure:"monthColumn"`
	DayColumn        string `mapstructure:"dayColumn"`
}

// BigQueryConfig holds BigQuery backend configuration.
type BigQueryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"projectId"`
	Dataset   string `mapstructure:"dataset"`
}

// PostgresConfig holds PostgreSQL backend configuration.
type PostgresConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// DuckDBConfig holds DuckDB backend configuration.
type DuckDBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Database string `mapstructure:"database"`
}

// SnowflakeConfig holds Snowflake backend configuration.
type SnowflakeConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Account   string `mapstructure:"account"`
	Warehouse string `mapstructure:"warehouse"`
	Database  string `mapstructure:"database"`
	Schema    string `mapstructure:"schema"`
}

// TrinoConfig holds Trino backend configuration.
type TrinoConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Catalog string `mapstructure:"catalog"`
}

// DatabricksConfig holds Databricks SQL warehouse configuration.
type DatabricksConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	WorkspaceURL   string `mapstructure:"workspaceUrl"`
	HTTPPath       string `mapstructure:"httpPath"`
	AccessToken    string `mapstructure:"accessToken"`
}

// OPCUAConfig holds OPC-UA historian connection configuration.
type OPCUAConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	EndpointURL      string `mapstructure:"endpointUrl"`
	ProcessingIntervalMillis int `mapstructure:"processingIntervalMillis"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  string `mapstructure:"readTimeout"`
	WriteTimeout string `mapstructure:"writeTimeout"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		ContextStore: ContextStoreConfig{
			Endpoint: "http://localhost:7878/sparql",
			Timeout:  "30s",
		},
		Virtualization: VirtualizationConfig{
			BigQuery: BigQueryConfig{Enabled: false},
			Postgres: PostgresConfig{Enabled: false},
			DuckDB: DuckDBConfig{
				Enabled:  true,
				Database: ":memory:",
			},
			Snowflake:  SnowflakeConfig{Enabled: false},
			Trino:      TrinoConfig{Enabled: false, Host: "localhost", Port: 8080, Catalog: "hive"},
			Databricks: DatabricksConfig{Enabled: false},
			OPCUA:      OPCUAConfig{Enabled: false, ProcessingIntervalMillis: 1000},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Port:         7979,
			ReadTimeout:  "30s",
			WriteTimeout: "30s",
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".chrontext"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CHRONTEXT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("contextStore.endpoint", "http://localhost:7878/sparql")
	v.SetDefault("contextStore.timeout", "30s")
	v.SetDefault("virtualization.duckdb.enabled", true)
	v.SetDefault("virtualization.duckdb.database", ":memory:")
	v.SetDefault("virtualization.bigquery.enabled", false)
	v.SetDefault("virtualization.postgres.enabled", false)
	v.SetDefault("virtualization.snowflake.enabled", false)
	v.SetDefault("virtualization.trino.enabled", false)
	v.SetDefault("virtualization.databricks.enabled", false)
	v.SetDefault("virtualization.opcua.enabled", false)
	v.SetDefault("virtualization.opcua.processingIntervalMillis", 1000)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("server.port", 7979)
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
}
