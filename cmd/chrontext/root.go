// Package main implements the chrontext CLI. Adapted from the teacher's
// cmd/canonic entrypoint and internal/cli.CLI root-command wiring: same
// cobra root command + persistent flags + subcommand registration shape,
// repointed at the combiner/context-store/registry instead of a gateway
// HTTP client.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chrontext/chrontext/internal/config"
	"github.com/chrontext/chrontext/internal/contextstore"
	"github.com/chrontext/chrontext/internal/sqltranslate"
	"github.com/chrontext/chrontext/internal/vdb"
)

// CLI holds the root command and the global flags/state shared by every
// subcommand, mirroring the teacher's internal/cli.CLI struct.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config

	configPath string
	jsonOutput bool
	quiet      bool
	debug      bool
}

// New builds the CLI with every subcommand registered.
func New() *CLI {
	c := &CLI{}
	c.rootCmd = c.newRootCmd()
	return c
}

// Execute runs the CLI, returning the error any subcommand produced.
func (c *CLI) Execute() error {
	return c.rootCmd.Execute()
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chrontext",
		Short: "Hybrid context-store + time-series query engine",
		Long: `chrontext joins a context-store graph query against pushed-down
time-series sub-queries, then stitches the two result sets back together.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.initConfig,
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "emit JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(c.newQueryCmd())
	cmd.AddCommand(c.newExplainCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	c.cfg = cfg
	return nil
}

// buildRegistry constructs a vdb.Registry from c.cfg.Virtualization,
// registering exactly the backends the config enables. Grounded on the
// teacher's internal/bootstrap wiring, which built the engine's adapter
// set from the same Config.Engines shape at startup.
func (c *CLI) buildRegistry() (*vdb.Registry, error) {
	registry := vdb.NewRegistry()
	v := c.cfg.Virtualization

	if v.DuckDB.Enabled || (!v.Postgres.Enabled && !v.Snowflake.Enabled && !v.Trino.Enabled && !v.Databricks.Enabled && !v.BigQuery.Enabled && !v.OPCUA.Enabled) {
		adapter, err := vdb.NewDuckDBAdapter(vdb.Config{DatabasePath: v.DuckDB.Database, Tables: c.tables()})
		if err != nil {
			return nil, fmt.Errorf("duckdb: %w", err)
		}
		registry.Register(vdb.NewRetrying(adapter, vdb.DefaultRetryConfig()))
	}
	if v.Postgres.Enabled {
		adapter, err := vdb.NewPostgresAdapter(v.Postgres.DSN, c.tables())
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		registry.Register(vdb.NewRetrying(adapter, vdb.DefaultRetryConfig()))
	}
	if v.Snowflake.Enabled {
		adapter, err := vdb.NewSnowflakeAdapter(vdb.SnowflakeConfig{
			Account: v.Snowflake.Account, Warehouse: v.Snowflake.Warehouse,
			Database: v.Snowflake.Database, Schema: v.Snowflake.Schema,
		}, c.tables())
		if err != nil {
			return nil, fmt.Errorf("snowflake: %w", err)
		}
		registry.Register(vdb.NewRetrying(adapter, vdb.DefaultRetryConfig()))
	}
	if v.Trino.Enabled {
		adapter, err := vdb.NewTrinoAdapter(v.Trino.Host, v.Trino.Port, v.Trino.Catalog, c.tables())
		if err != nil {
			return nil, fmt.Errorf("trino: %w", err)
		}
		registry.Register(vdb.NewRetrying(adapter, vdb.DefaultRetryConfig()))
	}
	if v.Databricks.Enabled {
		adapter, err := vdb.NewDatabricksAdapter(v.Databricks.WorkspaceURL, v.Databricks.HTTPPath, v.Databricks.AccessToken, c.tables())
		if err != nil {
			return nil, fmt.Errorf("databricks: %w", err)
		}
		registry.Register(vdb.NewRetrying(adapter, vdb.DefaultRetryConfig()))
	}
	if v.BigQuery.Enabled {
		adapter, err := vdb.NewBigQueryAdapter(context.Background(), v.BigQuery.ProjectID, c.tables())
		if err != nil {
			return nil, fmt.Errorf("bigquery: %w", err)
		}
		registry.Register(vdb.NewRetrying(adapter, vdb.DefaultRetryConfig()))
	}
	if v.OPCUA.Enabled {
		adapter, err := vdb.NewOPCUAAdapter(context.Background(), v.OPCUA.EndpointURL, 0, float64(v.OPCUA.ProcessingIntervalMillis))
		if err != nil {
			return nil, fmt.Errorf("opcua: %w", err)
		}
		registry.Register(vdb.NewRetrying(adapter, vdb.DefaultRetryConfig()))
	}
	return registry, nil
}

// tables builds the resource -> physical table map the SQL-backed
// adapters need from the configured table definitions.
func (c *CLI) tables() map[string]sqltranslate.Table {
	tables := make(map[string]sqltranslate.Table, len(c.cfg.Virtualization.Tables))
	for _, t := range c.cfg.Virtualization.Tables {
		tables[t.Resource] = sqltranslate.Table{
			Resource:         t.Resource,
			Schema:           t.Schema,
			Name:             t.Name,
			ValueColumn:      t.ValueColumn,
			TimestampColumn:  t.TimestampColumn,
			IdentifierColumn: t.IdentifierColumn,
			YearColumn:       t.YearColumn,
			MonthColumn:      t.MonthColumn,
			DayColumn:        t.DayColumn,
		}
	}
	return tables
}

// resourceBackends returns the configured resource -> backend-name map,
// defaulting every table-configured resource to "duckdb" when no
// explicit mapping is given (the default registry only ever registers
// duckdb unless another backend is enabled).
func (c *CLI) resourceBackends() map[string]string {
	if len(c.cfg.Virtualization.ResourceBackends) > 0 {
		return c.cfg.Virtualization.ResourceBackends
	}
	backends := map[string]string{}
	for _, t := range c.cfg.Virtualization.Tables {
		backends[t.Resource] = "duckdb"
	}
	return backends
}

func (c *CLI) newContextStore() contextstore.ContextStore {
	return contextstore.NewHTTPContextStore(c.cfg.ContextStore.Endpoint)
}

func (c *CLI) printf(format string, args ...interface{}) {
	if c.quiet {
		return
	}
	fmt.Fprintf(os.Stdout, format, args...)
}

func (c *CLI) println(args ...interface{}) {
	if c.quiet {
		return
	}
	fmt.Fprintln(os.Stdout, args...)
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func (c *CLI) debugf(format string, args ...interface{}) {
	if c.debug {
		fmt.Fprintf(os.Stderr, "[debug] "+format, args...)
	}
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
