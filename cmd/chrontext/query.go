package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/chrontext/chrontext/internal/combine"
	"github.com/chrontext/chrontext/pkg/models"
)

func (c *CLI) newQueryCmd() *cobra.Command {
	var requestPath string
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a query end to end and print the joined result table",
		Long: `Run a pre-parsed query request (a JSON-encoded algebra.Pattern, since
chrontext has no surface-syntax parser) through the full
preprocess/rewrite/prepare/combine pipeline and print the joined result.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQuery(requestPath)
		},
	}
	cmd.Flags().StringVarP(&requestPath, "file", "f", "", "path to a JSON QueryRequest (defaults to stdin)")
	return cmd
}

func (c *CLI) loadRequest(path string) (*models.QueryRequest, error) {
	var r *os.File
	if path == "" || path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var req models.QueryRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (c *CLI) runQuery(requestPath string) error {
	req, err := c.loadRequest(requestPath)
	if err != nil {
		c.errorf("reading query request: %v\n", err)
		return err
	}

	registry, err := c.buildRegistry()
	if err != nil {
		c.errorf("building backend registry: %v\n", err)
		return err
	}
	defer registry.CloseAll()

	combiner := combine.New(c.newContextStore(), registry, c.resourceBackends())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	start := time.Now()
	sm, err := combiner.Execute(ctx, req.Pattern)
	if err != nil {
		if c.jsonOutput {
			return c.outputJSON(models.ErrorResponse{Error: err.Error()})
		}
		c.errorf("query failed: %v\n", err)
		return err
	}
	duration := time.Since(start)

	if c.jsonOutput {
		resp := models.QueryResponse{
			Columns:  sm.Columns(),
			Rows:     toStringRows(sm),
			RowCount: sm.Height(),
			Duration: duration.String(),
		}
		return c.outputJSON(resp)
	}

	printSolutionMappings(sm)
	c.printf("\n%d rows in %s\n", sm.Height(), duration)
	return nil
}
