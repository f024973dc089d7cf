package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrontext/chrontext/internal/algebra"
	"github.com/chrontext/chrontext/internal/preprocess"
	"github.com/chrontext/chrontext/internal/qcontext"
	"github.com/chrontext/chrontext/internal/rewrite"
	"github.com/chrontext/chrontext/pkg/models"
)

func (c *CLI) newExplainCmd() *cobra.Command {
	var requestPath string
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Print the decomposed static query and the extracted virtualized-query tree",
		Long: `Run the preprocess and rewrite stages only, and print the residual
static graph pattern plus a summary of every virtualized query the
rewriter extracted, mirroring the teacher's federation Explain output.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExplain(requestPath)
		},
	}
	cmd.Flags().StringVarP(&requestPath, "file", "f", "", "path to a JSON QueryRequest (defaults to stdin)")
	return cmd
}

func (c *CLI) runExplain(requestPath string) error {
	req, err := c.loadRequest(requestPath)
	if err != nil {
		c.errorf("reading query request: %v\n", err)
		return err
	}

	renamed, constraints, err := preprocess.NewPreprocessor().Run(req.Pattern)
	if err != nil {
		c.errorf("preprocess: %v\n", err)
		return err
	}
	result, err := rewrite.New(constraints).Rewrite(renamed, qcontext.Root())
	if err != nil {
		c.errorf("rewrite: %v\n", err)
		return err
	}

	var vqs []models.VQSummary
	collectVQs(result.Pattern, &vqs)

	resp := models.ExplainResponse{
		StaticPattern: describePattern(result.Pattern),
		VQCount:       len(vqs),
		VQs:           vqs,
	}

	if c.jsonOutput {
		return c.outputJSON(resp)
	}

	c.printf("Static query:\n  %s\n", resp.StaticPattern)
	c.printf("\nVirtualized queries (%d):\n", len(vqs))
	for i, vq := range vqs {
		c.printf("  [%d] resource=%s ids=%v filter=%v groupBy=%v\n", i, vq.Resource, vq.Identifiers, vq.HasFilter, vq.HasGroupBy)
	}
	return nil
}

// collectVQs walks the pattern tree and gathers every BGP's extracted
// VQs into flat summaries, recursing through every operator that carries
// a child pattern.
func collectVQs(pat *algebra.Pattern, out *[]models.VQSummary) {
	if pat == nil {
		return
	}
	for _, vq := range pat.VQs {
		summary := models.VQSummary{Kind: "Basic"}
		if vq.Resource != nil {
			summary.Resource = *vq.Resource
		} else if vq.ResourceVariable != nil {
			summary.Resource = "?" + vq.ResourceVariable.Name
		}
		summary.Identifiers = vq.IDs
		*out = append(*out, summary)
	}
	collectVQs(pat.Left, out)
	collectVQs(pat.Right, out)
	collectVQs(pat.Inner, out)
	collectVQs(pat.ServiceInner, out)
}

// describePattern renders a short, human-readable summary of the
// residual static pattern's shape.
func describePattern(pat *algebra.Pattern) string {
	if pat == nil {
		return "<empty>"
	}
	switch pat.Kind {
	case algebra.PatternBGP:
		return fmt.Sprintf("BGP(%d triples)", len(pat.TriplePatterns))
	case algebra.PatternJoin:
		return fmt.Sprintf("Join(%s, %s)", describePattern(pat.Left), describePattern(pat.Right))
	case algebra.PatternFilter:
		return fmt.Sprintf("Filter(%s)", describePattern(pat.Inner))
	case algebra.PatternExtend:
		return fmt.Sprintf("Extend(%s)", describePattern(pat.Inner))
	case algebra.PatternGroup:
		return fmt.Sprintf("Group(%s)", describePattern(pat.Inner))
	case algebra.PatternOrderBy:
		return fmt.Sprintf("OrderBy(%s)", describePattern(pat.Inner))
	case algebra.PatternSlice:
		return fmt.Sprintf("Slice(%s)", describePattern(pat.Inner))
	case algebra.PatternUnion:
		return fmt.Sprintf("Union(%s, %s)", describePattern(pat.Left), describePattern(pat.Right))
	case algebra.PatternMinus:
		return fmt.Sprintf("Minus(%s, %s)", describePattern(pat.Left), describePattern(pat.Right))
	case algebra.PatternLeftJoin:
		return fmt.Sprintf("LeftJoin(%s, %s)", describePattern(pat.Left), describePattern(pat.Right))
	default:
		return fmt.Sprintf("%v(%s)", pat.Kind, describePattern(pat.Inner))
	}
}
