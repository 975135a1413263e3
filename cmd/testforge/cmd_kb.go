package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"testforge/internal/format"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Show knowledge-base contents and backend health",
	RunE:  runKB,
}

func runKB(cmd *cobra.Command, _ []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	count, err := p.Store.Count(ctx)
	if err != nil {
		return err
	}
	sources, err := p.Store.Sources(ctx)
	if err != nil {
		return err
	}

	tb := format.NewTable(format.ASCII)
	tb.Header("Source", "Chunks")
	for _, s := range sources {
		tb.Row(s.SourceID, s.Chunks)
	}
	tb.Footer("TOTAL", count)
	tb.Columns(format.ColumnConfig{Number: 2, Align: format.AlignRight})
	fmt.Fprintln(out, tb.String())
	fmt.Fprintf(out, "dimension %d, path %s\n", p.Store.Dimension(), p.Cfg.Store.KBPath)

	// The knowledge base is useful with the backend down; health is
	// informational, never a command failure.
	models, err := p.Backend.Health(ctx)
	if err != nil {
		fmt.Fprintf(out, "backend %s: unreachable (%v)\n", p.Backend.BaseURL(), err)
		return nil
	}
	fmt.Fprintf(out, "backend %s: %d models (%s)\n",
		p.Backend.BaseURL(), len(models), strings.Join(models, ", "))
	return nil
}
