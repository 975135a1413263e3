package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestFlags struct {
	parallel int
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <paths...>",
	Short: "Ingest documents into the knowledge base",
	Long: "Extracts text from each document, splits it into overlapping chunks,\n" +
		"embeds them, and stores the vectors durably. Unsupported or unreadable\n" +
		"files are skipped; the rest of the batch proceeds.",
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.IntVar(&ingestFlags.parallel, "parallel", 4, "Documents processed concurrently")
}

func runIngest(cmd *cobra.Command, args []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	results, err := p.Ingest(cmd.Context(), args, ingestFlags.parallel)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ingested, chunks := 0, 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(out, "skip %s: %v\n", r.Path, r.Err)
			continue
		}
		ingested++
		chunks += r.Chunks
		fmt.Fprintf(out, "ok   %s: %d chunks\n", r.Path, r.Chunks)
	}
	fmt.Fprintf(out, "ingested %d/%d documents (%d chunks)\n", ingested, len(results), chunks)
	return nil
}
