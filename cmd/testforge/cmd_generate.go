package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"testforge/internal/format"
	"testforge/internal/generate"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate prompts, test cases, and scripts",
}

var generatePromptCmd = &cobra.Command{
	Use:   "prompt <query>",
	Short: "Produce the reusable generation prompt for a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runGeneratePrompt,
}

var generateCasesCmd = &cobra.Command{
	Use:   "cases <query>",
	Short: "Generate and persist a validated test-case batch",
	Long: "Retrieves context for the query, drafts a test-case batch through the\n" +
		"backend, validates and repairs it, and persists the accepted batch under\n" +
		"paths.cases_dir. The new batch replaces the previous one.",
	Args: cobra.ExactArgs(1),
	RunE: runGenerateCases,
}

var generateScriptsFlags struct {
	caseID   string
	parallel int
}

var generateScriptsCmd = &cobra.Command{
	Use:   "scripts",
	Short: "Generate executable scripts for the accepted test cases",
	RunE:  runGenerateScripts,
}

func init() {
	f := generateScriptsCmd.Flags()
	f.StringVar(&generateScriptsFlags.caseID, "case-id", "", "Generate for one case (default: all)")
	f.IntVar(&generateScriptsFlags.parallel, "parallel", 1, "Concurrent backend calls (1 = serial)")

	generateCmd.AddCommand(generatePromptCmd)
	generateCmd.AddCommand(generateCasesCmd)
	generateCmd.AddCommand(generateScriptsCmd)
}

func runGeneratePrompt(cmd *cobra.Command, args []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	prompt, err := p.GeneratePrompt(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), prompt)
	return nil
}

func runGenerateCases(cmd *cobra.Command, args []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	cases, err := p.GenerateCases(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	tb := format.NewTable(format.ASCII)
	tb.Header("ID", "Title", "Priority", "Steps")
	for _, tc := range cases {
		tb.Row(tc.ID, format.Truncate(tc.Title, 50), string(tc.Priority), len(tc.Steps))
	}
	tb.Columns(format.ColumnConfig{Number: 4, Align: format.AlignRight})
	fmt.Fprintln(out, tb.String())
	fmt.Fprintf(out, "%d cases saved under %s\n", len(cases), p.Cfg.Paths.CasesDir)
	return nil
}

func runGenerateScripts(cmd *cobra.Command, _ []string) error {
	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	cases, err := p.LoadCases()
	if err != nil {
		return err
	}
	if generateScriptsFlags.caseID != "" {
		var picked []generate.TestCase
		for _, tc := range cases {
			if tc.ID == generateScriptsFlags.caseID {
				picked = append(picked, tc)
				break
			}
		}
		if len(picked) == 0 {
			return fmt.Errorf("no accepted test case with id %s", generateScriptsFlags.caseID)
		}
		cases = picked
	}

	results := p.GenerateScripts(cmd.Context(), cases, generateScriptsFlags.parallel)

	out := cmd.OutOrStdout()
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Fprintf(out, "fail %s: %v\n", r.TestCaseID, r.Err)
			continue
		}
		fmt.Fprintf(out, "ok   %s: %s\n", r.TestCaseID, r.Path)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scripts failed", failed, len(results))
	}
	fmt.Fprintf(out, "%d scripts saved under %s\n", len(results), p.Cfg.Paths.ScriptsDir)
	return nil
}
