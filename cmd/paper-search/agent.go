package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikeboe/paper-search/pkg/agent"
	"github.com/mikeboe/paper-search/pkg/evaluation"
	"github.com/mikeboe/paper-search/pkg/tools"
)

func newAskCmd() *cobra.Command {
	var verbose, asJSON bool
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Let the agent search for papers answering a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orchestrator, _, err := application.Agent(cmd.Context())
			if err != nil {
				return err
			}
			if verbose {
				orchestrator.OnTurn = printTurn
			}

			sess, err := orchestrator.Run(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(sess)
			}

			switch sess.Outcome {
			case agent.OutcomeReported:
				for _, id := range sess.ReportedIDs {
					fmt.Println(id)
				}
			case agent.OutcomeExhausted:
				fmt.Fprintf(os.Stderr, "no report after %d turns\n", sess.Turns)
			default:
				fmt.Println(sess.Messages[len(sess.Messages)-1].Content)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every tool call and the papers it returned")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full session as JSON")
	return cmd
}

func printTurn(t agent.Turn) {
	for _, call := range t.Message.ToolCalls {
		fmt.Fprintf(os.Stderr, "[turn %d] %s %s\n", t.Number, call.Function.Name, call.Function.Arguments)
	}
	for _, r := range t.Results {
		if r.Err != nil {
			fmt.Fprintf(os.Stderr, "[turn %d]   %s failed: %v\n", t.Number, r.Name, r.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "[turn %d]   %s -> %s\n", t.Number, r.Name, strings.Join(tools.DocIDs(r.Content), ", "))
	}
}

func newEvalCmd() *cobra.Command {
	var asJSON bool
	var concurrency int
	var outFile string
	cmd := &cobra.Command{
		Use:   "eval <queries.json|queries.yaml>",
		Short: "Run the agent over labeled queries and report ranking metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := evaluation.LoadQueries(args[0])
			if err != nil {
				return err
			}
			orchestrator, _, err := application.Agent(cmd.Context())
			if err != nil {
				return err
			}

			harness := application.Harness(orchestrator)
			if concurrency > 0 {
				harness.Concurrency = concurrency
			}
			application.Logger.Info("Starting evaluation", "queries", len(queries), "concurrency", harness.Concurrency)

			records := harness.Run(cmd.Context(), queries)
			summary := evaluation.Summarize(records)

			out := os.Stdout
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if asJSON {
				return evaluation.WriteJSON(out, records, summary)
			}
			return evaluation.WriteReport(out, records, summary)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "write records and summary as JSON")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "concurrent sessions (default EVAL_CONCURRENCY)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the report to a file instead of stdout")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var dir string
	var concurrency int
	cmd := &cobra.Command{
		Use:   "generate <queries-file>",
		Short: "Run the agent over queries and save each session as a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := evaluation.LoadQueries(args[0])
			if err != nil {
				return err
			}
			texts := make([]string, len(queries))
			for i, q := range queries {
				texts[i] = q.Query
			}

			orchestrator, _, err := application.Agent(cmd.Context())
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = application.Config.OutputConcurrency
			}

			paths, err := evaluation.GenerateOutputs(cmd.Context(), orchestrator, texts, dir, concurrency, application.Logger)
			for _, p := range paths {
				fmt.Println(p)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "outputs", "directory for the session files")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "concurrent sessions (default OUTPUT_CONCURRENCY)")
	return cmd
}
