package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mikeboe/paper-search/pkg/arxiv"
	"github.com/mikeboe/paper-search/pkg/ingest"
	"github.com/mikeboe/paper-search/pkg/ocr"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the vector extension, tables and indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := application.OpenStore(cmd.Context()); err != nil {
				return err
			}
			if err := application.DB.InitSchema(cmd.Context()); err != nil {
				return err
			}
			application.Logger.Info("Schema is up to date")
			return nil
		},
	}
}

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <papers.json|papers.yaml>",
		Short: "Insert papers with their pages and embed their abstracts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := ingest.LoadPapers(args[0])
			if err != nil {
				return err
			}
			svc, err := application.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			report, err := svc.Ingest(cmd.Context(), input)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
}

func newEmbedMissingCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "embed-missing",
		Short: "Embed abstracts of papers that have no embedding yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := application.Ingest(cmd.Context())
			if err != nil {
				return err
			}
			embedded, failed, err := svc.EmbedMissing(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Printf("embedded %d, failed %d\n", embedded, failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of papers to embed")
	return cmd
}

func newImportArxivCmd() *cobra.Command {
	var maxResults int
	var withOCR bool
	cmd := &cobra.Command{
		Use:   "import-arxiv <query>",
		Short: "Search arXiv and ingest the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := application.Ingest(cmd.Context())
			if err != nil {
				return err
			}

			var extractor ingest.PageExtractor
			if withOCR {
				if application.Config.MistralApiKey == "" {
					return fmt.Errorf("--ocr requires MISTRAL_API_KEY")
				}
				extractor = ocr.NewClient(application.Config.MistralApiKey)
			}

			report, err := svc.ImportArxiv(cmd.Context(), arxiv.NewClient(application.Logger), extractor, args[0], maxResults)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().IntVar(&maxResults, "max", 10, "maximum number of arXiv results")
	cmd.Flags().BoolVar(&withOCR, "ocr", false, "extract full-text pages from the PDF with Mistral OCR")
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
