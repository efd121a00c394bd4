package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikeboe/paper-search/pkg/search"
	"github.com/mikeboe/paper-search/pkg/tools"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query the index directly, without the agent",
	}

	var limit int
	var after string
	semantic := &cobra.Command{
		Use:   "semantic <query>",
		Short: "Rank papers by abstract similarity to the query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			afterDate, err := search.ParseDate(after)
			if err != nil {
				return err
			}
			gateway, err := application.Gateway(cmd.Context())
			if err != nil {
				return err
			}
			results, err := gateway.Semantic(cmd.Context(), args[0], search.SemanticOptions{Limit: limit, After: afterDate})
			if err != nil {
				return err
			}
			fmt.Println(tools.FormatEmbeddingResults(results))
			return nil
		},
	}
	semantic.Flags().IntVar(&limit, "limit", search.DefaultSemanticLimit, "number of papers")
	semantic.Flags().StringVar(&after, "after", "", "earliest publication date")

	var maxPapers, maxSnippets int
	var kwAfter, kwBefore string
	keyword := &cobra.Command{
		Use:   "keyword <keyword>",
		Short: "Full-text search over paper pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			afterDate, err := search.ParseDate(kwAfter)
			if err != nil {
				return err
			}
			beforeDate, err := search.ParseDate(kwBefore)
			if err != nil {
				return err
			}
			gateway, err := application.Gateway(cmd.Context())
			if err != nil {
				return err
			}
			results, err := gateway.Keyword(cmd.Context(), args[0], search.KeywordOptions{
				MaxPapers:           maxPapers,
				MaxSnippetsPerPaper: maxSnippets,
				After:               afterDate,
				Before:              beforeDate,
			})
			if err != nil {
				return err
			}
			fmt.Println(tools.FormatKeywordResults(results))
			return nil
		},
	}
	keyword.Flags().IntVar(&maxPapers, "max-papers", tools.DefaultTextSearchLimit, "number of papers")
	keyword.Flags().IntVar(&maxSnippets, "max-snippets", 0, "snippets per paper, 0 for the store default")
	keyword.Flags().StringVar(&kwAfter, "after", "", "earliest publication date")
	keyword.Flags().StringVar(&kwBefore, "before", "", "latest publication date")

	cmd.AddCommand(semantic, keyword)
	return cmd
}

func newReadCmd() *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "read <universal-id>",
		Short: "Print one page of a paper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, err := application.Gateway(cmd.Context())
			if err != nil {
				return err
			}
			p, err := gateway.ReadPage(cmd.Context(), args[0], page)
			if err != nil {
				return err
			}
			fmt.Println(tools.FormatPage(p))
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", tools.DefaultPageNumber, "page number, starting at 1")
	return cmd
}
