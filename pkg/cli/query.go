package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/kensaku/pkg/search"
	"github.com/platinummonkey/kensaku/pkg/tokenizer"
)

func newTokenizeCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "tokenize <text>",
		Short: "Show the tokens and normalized representation for text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := env.config()
			if err != nil {
				return err
			}

			// Only the tokenizer is needed; skip storage entirely
			tok, err := tokenizer.New(cmd.Context(), cfg.TokenizerOptions())
			if err != nil {
				return err
			}

			analysis, err := search.NewBuilder(tok).Analyze(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("tokenize failed: %w", err)
			}

			cmd.Printf("Variant:        %s\n", analysis.Variant)
			cmd.Printf("Tokens:         %s\n", strings.Join(analysis.Tokens, " | "))
			cmd.Printf("Representation: %s\n", analysis.TsVector)
			return nil
		},
	}
}

type searchFlags struct {
	limit  int
	offset int
	json   bool
}

func newSearchCommand(env *environment) *cobra.Command {
	flags := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search documents",
		Long: `Returns documents containing every token of the query, best matches
first. A query with no searchable tokens returns nothing.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := env.app(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Search.Search(cmd.Context(), search.SearchRequest{
				Query:  strings.Join(args, " "),
				Limit:  flags.limit,
				Offset: flags.offset,
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			if flags.json {
				data, err := json.MarshalIndent(resp, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal results: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			if len(resp.Hits) == 0 {
				cmd.Println("No results found.")
				return nil
			}

			cmd.Printf("%d results (tokens: %s)\n\n", resp.Total, strings.Join(resp.Tokens, " "))
			for i, hit := range resp.Hits {
				doc, err := a.Documents.FindByID(cmd.Context(), hit.ID)
				if err != nil {
					cmd.Printf("  [%d] #%d (%.2f)\n", resp.Offset+i+1, hit.ID, hit.Rank)
					continue
				}
				cmd.Printf("  [%d] #%d %s (%.2f)\n", resp.Offset+i+1, doc.ID, doc.Title, hit.Rank)
				if doc.Category != nil {
					cmd.Printf("      Category: %s\n", doc.Category.Name)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "number of results to skip")
	cmd.Flags().BoolVar(&flags.json, "json", false, "output results as JSON")
	return cmd
}
