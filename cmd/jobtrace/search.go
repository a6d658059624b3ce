package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bdougie/jobtrace/internal/config"
	"github.com/bdougie/jobtrace/internal/storage"
)

func newSearchCommand(rootOpts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find stored actions similar to a query",
		Long: `Embed the query and return the closest stored actions from PostgreSQL.

Example:
  jobtrace search "recruiter reached out about a backend role" --limit 5`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			if cfg.Sinks.PostgresURL == "" {
				return fmt.Errorf("%w: search needs sinks.postgres_url", config.ErrInvalid)
			}
			embedder, err := buildEmbedder(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if embedder == nil {
				return fmt.Errorf("%w: search needs GOOGLE_API_KEY for embeddings", config.ErrInvalid)
			}
			defer embedder.Close()

			sink, err := storage.NewPostgresSink(cmd.Context(), cfg.Sinks.PostgresURL, embedder, logger)
			if err != nil {
				return err
			}
			defer sink.Close()

			results, err := sink.SearchSimilarActions(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching actions.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SIMILARITY\tWHEN\tCOMPANY\tROLE\tACTION\tCHANNEL")
			for _, r := range results {
				a := r.Action
				fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\t%s\t%s\n",
					r.Similarity, a.Timestamp.Local().Format("2006-01-02 15:04"), a.CompanyName, a.Role, a.ActionType, a.Channel)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "maximum number of results")
	return cmd
}
