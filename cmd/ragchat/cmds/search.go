package cmds

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/ragchat/pkg/backend"
	"github.com/go-go-golems/ragchat/pkg/session"
	"github.com/spf13/cobra"
)

func NewSearchCommand(env *Env) *cobra.Command {
	var (
		limit        int
		includeScore bool
		plain        bool
		asJSON       bool
	)
	cmd := &cobra.Command{
		Use:   "search QUERY...",
		Short: "Semantic search over the indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := env.Client()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = env.Settings.Search.Limit
			}
			if !cmd.Flags().Changed("include-score") {
				includeScore = env.Settings.Search.IncludeScore
			}

			be := backend.New(c, session.NewStore(), backend.WithBaseContext(cmd.Context()))
			if _, err := be.Do(be.Search(strings.Join(args, " "), limit, includeScore)); err != nil {
				return err
			}
			results := be.Store().SearchResults()
			if asJSON {
				return printJSON(cmd, results)
			}
			out, err := env.Renderer(plain).SearchResults(results)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	f := cmd.Flags()
	f.IntVarP(&limit, "limit", "n", 10, "Number of results (5, 10, 20 or 50)")
	f.BoolVar(&includeScore, "include-score", true, "Ask the backend for similarity scores")
	f.BoolVar(&plain, "plain", false, "Print plain markdown")
	f.BoolVar(&asJSON, "json", false, "Print the results as JSON")
	return cmd
}
