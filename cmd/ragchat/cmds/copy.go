package cmds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/go-go-golems/ragchat/pkg/backend"
	"github.com/go-go-golems/ragchat/pkg/render"
	"github.com/go-go-golems/ragchat/pkg/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/weaviate/tiktoken-go"
)

func NewCopyCommand(env *Env) *cobra.Command {
	var (
		index int
		limit int
		text  bool
		stats bool
	)
	cmd := &cobra.Command{
		Use:   "copy QUERY...",
		Short: "Copy the original data of a search result to the clipboard",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := env.Client()
			if err != nil {
				return err
			}
			be := backend.New(c, session.NewStore(), backend.WithBaseContext(cmd.Context()))
			if _, err := be.Do(be.Search(strings.Join(args, " "), limit, true)); err != nil {
				return err
			}
			results := be.Store().SearchResults()
			if index < 1 || index > len(results) {
				return errors.Errorf("result %d does not exist, the search returned %d results", index, len(results))
			}
			r := results[index-1]

			content := r.TextRepresentation
			if !text {
				var buf bytes.Buffer
				if err := json.Indent(&buf, r.OriginalData, "", "  "); err != nil {
					return errors.Wrapf(err, "document %s has no usable original data", r.DocumentID)
				}
				content = buf.String()
			}
			if err := clipboard.WriteAll(content); err != nil {
				return errors.Wrap(err, "error copying to clipboard")
			}
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "copied %s (%s)\n", r.DocumentID, render.Score(r.SimilarityScore))
			if stats {
				return printStats(cmd, content)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&index, "index", 1, "1-based position of the result to copy")
	f.IntVarP(&limit, "limit", "n", 10, "Number of results to search (5, 10, 20 or 50)")
	f.BoolVar(&text, "text", false, "Copy the text representation instead of the original data")
	f.BoolVar(&stats, "stats", false, "Show statistics about the copied content")
	return cmd
}

func printStats(cmd *cobra.Command, content string) error {
	tokenCounter, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return errors.Wrap(err, "error initializing token counter")
	}
	tokens := tokenCounter.Encode(content, nil, nil)
	_, err = fmt.Fprintf(cmd.ErrOrStderr(), "Lines: %d\nWords: %d\nChars: %d\nTokens: %d\n",
		strings.Count(content, "\n")+1, len(strings.Fields(content)), len(content), len(tokens))
	return err
}
