package cmds

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-go-golems/ragchat/pkg/backend"
	"github.com/go-go-golems/ragchat/pkg/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewDocumentCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Inspect or delete indexed documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get ID",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := env.Client()
			if err != nil {
				return err
			}
			raw, err := c.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, raw, "", "  "); err != nil {
				buf.Reset()
				buf.Write(raw)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), buf.String())
			return err
		},
	})

	var yes bool
	del := &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete documents from the index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := confirm(cmd, yes, fmt.Sprintf("Delete %d document(s) from the index?", len(args)))
			if err != nil || !ok {
				return err
			}
			c, err := env.Client()
			if err != nil {
				return err
			}
			be := backend.New(c, session.NewStore(), backend.WithBaseContext(cmd.Context()))
			var failed int
			for _, id := range args {
				if _, err := be.Do(be.DeleteDocument(id)); err != nil {
					failed++
					reason := be.Store().Status(session.FlowSearch).Reason
					if reason == "" {
						reason = err.Error()
					}
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", id, reason)
					continue
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			if failed > 0 {
				return errors.Errorf("%d of %d deletions failed", failed, len(args))
			}
			return nil
		},
	}
	del.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.AddCommand(del)
	return cmd
}
