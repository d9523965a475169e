package cmds

import (
	"fmt"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewConversationsCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage conversations stored by the backend",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List stored conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := env.Client()
			if err != nil {
				return err
			}
			convs, err := c.ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, convs)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "ID\tMESSAGES\tUPDATED")
			for _, conv := range convs {
				updated := "-"
				if !conv.UpdatedAt.IsZero() {
					updated = conv.UpdatedAt.Format("2006-01-02 15:04")
				}
				_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", conv.ID, len(conv.Messages), updated)
			}
			return w.Flush()
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print the conversations as JSON")

	var plain bool
	get := &cobra.Command{
		Use:   "get ID",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := env.Client()
			if err != nil {
				return err
			}
			conv, err := c.GetConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := env.Renderer(plain).Conversation(*conv)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	get.Flags().BoolVar(&plain, "plain", false, "Print plain markdown")

	var yes bool
	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := confirm(cmd, yes, "Delete conversation "+args[0]+"?")
			if err != nil || !ok {
				return err
			}
			c, err := env.Client()
			if err != nil {
				return err
			}
			resp, err := c.DeleteConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !resp.Success {
				return errors.Errorf("backend did not confirm deletion of conversation %s", args[0])
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted conversation %s\n", args[0])
			return err
		},
	}

	del.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	cmd.AddCommand(list, get, del)
	return cmd
}
