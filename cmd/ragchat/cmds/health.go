package cmds

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/go-go-golems/ragchat/pkg/client"
	"github.com/go-go-golems/ragchat/pkg/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewHealthCommand(env *Env) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := env.Client()
			if err != nil {
				return err
			}
			h, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, h)
			}
			printHealth(cmd, c.BaseURL(), h)
			if !h.Healthy() {
				return errors.Errorf("backend reported status %q", h.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw health response")
	return cmd
}

// NewStatusCommand checks health and counts stored conversations
// concurrently.
func NewStatusCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend health and stored conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := env.Client()
			if err != nil {
				return err
			}

			var (
				health        *api.HealthResponse
				conversations []api.Conversation
				convErr       error
			)
			eg, ctx := errgroup.WithContext(cmd.Context())
			eg.Go(func() error {
				var err error
				health, err = c.Health(ctx)
				return err
			})
			eg.Go(func() error {
				// not fatal: older backends have no conversation store
				conversations, convErr = c.ListConversations(ctx)
				if convErr != nil {
					log.Debug().Err(convErr).Msg("could not list conversations")
				}
				return nil
			})
			if err := eg.Wait(); err != nil {
				return err
			}

			printHealth(cmd, c.BaseURL(), health)
			if convErr != nil {
				reason := convErr.Error()
				if te, ok := client.AsTransportError(convErr); ok {
					reason = te.Reason()
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", render.Hint("conversations:"), reason)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", render.Hint("conversations:"), len(conversations))
			}
			return nil
		},
	}
}

func printHealth(cmd *cobra.Command, baseURL string, h *api.HealthResponse) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", render.Hint("backend:"), baseURL)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", render.Hint("status:"), h.Status)
	if h.Version != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", render.Hint("version:"), h.Version)
	}
	uptime := time.Duration(h.Uptime * float64(time.Second)).Round(time.Second)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", render.Hint("uptime:"), uptime)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode output")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
