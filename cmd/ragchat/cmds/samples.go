package cmds

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewLoadSampleDataCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "load-sample-data",
		Short: "Ask the backend to index its bundled sample records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := env.Client()
			if err != nil {
				return err
			}
			resp, err := c.QuickLoadSampleData(cmd.Context())
			if err != nil {
				return err
			}
			if !resp.Success {
				msg := resp.Error
				if msg == "" {
					msg = resp.Message
				}
				if msg == "" {
					msg = "Failed to load sample data"
				}
				return errors.New(msg)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Successfully loaded %d records", resp.Summary.Successful)
			if err == nil && resp.Summary.Failed > 0 {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), " (%d failed)", resp.Summary.Failed)
			}
			if err == nil {
				_, err = fmt.Fprintln(cmd.OutOrStdout())
			}
			return err
		},
	}
}
