package cmds

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewConfigCommand(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the resolved configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective settings after config file, env and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if env.Settings.ConfigFile != "" {
				_, _ = fmt.Fprintf(w, "# config file: %s\n", env.Settings.ConfigFile)
			}
			enc := yaml.NewEncoder(w)
			enc.SetIndent(2)
			if err := enc.Encode(env.Settings); err != nil {
				return errors.Wrap(err, "could not encode settings")
			}
			return enc.Close()
		},
	})
	return cmd
}
