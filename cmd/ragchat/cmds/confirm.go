package cmds

import (
	"os"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// confirm asks before a destructive call. Without a terminal on stdin, or
// with --yes, it does not prompt.
func confirm(cmd *cobra.Command, yes bool, title string) (bool, error) {
	if yes {
		return true, nil
	}
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isatty.IsTerminal(f.Fd()) {
		return true, nil
	}

	ok = false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&ok),
		),
	).WithTheme(huh.ThemeCharm())
	if err := form.RunWithContext(cmd.Context()); err != nil {
		return false, errors.Wrap(err, "confirmation prompt")
	}
	return ok, nil
}
