package cmds

import (
	"fmt"
	"io"
	"os"

	"github.com/go-go-golems/ragchat/pkg/backend"
	"github.com/go-go-golems/ragchat/pkg/requests"
	"github.com/go-go-golems/ragchat/pkg/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewEmbedCommand(env *Env) *cobra.Command {
	var (
		example bool
		sample  string
		plain   bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "embed [FILE|-]",
		Short: "Index a JSON document",
		Long: "Reads a JSON document from FILE, or stdin when FILE is - or omitted.\n" +
			"--sample sends one of the bundled sample documents, --example asks the backend to index its own example.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if example && sample != "" {
				return errors.New("--example and --sample are mutually exclusive")
			}
			c, err := env.Client()
			if err != nil {
				return err
			}
			be := backend.New(c, session.NewStore(), backend.WithBaseContext(cmd.Context()))

			if example {
				_, err = be.Do(be.ProcessExample())
			} else {
				var doc string
				doc, err = readDocument(cmd, sample, args)
				if err != nil {
					return err
				}
				_, err = be.Do(be.SubmitDocument(doc))
			}
			if err != nil {
				return err
			}

			rec := be.Store().Snapshot().LastEmbed
			if asJSON {
				return printJSON(cmd, rec)
			}
			out, err := env.Renderer(plain).Embed(*rec)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	f := cmd.Flags()
	f.BoolVar(&example, "example", false, "Index the backend's built-in example document")
	f.StringVar(&sample, "sample", "", fmt.Sprintf("Index a bundled sample document %v", requests.SampleKinds()))
	f.BoolVar(&plain, "plain", false, "Print plain markdown")
	f.BoolVar(&asJSON, "json", false, "Print the processed record as JSON")
	return cmd
}

func readDocument(cmd *cobra.Command, sample string, args []string) (string, error) {
	if sample != "" {
		return requests.SampleDocument(sample)
	}
	if len(args) == 0 || args[0] == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errors.Wrap(err, "could not read stdin")
		}
		return string(b), nil
	}
	b, err := os.ReadFile(args[0])
	if err != nil {
		return "", errors.Wrapf(err, "could not read %s", args[0])
	}
	return string(b), nil
}
