package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-go-golems/ragchat/cmd/ragchat/cmds"
	"github.com/spf13/cobra"
)

func newRootCommand(env *cmds.Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "ragchat",
		Short:         "ragchat talks to a retrieval-augmented generation backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// settings depend on --config and the other persistent flags, so
			// they can only be resolved once cobra has parsed them
			return env.Load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return env.Close()
		},
	}
	env.AddPersistentFlags(root)

	root.AddCommand(
		cmds.NewHealthCommand(env),
		cmds.NewStatusCommand(env),
		cmds.NewChatCommand(env),
		cmds.NewSearchCommand(env),
		cmds.NewEmbedCommand(env),
		cmds.NewDocumentCommand(env),
		cmds.NewConversationsCommand(env),
		cmds.NewLoadSampleDataCommand(env),
		cmds.NewCopyCommand(env),
		cmds.NewEventsCommand(env),
		cmds.NewConfigCommand(env),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(&cmds.Env{})
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
