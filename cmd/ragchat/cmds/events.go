package cmds

import (
	"context"

	"github.com/go-go-golems/ragchat/pkg/events"
	"github.com/go-go-golems/ragchat/pkg/redisstream"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewEventsCommand(env *Env) *cobra.Command {
	var group, consumer string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail session events published by other ragchat processes",
		Long:  "Session events are only shared between processes through Redis Streams, so --redis (or redis.enabled) is required.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := env.Settings.Redis
			if !s.Enabled {
				return errors.New("events are only shared between processes when redis is enabled (--redis)")
			}
			if cmd.Flags().Changed("group") {
				s.Group = group
			}
			if cmd.Flags().Changed("consumer") {
				s.Consumer = consumer
			}
			ps, err := redisstream.Build(s)
			if err != nil {
				return err
			}
			defer func() { _ = ps.Close() }()

			ctx := cmd.Context()
			if err := redisstream.EnsureGroupAtTail(ctx, ps.Redis(), events.Topic, s.Group); err != nil {
				return err
			}
			router, err := events.NewRouter(ps.Subscriber)
			if err != nil {
				return err
			}
			router.AddHandler("log", events.LogHandler)
			log.Info().Str("addr", s.Addr).Str("group", s.Group).Msg("tailing session events")
			if err := router.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", "", "Consumer group (default from config)")
	cmd.Flags().StringVar(&consumer, "consumer", "", "Consumer name (default from config)")
	return cmd
}
