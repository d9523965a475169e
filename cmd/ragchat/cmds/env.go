package cmds

import (
	"context"
	"io"
	"os"

	"github.com/go-go-golems/ragchat/pkg/client"
	"github.com/go-go-golems/ragchat/pkg/config"
	"github.com/go-go-golems/ragchat/pkg/events"
	"github.com/go-go-golems/ragchat/pkg/logging"
	"github.com/go-go-golems/ragchat/pkg/redisstream"
	"github.com/go-go-golems/ragchat/pkg/render"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// Env carries the resolved settings shared by every command.
type Env struct {
	Settings *config.Settings

	configFile string
	envFile    string
	logCloser  io.Closer
}

// AddPersistentFlags registers the global flags on root.
func (e *Env) AddPersistentFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	f.StringVar(&e.configFile, "config", "", "Config file (default $HOME/.ragchat/config.yaml)")
	f.StringVar(&e.envFile, "env-file", ".env", "Env file to load if present")
	config.AddFlags(f)
}

// Load resolves settings from config, env and the flags that were set
// explicitly, then initializes the logger.
func (e *Env) Load(cmd *cobra.Command) error {
	s, err := config.Load(config.LoadOptions{
		ConfigFile: e.configFile,
		EnvFile:    e.envFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	closer, err := logging.InitLogger(s.Logging)
	if err != nil {
		return err
	}
	e.Settings = s
	e.logCloser = closer
	return nil
}

func (e *Env) Close() error {
	if e.logCloser == nil {
		return nil
	}
	return e.logCloser.Close()
}

func (e *Env) Client() (*client.Client, error) {
	return e.Settings.NewClient()
}

// SessionPubSub builds the event transport for one chat session. On Redis
// the session reads through a consumer group of its own, created at the tail.
func (e *Env) SessionPubSub(ctx context.Context, sessionID string) (*redisstream.PubSub, error) {
	s := e.Settings.Redis.ForSession(sessionID)
	ps, err := redisstream.Build(s)
	if err != nil {
		return nil, err
	}
	if s.Enabled {
		if err := redisstream.EnsureGroupAtTail(ctx, ps.Redis(), events.Topic, s.Group); err != nil {
			_ = ps.Close()
			return nil, err
		}
	}
	return ps, nil
}

// Renderer styles output with glamour when stdout is a terminal, unless
// plain is set.
func (e *Env) Renderer(plain bool) *render.Renderer {
	if plain || !isatty.IsTerminal(os.Stdout.Fd()) {
		return render.New("")
	}
	return render.New("dark")
}
