package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	require.Equal(t, zerolog.Disabled, ParseLevel("off"))
	require.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	require.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
}

func TestInitLogger_JSONFile(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	path := filepath.Join(t.TempDir(), "ragchat.log")
	closer, err := InitLogger(Settings{Level: "debug", Format: "json", LogFile: path})
	require.NoError(t, err)

	log.Debug().Str("flow", "chat").Msg("hello")
	NewWatermill(log.Logger).With(watermill.LogFields{"topic": "t"}).Info("subscribed", nil)
	require.NoError(t, closer.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"flow":"chat"`)
	require.Contains(t, string(b), `"message":"hello"`)
	require.Contains(t, string(b), `"topic":"t"`)
	require.Contains(t, string(b), `"component":"watermill"`)
}

func TestInitLogger_UnknownFormat(t *testing.T) {
	_, err := InitLogger(Settings{Format: "xml"})
	require.Error(t, err)
}
