package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-go-golems/ragchat/pkg/client"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, k := range []string{
		"RAGCHAT_API_URL", "RAGCHAT_TIMEOUT", "RAGCHAT_TOP_K", "RAGCHAT_SIMILARITY_THRESHOLD",
		"RAGCHAT_LOG_LEVEL", "RAGCHAT_LOG_FORMAT", "RAGCHAT_LOG_FILE", "RAGCHAT_REDIS_ENABLED",
		"RAGCHAT_REDIS_ADDR", "RAGCHAT_REDIS_GROUP", "RAGCHAT_REDIS_CONSUMER",
		"RAGCHAT_TEMPERATURE", "RAGCHAT_MAX_TOKENS", "RAGCHAT_CHAT_TEMPERATURE", "RAGCHAT_CHAT_TOP_K",
		"RAGCHAT_API_TIMEOUT", "RAGCHAT_SEARCH_LIMIT",
	} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)
	s, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "missing.env")})
	require.NoError(t, err)
	require.Equal(t, client.DefaultBaseURL, s.API.URL)
	require.Equal(t, 30*time.Second, s.API.Timeout)
	require.Equal(t, 5, s.Chat.TopK)
	require.Equal(t, 0.6, s.Chat.SimilarityThreshold)
	require.Equal(t, 10, s.Search.Limit)
	require.True(t, s.Search.IncludeScore)
	require.False(t, s.Redis.Enabled)
	require.NoError(t, s.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := isolate(t)
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
api:
  url: http://localhost:3000
  timeout: 5s
chat:
  top-k: 8
  temperature: 0.3
search:
  limit: 20
  include-score: false
redis:
  enabled: true
  addr: redis:6379
`), 0o644))
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("RAGCHAT_TOP_K=3\nRAGCHAT_LOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() {
		_ = os.Unsetenv("RAGCHAT_TOP_K")
		_ = os.Unsetenv("RAGCHAT_LOG_LEVEL")
	})
	// godotenv never overrides a variable that is set, even to ""
	require.NoError(t, os.Unsetenv("RAGCHAT_TOP_K"))
	require.NoError(t, os.Unsetenv("RAGCHAT_LOG_LEVEL"))
	t.Setenv("RAGCHAT_SIMILARITY_THRESHOLD", "0.4")

	s, err := Load(LoadOptions{ConfigFile: cfg, EnvFile: envFile})
	require.NoError(t, err)
	require.Equal(t, "http://localhost:3000", s.API.URL)
	require.Equal(t, 5*time.Second, s.API.Timeout)
	require.Equal(t, 3, s.Chat.TopK)
	require.Equal(t, 0.4, s.Chat.SimilarityThreshold)
	require.Equal(t, 0.3, *s.Chat.Temperature)
	require.Equal(t, 20, s.Search.Limit)
	require.False(t, s.Search.IncludeScore)
	require.True(t, s.Redis.Enabled)
	require.Equal(t, "redis:6379", s.Redis.Addr)
	require.Equal(t, "ragchat", s.Redis.Group)
	require.Equal(t, "debug", s.Logging.Level)
	require.NoError(t, s.Validate())
	require.Len(t, s.Chat.Options(), 3)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(LoadOptions{ConfigFile: filepath.Join(dir, "nope.yaml"), EnvFile: filepath.Join(dir, "x.env")})
	require.Error(t, err)
}

func TestLoad_BadEnv(t *testing.T) {
	dir := isolate(t)
	t.Setenv("RAGCHAT_TIMEOUT", "soon")
	_, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "x.env")})
	require.Error(t, err)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	dir := isolate(t)
	t.Setenv("RAGCHAT_TIMEOUT", "12s")
	t.Setenv("RAGCHAT_LOG_LEVEL", "warn")
	t.Setenv("RAGCHAT_REDIS_ADDR", "env-redis:6379")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--timeout", "45s", "--redis"}))

	s, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "x.env"), Flags: fs})
	require.NoError(t, err)
	require.Equal(t, 45*time.Second, s.API.Timeout)
	require.True(t, s.Redis.Enabled)
	// flags left at their defaults do not shadow the environment
	require.Equal(t, "warn", s.Logging.Level)
	require.Equal(t, "env-redis:6379", s.Redis.Addr)
	require.Equal(t, client.DefaultBaseURL, s.API.URL)
}

func TestLoad_SectionedEnvNames(t *testing.T) {
	dir := isolate(t)
	t.Setenv("RAGCHAT_CHAT_TEMPERATURE", "0.7")
	t.Setenv("RAGCHAT_SEARCH_LIMIT", "50")
	t.Setenv("RAGCHAT_API_TIMEOUT", "3s")

	s, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "x.env")})
	require.NoError(t, err)
	require.NotNil(t, s.Chat.Temperature)
	require.Equal(t, 0.7, *s.Chat.Temperature)
	require.Nil(t, s.Chat.MaxTokens)
	require.Equal(t, 50, s.Search.Limit)
	require.Equal(t, 3*time.Second, s.API.Timeout)
}

func TestLoad_BadFlagValue(t *testing.T) {
	dir := isolate(t)
	// a string flag bound to a duration key is decoded like any other source
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("timeout", "", "")
	require.NoError(t, fs.Parse([]string{"--timeout", "soon"}))

	_, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "x.env"), Flags: fs})
	require.Error(t, err)
}

func TestLoad_ConfigFileUsed(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".ragchat"), 0o755))
	cfg := filepath.Join(dir, ".ragchat", "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("search:\n  limit: 20\n"), 0o644))

	s, err := Load(LoadOptions{EnvFile: filepath.Join(dir, "x.env")})
	require.NoError(t, err)
	require.Equal(t, cfg, s.ConfigFile)
	require.Equal(t, 20, s.Search.Limit)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Settings){
		"relative url": func(s *Settings) { s.API.URL = "localhost:3000" },
		"zero timeout": func(s *Settings) { s.API.Timeout = 0 },
		"bad limit":    func(s *Settings) { s.Search.Limit = 7 },
		"threshold":    func(s *Settings) { s.Chat.SimilarityThreshold = 1.2 },
		"top-k":        func(s *Settings) { s.Chat.TopK = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := Default()
			mutate(s)
			require.Error(t, s.Validate())
		})
	}
}
