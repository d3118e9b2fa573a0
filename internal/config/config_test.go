package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":5641", cfg.HTTPAddr)
	assert.Equal(t, DriverSQLite, cfg.StoreDriver)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.False(t, cfg.UseMock)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins())
}

func TestNewConfig_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "STORE_DRIVER=postgres\nPG_HOST=db\nPG_NAME=nexter_test\nAI_REQUEST_TIMEOUT=15s\nCORS_ORIGINS=http://a.test, http://b.test\nAI_BASE_URL=http://ai.test/\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("PG_HOST", "db-from-env")

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "db-from-env", cfg.PgHost)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins())
	assert.Contains(t, cfg.PostgresDSN(), "host=db-from-env")
	assert.Contains(t, cfg.PostgresDSN(), "dbname=nexter_test")
	assert.Equal(t, "http://ai.test/chat", cfg.Live().ChatEndpoint())
}

func TestNewConfig_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := NewConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
}

func TestLive_FollowsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ASSISTANT_USE_MOCK=false\nAI_BASE_URL=http://ai.test\n"), 0o600))

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	live := cfg.Live()
	assert.False(t, live.UseLocalSimulation())

	reloaded := make(chan string, 1)
	cfg.Watch(func(name string) {
		select {
		case reloaded <- name:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("ASSISTANT_USE_MOCK=true\nAI_BASE_URL=http://ai-next.test/\n"), 0o600))

	require.Eventually(t, live.UseLocalSimulation, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "http://ai-next.test/chat", live.ChatEndpoint())
	assert.NotEmpty(t, <-reloaded)
}

func TestLive_ConcurrentReads(t *testing.T) {
	cfg, err := NewConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	live := cfg.Live()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			live.set(i%2 == 0, "http://ai.test")
			_ = live.UseLocalSimulation()
			_ = live.ChatEndpoint()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, "http://ai.test/chat", live.ChatEndpoint())
}
