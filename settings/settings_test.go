package settings

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	m := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested", "settings.yaml")),
	}
	if dsn := os.Getenv("TDSUM_TEST_DSN"); dsn != "" {
		pg, err := OpenPGStore(context.Background(), dsn)
		require.NoError(t, err)
		_, err = pg.pool.Exec(context.Background(), `DELETE FROM tdsum_settings`)
		require.NoError(t, err)
		t.Cleanup(pg.Close)
		m["postgres"] = pg
	}
	return m
}

func TestLoadDefaults(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			got, err := Load(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, Settings{Model: DefaultModel}, got)
			assert.False(t, got.Configured())

			enabled, err := Enabled(ctx, s)
			require.NoError(t, err)
			assert.True(t, enabled)
		})
	}
}

func TestSaveLoad(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := Settings{APIURL: "https://llm.example/v1/chat/completions", APIKey: "sk-test", Model: "gpt-4o-mini"}
			require.NoError(t, Save(ctx, s, want))

			got, err := Load(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, want, got)
			assert.True(t, got.Configured())

			// Last writer wins.
			want.Model = ""
			require.NoError(t, Save(ctx, s, want))
			got, err = Load(ctx, s)
			require.NoError(t, err)
			assert.Equal(t, DefaultModel, got.Model)
		})
	}
}

func TestEnabled(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, SetEnabled(ctx, s, false))
			enabled, err := Enabled(ctx, s)
			require.NoError(t, err)
			assert.False(t, enabled)

			require.NoError(t, SetEnabled(ctx, s, true))
			enabled, err = Enabled(ctx, s)
			require.NoError(t, err)
			assert.True(t, enabled)

			require.NoError(t, s.Set(ctx, map[string]string{KeyEnabled: "garbage"}))
			enabled, err = Enabled(ctx, s)
			require.NoError(t, err)
			assert.True(t, enabled)
		})
	}
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	ctx := context.Background()
	require.NoError(t, Save(ctx, NewFileStore(path), Settings{APIURL: "u", APIKey: "k", Model: "m"}))

	got, err := Load(ctx, NewFileStore(path))
	require.NoError(t, err)
	assert.Equal(t, Settings{APIURL: "u", APIKey: "k", Model: "m"}, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "apiUrl: u")
}

func TestFileStoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o600))
	_, err := Load(context.Background(), NewFileStore(path))
	assert.Error(t, err)
}

func TestFileStoreConcurrentWrites(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "settings.yaml"))
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, k := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			assert.NoError(t, s.Set(ctx, map[string]string{k: k + "-value"}))
		}(k)
	}
	wg.Wait()

	got, err := s.Get(ctx, "a", "b", "c", "d")
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", MaskKey(""))
	assert.Equal(t, "", MaskKey("abcd"))
	assert.Equal(t, "***1234", MaskKey("sk-1234"))
}
