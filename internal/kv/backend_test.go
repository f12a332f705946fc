package kv

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	got, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, b.Put(ctx, "history", []byte(`[{"id":"a"}]`)))
	got, err = b.Get(ctx, "history")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(got))

	require.NoError(t, b.Put(ctx, "history", []byte(`[]`)))
	got, err = b.Get(ctx, "history")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(got))

	require.NoError(t, b.Delete(ctx, "history"))
	got, err = b.Get(ctx, "history")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, b.Delete(ctx, "never-set"))
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestFileBackend(t *testing.T) {
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "kv.json"))
	require.NoError(t, err)
	exerciseBackend(t, b)
}

func TestFileBackendPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kv.json")

	b, err := NewFileBackend(path)
	require.NoError(t, err)
	require.NoError(t, b.Put(context.Background(), "k", []byte(`{"v":1}`)))

	_, err = os.Stat(path)
	require.NoError(t, err, "expected file on disk")

	reopened, err := NewFileBackend(path)
	require.NoError(t, err)
	got, err := reopened.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got))
}

func TestFileBackendRejectsNonJSON(t *testing.T) {
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "kv.json"))
	require.NoError(t, err)
	assert.Error(t, b.Put(context.Background(), "k", []byte("not json")))
}

func TestMemoryBackendCopiesValues(t *testing.T) {
	b := NewMemoryBackend()
	val := []byte(`"abc"`)
	require.NoError(t, b.Put(context.Background(), "k", val))
	val[1] = 'z'

	got, err := b.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(got))
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	b, err := NewRedisBackend(ctx, mr.Addr(), "stabletrade:")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Ping(ctx))
	exerciseBackend(t, b)

	require.NoError(t, b.Put(ctx, "k", []byte(`1`)))
	assert.True(t, mr.Exists("stabletrade:k"))
}

func TestPostgresBackendLifecycle(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b, err := NewPostgresBackend(ctx, dsn)
	require.NoError(t, err)
	defer b.Close()

	exerciseBackend(t, b)
}
