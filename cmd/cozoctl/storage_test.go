package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenStorageMem(t *testing.T) {
	store, err := openStorage(config{Engine: "mem"})
	require.NoError(t, err)
	require.NoError(t, store.Close())
}

func TestOpenStorageEmbeddedKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.bolt")
	store, err := openStorage(config{Engine: "embedded-kv", BoltPath: path})
	require.NoError(t, err)
	require.NoError(t, store.Close())
}
