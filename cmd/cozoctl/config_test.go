package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cozo-community/cozo/schema"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, "mem", cfg.Engine)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cozoctl.toml")
	text := `engine = "embedded-kv"
bolt_path = "db.bolt"
log_level = "debug"

[[attributes]]
name = "edge"
type = "ref"
cardinality = "many"

[[attributes]]
name = "parent"
cardinality = "many"
`
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "embedded-kv", cfg.Engine)
	require.Equal(t, "db.bolt", cfg.BoltPath)
	require.Len(t, cfg.Attributes, 2)

	reg, err := cfg.registry()
	require.NoError(t, err)
	edge, ok := reg.Get("edge")
	require.True(t, ok)
	require.Equal(t, schema.TypeRef, edge.Type)
	require.Equal(t, schema.CardinalityMany, edge.Cardinality)

	parent, ok := reg.Get("parent")
	require.True(t, ok)
	require.Equal(t, schema.TypeAny, parent.Type)
}

func TestLoadConfigRejectsUnknownEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cozoctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(`engine = "nope"`), 0644))
	_, err := loadConfig(path)
	require.Error(t, err)
}

func TestLoadConfigRequiresBoltPathForEmbeddedKV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cozoctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(`engine = "embedded-kv"`), 0644))
	_, err := loadConfig(path)
	require.Error(t, err)
}

func TestRegistryRejectsUnknownAttributeType(t *testing.T) {
	cfg := config{Attributes: []tomlAttribute{{Name: "x", Type: "weird"}}}
	_, err := cfg.registry()
	require.Error(t, err)
}
