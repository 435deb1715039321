package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/cozo-community/cozo/schema"
)

// config is the shape of the --config TOML file (SPEC_FULL.md §6). Engine
// picks the storage backend; BoltPath only matters when Engine is
// "embedded-kv". Attributes pre-registers the schema a script's facts and
// AttrTriple atoms resolve against, since the core has no migration/DDL
// surface of its own (spec.md's schema.Registry is populated by its owner,
// not derived from scripts).
type config struct {
	Engine     string          `toml:"engine"`
	BoltPath   string          `toml:"bolt_path"`
	LogLevel   string          `toml:"log_level"`
	Attributes []tomlAttribute `toml:"attributes"`
}

type tomlAttribute struct {
	Name        string `toml:"name"`
	Type        string `toml:"type"`
	Cardinality string `toml:"cardinality"`
}

func defaultConfig() config {
	return config{Engine: "mem", LogLevel: "info"}
}

func (c config) registry() (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for i, a := range c.Attributes {
		if a.Name == "" {
			return nil, fmt.Errorf("cozoctl: attributes[%d] has no name", i)
		}
		vt, err := parseValueType(a.Type)
		if err != nil {
			return nil, fmt.Errorf("cozoctl: attribute %q: %w", a.Name, err)
		}
		card := schema.CardinalityOne
		if a.Cardinality == "many" {
			card = schema.CardinalityMany
		}
		reg.Put(schema.Attribute{
			Name:        a.Name,
			Id:          schema.EntityId(i + 1),
			Type:        vt,
			Cardinality: card,
		})
	}
	return reg, nil
}

func parseValueType(s string) (schema.ValueType, error) {
	switch s {
	case "", "any":
		return schema.TypeAny, nil
	case "ref":
		return schema.TypeRef, nil
	default:
		return 0, fmt.Errorf("unknown attribute type %q", s)
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return config{}, fmt.Errorf("cozoctl: reading config %s: %w", path, err)
	}
	switch cfg.Engine {
	case "mem", "embedded-kv":
	default:
		return config{}, fmt.Errorf("cozoctl: unknown engine %q (want \"mem\" or \"embedded-kv\")", cfg.Engine)
	}
	if cfg.Engine == "embedded-kv" && cfg.BoltPath == "" {
		return config{}, fmt.Errorf("cozoctl: engine \"embedded-kv\" requires bolt_path")
	}
	return cfg, nil
}
