package main

import (
	"fmt"

	"github.com/cozo-community/cozo/storage"
	"github.com/cozo-community/cozo/storage/boltkv"
	"github.com/cozo-community/cozo/storage/memkv"
)

func openStorage(cfg config) (storage.Storage, error) {
	switch cfg.Engine {
	case "embedded-kv":
		eng, err := boltkv.Open(cfg.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("cozoctl: opening bolt store at %s: %w", cfg.BoltPath, err)
		}
		return eng, nil
	default:
		return memkv.New(), nil
	}
}
