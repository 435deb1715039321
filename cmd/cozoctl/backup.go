package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cozo-community/cozo/engine"
)

func backupCmd(log *logrus.Logger, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <out.json>",
		Short: "Dump every stored triple event to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDB(log, *configPath, func(db *engine.DB) error {
				if err := db.BackupDB(args[0]); err != nil {
					return fmt.Errorf("cozoctl: backup failed: %w", err)
				}
				log.WithField("path", args[0]).Info("backup written")
				return nil
			})
		},
	}
}

func restoreCmd(log *logrus.Logger, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <in.json>",
		Short: "Load triple events from a JSON file written by backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withDB(log, *configPath, func(db *engine.DB) error {
				if err := db.RestoreBackup(args[0]); err != nil {
					return fmt.Errorf("cozoctl: restore failed: %w", err)
				}
				log.WithField("path", args[0]).Info("restore applied")
				return nil
			})
		},
	}
}

func withDB(log *logrus.Logger, configPath string, fn func(db *engine.DB) error) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	setupLogging(log, cfg.LogLevel)

	store, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.WithError(err).Warn("failed to close storage cleanly")
		}
	}()

	registry, err := cfg.registry()
	if err != nil {
		return err
	}

	return fn(engine.New(store, registry, log))
}
