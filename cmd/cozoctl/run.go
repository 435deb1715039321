package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cozo-community/cozo/engine"
)

func runCmd(log *logrus.Logger, configPath *string) *cobra.Command {
	var readOnly bool
	cmd := &cobra.Command{
		Use:   "run <script.dl>",
		Short: "Parse, stratify, and evaluate a Datalog script file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runScriptFile(log, *configPath, args[0], readOnly)
		},
	}
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "reject scripts that assert facts")
	return cmd
}

func runScriptFile(log *logrus.Logger, configPath, scriptPath string, readOnly bool) error {
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

	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("cozoctl: reading script %s: %w", scriptPath, err)
	}

	db := engine.New(store, registry, log)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Warn("interrupt received, killing running queries")
		db.KillAll()
		cancel()
	}()
	defer signal.Stop(sig)
	defer cancel()

	mutability := engine.ReadWrite
	if readOnly {
		mutability = engine.ReadOnly
	}

	log.WithField("script", scriptPath).Info("starting evaluation")
	rows, err := db.RunScript(ctx, string(script), nil, mutability)
	if err != nil {
		log.WithError(err).Error("script failed")
		return err
	}

	printRows(rows)
	log.WithField("rows", len(rows.Rows)).Info("evaluation finished")
	return nil
}

func printRows(rows engine.NamedRows) {
	for _, h := range rows.Headings {
		fmt.Printf("%s\t", h)
	}
	fmt.Println()
	for _, row := range rows.Rows {
		for _, v := range row {
			fmt.Printf("%s\t", v.String())
		}
		fmt.Println()
	}
}
