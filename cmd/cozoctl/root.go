// Command cozoctl is the minimal concrete caller SPEC_FULL.md §6 describes
// for the interactive-shell contract: it does not implement a readline REPL
// (that remains an external, unimplemented interface per the carried
// Non-goals), but it does give "run a script against a configured backend"
// and the Ctrl-C-cancels-running-queries contract a real process to live in.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	log := logrus.New()

	var configPath string
	root := &cobra.Command{
		Use:   "cozoctl",
		Short: "Run Datalog scripts against a cozo-community/cozo database",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file (engine, bolt_path, log_level)")

	root.AddCommand(runCmd(log, &configPath))
	root.AddCommand(backupCmd(log, &configPath))
	root.AddCommand(restoreCmd(log, &configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(log *logrus.Logger, level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
}
