// Package main implements the CLI driver for the racer analyzer.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/o2lab/racer/analyzer"
	"github.com/o2lab/racer/config"
	"github.com/o2lab/racer/report"
)

const (
	exitRacesFound = 1
	exitError      = 2
)

var (
	debug      bool
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "racer [packages...]",
		Short: "Find data races in Go code without running it",
		Long: `racer statically analyzes Go packages for data races.

It computes a summary per function describing which memory it reads and
writes and under which protection, then pairs up conflicting accesses
reachable from main.`,
		Example: `  racer ./...                 # Analyze all packages
  racer --debug ./cmd/server  # Verbose transfer-function logging
  racer --config racer.yaml . # Custom exclusions and function models`,
		Args:          cobra.MinimumNArgs(1),
		RunE:          runCommand,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Print debug messages")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a yaml configuration file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(exitError)
	}
}

func runCommand(cmd *cobra.Command, args []string) error {
	if debug {
		log.SetLevel(log.DebugLevel)
	}
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Decode(configPath); err != nil {
			return err
		}
	}

	a := analyzer.NewAnalyzerConfig(args, cfg.ExcludedPkgs, cfg.Models())
	races, err := a.Run()
	if err != nil {
		return err
	}
	report.Print(races)
	if len(races) > 0 {
		os.Exit(exitRacesFound)
	}
	return nil
}
