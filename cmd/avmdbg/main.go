// Copyright (C) 2019-2024 Algorand, Inc.
// This file is part of go-algorand
//
// go-algorand is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-algorand is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-algorand.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/algorand/avm-debugger/config"
	"github.com/algorand/avm-debugger/logging"
)

var dataDir string
var logLevel string
var logJSON bool

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "datadir", "d", "", "Directory holding "+config.ConfigFilename+" (defaults to $AVMDBG_DATA)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: panic, fatal, error, warn, info, debug")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write the log as JSON lines")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
}

var rootCmd = &cobra.Command{
	Use:   "avmdbg",
	Short: "Algorand AVM time travel debugger",
	Long: `Replay the execution trace of a simulated transaction group, forward and
backward, with source level breakpoints. Editors connect through the Debug
Adapter Protocol.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		//If no arguments passed, we should fallback to help
		cmd.HelpFunc()(cmd, args)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the config of the data directory and applies the
// persistent flags on top of it.
func loadConfig(cmd *cobra.Command) (config.Local, error) {
	dir := dataDir
	if dir == "" {
		dir = os.Getenv("AVMDBG_DATA")
	}
	cfg := config.GetDefaultLocal()
	if dir != "" {
		var err error
		cfg, err = config.LoadConfigFromDisk(dir)
		if err != nil {
			return cfg, fmt.Errorf("unable to load config from %s: %w", dir, err)
		}
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.LogJSON = logJSON
	}
	return cfg, cfg.Validate()
}

// setupLogging configures the base logger. Logs always go to stderr so
// stdout stays free for the stdio transport.
func setupLogging(cfg config.Local) logging.Logger {
	log := logging.Base()
	log.SetOutput(os.Stderr)
	log.SetLevel(cfg.Level())
	if cfg.LogJSON {
		log.SetJSONFormatter()
	}
	return log
}
