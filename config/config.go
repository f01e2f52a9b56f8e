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

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/algorand/avm-debugger/logging"
)

// Local holds the settings of a debugger instance.
//
// New fields may be added, along with a bump of the version default and a
// step in migrate when an existing default changes.
type Local struct {
	// Version tracks the current version of the defaults so we can migrate old -> new.
	Version uint32

	// ListenAddress is the interface the DAP server binds to.
	ListenAddress string

	// Port is the TCP port of the DAP server.
	Port int

	// StdioTransport serves a single session over stdin and stdout instead of
	// listening on a socket. Editors that spawn the adapter use it.
	StdioTransport bool

	// LogLevel is the minimum level written to the log, for example "info" or "debug".
	LogLevel string

	// LogJSON switches the log output to JSON lines.
	LogJSON bool

	// MetricsAddress enables the /metrics endpoint on the given address when not empty.
	MetricsAddress string

	// StopOnEntry is used by launch requests that do not set stopOnEntry.
	StopOnEntry bool
}

// ConfigFilename is the name of the config file in the data directory.
const ConfigFilename = "avmdbg.json"

// DefaultPort is the port editors expect the debug adapter on.
const DefaultPort = 22015

const latestVersion = 1

var defaultLocal = Local{
	Version:        latestVersion,
	ListenAddress:  "127.0.0.1",
	Port:           DefaultPort,
	StdioTransport: false,
	LogLevel:       "info",
	LogJSON:        false,
	MetricsAddress: "",
	StopOnEntry:    false,
}

// GetDefaultLocal returns a copy of the current defaultLocal config
func GetDefaultLocal() Local {
	return defaultLocal
}

// LoadConfigFromDisk returns a Local config structure based on merging the defaults
// with settings loaded from the config file from the custom dir. A missing
// file is not an error: the defaults are returned.
func LoadConfigFromDisk(custom string) (Local, error) {
	c, err := loadConfigFromFile(filepath.Join(custom, ConfigFilename))
	if errors.Is(err, os.ErrNotExist) {
		return defaultLocal, nil
	}
	return c, err
}

func loadConfigFromFile(configFile string) (c Local, err error) {
	c = defaultLocal
	c.Version = 0 // Reset to 0 so we get the version from the loaded file.
	c, err = mergeConfigFromFile(configFile, c)
	if err != nil {
		return
	}
	c, err = migrate(c)
	if err != nil {
		return
	}
	err = c.Validate()
	return
}

func mergeConfigFromFile(configpath string, source Local) (Local, error) {
	f, err := os.Open(configpath)
	if err != nil {
		return source, err
	}
	defer f.Close()

	err = loadConfig(f, &source)
	if err != nil {
		return source, fmt.Errorf("unable to parse %s: %w", configpath, err)
	}
	return source, nil
}

func loadConfig(reader io.Reader, config *Local) error {
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	return dec.Decode(config)
}

// migrate brings a config written against older defaults up to date. A
// file without a version is assumed to be version zero.
func migrate(cfg Local) (Local, error) {
	if cfg.Version > latestVersion {
		return cfg, fmt.Errorf("unable to migrate config version %d, the latest known version is %d", cfg.Version, latestVersion)
	}
	if cfg.Version == 0 {
		// version 0 listened on all interfaces
		if cfg.ListenAddress == "" {
			cfg.ListenAddress = defaultLocal.ListenAddress
		}
		cfg.Version = 1
	}
	return cfg, nil
}

// Validate checks the settings that cannot be checked by the decoder.
func (cfg Local) Validate() error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Port)
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	return nil
}

// Level returns the parsed LogLevel. Invalid names map to info.
func (cfg Local) Level() logging.Level {
	lvl, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return logging.Info
	}
	return lvl
}

// Address returns the host:port the DAP server listens on.
func (cfg Local) Address() string {
	return fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port)
}

// SaveToDisk writes the Local settings into a root/ConfigFilename file
func (cfg Local) SaveToDisk(root string) error {
	configpath := filepath.Join(root, ConfigFilename)
	filename := os.ExpandEnv(configpath)
	return cfg.SaveToFile(filename)
}

// SaveToFile saves the config to a specific filename, allowing overriding the default name
func (cfg Local) SaveToFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "\t")
	return enc.Encode(cfg)
}
