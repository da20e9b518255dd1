// Copyright 2026 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package routing

import (
	"errors"
	"fmt"

	"github.com/abcxyz/pkg/cli"
)

// ImportConfig defines the inputs of the routing import command.
type ImportConfig struct {
	File string

	DatabaseDriver          string
	DatabaseURL             string
	DatabaseConnectAttempts int
}

// Validate validates the import config after load.
func (cfg *ImportConfig) Validate() error {
	var merr error

	if cfg.File == "" {
		merr = errors.Join(merr, fmt.Errorf("ROUTING_MANIFEST is required"))
	}

	if cfg.DatabaseDriver == "" {
		merr = errors.Join(merr, fmt.Errorf("DATABASE_DRIVER is required"))
	}

	if cfg.DatabaseURL == "" {
		merr = errors.Join(merr, fmt.Errorf("DATABASE_URL is required"))
	}

	if cfg.DatabaseConnectAttempts <= 0 {
		merr = errors.Join(merr, fmt.Errorf("DATABASE_CONNECT_ATTEMPTS must be greater than 0"))
	}

	return merr
}

// ToFlags binds the config to the give [cli.FlagSet] and returns it.
func (cfg *ImportConfig) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("IMPORT OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "manifest",
		Target:  &cfg.File,
		EnvVar:  "ROUTING_MANIFEST",
		Example: "routing.yaml",
		Usage:   `Path to the YAML manifest of destinations and rules.`,
	})

	f = set.NewSection("DATABASE OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "database-driver",
		Target:  &cfg.DatabaseDriver,
		EnvVar:  "DATABASE_DRIVER",
		Default: "sqlite3",
		Usage:   `The database driver, either "sqlite3" or "postgres".`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "database-url",
		Target:  &cfg.DatabaseURL,
		EnvVar:  "DATABASE_URL",
		Default: "file:notifier.db?_foreign_keys=on",
		Usage:   `The database connection string.`,
	})

	f.IntVar(&cli.IntVar{
		Name:    "database-connect-attempts",
		Target:  &cfg.DatabaseConnectAttempts,
		EnvVar:  "DATABASE_CONNECT_ATTEMPTS",
		Default: 5,
		Usage:   `How many times to try reaching the database.`,
	})

	return set
}
