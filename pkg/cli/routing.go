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

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/github-notifier/pkg/routing"
	"github.com/abcxyz/github-notifier/pkg/store"
	"github.com/abcxyz/github-notifier/pkg/version"
)

var _ cli.Command = (*RoutingImportCommand)(nil)

// RoutingImportCommand loads destinations and routing rules from a YAML
// manifest into the database used by the webhook server.
type RoutingImportCommand struct {
	cli.BaseCommand

	cfg *routing.ImportConfig

	// testFlagSetOpts is only used for testing.
	testFlagSetOpts []cli.Option
}

func (c *RoutingImportCommand) Desc() string {
	return `Import notification destinations and routing rules`
}

func (c *RoutingImportCommand) Help() string {
	return `
Usage: {{ COMMAND }} [options]

  Import the destinations and routing rules declared in a YAML manifest.
  Entries are always added, re-importing a manifest duplicates them.
`
}

func (c *RoutingImportCommand) Flags() *cli.FlagSet {
	c.cfg = &routing.ImportConfig{}
	set := cli.NewFlagSet(c.testFlagSetOpts...)
	return c.cfg.ToFlags(set)
}

func (c *RoutingImportCommand) Run(ctx context.Context, args []string) error {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	args = f.Args()
	if len(args) > 0 {
		return fmt.Errorf("unexpected arguments: %q", args)
	}

	logger := logging.FromContext(ctx)
	logger.DebugContext(ctx, "running import",
		"name", version.Name,
		"commit", version.Commit,
		"version", version.Version)

	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	b, err := os.ReadFile(c.cfg.File)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	manifest, err := routing.ParseManifest(b)
	if err != nil {
		return err //nolint:wrapcheck // Already descriptive
	}

	db, err := store.Open(ctx, &store.Config{
		Driver:          c.cfg.DatabaseDriver,
		URL:             c.cfg.DatabaseURL,
		ConnectAttempts: uint64(c.cfg.DatabaseConnectAttempts),
	})
	if err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer db.Close()

	if err := manifest.Apply(ctx, db); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	c.Outf("imported %d destination(s) from %s", len(manifest.Destinations), c.cfg.File)
	return nil
}
