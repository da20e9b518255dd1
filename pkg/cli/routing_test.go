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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/abcxyz/pkg/cli"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/testutil"
	"github.com/sethvargo/go-envconfig"

	"github.com/abcxyz/github-notifier/pkg/store"
)

const testManifest = `
destinations:
  - name: team-slack
    type: SLACK_WEBHOOK
    config:
      webhookUrl: https://hooks.slack.example.com/T000/B000
    rules:
      - repository: acme/widgets
      - eventType: release
        enabled: false
`

func TestRoutingImportCommand(t *testing.T) {
	t.Parallel()

	ctx := logging.WithLogger(context.Background(), logging.TestLogger(t))

	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "routing.yaml")
	if err := os.WriteFile(manifestPath, []byte(testManifest), 0o600); err != nil {
		t.Fatal(err)
	}
	invalidPath := filepath.Join(dir, "invalid.yaml")
	if err := os.WriteFile(invalidPath, []byte("destinations:\n  - type: SLACK_WEBHOOK\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name      string
		args      []string
		env       map[string]string
		expErr    string
		expOut    string
		expRules  int
		checkRule bool
	}{
		{
			name:   "too_many_args",
			args:   []string{"foo"},
			expErr: `unexpected arguments: ["foo"]`,
		},
		{
			name:   "missing_manifest",
			expErr: `ROUTING_MANIFEST is required`,
		},
		{
			name:   "unreadable_manifest",
			args:   []string{"-manifest", filepath.Join(dir, "missing.yaml")},
			expErr: `failed to read manifest`,
		},
		{
			name:   "invalid_manifest",
			args:   []string{"-manifest", invalidPath},
			expErr: `destinations[0].name is required`,
		},
		{
			name:      "happy_path",
			args:      []string{"-manifest", manifestPath},
			expOut:    "imported 1 destination(s)",
			checkRule: true,
			expRules:  1,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			dbURL := memoryDatabaseURL()
			env := map[string]string{"DATABASE_URL": dbURL}
			for k, v := range tc.env {
				env[k] = v
			}

			// Keep one connection open so the in-memory database outlives
			// the command.
			var db *store.Store
			if tc.checkRule {
				var err error
				db, err = store.Open(ctx, &store.Config{Driver: store.DriverSQLite, URL: dbURL, ConnectAttempts: 1})
				if err != nil {
					t.Fatal(err)
				}
				t.Cleanup(func() {
					if err := db.Close(); err != nil {
						t.Error(err)
					}
				})
			}

			var cmd RoutingImportCommand
			cmd.testFlagSetOpts = []cli.Option{cli.WithLookupEnv(envconfig.MapLookuper(env).Lookup)}
			_, stdout, _ := cmd.Pipe()

			err := cmd.Run(ctx, tc.args)
			if diff := testutil.DiffErrString(err, tc.expErr); diff != "" {
				t.Fatal(diff)
			}
			if err != nil {
				return
			}

			if got := stdout.String(); !strings.Contains(got, tc.expOut) {
				t.Errorf("expected stdout %q to contain %q", got, tc.expOut)
			}

			rules, err := db.ListEnabledRules(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if got, want := len(rules), tc.expRules; got != want {
				t.Fatalf("expected %d enabled rules to be %d", got, want)
			}
			if got, want := rules[0].Destination.Name, "team-slack"; got != want {
				t.Errorf("expected destination %q to be %q", got, want)
			}
			if url, ok := rules[0].Destination.WebhookURL(); !ok || url != "https://hooks.slack.example.com/T000/B000" {
				t.Errorf("expected webhook url to survive import, got %q", url)
			}
		})
	}
}
