// Copyright 2023 The Authors (see AUTHORS file)
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

package webhook

import (
	"errors"
	"fmt"
	"time"

	"github.com/abcxyz/pkg/cli"

	"github.com/abcxyz/github-notifier/pkg/dispatch"
	"github.com/abcxyz/github-notifier/pkg/store"
)

// Config defines the set over environment variables required
// for running this application.
type Config struct {
	Port      string
	ProjectID string

	GitHubWebhookSecret     string
	GitHubWebhookSecretName string

	DatabaseDriver          string
	DatabaseURL             string
	DatabaseConnectAttempts int

	DeliveryTimeout    time.Duration
	RateLimitPerMinute int
	TrustedProxyHops   int

	EventsTopicID string
	PubSubTimeout time.Duration

	ReadAPI bool
}

// Validate validates the service config after load.
func (cfg *Config) Validate() error {
	var merr error

	switch {
	case cfg.GitHubWebhookSecret == "" && cfg.GitHubWebhookSecretName == "":
		merr = errors.Join(merr, fmt.Errorf("GITHUB_WEBHOOK_SECRET or GITHUB_WEBHOOK_SECRET_NAME is required"))
	case cfg.GitHubWebhookSecret != "" && cfg.GitHubWebhookSecretName != "":
		merr = errors.Join(merr, fmt.Errorf("only one of GITHUB_WEBHOOK_SECRET and GITHUB_WEBHOOK_SECRET_NAME may be set"))
	}

	switch cfg.DatabaseDriver {
	case store.DriverSQLite, store.DriverPostgres:
	default:
		merr = errors.Join(merr, fmt.Errorf("DATABASE_DRIVER must be one of %q or %q, got %q",
			store.DriverSQLite, store.DriverPostgres, cfg.DatabaseDriver))
	}

	if cfg.DatabaseURL == "" {
		merr = errors.Join(merr, fmt.Errorf("DATABASE_URL is required"))
	}

	if cfg.DatabaseConnectAttempts <= 0 {
		merr = errors.Join(merr, fmt.Errorf("DATABASE_CONNECT_ATTEMPTS must be greater than 0"))
	}

	if cfg.DeliveryTimeout <= 0 {
		merr = errors.Join(merr, fmt.Errorf("DELIVERY_TIMEOUT must be positive"))
	}

	if cfg.RateLimitPerMinute < 0 {
		merr = errors.Join(merr, fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative"))
	}

	if cfg.TrustedProxyHops < 0 {
		merr = errors.Join(merr, fmt.Errorf("TRUSTED_PROXY_HOPS must not be negative"))
	}

	if cfg.EventsTopicID != "" {
		// TODO: get project from compute metadata server if required in future
		if cfg.ProjectID == "" {
			merr = errors.Join(merr, fmt.Errorf("PROJECT_ID is required when EVENTS_TOPIC_ID is set"))
		}
		if cfg.PubSubTimeout <= 0 {
			merr = errors.Join(merr, fmt.Errorf("PUBSUB_TIMEOUT must be positive"))
		}
	}

	return merr
}

// ToFlags binds the config to the give [cli.FlagSet] and returns it.
func (cfg *Config) ToFlags(set *cli.FlagSet) *cli.FlagSet {
	f := set.NewSection("COMMON OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "port",
		Target:  &cfg.Port,
		EnvVar:  "PORT",
		Default: "8080",
		Usage:   `The port the webhook server listens to.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "project-id",
		Target: &cfg.ProjectID,
		EnvVar: "PROJECT_ID",
		Usage:  `Google Cloud project ID, used for log correlation and the event topic.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "github-webhook-secret",
		Target: &cfg.GitHubWebhookSecret,
		EnvVar: "GITHUB_WEBHOOK_SECRET",
		Usage:  `GitHub webhook secret.`,
	})

	f.StringVar(&cli.StringVar{
		Name:    "github-webhook-secret-name",
		Target:  &cfg.GitHubWebhookSecretName,
		EnvVar:  "GITHUB_WEBHOOK_SECRET_NAME",
		Example: "projects/my-project/secrets/webhook-secret/versions/latest",
		Usage:   `Secret Manager resource holding the GitHub webhook secret.`,
	})

	f = set.NewSection("DATABASE OPTIONS")

	f.StringVar(&cli.StringVar{
		Name:    "database-driver",
		Target:  &cfg.DatabaseDriver,
		EnvVar:  "DATABASE_DRIVER",
		Default: store.DriverSQLite,
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
		Usage:   `How many times to try reaching the database at startup.`,
	})

	f = set.NewSection("DELIVERY OPTIONS")

	f.DurationVar(&cli.DurationVar{
		Name:    "delivery-timeout",
		Target:  &cfg.DeliveryTimeout,
		EnvVar:  "DELIVERY_TIMEOUT",
		Default: dispatch.DefaultTimeout,
		Usage:   `The timeout for each outbound notification request.`,
	})

	f.IntVar(&cli.IntVar{
		Name:   "rate-limit-per-minute",
		Target: &cfg.RateLimitPerMinute,
		EnvVar: "RATE_LIMIT_PER_MINUTE",
		Usage:  `Inbound webhook requests allowed per client per minute, 0 disables the limit.`,
	})

	f.IntVar(&cli.IntVar{
		Name:   "trusted-proxy-hops",
		Target: &cfg.TrustedProxyHops,
		EnvVar: "TRUSTED_PROXY_HOPS",
		Usage: `Number of trusted proxies that append to X-Forwarded-For in front ` +
			`of the server. With 0 the rate limiter keys on the peer address.`,
	})

	f.StringVar(&cli.StringVar{
		Name:   "events-topic-id",
		Target: &cfg.EventsTopicID,
		EnvVar: "EVENTS_TOPIC_ID",
		Usage:  `Optional Google PubSub topic ID that receives a copy of every stored event.`,
	})

	f.DurationVar(&cli.DurationVar{
		Name:    "pubsub-timeout",
		Target:  &cfg.PubSubTimeout,
		EnvVar:  "PUBSUB_TIMEOUT",
		Default: 10 * time.Second,
		Usage:   `The timeout for PubSub requests.`,
	})

	f.BoolVar(&cli.BoolVar{
		Name:   "read-api",
		Target: &cfg.ReadAPI,
		EnvVar: "READ_API",
		Usage:  `Serve the unauthenticated read-only events and deliveries API.`,
	})

	return set
}
