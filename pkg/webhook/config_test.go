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
	"testing"
	"time"

	"github.com/abcxyz/pkg/testutil"
)

func validConfig() *Config {
	return &Config{
		Port:                    "8080",
		GitHubWebhookSecret:     "test-github-webhook-secret",
		DatabaseDriver:          "sqlite3",
		DatabaseURL:             "file::memory:",
		DatabaseConnectAttempts: 1,
		DeliveryTimeout:         10 * time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name: "success",
		},
		{
			name: "success_secret_name",
			mutate: func(cfg *Config) {
				cfg.GitHubWebhookSecret = ""
				cfg.GitHubWebhookSecretName = "projects/p/secrets/s/versions/latest"
			},
		},
		{
			name: "success_with_topic",
			mutate: func(cfg *Config) {
				cfg.ProjectID = "test-project-id"
				cfg.EventsTopicID = "test-events-topic-id"
				cfg.PubSubTimeout = time.Second
			},
		},
		{
			name: "missing_webhook_secret",
			mutate: func(cfg *Config) {
				cfg.GitHubWebhookSecret = ""
			},
			wantErr: "GITHUB_WEBHOOK_SECRET or GITHUB_WEBHOOK_SECRET_NAME is required",
		},
		{
			name: "both_webhook_secrets",
			mutate: func(cfg *Config) {
				cfg.GitHubWebhookSecretName = "projects/p/secrets/s/versions/latest"
			},
			wantErr: "only one of GITHUB_WEBHOOK_SECRET and GITHUB_WEBHOOK_SECRET_NAME may be set",
		},
		{
			name: "invalid_database_driver",
			mutate: func(cfg *Config) {
				cfg.DatabaseDriver = "mysql"
			},
			wantErr: `DATABASE_DRIVER must be one of "sqlite3" or "postgres", got "mysql"`,
		},
		{
			name: "missing_database_url",
			mutate: func(cfg *Config) {
				cfg.DatabaseURL = ""
			},
			wantErr: "DATABASE_URL is required",
		},
		{
			name: "missing_connect_attempts",
			mutate: func(cfg *Config) {
				cfg.DatabaseConnectAttempts = 0
			},
			wantErr: "DATABASE_CONNECT_ATTEMPTS must be greater than 0",
		},
		{
			name: "invalid_delivery_timeout",
			mutate: func(cfg *Config) {
				cfg.DeliveryTimeout = 0
			},
			wantErr: "DELIVERY_TIMEOUT must be positive",
		},
		{
			name: "negative_rate_limit",
			mutate: func(cfg *Config) {
				cfg.RateLimitPerMinute = -1
			},
			wantErr: "RATE_LIMIT_PER_MINUTE must not be negative",
		},
		{
			name: "negative_proxy_hops",
			mutate: func(cfg *Config) {
				cfg.TrustedProxyHops = -1
			},
			wantErr: "TRUSTED_PROXY_HOPS must not be negative",
		},
		{
			name: "topic_without_project",
			mutate: func(cfg *Config) {
				cfg.EventsTopicID = "test-events-topic-id"
				cfg.PubSubTimeout = time.Second
			},
			wantErr: "PROJECT_ID is required when EVENTS_TOPIC_ID is set",
		},
		{
			name: "topic_without_timeout",
			mutate: func(cfg *Config) {
				cfg.ProjectID = "test-project-id"
				cfg.EventsTopicID = "test-events-topic-id"
			},
			wantErr: "PUBSUB_TIMEOUT must be positive",
		},
	}

	for _, tc := range tests {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			if tc.mutate != nil {
				tc.mutate(cfg)
			}

			err := cfg.Validate()
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Errorf("unexpected err: %s", diff)
			}
		})
	}
}
