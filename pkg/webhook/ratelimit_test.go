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

package webhook

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiter_Allow(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter(3, 0)
	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d: expected to be allowed", i)
		}
	}
	if l.Allow("10.0.0.1") {
		t.Errorf("expected fourth request to be limited")
	}
	if !l.Allow("10.0.0.2") {
		t.Errorf("expected other client to have its own budget")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	t.Parallel()

	l := NewRateLimiter(0, 0)
	if l != nil {
		t.Fatalf("expected nil limiter, got %#v", l)
	}
	for i := 0; i < 100; i++ {
		if !l.Allow("10.0.0.1") {
			t.Fatalf("request %d: expected disabled limiter to allow", i)
		}
	}
}

func TestClientKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		remoteAddr string
		forwarded  []string
		proxyHops  int
		want       string
	}{
		{
			name:       "remote_addr",
			remoteAddr: "192.0.2.10:5555",
			want:       "192.0.2.10",
		},
		{
			name:       "forwarded_ignored_without_proxies",
			remoteAddr: "203.0.113.9:5555",
			forwarded:  []string{"140.82.115.1"},
			want:       "203.0.113.9",
		},
		{
			name:       "one_proxy",
			remoteAddr: "10.0.0.1:443",
			forwarded:  []string{"140.82.115.1"},
			proxyHops:  1,
			want:       "140.82.115.1",
		},
		{
			name:       "one_proxy_spoofed_prefix",
			remoteAddr: "10.0.0.1:443",
			forwarded:  []string{"140.82.115.1, 203.0.113.9"},
			proxyHops:  1,
			want:       "203.0.113.9",
		},
		{
			name:       "two_proxies_across_headers",
			remoteAddr: "10.0.0.2:443",
			forwarded:  []string{"140.82.115.1, 203.0.113.9", "10.0.0.1"},
			proxyHops:  2,
			want:       "203.0.113.9",
		},
		{
			name:       "header_shorter_than_hops",
			remoteAddr: "10.0.0.1:443",
			forwarded:  []string{"203.0.113.9"},
			proxyHops:  2,
			want:       "10.0.0.1",
		},
		{
			name:       "remote_addr_without_port",
			remoteAddr: "192.0.2.10",
			want:       "192.0.2.10",
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodPost, "/webhook", nil)
			r.RemoteAddr = tc.remoteAddr
			for _, v := range tc.forwarded {
				r.Header.Add("X-Forwarded-For", v)
			}

			if got := clientKey(r, tc.proxyHops); got != tc.want {
				t.Errorf("expected %q to be %q", got, tc.want)
			}
		})
	}
}
