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
	"errors"
	"testing"

	"github.com/abcxyz/pkg/testutil"
)

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	body := []byte(`{"zen":"Keep it logically awesome."}`)
	valid := "sha256=" + createSignature([]byte(testWebhookSecret), body)

	cases := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		wantErr   string
	}{
		{
			name:      "valid",
			secret:    testWebhookSecret,
			body:      body,
			signature: valid,
		},
		{
			name:    "missing_header",
			secret:  testWebhookSecret,
			body:    body,
			wantErr: "missing signature header",
		},
		{
			name:      "empty_secret",
			body:      body,
			signature: valid,
			wantErr:   "webhook secret is not configured",
		},
		{
			name:      "empty_body",
			secret:    testWebhookSecret,
			signature: valid,
			wantErr:   "empty body",
		},
		{
			name:      "wrong_secret",
			secret:    "not-the-secret",
			body:      body,
			signature: valid,
			wantErr:   "digest mismatch",
		},
		{
			name:      "missing_prefix",
			secret:    testWebhookSecret,
			body:      body,
			signature: valid[len("sha256="):],
			wantErr:   "digest mismatch",
		},
		{
			name:      "truncated",
			secret:    testWebhookSecret,
			body:      body,
			signature: valid[:len(valid)-1],
			wantErr:   "digest mismatch",
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := NewVerifier(tc.secret).Verify(tc.body, tc.signature)
			if diff := testutil.DiffErrString(err, tc.wantErr); diff != "" {
				t.Fatal(diff)
			}
			if tc.wantErr != "" && !errors.Is(err, ErrInvalidSignature) {
				t.Errorf("expected %v to wrap ErrInvalidSignature", err)
			}
		})
	}
}

func TestVerifier_SingleByteMutation(t *testing.T) {
	t.Parallel()

	body := []byte(`{"action":"opened","number":7}`)
	secret := []byte(testWebhookSecret)
	signature := "sha256=" + createSignature(secret, body)

	flip := func(b []byte, i int) []byte {
		out := append([]byte(nil), b...)
		out[i] ^= 0x01
		return out
	}

	v := NewVerifier(string(secret))
	if err := v.Verify(body, signature); err != nil {
		t.Fatalf("expected untouched request to verify: %v", err)
	}

	for i := range body {
		if err := v.Verify(flip(body, i), signature); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("body byte %d: expected ErrInvalidSignature, got %v", i, err)
		}
	}

	for i := range secret {
		mutated := NewVerifier(string(flip(secret, i)))
		if err := mutated.Verify(body, signature); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("secret byte %d: expected ErrInvalidSignature, got %v", i, err)
		}
	}

	for i := range signature {
		if err := v.Verify(body, string(flip([]byte(signature), i))); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("header byte %d: expected ErrInvalidSignature, got %v", i, err)
		}
	}
}
