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
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

const signaturePrefix = "sha256="

// ErrInvalidSignature is returned for any request whose signature cannot be
// verified.
var ErrInvalidSignature = errors.New("invalid signature")

// Verifier checks GitHub HMAC-SHA256 webhook signatures against a shared
// secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify returns nil only when signature is the "sha256=" hex digest of body
// under the configured secret.
func (v *Verifier) Verify(body []byte, signature string) error {
	switch {
	case signature == "":
		return fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	case len(v.secret) == 0:
		return fmt.Errorf("%w: webhook secret is not configured", ErrInvalidSignature)
	case len(body) == 0:
		return fmt.Errorf("%w: empty body", ErrInvalidSignature)
	}

	want := v.sign(body)
	if len(want) != len(signature) ||
		subtle.ConstantTimeCompare([]byte(signature), []byte(want)) != 1 {
		return fmt.Errorf("%w: digest mismatch", ErrInvalidSignature)
	}
	return nil
}

func (v *Verifier) sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
