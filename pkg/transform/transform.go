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

// Package transform renders captured GitHub events into the message formats
// understood by chat webhooks. Both builders are pure functions of the event.
package transform

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v56/github"

	"github.com/abcxyz/github-notifier/pkg/events"
)

// Event types with a dedicated layout. Anything else uses the generic one.
const (
	EventPush         = "push"
	EventPullRequest  = "pull_request"
	EventIssues       = "issues"
	EventIssueComment = "issue_comment"
	EventRelease      = "release"
)

const (
	unknown     = "unknown"
	ellipsis    = "..."
	headsPrefix = "refs/heads/"

	// timestampLayout matches ISO-8601 with millisecond precision.
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// decode parses the payload into the go-github type for the event. It
// returns nil for unrecognized types and for payloads that are not JSON
// objects, in which case callers use the generic layout. Fields that do not
// fit their type are left unset and the rest of the payload is kept.
func decode(event *events.Event) any {
	var target any
	switch event.EventType {
	case EventPush:
		target = new(github.PushEvent)
	case EventPullRequest:
		target = new(github.PullRequestEvent)
	case EventIssues:
		target = new(github.IssuesEvent)
	case EventIssueComment:
		target = new(github.IssueCommentEvent)
	case EventRelease:
		target = new(github.ReleaseEvent)
	default:
		return nil
	}

	if v, err := github.ParseWebHook(event.EventType, event.Payload); err == nil {
		return v
	}

	if !bytes.HasPrefix(bytes.TrimSpace(event.Payload), []byte("{")) {
		return nil
	}
	decodeLenient(event.Payload, reflect.ValueOf(target).Elem())
	return target
}

// decodeLenient stores raw into v, descending into objects and arrays when a
// strict decode fails so that only the offending values are dropped. It
// reports whether anything was stored.
func decodeLenient(raw json.RawMessage, v reflect.Value) bool {
	fresh := reflect.New(v.Type())
	err := json.Unmarshal(raw, fresh.Interface())
	var typeErr *json.UnmarshalTypeError
	if err == nil || errors.As(err, &typeErr) {
		// Type mismatches are skipped by encoding/json itself.
		v.Set(fresh.Elem())
		return true
	}

	switch v.Kind() {
	case reflect.Pointer:
		elem := reflect.New(v.Type().Elem())
		if !decodeLenient(raw, elem.Elem()) {
			return false
		}
		v.Set(elem)
		return true

	case reflect.Struct:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return false
		}
		var stored bool
		for key, value := range fields {
			if f, ok := fieldByJSONName(v, key); ok && decodeLenient(value, f) {
				stored = true
			}
		}
		return stored

	case reflect.Slice:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return false
		}
		out := reflect.MakeSlice(v.Type(), 0, len(items))
		for _, item := range items {
			elem := reflect.New(v.Type().Elem()).Elem()
			if decodeLenient(item, elem) {
				out = reflect.Append(out, elem)
			}
		}
		v.Set(out)
		return true
	}
	return false
}

// fieldByJSONName finds the settable struct field tagged with name.
func fieldByJSONName(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if tag == "-" {
			continue
		}
		if tag == "" {
			tag = sf.Name
		}
		if strings.EqualFold(tag, name) {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// Encode serializes a built message. HTML characters are left unescaped so
// links and comparison arrows reach the destination verbatim.
func Encode(v any) (json.RawMessage, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// truncate caps s at max characters, replacing the tail with an ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-len(ellipsis)]) + ellipsis
}

// firstNonEmpty returns the first non-empty value.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func branchName(ref string) string {
	return strings.TrimPrefix(ref, headsPrefix)
}

func shortSHA(sha string) string {
	r := []rune(sha)
	if len(r) > 7 {
		return string(r[:7])
	}
	return sha
}

// number renders an issue or pull request number, "?" when absent.
func number(n int) string {
	if n == 0 {
		return "?"
	}
	return strconv.Itoa(n)
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// latestCommitMessage prefers the last listed commit and falls back to the
// head commit.
func latestCommitMessage(p *github.PushEvent) string {
	if n := len(p.Commits); n > 0 {
		if msg := p.Commits[n-1].GetMessage(); msg != "" {
			return msg
		}
	}
	return p.GetHeadCommit().GetMessage()
}

func pushBranch(event *events.Event, p *github.PushEvent) string {
	return branchName(firstNonEmpty(event.RefValue(), p.GetRef(), "unknown ref"))
}
