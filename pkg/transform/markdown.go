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

package transform

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v56/github"

	"github.com/abcxyz/github-notifier/pkg/events"
)

const textLimit = 200

var newlines = strings.NewReplacer("\r\n", " ", "\n", " ")

// MarkdownMessage is a plain text webhook body using inline markdown.
type MarkdownMessage struct {
	Text   string `json:"text"`
	Mrkdwn bool   `json:"mrkdwn"`
}

// BuildMarkdown renders the event as a single markdown text message.
func BuildMarkdown(event *events.Event) *MarkdownMessage {
	header := fmt.Sprintf("*%s* — `%s`", event.Repository, event.EventType)

	var text string
	switch p := decode(event).(type) {
	case *github.PushEvent:
		text = pushText(header, event, p)
	case *github.PullRequestEvent:
		text = pullRequestText(header, event, p)
	case *github.IssuesEvent:
		text = issuesText(header, event, p)
	case *github.IssueCommentEvent:
		text = issueCommentText(header, event, p)
	case *github.ReleaseEvent:
		text = releaseText(header, p)
	default:
		text = genericText(header, event)
	}
	return &MarkdownMessage{Text: text, Mrkdwn: true}
}

func genericText(header string, event *events.Event) string {
	var sb strings.Builder
	sb.WriteString(header)
	if actor := event.ActorValue(); actor != "" {
		fmt.Fprintf(&sb, " by *%s*", actor)
	}
	if ref := event.RefValue(); ref != "" {
		fmt.Fprintf(&sb, " on `%s`", ref)
	}
	return sb.String()
}

// pushText joins its fragments with spaces, unlike the other layouts.
func pushText(header string, event *events.Event, p *github.PushEvent) string {
	parts := []string{fmt.Sprintf("%s on `%s`", header, pushBranch(event, p))}
	if actor := event.ActorValue(); actor != "" {
		parts = append(parts, fmt.Sprintf("by *%s*", actor))
	}
	parts = append(parts, fmt.Sprintf("(%s)", plural(len(p.Commits), "commit")))
	if msg := latestCommitMessage(p); msg != "" {
		parts = append(parts, "\n> "+truncate(msg, textLimit))
	}
	return strings.Join(parts, " ")
}

func pullRequestText(header string, event *events.Event, p *github.PullRequestEvent) string {
	pr := p.GetPullRequest()

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s — PR #%s *%s*", header, number(p.GetNumber()), firstNonEmpty(pr.GetTitle(), "Untitled PR"))
	fmt.Fprintf(&sb, "\n*Action:* %s", firstNonEmpty(p.GetAction(), "updated"))
	fmt.Fprintf(&sb, "\n*Author:* %s",
		firstNonEmpty(pr.GetUser().GetLogin(), p.GetSender().GetLogin(), event.ActorValue(), unknown))
	fmt.Fprintf(&sb, "\n*Base → Head:* `%s` ← `%s`",
		firstNonEmpty(pr.GetBase().GetRef(), unknown),
		firstNonEmpty(pr.GetHead().GetRef(), unknown))
	if url := pr.GetHTMLURL(); url != "" {
		fmt.Fprintf(&sb, "\n<%s|View PR>", url)
	}
	return sb.String()
}

func issuesText(header string, event *events.Event, p *github.IssuesEvent) string {
	issue := p.GetIssue()

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s — Issue #%s *%s*", header, number(issue.GetNumber()), firstNonEmpty(issue.GetTitle(), "Untitled issue"))
	fmt.Fprintf(&sb, "\n*Action:* %s", firstNonEmpty(p.GetAction(), "updated"))
	fmt.Fprintf(&sb, "\n*Author:* %s",
		firstNonEmpty(issue.GetUser().GetLogin(), p.GetSender().GetLogin(), event.ActorValue(), unknown))
	if url := issue.GetHTMLURL(); url != "" {
		fmt.Fprintf(&sb, "\n<%s|View issue>", url)
	}
	return sb.String()
}

func issueCommentText(header string, event *events.Event, p *github.IssueCommentEvent) string {
	issue := p.GetIssue()
	comment := p.GetComment()

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s — Comment on issue #%s *%s*", header, number(issue.GetNumber()), firstNonEmpty(issue.GetTitle(), "Untitled issue"))
	fmt.Fprintf(&sb, "\n*Action:* %s", firstNonEmpty(p.GetAction(), "created"))
	fmt.Fprintf(&sb, "\n*Commenter:* %s",
		firstNonEmpty(comment.GetUser().GetLogin(), p.GetSender().GetLogin(), event.ActorValue(), unknown))
	if body := truncate(comment.GetBody(), textLimit); body != "" {
		fmt.Fprintf(&sb, "\n> %s", newlines.Replace(body))
	}
	if url := firstNonEmpty(comment.GetHTMLURL(), issue.GetHTMLURL()); url != "" {
		fmt.Fprintf(&sb, "\n<%s|View comment>", url)
	}
	return sb.String()
}

func releaseText(header string, p *github.ReleaseEvent) string {
	release := p.GetRelease()
	tag := firstNonEmpty(release.GetTagName(), "untagged")

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s — Release *%s* (`%s`)", header, firstNonEmpty(release.GetName(), tag), tag)
	fmt.Fprintf(&sb, "\n*Action:* %s", firstNonEmpty(p.GetAction(), "published"))
	if url := release.GetHTMLURL(); url != "" {
		fmt.Fprintf(&sb, "\n<%s|View release>", url)
	}
	return sb.String()
}
