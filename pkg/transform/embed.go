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

// Embed colors.
const (
	ColorGeneric = 0x00ff99
	ColorMerged  = 0x6f42c1
	ColorClosed  = 0xcb2431
	ColorOpen    = 0x0366d6
	ColorComment = 0x6f42c1
	ColorRelease = 0x28a745
)

const (
	bodyLimit    = 300
	releaseLimit = 600
	commitLimit  = 300
	maxLabels    = 5
)

// EmbedMessage is a rich embed webhook body.
type EmbedMessage struct {
	Content string   `json:"content"`
	Embeds  []*Embed `json:"embeds"`
}

// Embed is a single rich card.
type Embed struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Fields      []*EmbedField `json:"fields,omitempty"`
	Timestamp   string        `json:"timestamp"`
	Color       int           `json:"color"`
}

// EmbedField is a name/value pair rendered inside an embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// BuildEmbed renders the event as a rich embed message.
func BuildEmbed(event *events.Event) *EmbedMessage {
	var embed *Embed
	switch p := decode(event).(type) {
	case *github.PushEvent:
		embed = pushEmbed(event, p)
	case *github.PullRequestEvent:
		embed = pullRequestEmbed(event, p)
	case *github.IssuesEvent:
		embed = issuesEmbed(event, p)
	case *github.IssueCommentEvent:
		embed = issueCommentEmbed(event, p)
	case *github.ReleaseEvent:
		embed = releaseEmbed(event, p)
	default:
		embed = genericEmbed(event)
	}
	embed.Timestamp = timestamp(event.CreatedAt)
	return &EmbedMessage{Embeds: []*Embed{embed}}
}

func genericEmbed(event *events.Event) *Embed {
	var lines []string
	if ref := event.RefValue(); ref != "" {
		lines = append(lines, "Ref: "+ref)
	}
	if actor := event.ActorValue(); actor != "" {
		lines = append(lines, "Actor: "+actor)
	}
	description := strings.Join(lines, "\n")
	if description == "" {
		description = "New GitHub event"
	}

	return &Embed{
		Title:       fmt.Sprintf("[%s] %s", event.Repository, event.EventType),
		Description: description,
		Color:       ColorGeneric,
	}
}

func pushEmbed(event *events.Event, p *github.PushEvent) *Embed {
	branch := pushBranch(event, p)
	pusher := firstNonEmpty(event.ActorValue(), p.GetPusher().GetName(), unknown)
	message := firstNonEmpty(latestCommitMessage(p), "no message")

	lines := []string{
		fmt.Sprintf("**Branch:** `%s`", branch),
		"**Pusher:** " + pusher,
		fmt.Sprintf("**Commits:** %d", len(p.Commits)),
		"",
		"**Latest commit:**\n" + truncate(message, commitLimit),
	}

	var fields []*EmbedField
	if n := len(p.Commits); n > 0 {
		if id := p.Commits[n-1].GetID(); id != "" {
			fields = append(fields, &EmbedField{Name: "Head SHA", Value: shortSHA(id), Inline: true})
		}
	}
	if compare := p.GetCompare(); compare != "" {
		fields = append(fields, &EmbedField{Name: "Compare", Value: fmt.Sprintf("[View diff](%s)", compare), Inline: true})
	}

	return &Embed{
		Title:       fmt.Sprintf("Push to %s (%s)", event.Repository, branch),
		Description: strings.Join(lines, "\n"),
		Fields:      fields,
		Color:       ColorGeneric,
	}
}

func pullRequestEmbed(event *events.Event, p *github.PullRequestEvent) *Embed {
	pr := p.GetPullRequest()
	repo := firstNonEmpty(p.GetRepo().GetFullName(), event.Repository)
	action := firstNonEmpty(p.GetAction(), "updated")
	author := firstNonEmpty(pr.GetUser().GetLogin(), p.GetSender().GetLogin(), event.ActorValue(), unknown)

	state := firstNonEmpty(pr.GetState(), "open")
	color := ColorOpen
	switch {
	case pr.GetMerged():
		state = "merged"
		color = ColorMerged
	case state == "closed":
		color = ColorClosed
	}

	lines := []string{
		fmt.Sprintf("**Repository:** `%s`", repo),
		"**Author:** " + author,
		fmt.Sprintf("**Base → Head:** `%s` ← `%s`",
			firstNonEmpty(pr.GetBase().GetRef(), unknown),
			firstNonEmpty(pr.GetHead().GetRef(), unknown)),
		"**State:** " + state,
	}
	if body := truncate(pr.GetBody(), bodyLimit); body != "" {
		lines = append(lines, "", "**Description:**\n"+body)
	}

	fields := []*EmbedField{{
		Name:   "Changes",
		Value:  fmt.Sprintf("+%d / -%d (%d files)", pr.GetAdditions(), pr.GetDeletions(), pr.GetChangedFiles()),
		Inline: true,
	}}
	if url := pr.GetHTMLURL(); url != "" {
		fields = append(fields, linkField("View PR", url))
	}

	return &Embed{
		Title: fmt.Sprintf("PR #%s: %s (%s)",
			number(p.GetNumber()), firstNonEmpty(pr.GetTitle(), "Untitled PR"), action),
		Description: strings.Join(lines, "\n"),
		Fields:      fields,
		Color:       color,
	}
}

func issuesEmbed(event *events.Event, p *github.IssuesEvent) *Embed {
	issue := p.GetIssue()
	repo := firstNonEmpty(p.GetRepo().GetFullName(), event.Repository)
	action := firstNonEmpty(p.GetAction(), "updated")
	author := firstNonEmpty(issue.GetUser().GetLogin(), p.GetSender().GetLogin(), event.ActorValue(), unknown)
	state := firstNonEmpty(issue.GetState(), "open")

	lines := []string{
		fmt.Sprintf("**Repository:** `%s`", repo),
		"**Author:** " + author,
		"**State:** " + state,
	}
	if labels := labelNames(issue); len(labels) > 0 {
		lines = append(lines, "**Labels:** "+strings.Join(labels, ", "))
	}
	if body := truncate(issue.GetBody(), bodyLimit); body != "" {
		lines = append(lines, "", "**Description:**\n"+body)
	}

	var fields []*EmbedField
	if url := issue.GetHTMLURL(); url != "" {
		fields = append(fields, linkField("View issue", url))
	}

	color := ColorOpen
	if state == "closed" {
		color = ColorClosed
	}

	return &Embed{
		Title: fmt.Sprintf("Issue #%s: %s (%s)",
			number(issue.GetNumber()), firstNonEmpty(issue.GetTitle(), "Untitled issue"), action),
		Description: strings.Join(lines, "\n"),
		Fields:      fields,
		Color:       color,
	}
}

func issueCommentEmbed(event *events.Event, p *github.IssueCommentEvent) *Embed {
	issue := p.GetIssue()
	comment := p.GetComment()
	repo := firstNonEmpty(p.GetRepo().GetFullName(), event.Repository)
	action := firstNonEmpty(p.GetAction(), "created")
	commenter := firstNonEmpty(comment.GetUser().GetLogin(), p.GetSender().GetLogin(), event.ActorValue(), unknown)

	lines := []string{
		fmt.Sprintf("**Repository:** `%s`", repo),
		"**Commenter:** " + commenter,
	}
	if body := truncate(comment.GetBody(), bodyLimit); body != "" {
		lines = append(lines, "", "**Comment:**\n"+body)
	}

	var fields []*EmbedField
	if url := firstNonEmpty(comment.GetHTMLURL(), issue.GetHTMLURL()); url != "" {
		fields = append(fields, linkField("View comment", url))
	}

	return &Embed{
		Title: fmt.Sprintf("Comment on issue #%s: %s (%s)",
			number(issue.GetNumber()), firstNonEmpty(issue.GetTitle(), "Untitled issue"), action),
		Description: strings.Join(lines, "\n"),
		Fields:      fields,
		Color:       ColorComment,
	}
}

func releaseEmbed(event *events.Event, p *github.ReleaseEvent) *Embed {
	release := p.GetRelease()
	repo := firstNonEmpty(p.GetRepo().GetFullName(), event.Repository)
	action := firstNonEmpty(p.GetAction(), "published")
	tag := firstNonEmpty(release.GetTagName(), "untagged")
	name := firstNonEmpty(release.GetName(), tag)

	title := fmt.Sprintf("Release %s (%s)", name, tag)
	var flags []string
	if release.GetDraft() {
		flags = append(flags, "draft")
	}
	if release.GetPrerelease() {
		flags = append(flags, "prerelease")
	}
	if len(flags) > 0 {
		title += fmt.Sprintf(" [%s]", strings.Join(flags, ", "))
	}

	lines := []string{
		fmt.Sprintf("**Repository:** `%s`", repo),
		"**Action:** " + action,
	}
	if notes := truncate(release.GetBody(), releaseLimit); notes != "" {
		lines = append(lines, "", "**Notes:**\n"+notes)
	}

	var fields []*EmbedField
	if url := release.GetHTMLURL(); url != "" {
		fields = append(fields, linkField("View release", url))
	}

	return &Embed{
		Title:       title,
		Description: strings.Join(lines, "\n"),
		Fields:      fields,
		Color:       ColorRelease,
	}
}

func linkField(label, url string) *EmbedField {
	return &EmbedField{Name: "GitHub", Value: fmt.Sprintf("[%s](%s)", label, url), Inline: true}
}

// labelNames returns up to maxLabels non-empty label names, code formatted.
func labelNames(issue *github.Issue) []string {
	if issue == nil {
		return nil
	}
	var out []string
	for _, l := range issue.Labels {
		if name := l.GetName(); name != "" {
			out = append(out, "`"+name+"`")
		}
		if len(out) == maxLabels {
			break
		}
	}
	return out
}
