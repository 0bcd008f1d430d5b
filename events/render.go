package events

import (
	"fmt"
	"strings"
)

// markdownEscaper escapes every character reserved by Telegram
// MarkdownV2 so that arbitrary branch, tag and repository names cannot
// corrupt formatting or inject markup of their own.
var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]",
	"(", "\\(", ")", "\\)", "~", "\\~", "`", "\\`",
	">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}",
	".", "\\.", "!", "\\!",
)

// Escape returns s with all MarkdownV2 reserved characters escaped.
func Escape(s string) string {
	return markdownEscaper.Replace(s)
}

// Render produces the full notification text for an event on the given
// repository, in MarkdownV2: a one-line category header, the repository
// link, and a details block with commit links. ok is false for
// NoChanges, which renders to nothing.
func Render(repoURL string, e Event) (text string, ok bool) {
	header, ok := headerLine(e)
	if !ok {
		return "", false
	}

	baseURL := strings.TrimSuffix(repoURL, ".git")
	return fmt.Sprintf("%s\nRepository: [%s](%s)\n%s",
		header,
		Escape(shortRepoName(baseURL)),
		Escape(baseURL),
		detailsBlock(baseURL, e),
	), true
}

func headerLine(e Event) (string, bool) {
	switch ev := e.(type) {
	case NewBranch:
		return fmt.Sprintf("🌿 New Branch: *%s*", Escape(ShortRefName(ev.Name))), true
	case NewTag:
		return fmt.Sprintf("🏷️ New Tag: *%s*", Escape(ShortRefName(ev.Name))), true
	case BranchUpdated:
		return fmt.Sprintf("🚀 Branch Updated: *%s*", Escape(ShortRefName(ev.Name))), true
	case NewPullRequest:
		return fmt.Sprintf("📦 New Pull Request: *\\#%d*", ev.ID), true
	case PullRequestUpdated:
		return fmt.Sprintf("📥 Pull Request Updated: *\\#%d*", ev.ID), true
	case NoChanges:
		return "", false
	}
	return "", false
}

func detailsBlock(baseURL string, e Event) string {
	switch ev := e.(type) {
	case NewBranch:
		name := ShortRefName(ev.Name)
		return fmt.Sprintf("Branch: [%s](%s)\nCommit: [%s](%s)",
			Escape(name),
			Escape(baseURL+"/tree/"+name),
			Escape(shortSHA(ev.SHA)),
			Escape(baseURL+"/commit/"+ev.SHA))
	case NewTag:
		name := ShortRefName(ev.Name)
		return fmt.Sprintf("Tag: [%s](%s)\nCommit: [%s](%s)",
			Escape(name),
			Escape(baseURL+"/releases/tag/"+name),
			Escape(shortSHA(ev.SHA)),
			Escape(baseURL+"/commit/"+ev.SHA))
	case BranchUpdated:
		name := ShortRefName(ev.Name)
		return fmt.Sprintf("Branch: [%s](%s/tree/%s)\nChanges: [compare](%s)",
			Escape(name),
			Escape(baseURL),
			Escape(name),
			Escape(fmt.Sprintf("%s/compare/%s...%s", baseURL, ev.OldSHA, ev.NewSHA)))
	case NewPullRequest:
		return fmt.Sprintf("Pull Request: [\\#%d](%s)", ev.ID, Escape(fmt.Sprintf("%s/pull/%d", baseURL, ev.ID)))
	case PullRequestUpdated:
		return fmt.Sprintf("Pull Request: [\\#%d](%s)", ev.ID, Escape(fmt.Sprintf("%s/pull/%d", baseURL, ev.ID)))
	case NoChanges:
		return ""
	}
	return ""
}

// ShortRefName strips the tracked namespace prefix from a fully
// qualified reference name for display.
func ShortRefName(name string) string {
	name = strings.TrimPrefix(name, BranchPrefix)
	name = strings.TrimPrefix(name, TagPrefix)
	name = strings.TrimPrefix(name, PullPrefix)
	return name
}

// shortRepoName is the last two path segments of the repository URL,
// e.g. "owner/repo".
func shortRepoName(baseURL string) string {
	parts := strings.Split(baseURL, "/")
	if len(parts) < 2 {
		return baseURL
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
