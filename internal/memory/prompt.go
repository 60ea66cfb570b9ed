package memory

import (
	"slices"
	"strings"

	"github.com/fyrsmithlabs/recall/internal/memlog"
)

const (
	promptPreamble  = "You remember previous conversations. Reflect on those when responding."
	noTriggeredText = "No keyword-based memory summaries triggered."
)

// FormatPrompt lays out c ahead of prompt in the form sent to the
// generation model. Triggered tags appear in sorted order.
func FormatPrompt(c *Context, prompt string) string {
	if c == nil {
		c = &Context{}
	}

	var b strings.Builder
	b.WriteString(promptPreamble)
	b.WriteString("\n\n# Global Summary:\n")
	b.WriteString(c.GlobalSummary)
	b.WriteString("\n\n# Keyword-Triggered Summaries:\n")
	b.WriteString(triggeredText(c.Triggered))
	b.WriteString("\n\n# Relevant Semantic Memories:\n")
	b.WriteString(strings.Join(c.Semantic, "\n\n"))
	b.WriteString("\n\n---\n")
	b.WriteString(prompt)
	return strings.TrimSpace(b.String())
}

func triggeredText(triggered map[string][]memlog.Record) string {
	if len(triggered) == 0 {
		return noTriggeredText
	}
	tags := make([]string, 0, len(triggered))
	for tag := range triggered {
		tags = append(tags, tag)
	}
	slices.Sort(tags)

	sections := make([]string, len(tags))
	for i, tag := range tags {
		rendered := make([]string, len(triggered[tag]))
		for j, r := range triggered[tag] {
			rendered[j] = r.Render()
		}
		sections[i] = "## Summary related to '" + tag + "':\n" + strings.Join(rendered, "\n")
	}
	return strings.Join(sections, "\n\n")
}

// shortTerm renders the last n records with newlines flattened, skipping
// exchanges missing either side.
func shortTerm(records []memlog.Record, n int) string {
	recent := memlog.Tail(records, n)
	parts := make([]string, 0, len(recent))
	for _, r := range recent {
		if flat(r.User) == "" || flat(r.Assistant) == "" {
			continue
		}
		parts = append(parts, r.RenderFlat())
	}
	return strings.Join(parts, "\n\n")
}

func flat(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}
