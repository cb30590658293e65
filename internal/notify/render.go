package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/ceespwatch/internal/core"
	"github.com/JonMunkholm/ceespwatch/internal/web/templates"
)

// alertPrefix opens Teams and log messages.
const alertPrefix = "\U0001F6A8 "

// values returns the record's values for the visible roles, in order.
func values(msg core.Notification, rec core.Record) []string {
	roles := msg.VisibleRoles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = rec.Row[r]
	}
	return out
}

// Text renders the plain-text body: a title line followed by one
// "a | b | c" line per record.
func Text(msg core.Notification) string {
	var b strings.Builder
	b.WriteString(msg.Title)
	b.WriteString(":\n\n")
	for _, rec := range msg.Records {
		b.WriteString(strings.Join(values(msg, rec), " | "))
		b.WriteByte('\n')
	}
	return b.String()
}

// Markdown renders the Teams body: a bold title and one bullet per record
// with the first visible value in bold.
func Markdown(msg core.Notification) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s**%s**\n\n", alertPrefix, escapeMarkdown(msg.Title))
	for _, rec := range msg.Records {
		vals := values(msg, rec)
		b.WriteString("- ")
		for i, v := range vals {
			if i == 0 {
				fmt.Fprintf(&b, "**%s**", escapeMarkdown(v))
				continue
			}
			b.WriteString(" | ")
			b.WriteString(escapeMarkdown(v))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

var markdownEscaper = strings.NewReplacer(`*`, `\*`, `_`, `\_`, "`", "\\`", `[`, `\[`, `]`, `\]`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// HTML renders the records as a table. Values that look like URLs become links.
func HTML(msg core.Notification) templ.Component {
	roles := msg.VisibleRoles()
	cols := make([]string, len(roles))
	for i, r := range roles {
		cols[i] = columnLabel(msg.Roles, r)
	}
	rows := make([][]string, len(msg.Records))
	for i, rec := range msg.Records {
		rows[i] = values(msg, rec)
	}
	return templates.NotificationTable(msg.Title, cols, rows)
}

// columnLabel prefers the header as received so readers see familiar names.
func columnLabel(rm core.RoleMap, role core.Role) string {
	if col, ok := rm.Columns[role]; ok && col.Name != "" {
		return col.Name
	}
	return string(role)
}

// renderHTML renders HTML(msg) to a string.
func renderHTML(ctx context.Context, msg core.Notification) (string, error) {
	var b strings.Builder
	if err := HTML(msg).Render(ctx, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}
