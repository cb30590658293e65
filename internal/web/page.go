package web

import (
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/ceespwatch/internal/core"
	"github.com/JonMunkholm/ceespwatch/internal/web/templates"
)

// snapshotPage renders the baseline as an HTML table. A nil snapshot renders
// the "no baseline yet" page.
func snapshotPage(title string, snap *core.Snapshot, limit int) templ.Component {
	return templates.SnapshotPage(snapshotView(title, snap, limit))
}

func snapshotView(title string, snap *core.Snapshot, limit int) templates.SnapshotView {
	if title == "" {
		title = "ceespwatch"
	}
	v := templates.SnapshotView{Title: title}
	if snap == nil {
		v.Empty = true
		return v
	}

	records := snap.Records
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	v.RunID = snap.RunID
	v.TakenAt = snap.TakenAt.UTC().Format(time.RFC3339)
	v.Total = len(snap.Records)
	v.Shown = len(records)
	v.Columns = make([]string, len(snap.Roles))
	for i, role := range snap.Roles {
		v.Columns[i] = string(role)
	}
	v.Rows = make([][]string, len(records))
	for i, rec := range records {
		row := make([]string, len(snap.Roles))
		for j, role := range snap.Roles {
			row[j] = rec.Row[role]
		}
		v.Rows[i] = row
	}
	return v
}
