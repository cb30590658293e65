package core

import (
	"context"
	"errors"
)

// ErrNoSnapshot is returned by a SnapshotStore when no run has persisted a
// baseline yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// Fetcher retrieves the raw tabular payload from the remote source.
type Fetcher interface {
	Fetch(ctx context.Context) (Payload, error)
}

// Notifier delivers new records to humans.
type Notifier interface {
	Notify(ctx context.Context, msg Notification) error
}

// SnapshotStore persists the last known snapshot.
//
// Load returns ErrNoSnapshot when nothing was saved yet. Save replaces the
// whole snapshot atomically: a crash mid-write leaves the old or the new
// snapshot, never a truncated one.
type SnapshotStore interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}
