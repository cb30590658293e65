// Package store persists the baseline snapshot between runs.
//
// Three backends share one contract: Load returns ErrNoSnapshot when no
// baseline exists, and Save replaces the baseline atomically so a failed
// write leaves the previous one intact.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JonMunkholm/ceespwatch/internal/config"
	"github.com/JonMunkholm/ceespwatch/internal/core"
)

// ErrNoSnapshot is returned by Load when no baseline has been saved yet.
var ErrNoSnapshot = core.ErrNoSnapshot

// Store is a snapshot store that holds resources.
type Store interface {
	core.SnapshotStore
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "file":
		return NewFileStore(cfg.Path), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path)
	case "postgres":
		return OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// encodeRow serializes the row's values as a JSON object keyed by role.
func encodeRow(row core.CanonicalRow) (string, error) {
	m := make(map[string]string, len(row))
	for r, v := range row {
		m[string(r)] = v
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode row: %w", err)
	}
	return string(b), nil
}

func decodeRow(s string) (core.CanonicalRow, error) {
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode row: %w", err)
	}
	row := make(core.CanonicalRow, len(m))
	for r, v := range m {
		row[core.Role(r)] = v
	}
	return row, nil
}

func encodeRoles(roles []core.Role) (string, error) {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	b, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("encode roles: %w", err)
	}
	return string(b), nil
}

func decodeRoles(s string) ([]core.Role, error) {
	var names []string
	if err := json.Unmarshal([]byte(s), &names); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	roles := make([]core.Role, len(names))
	for i, n := range names {
		roles[i] = core.Role(n)
	}
	return roles, nil
}
