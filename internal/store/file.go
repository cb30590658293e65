package store

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/ceespwatch/internal/core"
)

var _ Store = (*FileStore)(nil)

// keyColumn is the header of the identity key column in history files.
const keyColumn = "_key"

// FileStore keeps the snapshot in a CSV file:
//
//	# run_id=4f1c... taken_at=2024-03-01T08:00:00Z
//	_key,name,active_ingredient,indication
//	Keytruda|pembrolizumab|CBNPC,Keytruda,pembrolizumab,CBNPC
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the history file path.
func (s *FileStore) Path() string { return s.path }

// Close implements Store.
func (s *FileStore) Close() error { return nil }

// Load reads the history file.
func (s *FileStore) Load(ctx context.Context) (*core.Snapshot, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	return readSnapshot(f)
}

func readSnapshot(r io.Reader) (*core.Snapshot, error) {
	br := bufio.NewReader(r)
	snap := &core.Snapshot{}

	// Optional metadata line
	if b, err := br.Peek(1); err == nil && b[0] == '#' {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read history metadata: %w", err)
		}
		parseMeta(strings.TrimSpace(strings.TrimPrefix(line, "#")), snap)
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read history header: %w", err)
	}
	if len(header) == 0 || header[0] != keyColumn {
		return nil, fmt.Errorf("history file has no %s column; move it aside to establish a new baseline", keyColumn)
	}
	for _, h := range header[1:] {
		snap.Roles = append(snap.Roles, core.Role(h))
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read history row: %w", err)
		}
		row := make(core.CanonicalRow, len(snap.Roles))
		for i, role := range snap.Roles {
			if i+1 < len(rec) {
				row[role] = rec[i+1]
			} else {
				row[role] = ""
			}
		}
		snap.Records = append(snap.Records, core.Record{Key: core.IdentityKey(rec[0]), Row: row})
	}

	return snap, nil
}

func parseMeta(line string, snap *core.Snapshot) {
	for _, field := range strings.Fields(line) {
		k, v, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch k {
		case "run_id":
			snap.RunID = v
		case "taken_at":
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				snap.TakenAt = t
			}
		}
	}
}

// Save writes the snapshot to a temporary file in the same directory, syncs
// it and renames it over the history file.
func (s *FileStore) Save(ctx context.Context, snap *core.Snapshot) (err error) {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err = writeSnapshot(tmp, snap); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func writeSnapshot(w io.Writer, snap *core.Snapshot) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# run_id=%s taken_at=%s\n", snap.RunID, snap.TakenAt.UTC().Format(time.RFC3339))

	cw := csv.NewWriter(bw)
	header := make([]string, 0, len(snap.Roles)+1)
	header = append(header, keyColumn)
	for _, r := range snap.Roles {
		header = append(header, string(r))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write history header: %w", err)
	}

	rec := make([]string, len(header))
	for _, r := range snap.Records {
		rec[0] = string(r.Key)
		for i, role := range snap.Roles {
			rec[i+1] = r.Row[role]
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write history row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}
