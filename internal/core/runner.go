package core

// runner.go sequences one run of the change-detection pipeline.
//
// A run either completes, persisting the new baseline, or aborts before the
// store is written. The only failure that does not abort is notification:
// the snapshot is saved anyway so a flaky channel never causes the same rows
// to be reported as new forever.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultSourceTimeout bounds the fetch when no timeout is configured.
const DefaultSourceTimeout = 30 * time.Second

// DefaultNotifyTimeout bounds delivery when no timeout is configured.
const DefaultNotifyTimeout = 15 * time.Second

// RunnerConfig holds everything a Runner needs besides its adapters.
type RunnerConfig struct {
	Profile         Profile
	Decode          DecodeOptions
	SourceURL       string        // Used in error messages only
	SourceTimeout   time.Duration // Bound on Fetch
	NotifyTimeout   time.Duration // Bound on Notify
	AllowEmptyTable bool          // A zero-row table is a valid state
	DryRun          bool          // Log what would be sent; neither notify nor persist
}

// Runner executes runs against a fixed set of adapters.
type Runner struct {
	cfg      RunnerConfig
	fetcher  Fetcher
	notifier Notifier
	store    SnapshotStore
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewRunner creates a Runner. The profile is validated up front so that a
// misconfiguration fails before any network traffic.
func NewRunner(cfg RunnerConfig, fetcher Fetcher, notifier Notifier, store SnapshotStore) (*Runner, error) {
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}
	if fetcher == nil || notifier == nil || store == nil {
		return nil, errors.New("runner requires a fetcher, a notifier and a snapshot store")
	}
	cfg.Profile = cfg.Profile.withDefaults()
	if cfg.SourceTimeout <= 0 {
		cfg.SourceTimeout = DefaultSourceTimeout
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = DefaultNotifyTimeout
	}

	return &Runner{
		cfg:      cfg,
		fetcher:  fetcher,
		notifier: notifier,
		store:    store,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}, nil
}

// SetLogger replaces the base logger (slog.Default by default).
func (r *Runner) SetLogger(l *slog.Logger) {
	if l != nil {
		r.logger = l
	}
}

// prepared is the store-independent part of a run.
type prepared struct {
	table   *RawTable
	roles   RoleMap
	records []Record
}

// prepare fetches, decodes, resolves and keys the current table.
func (r *Runner) prepare(ctx context.Context, logger *slog.Logger) (*prepared, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.SourceTimeout)
	defer cancel()

	start := time.Now()
	payload, err := r.fetcher.Fetch(fetchCtx)
	if err != nil {
		return nil, &FetchError{URL: r.cfg.SourceURL, Err: err}
	}
	logger.Debug("fetched source",
		"bytes", len(payload.Body),
		"encoding", labelOrDefault(payload.Encoding),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	table, err := DecodeTable(payload, r.cfg.Decode)
	if err != nil {
		return nil, err
	}

	roles, err := Resolve(table.Columns, r.cfg.Profile.Rules)
	if err != nil {
		return nil, err
	}
	for role, cols := range roles.Shadowed {
		logger.Warn("column drift: several columns match one role; keeping the first",
			"role", role,
			"kept", roles.Columns[role].Name,
			"ignored", cols,
		)
	}

	records := make([]Record, 0, len(table.Rows))
	for i, cells := range table.Rows {
		if isBlankRow(cells) {
			continue
		}
		row := Canonicalize(table, roles, i)
		records = append(records, Record{Key: DeriveKey(row, r.cfg.Profile.IdentityRoles), Row: row})
	}

	return &prepared{table: table, roles: roles, records: records}, nil
}

// Run performs one complete run.
//
// Order: fetch -> decode -> resolve -> key -> load prior -> reconcile ->
// notify (unless first run) -> save. Any error returned is fatal and
// guarantees the store was not written. A failed notification is reported
// in RunResult.NotifyErr instead.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	runID := r.newID()
	ctx = ContextWithRunID(ctx, runID)
	logger := r.logger.With("run_id", runID)

	logger.Info("run started", "profile", r.cfg.Profile.Name, "dry_run", r.cfg.DryRun)

	p, err := r.prepare(ctx, logger)
	if err != nil {
		return nil, err
	}

	if len(p.records) == 0 && !r.cfg.AllowEmptyTable {
		return nil, &EmptyPayloadError{Reason: "table has a header but no data rows"}
	}

	prior, err := r.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNoSnapshot):
		prior = nil
	case err != nil:
		return nil, &StoreError{Op: "load", Err: err}
	}

	rec := Reconcile(p.records, prior.Keys())

	result := &RunResult{
		RunID:      runID,
		TotalRows:  len(p.records),
		NewRecords: rec.New,
		IsFirstRun: rec.IsFirstRun,
	}

	switch {
	case rec.IsFirstRun:
		logger.Info("establishing baseline; notification suppressed",
			"rows", len(p.records),
			"new", len(rec.New),
		)
	case len(rec.New) == 0:
		logger.Info("no new rows", "rows", len(p.records))
	case r.cfg.DryRun:
		logger.Info("dry run: would notify", "new", len(rec.New))
		for _, nr := range rec.New {
			logger.Info("dry run: new record", "key", string(nr.Key))
		}
	default:
		result.NotifyErr = r.notify(ctx, logger, runID, p.roles, rec.New)
		result.Notified = result.NotifyErr == nil
	}

	if r.cfg.DryRun {
		result.Duration = time.Since(start)
		logger.Info("dry run complete; snapshot not saved", "duration_ms", result.Duration.Milliseconds())
		return result, nil
	}

	snap := &Snapshot{
		RunID:   runID,
		TakenAt: r.now().UTC(),
		Roles:   p.roles.Roles(r.cfg.Profile.Rules),
		Records: p.records,
	}
	if err := r.store.Save(ctx, snap); err != nil {
		return nil, &StoreError{Op: "save", Err: err}
	}

	result.Duration = time.Since(start)
	logger.Info("run completed",
		"rows", result.TotalRows,
		"new", len(result.NewRecords),
		"first_run", result.IsFirstRun,
		"notified", result.Notified,
		"duration_ms", result.Duration.Milliseconds(),
	)

	return result, nil
}

// notify delivers new records within NotifyTimeout. Failures are logged and
// returned as *NotificationError; they never abort the run.
func (r *Runner) notify(ctx context.Context, logger *slog.Logger, runID string, roles RoleMap, records []Record) error {
	notifyCtx, cancel := context.WithTimeout(ctx, r.cfg.NotifyTimeout)
	defer cancel()

	msg := Notification{
		RunID:        runID,
		Title:        r.cfg.Profile.Title,
		Records:      records,
		Roles:        roles,
		DisplayRoles: r.cfg.Profile.DisplayRoles,
	}

	start := time.Now()
	if err := r.notifier.Notify(notifyCtx, msg); err != nil {
		nerr := &NotificationError{Records: len(records), Err: err}
		logger.Error("notification failed; snapshot will still be saved",
			"error", nerr,
			"code", ErrorCode(nerr),
		)
		return nerr
	}

	logger.Info("notification sent",
		"new", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// CheckReport describes how the current remote table resolves.
type CheckReport struct {
	Columns    []string // Headers as received
	Normalized []string // Headers after NormalizeColumnName
	Roles      RoleMap
	Rows       int // Non-blank data rows
	SampleKeys []IdentityKey
}

// Check fetches and resolves the remote table without touching the store.
func (r *Runner) Check(ctx context.Context, sample int) (*CheckReport, error) {
	p, err := r.prepare(ctx, r.logger)
	if err != nil {
		return nil, err
	}

	report := &CheckReport{
		Columns:    p.table.Columns,
		Normalized: make([]string, len(p.table.Columns)),
		Roles:      p.roles,
		Rows:       len(p.records),
	}
	for i, c := range p.table.Columns {
		report.Normalized[i] = NormalizeColumnName(c)
	}
	for i := 0; i < sample && i < len(p.records); i++ {
		report.SampleKeys = append(report.SampleKeys, p.records[i].Key)
	}
	return report, nil
}

// String formats the summary line printed after a run.
func (res *RunResult) String() string {
	switch {
	case res.IsFirstRun:
		return fmt.Sprintf("baseline established with %d rows (run %s)", res.TotalRows, res.RunID)
	case len(res.NewRecords) == 0:
		return fmt.Sprintf("no new rows among %d (run %s)", res.TotalRows, res.RunID)
	case res.NotifyErr != nil:
		return fmt.Sprintf("%d new rows, notification failed: %v (run %s)", len(res.NewRecords), res.NotifyErr, res.RunID)
	case !res.Notified:
		return fmt.Sprintf("%d new rows, not delivered (run %s)", len(res.NewRecords), res.RunID)
	default:
		return fmt.Sprintf("%d new rows notified (run %s)", len(res.NewRecords), res.RunID)
	}
}
