package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeFetcher struct {
	body  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(ctx context.Context) (Payload, error) {
	f.calls++
	if f.err != nil {
		return Payload{}, f.err
	}
	return Payload{Body: []byte(f.body)}, nil
}

type fakeNotifier struct {
	err  error
	sent []Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, msg Notification) error {
	n.sent = append(n.sent, msg)
	return n.err
}

type memStore struct {
	mu      sync.Mutex
	snap    *Snapshot
	loadErr error
	saveErr error
	loads   int
	saves   int
}

func (s *memStore) Load(ctx context.Context) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	if s.snap == nil {
		return nil, ErrNoSnapshot
	}
	return s.snap, nil
}

func (s *memStore) Save(ctx context.Context, snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snap = snap
	return nil
}

const testHeader = "Nom commercial;Dénomination commune internationale;Indication;Lien\n"

func csvTable(rows ...string) string {
	return testHeader + strings.Join(rows, "\n") + "\n"
}

func newTestRunner(t *testing.T, cfg RunnerConfig, f Fetcher, n Notifier, s SnapshotStore) *Runner {
	t.Helper()
	if cfg.Profile.Name == "" {
		cfg.Profile = testProfile()
	}
	r, err := NewRunner(cfg, f, n, s)
	if err != nil {
		t.Fatalf("NewRunner() error = %v", err)
	}
	seq := 0
	r.newID = func() string {
		seq++
		return fmt.Sprintf("run-%d", seq)
	}
	r.now = func() time.Time { return time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC) }
	return r
}

func TestRunner_TwoRuns(t *testing.T) {
	fetcher := &fakeFetcher{body: csvTable("A;x;i1;u1", "B;y;i2;u2")}
	notifier := &fakeNotifier{}
	store := &memStore{}
	r := newTestRunner(t, RunnerConfig{}, fetcher, notifier, store)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if !res.IsFirstRun {
		t.Error("first run should be flagged IsFirstRun")
	}
	if len(notifier.sent) != 0 {
		t.Errorf("first run must not notify, sent %d", len(notifier.sent))
	}
	if store.snap == nil || len(store.snap.Records) != 2 {
		t.Fatalf("first run should persist the full table, got %+v", store.snap)
	}
	if store.snap.RunID != "run-1" {
		t.Errorf("snapshot RunID = %q, want run-1", store.snap.RunID)
	}

	fetcher.body = csvTable("A;x;i1;u1", "C;z;i3;u3", "B;y;i2;u2-changed", "D;w;i4;u4")

	res, err = r.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if res.IsFirstRun {
		t.Error("second run should not be a first run")
	}
	if got := keysOf(res.NewRecords); len(got) != 2 || got[0] != "C|z|i3" || got[1] != "D|w|i4" {
		t.Errorf("NewRecords = %v, want [C|z|i3 D|w|i4]", got)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	msg := notifier.sent[0]
	if msg.RunID != "run-2" || msg.Title != "New rows" || len(msg.Records) != 2 {
		t.Errorf("unexpected notification: %+v", msg)
	}
	if got := msg.VisibleRoles(); len(got) != 4 || got[3] != "link" {
		t.Errorf("VisibleRoles() = %v", got)
	}
	if !res.Notified || res.NotifyErr != nil {
		t.Errorf("Notified = %v, NotifyErr = %v", res.Notified, res.NotifyErr)
	}
	if len(store.snap.Records) != 4 {
		t.Errorf("snapshot should hold 4 records, got %d", len(store.snap.Records))
	}
	if got := store.snap.Roles; len(got) != 4 || got[0] != "name" {
		t.Errorf("snapshot roles = %v", got)
	}

	// Third run with the same table reports nothing.
	res, err = r.Run(context.Background())
	if err != nil {
		t.Fatalf("third Run() error = %v", err)
	}
	if len(res.NewRecords) != 0 || len(notifier.sent) != 1 {
		t.Errorf("unchanged table should notify nothing: new=%d sent=%d", len(res.NewRecords), len(notifier.sent))
	}
}

func TestRunner_ColumnDriftKeepsIdentity(t *testing.T) {
	fetcher := &fakeFetcher{body: csvTable("A;x;i1;u1")}
	notifier := &fakeNotifier{}
	store := &memStore{}
	r := newTestRunner(t, RunnerConfig{}, fetcher, notifier, store)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	fetcher.body = "Lien,INDICATION ,DENOMINATION COMMUNE,Nom  Commercial\nu1, i1 ,x,A\n"
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() after drift error = %v", err)
	}
	if len(res.NewRecords) != 0 {
		t.Errorf("renamed and reordered columns must not create new rows, got %v", keysOf(res.NewRecords))
	}
}

func TestRunner_MissingRoleAbortsWithoutSave(t *testing.T) {
	store := &memStore{snap: &Snapshot{Records: records("A|x|i1")}}
	notifier := &fakeNotifier{}
	fetcher := &fakeFetcher{body: "Nom commercial;Indication\nA;i1\n"}
	r := newTestRunner(t, RunnerConfig{}, fetcher, notifier, store)

	_, err := r.Run(context.Background())

	var schemaErr *SchemaResolutionError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected *SchemaResolutionError, got %T: %v", err, err)
	}
	if len(schemaErr.Missing) != 1 || schemaErr.Missing[0] != "dci" {
		t.Errorf("Missing = %v, want [dci]", schemaErr.Missing)
	}
	if store.saves != 0 {
		t.Error("schema failure must not touch the stored snapshot")
	}
	if len(notifier.sent) != 0 {
		t.Error("schema failure must not notify")
	}
}

func TestRunner_FetchErrorSkipsStore(t *testing.T) {
	store := &memStore{}
	fetcher := &fakeFetcher{err: errors.New("503 Service Unavailable")}
	r := newTestRunner(t, RunnerConfig{SourceURL: "https://example.org/a.csv"}, fetcher, &fakeNotifier{}, store)

	_, err := r.Run(context.Background())

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError, got %T: %v", err, err)
	}
	if fetchErr.URL != "https://example.org/a.csv" {
		t.Errorf("URL = %q", fetchErr.URL)
	}
	if store.loads != 0 || store.saves != 0 {
		t.Errorf("store accessed on fetch failure: loads=%d saves=%d", store.loads, store.saves)
	}
}

func TestRunner_EmptyTable(t *testing.T) {
	t.Run("aborts by default", func(t *testing.T) {
		store := &memStore{snap: &Snapshot{Records: records("A|x|i1")}}
		r := newTestRunner(t, RunnerConfig{}, &fakeFetcher{body: testHeader + ";;;\n"}, &fakeNotifier{}, store)

		_, err := r.Run(context.Background())

		var emptyErr *EmptyPayloadError
		if !errors.As(err, &emptyErr) {
			t.Fatalf("expected *EmptyPayloadError, got %T: %v", err, err)
		}
		if store.saves != 0 {
			t.Error("an empty table must not overwrite the baseline")
		}
	})

	t.Run("allowed", func(t *testing.T) {
		store := &memStore{snap: &Snapshot{Records: records("A|x|i1")}}
		r := newTestRunner(t, RunnerConfig{AllowEmptyTable: true}, &fakeFetcher{body: testHeader}, &fakeNotifier{}, store)

		res, err := r.Run(context.Background())
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if res.TotalRows != 0 || store.saves != 1 || len(store.snap.Records) != 0 {
			t.Errorf("empty table should be persisted: rows=%d saves=%d", res.TotalRows, store.saves)
		}
	})
}

func TestRunner_NotifyFailureStillSaves(t *testing.T) {
	store := &memStore{snap: &Snapshot{Records: records("A|x|i1")}}
	notifier := &fakeNotifier{err: errors.New("webhook returned 500")}
	r := newTestRunner(t, RunnerConfig{}, &fakeFetcher{body: csvTable("A;x;i1;u1", "B;y;i2;u2")}, notifier, store)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, notification failures must not abort", err)
	}

	var notifyErr *NotificationError
	if !errors.As(res.NotifyErr, &notifyErr) {
		t.Fatalf("NotifyErr = %T, want *NotificationError", res.NotifyErr)
	}
	if notifyErr.Records != 1 {
		t.Errorf("NotificationError.Records = %d, want 1", notifyErr.Records)
	}
	if res.Notified {
		t.Error("Notified should be false")
	}
	if store.saves != 1 || len(store.snap.Records) != 2 {
		t.Errorf("snapshot should be saved after a failed notification: saves=%d", store.saves)
	}
	if !strings.Contains(res.String(), "notification failed") {
		t.Errorf("String() = %q", res.String())
	}
}

func TestRunner_StoreErrors(t *testing.T) {
	t.Run("load", func(t *testing.T) {
		store := &memStore{loadErr: errors.New("permission denied")}
		notifier := &fakeNotifier{}
		r := newTestRunner(t, RunnerConfig{}, &fakeFetcher{body: csvTable("A;x;i1;u1")}, notifier, store)

		_, err := r.Run(context.Background())

		var storeErr *StoreError
		if !errors.As(err, &storeErr) || storeErr.Op != "load" {
			t.Fatalf("expected load *StoreError, got %v", err)
		}
		if store.saves != 0 || len(notifier.sent) != 0 {
			t.Error("an unreadable baseline must not be treated as a first run")
		}
	})

	t.Run("save", func(t *testing.T) {
		store := &memStore{saveErr: errors.New("disk full")}
		r := newTestRunner(t, RunnerConfig{}, &fakeFetcher{body: csvTable("A;x;i1;u1")}, &fakeNotifier{}, store)

		_, err := r.Run(context.Background())

		var storeErr *StoreError
		if !errors.As(err, &storeErr) || storeErr.Op != "save" {
			t.Fatalf("expected save *StoreError, got %v", err)
		}
	})
}

func TestRunner_DryRun(t *testing.T) {
	prior := &Snapshot{RunID: "old", Records: records("A|x|i1")}
	store := &memStore{snap: prior}
	notifier := &fakeNotifier{}
	r := newTestRunner(t, RunnerConfig{DryRun: true}, &fakeFetcher{body: csvTable("A;x;i1;u1", "B;y;i2;u2")}, notifier, store)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res.NewRecords) != 1 {
		t.Errorf("NewRecords = %v, want one", keysOf(res.NewRecords))
	}
	if len(notifier.sent) != 0 {
		t.Error("dry run must not notify")
	}
	if store.saves != 0 || store.snap != prior {
		t.Error("dry run must not persist")
	}
}

func TestRunner_BlankRowsSkipped(t *testing.T) {
	store := &memStore{}
	r := newTestRunner(t, RunnerConfig{}, &fakeFetcher{body: csvTable("A;x;i1;u1", ";;;", "  ; ;;", "B;y;i2;u2")}, &fakeNotifier{}, store)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.TotalRows != 2 {
		t.Errorf("TotalRows = %d, want 2", res.TotalRows)
	}
}

func TestRunner_Check(t *testing.T) {
	store := &memStore{}
	r := newTestRunner(t, RunnerConfig{}, &fakeFetcher{body: csvTable("A;x;i1;u1", "B;y;i2;u2", "C;z;i3;u3")}, &fakeNotifier{}, store)

	report, err := r.Check(context.Background(), 2)
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if report.Rows != 3 {
		t.Errorf("Rows = %d, want 3", report.Rows)
	}
	if len(report.SampleKeys) != 2 || report.SampleKeys[0] != "A|x|i1" {
		t.Errorf("SampleKeys = %v", report.SampleKeys)
	}
	if report.Normalized[1] != "denomination commune internationale" {
		t.Errorf("Normalized[1] = %q", report.Normalized[1])
	}
	if store.loads != 0 || store.saves != 0 {
		t.Error("Check must not touch the store")
	}
}

func TestNewRunner_Validation(t *testing.T) {
	if _, err := NewRunner(RunnerConfig{Profile: Profile{}}, &fakeFetcher{}, &fakeNotifier{}, &memStore{}); err == nil {
		t.Error("NewRunner() should reject an invalid profile")
	}
	if _, err := NewRunner(RunnerConfig{Profile: testProfile()}, nil, &fakeNotifier{}, &memStore{}); err == nil {
		t.Error("NewRunner() should reject a nil fetcher")
	}
}

func TestRunResult_String(t *testing.T) {
	tests := []struct {
		res  RunResult
		want string
	}{
		{RunResult{RunID: "r", TotalRows: 5, IsFirstRun: true}, "baseline established with 5 rows (run r)"},
		{RunResult{RunID: "r", TotalRows: 5}, "no new rows among 5 (run r)"},
		{RunResult{RunID: "r", NewRecords: records("A"), Notified: true}, "1 new rows notified (run r)"},
		{RunResult{RunID: "r", NewRecords: records("A")}, "1 new rows, not delivered (run r)"},
	}

	for _, tt := range tests {
		if got := tt.res.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

// blockingFetcher waits for its context like an unresponsive server.
type blockingFetcher struct{}

func (blockingFetcher) Fetch(ctx context.Context) (Payload, error) {
	<-ctx.Done()
	return Payload{}, ctx.Err()
}

// blockingNotifier waits for its context like a hung webhook.
type blockingNotifier struct{ calls int }

func (n *blockingNotifier) Notify(ctx context.Context, msg Notification) error {
	n.calls++
	<-ctx.Done()
	return ctx.Err()
}

func TestRunner_SourceTimeoutAbortsBeforeStore(t *testing.T) {
	store := &memStore{}
	r := newTestRunner(t, RunnerConfig{SourceTimeout: 20 * time.Millisecond}, blockingFetcher{}, &fakeNotifier{}, store)

	start := time.Now()
	_, err := r.Run(context.Background())

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Run() error = %v, want *FetchError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want it to wrap context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run() took %v, the source timeout was not applied", elapsed)
	}
	if store.loads != 0 || store.saves != 0 {
		t.Errorf("store touched after a fetch timeout: loads=%d saves=%d", store.loads, store.saves)
	}
}

func TestRunner_NotifyTimeoutStillSaves(t *testing.T) {
	store := &memStore{snap: &Snapshot{Records: records("A|x|i1")}}
	notifier := &blockingNotifier{}
	r := newTestRunner(t, RunnerConfig{NotifyTimeout: 20 * time.Millisecond},
		&fakeFetcher{body: csvTable("A;x;i1;u1", "B;y;i2;u2")}, notifier, store)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, a notification timeout must not be fatal", err)
	}

	var notifyErr *NotificationError
	if !errors.As(res.NotifyErr, &notifyErr) {
		t.Fatalf("NotifyErr = %v, want *NotificationError", res.NotifyErr)
	}
	if !errors.Is(res.NotifyErr, context.DeadlineExceeded) {
		t.Errorf("NotifyErr = %v, want it to wrap context.DeadlineExceeded", res.NotifyErr)
	}
	if res.Notified {
		t.Error("Notified should be false after a timeout")
	}
	if notifier.calls != 1 {
		t.Errorf("notifier calls = %d, want 1", notifier.calls)
	}
	if store.saves != 1 || len(store.snap.Records) != 2 {
		t.Errorf("snapshot should be saved with both rows: saves=%d snap=%+v", store.saves, store.snap)
	}
}
