package web

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/ceespwatch/internal/core"
)

// SnapshotResponse is the body of GET /api/snapshot.
type SnapshotResponse struct {
	RunID   string              `json:"run_id"`
	TakenAt time.Time           `json:"taken_at"`
	Roles   []string            `json:"roles"`
	Count   int                 `json:"count"`
	Records []map[string]string `json:"records"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]string{"status": "ok"})
}

// handleSnapshot returns the stored baseline. ?limit=N caps the records
// returned; count always reports the full size.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	limit := -1
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondErrorJSON(w, core.UserMessage{
				Code:    "REQ001",
				Message: "limit must be a non-negative integer",
			}, http.StatusBadRequest)
			return
		}
		limit = n
	}

	snap, err := s.store.Load(r.Context())
	if err != nil {
		s.respondError(w, r, storeErr(err), statusFor(err))
		return
	}

	writeJSON(w, r, newSnapshotResponse(snap, limit))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.Load(r.Context())
	switch {
	case errors.Is(err, core.ErrNoSnapshot):
		snap = nil
	case err != nil:
		s.respondError(w, r, storeErr(err), statusFor(err))
		return
	}

	templ.Handler(snapshotPage(s.opts.Title, snap, s.opts.PageLimit)).ServeHTTP(w, r)
}

// storeErr tags a load failure so it maps to the store user message.
func storeErr(err error) error {
	if errors.Is(err, core.ErrNoSnapshot) {
		return err
	}
	return &core.StoreError{Op: "load", Err: err}
}

func newSnapshotResponse(snap *core.Snapshot, limit int) SnapshotResponse {
	resp := SnapshotResponse{
		RunID:   snap.RunID,
		TakenAt: snap.TakenAt,
		Roles:   make([]string, len(snap.Roles)),
		Count:   len(snap.Records),
	}
	for i, role := range snap.Roles {
		resp.Roles[i] = string(role)
	}

	records := snap.Records
	if limit >= 0 && limit < len(records) {
		records = records[:limit]
	}
	resp.Records = make([]map[string]string, len(records))
	for i, rec := range records {
		m := make(map[string]string, len(snap.Roles)+1)
		m["_key"] = string(rec.Key)
		for _, role := range snap.Roles {
			m[string(role)] = rec.Row[role]
		}
		resp.Records[i] = m
	}
	return resp
}
