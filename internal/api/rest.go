package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/waschgehtab/washd/internal/coordinator"
	"github.com/waschgehtab/washd/internal/models"
	"github.com/waschgehtab/washd/internal/server"
)

// Handler exposes the coordinator over HTTP. Identity arrives as the
// X-User-Id header (the identity provider lives in front of this service);
// display names come from the profile store. Precondition failures answer
// 409 with the current authoritative snapshot so clients resolve to "show
// me the current truth" instead of a dead-end error.
type Handler struct {
	srv *server.Server
	log *zap.Logger
}

func NewHTTPHandler(srv *server.Server, log *zap.Logger) http.Handler {
	h := &Handler{srv: srv, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.handleRegister)
	mux.HandleFunc("GET /status", h.handleStatus)
	mux.HandleFunc("POST /start", h.handleStart)
	mux.HandleFunc("POST /finish", h.handleFinish)
	mux.HandleFunc("POST /accept", h.handleAccept)
	mux.HandleFunc("POST /queue/join", h.handleJoin)
	mux.HandleFunc("POST /queue/leave", h.handleLeave)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	return mux
}

type snapshotResponse struct {
	Status  models.MachineStatus `json:"status"`
	Queue   []models.QueueEntry  `json:"queue"`
	EntryID string               `json:"entry_id,omitempty"`
}

type conflictResponse struct {
	Error    string           `json:"error"`
	Snapshot snapshotResponse `json:"snapshot"`
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := r.Header.Get("X-User-Id")
	if uid == "" {
		h.writeError(w, http.StatusBadRequest, "X-User-Id header required")
		return "", false
	}
	return uid, true
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name required")
		return
	}
	if err := h.srv.Register(r.Context(), uid, req.Name); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uid": uid, "name": req.Name})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.srv.Status(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to read status")
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Status: snap.Status, Queue: snap.Queue})
}

func durationFromBody(r *http.Request) int64 {
	var req struct {
		DurationMs int64 `json:"duration_ms"`
	}
	// Empty body means no timer.
	_ = json.NewDecoder(r.Body).Decode(&req)
	return req.DurationMs
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	snap, err := h.srv.StartWash(r.Context(), uid, durationFromBody(r))
	h.respond(w, "start", snap, "", err)
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	snap, err := h.srv.FinishWash(r.Context(), uid)
	h.respond(w, "finish", snap, "", err)
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	snap, err := h.srv.AcceptHandoff(r.Context(), uid, durationFromBody(r))
	h.respond(w, "accept", snap, "", err)
}

func (h *Handler) handleJoin(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	snap, entry, err := h.srv.JoinQueue(r.Context(), uid)
	entryID := ""
	if entry != nil {
		entryID = entry.ID
	}
	h.respond(w, "join", snap, entryID, err)
}

func (h *Handler) handleLeave(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req struct {
		EntryID string `json:"entry_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.EntryID == "" {
		h.writeError(w, http.StatusBadRequest, "entry_id required")
		return
	}
	snap, err := h.srv.LeaveQueue(r.Context(), uid, req.EntryID)
	h.respond(w, "leave", snap, "", err)
}

// respond maps coordinator errors onto status codes. The snapshot in a 409
// body is the state the rejected action was judged against, which is the
// freshest truth this round trip saw.
func (h *Handler) respond(w http.ResponseWriter, op string, snap models.Snapshot, entryID string, err error) {
	body := snapshotResponse{Status: snap.Status, Queue: snap.Queue, EntryID: entryID}
	switch {
	case err == nil:
		actionsTotal.WithLabelValues(op, "ok").Inc()
		writeJSON(w, http.StatusOK, body)
	case errors.Is(err, server.ErrNoProfile):
		actionsTotal.WithLabelValues(op, "no_profile").Inc()
		h.writeError(w, http.StatusForbidden, "register a name first")
	case errors.Is(err, coordinator.ErrStaleWrite):
		actionsTotal.WithLabelValues(op, "stale").Inc()
		conflictsTotal.Inc()
		writeJSON(w, http.StatusConflict, conflictResponse{Error: "stale_write", Snapshot: body})
	case errors.Is(err, coordinator.ErrNotFree):
		actionsTotal.WithLabelValues(op, "rejected").Inc()
		writeJSON(w, http.StatusConflict, conflictResponse{Error: "not_free", Snapshot: body})
	case errors.Is(err, coordinator.ErrNotHolder):
		actionsTotal.WithLabelValues(op, "rejected").Inc()
		writeJSON(w, http.StatusConflict, conflictResponse{Error: "not_holder", Snapshot: body})
	case errors.Is(err, coordinator.ErrNotEligible):
		actionsTotal.WithLabelValues(op, "rejected").Inc()
		writeJSON(w, http.StatusConflict, conflictResponse{Error: "not_eligible", Snapshot: body})
	case errors.Is(err, coordinator.ErrWrongPhase):
		actionsTotal.WithLabelValues(op, "rejected").Inc()
		writeJSON(w, http.StatusConflict, conflictResponse{Error: "wrong_phase", Snapshot: body})
	default:
		actionsTotal.WithLabelValues(op, "error").Inc()
		h.log.Error("internal error", zap.String("op", op), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
	h.log.Warn("request rejected", zap.Int("status", status), zap.String("msg", msg))
}
