// Package api exposes HTTP handlers for the attendance and settings services.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"example.com/gym/internal/auth"
	"example.com/gym/internal/domain"
	"example.com/gym/internal/sanitize"
)

const maxBodyBytes = 1 << 20

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	attendance *domain.AttendanceService
	settings   *domain.SettingsService
	logger     *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(attendance *domain.AttendanceService, settings *domain.SettingsService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{attendance: attendance, settings: settings, logger: logger.With("component", "api")}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/settings", h.settingsRoute)
	mux.HandleFunc("/v1/attendance/overview", h.overview)
	mux.HandleFunc("/v1/attendance/orphans", h.orphans)
	mux.HandleFunc("/v1/attendance/low-attendance", h.lowAttendance)
	mux.HandleFunc("/v1/attendance/checkins", h.checkIns)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) settingsRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getSettings(w, r)
	case http.MethodPut, http.MethodPatch:
		h.updateSettings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeSettingsRead, auth.ScopeSettingsWrite)
	if !ok {
		return
	}

	settings, err := h.settings.GetOrCreate(r.Context(), claims.AdminID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, auth.ScopeSettingsWrite)
	if !ok {
		return
	}

	patch, err := decodeSettingsPatch(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	settings, err := h.settings.ApplyUpdate(r.Context(), claims.AdminID, patch)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// decodeBody reads exactly one JSON value from the request body.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// decodeSettingsPatch reads the body as a generic document, strips operator
// keys at every depth and only then binds it to the typed patch.
func decodeSettingsPatch(r *http.Request) (domain.SettingsPatch, error) {
	var raw map[string]any
	if err := decodeBody(r, &raw); err != nil {
		return domain.SettingsPatch{}, err
	}
	clean, err := json.Marshal(sanitize.Map(raw))
	if err != nil {
		return domain.SettingsPatch{}, err
	}
	var patch domain.SettingsPatch
	if err := json.Unmarshal(clean, &patch); err != nil {
		return domain.SettingsPatch{}, err
	}
	return patch, nil
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeAttendanceRead, auth.ScopeAttendanceWrite)
	if !ok {
		return
	}

	month := sanitize.Values(r.URL.Query()).Get("month")
	overview, err := h.attendance.Overview(r.Context(), claims.AdminID, month)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, OverviewResponse{
		Month:    overview.Month,
		Overview: overview.Entries,
		Orphaned: orphanViews(overview.Orphaned),
	})
}

func (h *Handler) orphans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeAttendanceRead, auth.ScopeAttendanceWrite)
	if !ok {
		return
	}

	month := sanitize.Values(r.URL.Query()).Get("month")
	overview, err := h.attendance.Overview(r.Context(), claims.AdminID, month)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, OrphansResponse{
		Month:    overview.Month,
		Count:    len(overview.Orphaned),
		Orphaned: orphanViews(overview.Orphaned),
	})
}

func (h *Handler) lowAttendance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeAttendanceRead, auth.ScopeAttendanceWrite)
	if !ok {
		return
	}

	month := sanitize.Values(r.URL.Query()).Get("month")
	report, err := h.attendance.LowAttendance(r.Context(), claims.AdminID, month)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) checkIns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, auth.ScopeAttendanceWrite)
	if !ok {
		return
	}

	var req CheckInRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	input := domain.CheckInInput{
		AdminID:  claims.AdminID,
		MemberID: strings.TrimSpace(req.MemberID),
		RecordID: strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	}
	if req.CheckedInAt != nil {
		input.CheckedInAt = *req.CheckedInAt
	}

	record, err := h.attendance.RecordCheckIn(r.Context(), input)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

// authorize checks for a bearer identity holding any of scopes and writes the
// error response itself when it does not.
func authorize(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok || strings.TrimSpace(claims.AdminID) == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasAnyScope(scopes...) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
		return nil, false
	}
	return claims, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidYearMonth),
		errors.Is(err, domain.ErrInvalidSettings),
		errors.Is(err, domain.ErrInvalidCheckIn):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrMemberNotFound):
		writeError(w, http.StatusNotFound, "not_found", "member not found")
	case errors.Is(err, domain.ErrCheckInConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// CheckInRequest is the payload for POST /v1/attendance/checkins.
type CheckInRequest struct {
	MemberID    string     `json:"memberId"`
	CheckedInAt *time.Time `json:"checkedInAt,omitempty"`
}

// OrphanView is one attendance record whose member no longer resolves.
type OrphanView struct {
	RecordID string    `json:"recordId"`
	Date     time.Time `json:"date"`
}

// OverviewResponse is the body of GET /v1/attendance/overview.
type OverviewResponse struct {
	Month    string                          `json:"month"`
	Overview map[string]domain.OverviewEntry `json:"overview"`
	Orphaned []OrphanView                    `json:"orphaned"`
}

// OrphansResponse is the body of GET /v1/attendance/orphans.
type OrphansResponse struct {
	Month    string       `json:"month"`
	Count    int          `json:"count"`
	Orphaned []OrphanView `json:"orphaned"`
}

func orphanViews(orphaned []domain.OrphanedRecord) []OrphanView {
	views := make([]OrphanView, 0, len(orphaned))
	for _, o := range orphaned {
		views = append(views, OrphanView{RecordID: o.RecordID, Date: o.Date})
	}
	sort.SliceStable(views, func(i, j int) bool { return views[i].Date.Before(views[j].Date) })
	return views
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
