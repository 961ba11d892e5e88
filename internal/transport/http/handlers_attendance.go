// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services and encode; every status code is derived from the domain
// error taxonomy in pkg/platform/httputil.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sentra/internal/attendance"
	id "sentra/pkg/domain"
	domainerrors "sentra/pkg/domain-errors"
	"sentra/pkg/platform/httputil"
	"sentra/pkg/requestcontext"
)

// AttendanceService is the registry surface the HTTP layer consumes.
type AttendanceService interface {
	CheckIn(ctx context.Context, input attendance.CheckInInput) (*attendance.CheckInResult, error)
	CheckOut(ctx context.Context, attendanceID id.AttendanceID, input attendance.CheckOutInput) (*attendance.Record, error)
	MarkAbsent(ctx context.Context, input attendance.MarkAbsentInput) (*attendance.Record, error)
	Correct(ctx context.Context, attendanceID id.AttendanceID, input attendance.CorrectionInput) (*attendance.Record, error)
	GetByID(ctx context.Context, attendanceID id.AttendanceID) (*attendance.Record, error)
	TodayFor(ctx context.Context, agentID id.AgentID) ([]*attendance.Record, error)
	ListByEvent(ctx context.Context, eventID id.EventID, date time.Time) ([]*attendance.Record, error)
}

// AttendanceHandler serves the attendance endpoints.
type AttendanceHandler struct {
	svc    AttendanceService
	logger *slog.Logger
}

func NewAttendanceHandler(svc AttendanceService, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{svc: svc, logger: logger}
}

// Register mounts the attendance routes.
func (h *AttendanceHandler) Register(r chi.Router) {
	r.Post("/attendance/check-in", h.handleCheckIn)
	r.Post("/attendance/{attendanceID}/check-out", h.handleCheckOut)
	r.Post("/attendance/absent", h.handleMarkAbsent)
	r.Patch("/attendance/{attendanceID}", h.handleCorrect)
	r.Get("/attendance/today", h.handleToday)
	r.Get("/attendance/{attendanceID}", h.handleGet)
	r.Get("/events/{eventID}/attendance", h.handleListByEvent)
}

func (h *AttendanceHandler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[checkInRequest](w, r, h.logger)
	if !ok {
		return
	}

	input := attendance.CheckInInput{
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		Accuracy:         req.Accuracy,
		PhotoRef:         req.Photo,
		Method:           attendance.Method(req.Method),
		FacialVerified:   req.FacialVerified,
		FacialMatchScore: req.FacialMatchScore,
		DeviceInfo:       req.DeviceInfo,
		Notes:            req.Notes,
	}
	if req.EventID != "" {
		eventID, err := id.ParseEventID(req.EventID)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid eventId"))
			return
		}
		input.EventID = eventID
	}
	if req.AgentID != "" {
		agentID, err := id.ParseAgentID(req.AgentID)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid agentId"))
			return
		}
		input.AgentID = &agentID
	}

	result, err := h.svc.CheckIn(r.Context(), input)
	if err != nil {
		h.logFailure(r.Context(), "check-in rejected", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, checkInResponse{
		Attendance: toAttendanceResponse(result.Record),
		Geofence:   toGeofenceResponse(result.Verdict),
		Alerts:     result.Alerts,
	})
}

func (h *AttendanceHandler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	attendanceID, ok := h.attendanceID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[checkOutRequest](w, r, h.logger)
	if !ok {
		return
	}

	rec, err := h.svc.CheckOut(r.Context(), attendanceID, attendance.CheckOutInput{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Notes:     req.Notes,
	})
	if err != nil {
		h.logFailure(r.Context(), "check-out rejected", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAttendanceResponse(rec))
}

func (h *AttendanceHandler) handleMarkAbsent(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[markAbsentRequest](w, r, h.logger)
	if !ok {
		return
	}
	input := attendance.MarkAbsentInput{Reason: req.Reason}
	if req.AgentID != "" {
		agentID, err := id.ParseAgentID(req.AgentID)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid agentId"))
			return
		}
		input.AgentID = agentID
	}
	if req.EventID != "" {
		eventID, err := id.ParseEventID(req.EventID)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid eventId"))
			return
		}
		input.EventID = eventID
	}

	rec, err := h.svc.MarkAbsent(r.Context(), input)
	if err != nil {
		h.logFailure(r.Context(), "absence marking rejected", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAttendanceResponse(rec))
}

func (h *AttendanceHandler) handleCorrect(w http.ResponseWriter, r *http.Request) {
	attendanceID, ok := h.attendanceID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.Decode[correctionRequest](w, r, h.logger)
	if !ok {
		return
	}

	input := attendance.CorrectionInput{
		CheckInAt:  req.CheckInAt,
		CheckOutAt: req.CheckOutAt,
		Notes:      req.Notes,
		Reason:     req.Reason,
	}
	if req.Status != nil {
		status := attendance.Status(*req.Status)
		input.Status = &status
	}

	rec, err := h.svc.Correct(r.Context(), attendanceID, input)
	if err != nil {
		h.logFailure(r.Context(), "correction rejected", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAttendanceResponse(rec))
}

func (h *AttendanceHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	attendanceID, ok := h.attendanceID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.GetByID(r.Context(), attendanceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAttendanceResponse(rec))
}

// handleToday returns the caller's own records for the current day.
func (h *AttendanceHandler) handleToday(w http.ResponseWriter, r *http.Request) {
	agentID := id.AgentID(requestcontext.ActorID(r.Context()))
	records, err := h.svc.TodayFor(r.Context(), agentID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAttendanceList(records))
}

func (h *AttendanceHandler) handleListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid event id"))
		return
	}
	date := requestcontext.Now(r.Context())
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid date, expected YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	records, err := h.svc.ListByEvent(r.Context(), eventID, date)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAttendanceList(records))
}

func (h *AttendanceHandler) attendanceID(w http.ResponseWriter, r *http.Request) (id.AttendanceID, bool) {
	attendanceID, err := id.ParseAttendanceID(chi.URLParam(r, "attendanceID"))
	if err != nil {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid attendance id"))
		return id.AttendanceID{}, false
	}
	return attendanceID, true
}

func (h *AttendanceHandler) logFailure(ctx context.Context, msg string, err error) {
	if domainerrors.CodeOf(err) == domainerrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg, "error", err)
		return
	}
	h.logger.WarnContext(ctx, msg, "error", err)
}

func toAttendanceList(records []*attendance.Record) []attendanceResponse {
	out := make([]attendanceResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toAttendanceResponse(rec))
	}
	return out
}
