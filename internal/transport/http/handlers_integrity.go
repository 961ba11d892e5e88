package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sentra/internal/integrity"
	"sentra/internal/policy"
	id "sentra/pkg/domain"
	domainerrors "sentra/pkg/domain-errors"
	"sentra/pkg/platform/httputil"
	"sentra/pkg/requestcontext"
)

// IntegrityService is the monitor surface the HTTP layer consumes.
type IntegrityService interface {
	Process(ctx context.Context, sample *integrity.LocationSample) (*integrity.Assessment, error)
	ResolveSignal(ctx context.Context, signalID id.SignalID, resolvedBy, resolution string) (*integrity.FraudSignal, error)
	ListSignals(ctx context.Context, filter integrity.SignalFilter) ([]*integrity.FraudSignal, error)
	History(ctx context.Context, agentID id.AgentID, limit int) ([]*integrity.LocationSample, error)
}

// IntegrityHandler serves the location stream and fraud signal endpoints.
type IntegrityHandler struct {
	svc    IntegrityService
	logger *slog.Logger
}

func NewIntegrityHandler(svc IntegrityService, logger *slog.Logger) *IntegrityHandler {
	return &IntegrityHandler{svc: svc, logger: logger}
}

// Register mounts the integrity routes.
func (h *IntegrityHandler) Register(r chi.Router) {
	r.Post("/location/report", h.handleLocationReport)
	r.Get("/agents/{agentID}/location/history", h.handleHistory)
	r.Get("/fraud/signals", h.handleListSignals)
	r.Post("/fraud/signals/{signalID}/resolve", h.handleResolveSignal)
}

func (h *IntegrityHandler) handleLocationReport(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[locationReportRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "coordinates out of range"))
		return
	}

	ctx := r.Context()
	sample := &integrity.LocationSample{
		ID:             id.NewSampleID(),
		AgentID:        id.AgentID(requestcontext.ActorID(ctx)),
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		AccuracyMeters: req.Accuracy,
		SpeedKmh:       req.Speed,
		Heading:        req.Heading,
		BatteryLevel:   req.BatteryLevel,
		IsMockLocation: req.IsMockLocation,
		RecordedAt:     requestcontext.Now(ctx),
		DeviceInfo:     requestcontext.DeviceInfo(ctx),
	}
	if req.EventID != "" {
		eventID, err := id.ParseEventID(req.EventID)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid eventId"))
			return
		}
		sample.EventID = &eventID
	}

	assessment, err := h.svc.Process(ctx, sample)
	if err != nil {
		h.logger.ErrorContext(ctx, "location report processing failed", "error", err)
		httputil.WriteError(w, err)
		return
	}
	if assessment.Rejected {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeForbidden, "mock location reports are rejected"))
		return
	}

	alerts := append([]string{}, assessment.Alerts...)
	for _, signal := range assessment.Signals {
		alerts = append(alerts, string(signal.Kind))
	}
	httputil.WriteJSON(w, http.StatusOK, locationReportResponse{
		IsWithinGeofence:  sample.IsWithinGeofence,
		DistanceFromEvent: sample.DistanceFromEvent,
		Alerts:            alerts,
	})
}

func (h *IntegrityHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	agentID, err := id.ParseAgentID(chi.URLParam(r, "agentID"))
	if err != nil {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid agent id"))
		return
	}

	ctx := r.Context()
	role := requestcontext.ActorRole(ctx)
	self := requestcontext.ActorID(ctx).String() == agentID.String()
	if role == id.RoleAgent && !self {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeForbidden, "agents may only read their own history"))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid limit"))
			return
		}
	}

	samples, err := h.svc.History(ctx, agentID, limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]locationSampleResponse, 0, len(samples))
	for _, s := range samples {
		out = append(out, toLocationSampleResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *IntegrityHandler) handleListSignals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if requestcontext.ActorRole(ctx) == id.RoleAgent {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeForbidden, "fraud signals are supervisor-only"))
		return
	}

	var filter integrity.SignalFilter
	q := r.URL.Query()
	if raw := q.Get("agentId"); raw != "" {
		agentID, err := id.ParseAgentID(raw)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid agentId"))
			return
		}
		filter.AgentID = &agentID
	}
	if raw := q.Get("eventId"); raw != "" {
		eventID, err := id.ParseEventID(raw)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid eventId"))
			return
		}
		filter.EventID = &eventID
	}
	filter.Unresolved = q.Get("unresolved") == "true"

	signals, err := h.svc.ListSignals(ctx, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]fraudSignalResponse, 0, len(signals))
	for _, s := range signals {
		out = append(out, toFraudSignalResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *IntegrityHandler) handleResolveSignal(w http.ResponseWriter, r *http.Request) {
	signalID, err := id.ParseSignalID(chi.URLParam(r, "signalID"))
	if err != nil {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid signal id"))
		return
	}
	req, ok := httputil.Decode[resolveSignalRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Resolution == "" {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "resolution is required"))
		return
	}

	ctx := r.Context()
	actor := requestcontext.ActorID(ctx)
	if !policy.Allow(requestcontext.ActorRole(ctx), actor, id.AgentID{}, policy.ActionResolveSignal) {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeForbidden, "actor may not resolve fraud signals"))
		return
	}

	signal, err := h.svc.ResolveSignal(ctx, signalID, actor.String(), req.Resolution)
	if err != nil {
		h.logger.WarnContext(ctx, "signal resolution failed", "signal_id", signalID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toFraudSignalResponse(signal))
}
