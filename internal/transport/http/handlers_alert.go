package httptransport

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"sentra/internal/notify"
	"sentra/internal/realtime"
	"sentra/internal/schedule"
	id "sentra/pkg/domain"
	domainerrors "sentra/pkg/domain-errors"
	"sentra/pkg/platform/httputil"
	"sentra/pkg/platform/sentinel"
	"sentra/pkg/requestcontext"
)

// AlertHandler serves the emergency alert endpoint. Emergencies are the
// highest-urgency category: the alert goes out globally, to the event room
// and to each supervisor's direct connections at once so delivery never
// depends on a single path.
type AlertHandler struct {
	hub      *realtime.Hub
	schedule schedule.Store
	notifier notify.Dispatcher
	logger   *slog.Logger
}

func NewAlertHandler(hub *realtime.Hub, sched schedule.Store, notifier notify.Dispatcher, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{hub: hub, schedule: sched, notifier: notifier, logger: logger}
}

// Register mounts the alert routes.
func (h *AlertHandler) Register(r chi.Router) {
	r.Post("/alerts/emergency", h.handleEmergency)
}

func (h *AlertHandler) handleEmergency(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[emergencyAlertRequest](w, r, h.logger)
	if !ok {
		return
	}
	if req.Message == "" {
		httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "message is required"))
		return
	}

	ctx := r.Context()
	actor := requestcontext.ActorID(ctx)
	now := requestcontext.Now(ctx)
	payload := map[string]any{
		"message":   req.Message,
		"raised_by": actor.String(),
		"raised_at": now.UTC().Format(time.RFC3339),
	}

	var supervisors []id.ActorID
	eventRoom := ""
	if req.EventID != "" {
		eventID, err := id.ParseEventID(req.EventID)
		if err != nil {
			httputil.WriteError(w, domainerrors.New(domainerrors.CodeValidation, "invalid eventId"))
			return
		}
		event, err := h.schedule.EventByID(ctx, eventID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				httputil.WriteError(w, domainerrors.New(domainerrors.CodeNotFound, "event not found"))
				return
			}
			httputil.WriteError(w, err)
			return
		}
		payload["event_id"] = event.ID.String()
		eventRoom = realtime.EventRoom(event.ID.String())
		supervisors = event.Supervisors
	}

	if len(supervisors) == 0 {
		h.hub.PublishEmergency(eventRoom, "", payload)
	} else {
		h.hub.PublishEmergency(eventRoom, supervisors[0].String(), payload)
		for _, s := range supervisors[1:] {
			h.hub.PublishToUser(s.String(), realtime.EventEmergencyAlert, payload)
		}
	}

	if h.notifier != nil && len(supervisors) > 0 {
		recipients := make([]string, 0, len(supervisors))
		for _, s := range supervisors {
			recipients = append(recipients, s.String())
		}
		err := h.notifier.Send(ctx, notify.Notification{
			Event:      realtime.EventEmergencyAlert,
			Recipients: recipients,
			Payload:    payload,
		})
		if err != nil {
			h.logger.WarnContext(ctx, "emergency notification dispatch failed", "error", err)
		}
	}

	h.logger.WarnContext(ctx, "emergency alert raised", "raised_by", actor, "event_id", req.EventID)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}
