// Package notify defines the fire-and-forget alerting collaborator. Dispatch
// failures are logged and never abort the attendance write that triggered
// them.
package notify

import (
	"context"
	"log/slog"
)

// Notification is one alert routed to a set of recipients.
type Notification struct {
	Event      string
	Recipients []string
	Payload    map[string]any
}

// Dispatcher sends notifications best-effort.
type Dispatcher interface {
	Send(ctx context.Context, n Notification) error
}

// LogDispatcher writes notifications to the log. Stands in for the push/SMS
// gateway in development.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d *LogDispatcher) Send(ctx context.Context, n Notification) error {
	d.Logger.InfoContext(ctx, "notification dispatched",
		"event", n.Event,
		"recipients", n.Recipients,
	)
	return nil
}
