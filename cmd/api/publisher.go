package main

import (
	"context"

	"github.com/your-org/timeclock/internal/api/ws"
	"github.com/your-org/timeclock/internal/models"
	"github.com/your-org/timeclock/internal/observability"
	"github.com/your-org/timeclock/internal/storage"
)

// localPublisher stands in for the NATS producer when messaging is
// disabled: events go straight to the audit log and the WebSocket hub.
type localPublisher struct {
	store storage.Store
	hub   *ws.Hub
}

func (p *localPublisher) PublishEvent(ctx context.Context, ev *models.AttendanceEvent) error {
	if err := p.store.InsertAttendanceEvent(ctx, ev); err != nil {
		observability.EventsPublished.WithLabelValues(string(ev.Type), "error").Inc()
		return err
	}
	observability.EventsPublished.WithLabelValues(string(ev.Type), "ok").Inc()
	p.hub.BroadcastEvent(ev)
	return nil
}
