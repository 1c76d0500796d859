// Package feed turns mutations into change-feed events. Each event
// carries the full recomputed booking list and projected environment
// statuses, derived fresh from storage through the pure projector.
package feed

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/booking"
	"github.com/superorange0707/environment-booking/internal/model"
)

// Source is the slice of storage the feed reads from.
type Source interface {
	ListBookings(ctx context.Context) ([]model.BookingView, error)
	ListActiveBookings(ctx context.Context) ([]model.Booking, error)
	ListEnvironments(ctx context.Context) ([]model.Environment, error)
}

// Sink receives marshalled events; the websocket hub in production.
type Sink interface {
	Broadcast(message []byte)
}

// StatusViews projects every environment's current status and next
// available date from its active bookings.
func StatusViews(ctx context.Context, source Source, now time.Time) ([]model.EnvironmentStatusView, error) {
	environments, err := source.ListEnvironments(ctx)
	if err != nil {
		return nil, err
	}

	active, err := source.ListActiveBookings(ctx)
	if err != nil {
		return nil, err
	}

	byEnvironment := make(map[int64][]model.Booking, len(environments))
	for _, b := range active {
		byEnvironment[b.EnvironmentID] = append(byEnvironment[b.EnvironmentID], b)
	}

	views := make([]model.EnvironmentStatusView, 0, len(environments))
	for _, env := range environments {
		bookings := byEnvironment[env.ID]
		views = append(views, model.EnvironmentStatusView{
			Environment:   env,
			Status:        booking.ProjectStatus(env, bookings, now),
			NextAvailable: booking.NextAvailableDate(bookings, now),
		})
	}

	return views, nil
}

// Broadcaster publishes one event per mutation to the sink.
type Broadcaster struct {
	source Source
	sink   Sink
	logger *zap.Logger
	now    func() time.Time
}

// NewBroadcaster creates a broadcaster reading from source and pushing
// to sink.
func NewBroadcaster(source Source, sink Sink, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		source: source,
		sink:   sink,
		logger: logger,
		now:    time.Now,
	}
}

// Publish recomputes the full view and broadcasts it under the given
// event type. Feed failures are logged, never surfaced to the caller:
// the mutation already committed and clients will catch up on the next
// event or reconnect.
func (b *Broadcaster) Publish(ctx context.Context, eventType string) {
	bookings, err := b.source.ListBookings(ctx)
	if err != nil {
		b.logger.Error("Failed to load bookings for change event",
			zap.String("type", eventType),
			zap.Error(err),
		)
		return
	}

	statuses, err := StatusViews(ctx, b.source, b.now())
	if err != nil {
		b.logger.Error("Failed to project statuses for change event",
			zap.String("type", eventType),
			zap.Error(err),
		)
		return
	}

	event := model.ChangeEvent{
		Type:     eventType,
		Bookings: bookings,
		Statuses: statuses,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal change event", zap.Error(err))
		return
	}

	b.sink.Broadcast(payload)

	b.logger.Debug("Change event published",
		zap.String("type", eventType),
		zap.Int("bookings", len(bookings)),
		zap.Int("statuses", len(statuses)),
	)
}
