package notify

import (
	"context"

	"github.com/tourguard/safety-band/internal/logger"
)

// Sink delivers a notification to its audience: an SMS gateway, a police
// dispatch bridge, or a log in development setups.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// maxDeliveryAttempts bounds redelivery so a failing sink
// can never stall the queue behind one message.
const maxDeliveryAttempts = 3

// Dispatcher is an asynchronous fan-out worker. State transitions enqueue
// notifications without blocking; the worker goroutine drains the queue and
// delivers with bounded retries. Failures are logged, never propagated back
// to the transition that caused them.
type Dispatcher struct {
	// sink receives deliveries.
	sink Sink
	// inbox is the bounded dispatch queue.
	inbox chan Notification
}

// NewDispatcher creates a dispatcher with the given queue capacity.
func NewDispatcher(sink Sink, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}

	return &Dispatcher{
		sink:  sink,
		inbox: make(chan Notification, queueSize),
	}
}

// Run consumes the queue until the context is canceled, then drains whatever
// is already buffered and returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			d.drain(ctx)

			return ctx.Err()
		case n := <-d.inbox:
			d.deliver(ctx, n)
		}
	}
}

// Enqueue hands a notification to the worker without blocking. A full queue
// drops the message with a warning: a stuck downstream must never stall new
// alert processing.
func (d *Dispatcher) Enqueue(ctx context.Context, n Notification) {
	select {
	case d.inbox <- n:
	default:
		logger.WarnKV(ctx, "Notification queue full, dropping",
			"notification_id", n.ID, "alert_id", n.AlertID, "kind", n.Kind)
	}
}

// deliver attempts the delivery with bounded retries.
func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	var err error
	for attempt := 1; attempt <= maxDeliveryAttempts; attempt++ {
		if err = d.sink.Deliver(ctx, n); err == nil {
			logger.InfoKV(ctx, "Notification delivered",
				"notification_id", n.ID, "alert_id", n.AlertID, "kind", n.Kind, "attempt", attempt)

			return
		}

		logger.WarnKV(ctx, "Notification delivery failed",
			"notification_id", n.ID, "alert_id", n.AlertID, "kind", n.Kind, "attempt", attempt, "error", err)
	}

	logger.ErrorKV(ctx, "Notification abandoned after retries",
		"notification_id", n.ID, "alert_id", n.AlertID, "kind", n.Kind, "error", err)
}

// drain delivers everything already buffered in the inbox.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case n := <-d.inbox:
			d.deliver(ctx, n)
		default:
			return
		}
	}
}

// LogSink is a Sink that records notifications in the operations log.
// It stands in for real manager and police gateways in development.
type LogSink struct{}

// Deliver writes the notification to the log and always succeeds.
func (LogSink) Deliver(ctx context.Context, n Notification) error {
	logger.InfoKV(ctx, "Dispatching notification",
		"notification_id", n.ID, "kind", n.Kind, "alert_id", n.AlertID,
		"uvid", n.UVID, "zone", n.Zone, "level", n.Level, "priority", n.Priority)

	return nil
}
