package audit

import (
	"context"

	"github.com/jwalitptl/exchange-api/pkg/logger"
)

// AsyncSink wraps a Sink so callers on the hot path never block on audit
// persistence. Failures are logged, not surfaced: an audit miss must not
// fail the access decision it describes.
type AsyncSink struct {
	sink Sink
	log  *logger.Logger
}

func NewAsyncSink(sink Sink, log *logger.Logger) *AsyncSink {
	return &AsyncSink{sink: sink, log: log}
}

func (a *AsyncSink) LogEvent(ctx context.Context, eventType, actorID, actorType, resourceType, resourceID, outcome string, details map[string]interface{}) error {
	go func() {
		// Detach from the request context so cancellation of the caller
		// does not lose the event.
		if err := a.sink.LogEvent(context.Background(), eventType, actorID, actorType, resourceType, resourceID, outcome, details); err != nil {
			a.log.Error(err, "failed to persist audit event",
				"event_type", eventType,
				"actor_id", actorID)
		}
	}()
	return nil
}
