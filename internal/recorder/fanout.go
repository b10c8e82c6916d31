// Package recorder fans a trade event out to every configured sink: the
// persistent ledger, chat notifiers, and anything else that implements
// ports.TradeRecorder.
package recorder

import (
	"context"
	"errors"
	"fmt"

	"antigravity/internal/domain"
	"antigravity/internal/ports"
)

// Fanout forwards each trade event to all sinks. A failing sink never stops
// delivery to the others; the joined error is returned at the end.
type Fanout struct {
	sinks  []ports.TradeRecorder
	logger ports.Logger
}

// New creates a fan-out over the given sinks. Nil sinks are skipped.
func New(logger ports.Logger, sinks ...ports.TradeRecorder) (*Fanout, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for the trade recorder")
	}
	kept := make([]ports.TradeRecorder, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Fanout{sinks: kept, logger: logger}, nil
}

// Record delivers the event to every sink in order.
func (f *Fanout) Record(ctx context.Context, event *domain.TradeEvent) error {
	if event == nil {
		return fmt.Errorf("%w: nil trade event", ports.ErrInvalidRequest)
	}

	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Record(ctx, event); err != nil {
			f.logger.Warn(ctx, "Trade sink failed", map[string]interface{}{
				"event_id": event.ID,
				"action":   event.Action.String(),
				"error":    err.Error(),
			})
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ ports.TradeRecorder = (*Fanout)(nil)
