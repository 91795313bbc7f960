package notify

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"dispatch-service/internal/model"
)

// Sender is anything that can deliver an assignment offer.
type Sender interface {
	NotifyAssignment(ctx context.Context, n model.AssignmentNotification) error
}

// LogNotifier only writes the offer to the log. It is the fallback when no
// broker or webhook is configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) NotifyAssignment(_ context.Context, n model.AssignmentNotification) error {
	l.log.Info().
		Str("assignment_id", n.AssignmentID.String()).
		Str("order_id", n.OrderID.String()).
		Str("driver_id", n.DriverID.String()).
		Time("expires_at", n.ExpiresAt).
		Msg(n.Title)
	return nil
}

// Fanout delivers to every sender and reports all failures together.
type Fanout []Sender

func (f Fanout) NotifyAssignment(ctx context.Context, n model.AssignmentNotification) error {
	var errs []error
	for _, s := range f {
		if err := s.NotifyAssignment(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
