package service

import (
	"context"

	"dispatch-service/internal/model"
)

// Notifier delivers an offer to the chosen driver. Dispatch never fails
// because a notification could not be delivered.
type Notifier interface {
	NotifyAssignment(ctx context.Context, n model.AssignmentNotification) error
}

type NopNotifier struct{}

func (NopNotifier) NotifyAssignment(context.Context, model.AssignmentNotification) error {
	return nil
}
