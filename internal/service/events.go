package service

import "context"

// EventPublisher sends domain events to the broker.  Publishing is best
// effort: failures are logged by the caller and never undo a commit.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}
