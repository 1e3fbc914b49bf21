package shared

import "context"

// EventHandler handles domain events
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	// EventTypes lists the types the handler wants. Empty means every event.
	EventTypes() []string
}

// EventPublisher publishes domain events after the change that raised them is committed
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventSubscriber registers event handlers
type EventSubscriber interface {
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
}

// EventBus combines publisher and subscriber
type EventBus interface {
	EventPublisher
	EventSubscriber
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
