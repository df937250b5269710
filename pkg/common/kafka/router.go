package kafka

import "context"

// Publisher is the producer side of the event bus. *Producer satisfies it.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error
}

// Router sends each event to the producer registered for its type, falling
// back to a default producer for unrouted types.
type Router struct {
	fallback Publisher
	routes   map[string]Publisher
}

func NewRouter(fallback Publisher) *Router {
	return &Router{
		fallback: fallback,
		routes:   make(map[string]Publisher),
	}
}

func (r *Router) Route(eventType string, p Publisher) *Router {
	r.routes[eventType] = p
	return r
}

func (r *Router) PublishEvent(ctx context.Context, eventType string, source string, data map[string]interface{}) error {
	target, ok := r.routes[eventType]
	if !ok {
		target = r.fallback
	}
	if target == nil {
		return nil
	}
	return target.PublishEvent(ctx, eventType, source, data)
}
