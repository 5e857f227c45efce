package hub

// SubscriptionHandler receives a published Message. Its return value is
// ignored by Publish; subscribers observe, they don't respond.
type SubscriptionHandler func(Message)

// subscription pairs a priority-ordered handler with its pattern entry in
// the hub's subscriptions table (see interceptor.go's generic table/bucket).
type subscription struct {
	handler SubscriptionHandler
}

// Subscribe registers handler to receive messages published on topics
// matching pattern (exact, or a trailing "*" prefix glob), in
// descending-priority order among subscribers to the same topic. It returns
// an id for later removal with Unsubscribe.
func (h *Hub) Subscribe(pattern string, priority int, handler SubscriptionHandler) string {
	return h.subscriptions.register(pattern, priority, subscription{handler: handler})
}

// Unsubscribe removes a previously registered subscription.
func (h *Hub) Unsubscribe(id string) bool {
	return h.subscriptions.unregister(id)
}

// PublishResult reports how a Publish call was resolved.
type PublishResult struct {
	// Payload is the interceptor's replacement payload, if one short-circuited
	// delivery. Zero value when delivery reached subscribers normally.
	Payload Payload
	// Intercepted is true when a topic interceptor claimed the publish before
	// any subscriber saw it.
	Intercepted bool
	// Delivered counts how many subscribers received the message: those of
	// this hub, or, when Escalated, those of the ancestor that delivered it
	// (zero if intercepted).
	Delivered int
	// Escalated is true when no local interceptor or subscriber claimed the
	// message and it was forwarded to a parent hub.
	Escalated bool
}

// Publish delivers msg synchronously, per §4.4:
//  1. topic interceptors run first, in priority order; a match short-circuits
//     delivery entirely.
//  2. otherwise every matching subscriber at this hub runs, in priority
//     order.
//  3. if this hub has no matching interceptor or subscriber at all, the
//     message escalates to the parent hub (no downward fan-out: a hub never
//     forwards a publish to its own children).
func (h *Hub) Publish(msg Message) PublishResult {
	result := h.publish(msg)
	if h.metrics != nil {
		h.metrics.PublishesTotal.WithLabelValues(h.scope.String(), publishOutcome(result)).Inc()
	}
	return result
}

func publishOutcome(r PublishResult) string {
	switch {
	case r.Intercepted:
		return "intercepted"
	case r.Escalated:
		return "escalated"
	case r.Delivered > 0:
		return "delivered"
	default:
		return "dropped"
	}
}

func (h *Hub) publish(msg Message) PublishResult {
	if msg.Metadata == nil {
		msg.Metadata = Metadata{}
	}

	if payload, ok := h.interceptors.InterceptTopic(msg); ok {
		return PublishResult{Payload: payload, Intercepted: true}
	}

	handlers := h.subscriptions.matchingHandlers(msg.Topic)
	if len(handlers) > 0 {
		for _, sub := range handlers {
			sub.handler(msg)
		}
		return PublishResult{Delivered: len(handlers)}
	}

	if parent := h.Parent(); parent != nil {
		result := parent.publish(msg)
		result.Escalated = true
		return result
	}

	return PublishResult{}
}
