package events

// Topic constants for domain events emitted by the pricing and stock
// engine.
const (
	TopicOrderCompleted = "order.completed"
	TopicOrderCancelled = "order.cancelled"
	TopicStockDepleted  = "stock.depleted"
	TopicOverridesReset = "overrides.reset"
)

// DefaultTopics returns the canonical list of topics downstream
// consumers can subscribe to.
func DefaultTopics() []string {
	return []string{
		TopicOrderCompleted,
		TopicOrderCancelled,
		TopicStockDepleted,
		TopicOverridesReset,
	}
}
