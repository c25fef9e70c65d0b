package events

const (
	TopicCartUpdated        = "cart.updated"
	TopicReservationExpired = "cart.reservation.expired"
	TopicOrderCreated       = "order.created"
)

// Partition key = user_id, so every event for one user's cart keeps its order.
func PartitionKey(userID string) []byte { return []byte(userID) }
