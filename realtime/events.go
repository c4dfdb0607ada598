package realtime

import "github.com/sgp-fichas/fichas-api/models"

// Event types pushed to clients when an order changes
const (
	EventOrderCreated       = "order_created"
	EventOrderUpdated       = "order_updated"
	EventOrderStatusUpdated = "order_status_updated"
	EventOrderDeleted       = "order_deleted"
)

// Event is the envelope broadcast for order changes. Deletion events carry
// only the order id; a delete-all carries neither id nor snapshot.
type Event struct {
	Type     string                `json:"type"`
	Order    *models.OrderResponse `json:"order,omitempty"`
	OrderID  *uint                 `json:"order_id,omitempty"`
	UserID   *int                  `json:"user_id,omitempty"`
	Username string                `json:"username,omitempty"`
}

// OrderEvent builds a snapshot-carrying event
func OrderEvent(eventType string, order models.OrderResponse) Event {
	id := order.ID
	return Event{Type: eventType, Order: &order, OrderID: &id}
}

// OrderDeletedEvent builds a deletion event. A zero id means every order was removed.
func OrderDeletedEvent(id uint) Event {
	ev := Event{Type: EventOrderDeleted}
	if id != 0 {
		ev.OrderID = &id
	}
	return ev
}

// WithActor attributes the event to the user who caused it
func (e Event) WithActor(userID int, username string) Event {
	if userID != 0 {
		e.UserID = &userID
	}
	e.Username = username
	return e
}
